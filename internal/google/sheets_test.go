package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"carwash/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(t *testing.T) (*http.ServeMux, *SheetsService) {
	t.Helper()
	ctx := context.Background()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(ctx, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	return mux, newSheetsService(srv, "bookings_tid", nil)
}

func testBooking(id string) *models.Booking {
	created := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	return &models.Booking{
		ID:        id,
		Name:      "Raj Kumar",
		Email:     "raj@example.com",
		Phone:     "9876543210",
		Service:   "Basic Wash - ₹299",
		Date:      "2026-02-20",
		Time:      "10:00",
		Status:    models.StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestBookingRowValues(t *testing.T) {
	values := bookingRowValues(testBooking("BK001"))

	expected := []interface{}{
		"BK001", "Raj Kumar", "raj@example.com", "9876543210", "Basic Wash - ₹299",
		"2026-02-20", "10:00", "pending", "", "2026-02-10 09:30:00", "2026-02-10 09:30:00",
	}
	if len(values) != len(expected) || len(values) != len(bookingHeaders) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(values))
	}
	for i, v := range values {
		if v != expected[i] {
			t.Errorf("At index %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

func TestCacheOperations(t *testing.T) {
	s := newSheetsService(nil, "x", nil)

	s.setCachedRow("BK100", 5)
	row, ok := s.getCachedRow("BK100")
	if !ok || row != 5 {
		t.Errorf("Expected row 5, got %d (ok=%v)", row, ok)
	}

	s.deleteCacheRow("BK100")
	if _, ok = s.getCachedRow("BK100"); ok {
		t.Errorf("Expected row to be deleted from cache")
	}

	s.setCachedRow("BK200", 10)
	s.ClearCache()
	if _, ok = s.getCachedRow("BK200"); ok {
		t.Errorf("Expected cache to be cleared")
	}
}

func TestGetServiceAccountEmail(t *testing.T) {
	tmpfile, err := os.CreateTemp(t.TempDir(), "creds.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err = tmpfile.WriteString(`{"client_email": "test@example.com"}`); err != nil {
		t.Fatal(err)
	}
	tmpfile.Close()

	email, err := GetServiceAccountEmail(tmpfile.Name())
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if email != "test@example.com" {
		t.Errorf("Expected test@example.com, got %s", email)
	}

	if _, err = GetServiceAccountEmail("non-existent"); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestSheetsService_TestConnection(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	if err := s.TestConnection(context.Background()); err != nil {
		t.Errorf("TestConnection failed: %v", err)
	}
}

func TestSheetsService_WarmUpCache(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"BK123"}, {}, {"BK456"}},
		})
	})
	if err := s.WarmUpCache(context.Background()); err != nil {
		t.Fatalf("WarmUpCache failed: %v", err)
	}
	if row, ok := s.getCachedRow("BK123"); !ok || row != 2 {
		t.Errorf("Expected row 2 for BK123, got %d", row)
	}
	if row, ok := s.getCachedRow("BK456"); !ok || row != 4 {
		t.Errorf("Expected row 4 for BK456, got %d", row)
	}
	if _, ok := s.getCachedRow("ID"); ok {
		t.Errorf("Header must not be cached")
	}
}

func TestSheetsService_UpsertAppendsWhenMissing(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "BK789") {
			t.Errorf("append body misses booking id: %s", body)
		}
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Bookings!A10:K10"},
		})
	})

	if err := s.UpsertBooking(context.Background(), testBooking("BK789")); err != nil {
		t.Fatalf("UpsertBooking failed: %v", err)
	}
	if row, _ := s.getCachedRow("BK789"); row != 10 {
		t.Errorf("Expected cached row 10, got %d", row)
	}
}

func TestSheetsService_UpsertUpdatesCachedRow(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow("BK123", 2)
	called := false
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A2:K2", func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	if err := s.UpsertBooking(context.Background(), testBooking("BK123")); err != nil {
		t.Errorf("UpsertBooking failed: %v", err)
	}
	if !called {
		t.Error("Expected row update")
	}
	if err := s.UpsertBooking(context.Background(), nil); err == nil {
		t.Error("Expected error for nil booking")
	}
}

func TestSheetsService_DeleteBookingRow(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow("BK456", 3)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A3:K3:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	if err := s.DeleteBookingRow(context.Background(), "BK456"); err != nil {
		t.Errorf("DeleteBookingRow failed: %v", err)
	}
	if _, ok := s.getCachedRow("BK456"); ok {
		t.Error("Expected BK456 to be removed from cache")
	}
}

func TestSheetsService_UpdateBookingStatus(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow("BK123", 2)
	var status string
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!H2:H2", func(w http.ResponseWriter, r *http.Request) {
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		if len(vr.Values) == 1 && len(vr.Values[0]) == 1 {
			status, _ = vr.Values[0][0].(string)
		}
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!K2:K2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	if err := s.UpdateBookingStatus(context.Background(), "BK123", models.StatusConfirmed); err != nil {
		t.Errorf("UpdateBookingStatus failed: %v", err)
	}
	if status != "confirmed" {
		t.Errorf("Expected confirmed, got %q", status)
	}
}

func TestSheetsService_FindBookingRow(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"BK999"}},
		})
	})

	if _, err := s.FindBookingRow(context.Background(), ""); err == nil {
		t.Error("Expected error for empty ID")
	}

	row, err := s.FindBookingRow(context.Background(), "BK999")
	if err != nil || row != 2 {
		t.Errorf("Expected row 2, got %d (%v)", row, err)
	}

	if _, err := s.FindBookingRow(context.Background(), "BK000"); err != ErrRowNotFound {
		t.Errorf("Expected ErrRowNotFound, got %v", err)
	}
}

func TestSheetsService_ReplaceBookingsSheet(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:K:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	var rows int
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		rows = len(vr.Values)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	bookings := []*models.Booking{testBooking("BK001"), testBooking("BK002")}
	if err := s.ReplaceBookingsSheet(context.Background(), bookings); err != nil {
		t.Fatalf("ReplaceBookingsSheet failed: %v", err)
	}
	if rows != 3 {
		t.Errorf("Expected header plus 2 rows, got %d", rows)
	}
	if row, _ := s.getCachedRow("BK002"); row != 3 {
		t.Errorf("Expected cached row 3, got %d", row)
	}
}
