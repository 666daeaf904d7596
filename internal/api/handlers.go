package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"carwash/internal/database"
	"carwash/internal/metrics"
	"carwash/internal/models"
	"carwash/internal/service"
	"carwash/internal/viewmodel"
)

const maxBodyBytes = 1 << 20

// envelope is the response shape of every action.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type action struct {
	handle func(ctx context.Context, p url.Values) (envelope, error)
	admin  bool
	// notFound replaces the generic not-found message.
	notFound string
}

func (s *HTTPServer) routes() map[string]action {
	return map[string]action{
		"create_booking":     {handle: s.createBooking},
		"get_bookings":       {handle: s.getBookings},
		"update_status":      {handle: s.updateStatus, admin: true, notFound: "Booking not found"},
		"search_bookings":    {handle: s.searchBookings},
		"admin_login":        {handle: s.adminLogin},
		"delete_booking":     {handle: s.deleteBooking, admin: true, notFound: "Booking not found"},
		"get_stats":          {handle: s.getStats, admin: true},
		"submit_application": {handle: s.submitApplication},
		"check_application":  {handle: s.checkApplication, notFound: "Application not found"},
		"submit_contact":     {handle: s.submitContact},
		"view_page":          {handle: s.viewPage},
	}
}

func (s *HTTPServer) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeEnvelope(w, http.StatusMethodNotAllowed, envelope{Message: "Method not allowed"})
		return
	}

	params, err := readParams(w, r)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Message: "Invalid request body"})
		return
	}

	name := params.Get("action")
	act, ok := s.actions[name]
	if !ok {
		metrics.IncHTTP("unknown", "invalid")
		writeEnvelope(w, http.StatusBadRequest, envelope{Message: "Invalid action"})
		return
	}

	if act.admin {
		if err := s.auth.Authorize(r); err != nil {
			metrics.IncHTTP(name, "unauthorized")
			writeEnvelope(w, authStatus(err), envelope{Message: err.Error()})
			return
		}
	}

	resp, err := act.handle(r.Context(), params)
	if err != nil {
		code, msg := errorStatus(err, act.notFound)
		if code >= http.StatusInternalServerError {
			s.log.Error().Err(err).Str("action", name).Str("request_id", requestID(r.Context())).Msg("action failed")
		}
		metrics.IncHTTP(name, "error")
		writeEnvelope(w, code, envelope{Message: msg})
		return
	}

	resp.Success = true
	metrics.IncHTTP(name, "ok")
	writeEnvelope(w, http.StatusOK, resp)
}

// readParams merges query values with a urlencoded, multipart or JSON body.
func readParams(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, err
		}
		params := r.URL.Query()
		for k, v := range body {
			params.Set(k, jsonString(v))
		}
		return params, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, err
		}
		return r.Form, nil
	default:
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return r.Form, nil
	}
}

func jsonString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		raw, _ := json.Marshal(t)
		return string(raw)
	}
}

func errorStatus(err error, notFound string) (int, string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, database.ErrNotFound):
		if notFound == "" {
			notFound = "Not found"
		}
		return http.StatusNotFound, notFound
	case errors.Is(err, database.ErrDuplicateID):
		return http.StatusConflict, "Booking ID already exists"
	case errors.Is(err, database.ErrUnavailable):
		return http.StatusServiceUnavailable, "Service temporarily unavailable, please try again"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeEnvelope(w http.ResponseWriter, code int, env envelope) {
	writeJSON(w, code, env)
}

func bookingsData(list []*models.Booking) []*models.Booking {
	if list == nil {
		return []*models.Booking{}
	}
	return list
}

func (s *HTTPServer) createBooking(ctx context.Context, p url.Values) (envelope, error) {
	b := &models.Booking{
		ID:      strings.TrimSpace(p.Get("id")),
		Name:    strings.TrimSpace(p.Get("name")),
		Email:   strings.TrimSpace(p.Get("email")),
		Phone:   strings.TrimSpace(p.Get("phone")),
		Service: strings.TrimSpace(p.Get("service")),
		Date:    strings.TrimSpace(p.Get("date")),
		Time:    strings.TrimSpace(p.Get("time")),
		Message: p.Get("message"),
	}
	created, err := s.svc.Bookings.CreateBooking(ctx, b)
	if err != nil {
		return envelope{}, err
	}
	return envelope{
		Message: "Booking created successfully",
		Data:    map[string]string{"id": created.ID},
	}, nil
}

func (s *HTTPServer) getBookings(ctx context.Context, _ url.Values) (envelope, error) {
	list, err := s.svc.Bookings.ListBookings(ctx)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Data: bookingsData(list)}, nil
}

func (s *HTTPServer) updateStatus(ctx context.Context, p url.Values) (envelope, error) {
	id := strings.TrimSpace(p.Get("id"))
	if id == "" {
		return envelope{}, &models.ValidationError{Field: "id", Message: "Booking ID is required"}
	}
	status, err := models.ParseStatus(p.Get("status"))
	if err != nil {
		return envelope{}, err
	}
	if err := s.svc.Bookings.UpdateStatus(ctx, id, status); err != nil {
		return envelope{}, err
	}
	return envelope{Message: "Status updated successfully"}, nil
}

func (s *HTTPServer) searchBookings(ctx context.Context, p url.Values) (envelope, error) {
	status := strings.TrimSpace(p.Get("status"))
	if status == "" {
		status = models.StatusAll
	}
	list, err := s.svc.Bookings.SearchBookings(ctx, strings.TrimSpace(p.Get("search_term")), status, strings.TrimSpace(p.Get("date")))
	if err != nil {
		return envelope{}, err
	}
	return envelope{Data: bookingsData(list)}, nil
}

func (s *HTTPServer) adminLogin(ctx context.Context, p url.Values) (envelope, error) {
	token, err := s.svc.Auth.AdminLogin(ctx, strings.TrimSpace(p.Get("username")), p.Get("password"))
	if err != nil {
		return envelope{}, err
	}
	return envelope{
		Message: "Login successful",
		Data:    map[string]string{"token": token},
	}, nil
}

func (s *HTTPServer) deleteBooking(ctx context.Context, p url.Values) (envelope, error) {
	id := strings.TrimSpace(p.Get("id"))
	if id == "" {
		return envelope{}, &models.ValidationError{Field: "id", Message: "Booking ID is required"}
	}
	if err := s.svc.Bookings.DeleteBooking(ctx, id); err != nil {
		return envelope{}, err
	}
	return envelope{Message: "Booking deleted successfully"}, nil
}

func (s *HTTPServer) getStats(ctx context.Context, _ url.Values) (envelope, error) {
	stats, err := s.svc.Bookings.Stats(ctx)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Data: stats}, nil
}

func (s *HTTPServer) submitApplication(ctx context.Context, p url.Values) (envelope, error) {
	app, err := s.svc.Forms.SubmitApplication(ctx, &models.Application{
		Name:     strings.TrimSpace(p.Get("name")),
		Aadhar:   strings.TrimSpace(p.Get("aadhar")),
		Category: strings.TrimSpace(p.Get("category")),
		Address:  strings.TrimSpace(p.Get("address")),
		Income:   strings.TrimSpace(p.Get("income")),
		Mobile:   strings.TrimSpace(p.Get("mobile")),
	})
	if err != nil {
		return envelope{}, err
	}
	return envelope{
		Message: fmt.Sprintf("Application submitted successfully. Your application ID is %s", app.ID),
		Data:    map[string]string{"application_id": app.ID},
	}, nil
}

func (s *HTTPServer) checkApplication(ctx context.Context, p url.Values) (envelope, error) {
	app, err := s.svc.Forms.CheckApplication(ctx, p.Get("application_id"), strings.TrimSpace(p.Get("mobile")))
	if err != nil {
		return envelope{}, err
	}
	return envelope{
		Message: app.Status.Describe(),
		Data:    app,
	}, nil
}

func (s *HTTPServer) submitContact(ctx context.Context, p url.Values) (envelope, error) {
	err := s.svc.Forms.SubmitContact(ctx, &models.ContactMessage{
		Name:    strings.TrimSpace(p.Get("name")),
		Email:   strings.TrimSpace(p.Get("email")),
		Phone:   strings.TrimSpace(p.Get("phone")),
		Message: p.Get("message"),
	})
	if err != nil {
		return envelope{}, err
	}
	return envelope{Message: "Thank you for your message! We will get back to you soon."}, nil
}

type pageData struct {
	viewmodel.VisiblePage
	State    viewmodel.ViewState     `json:"state"`
	Controls []viewmodel.PageControl `json:"controls"`
}

// viewPage runs the dashboard pipeline over the full bookings snapshot.
func (s *HTTPServer) viewPage(ctx context.Context, p url.Values) (envelope, error) {
	list, err := s.svc.Bookings.ListBookings(ctx)
	if err != nil {
		return envelope{}, err
	}
	vs := viewmodel.ParseViewState(p)
	page := viewmodel.ComputeVisiblePage(list, vs)
	return envelope{Data: pageData{
		VisiblePage: page,
		State:       vs,
		Controls:    viewmodel.PaginationControls(page.CurrentPage, page.TotalPages),
	}}, nil
}
