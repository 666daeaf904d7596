package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"carwash/internal/models"
)

const bookingColumns = `id, name, email, phone, service, date, time, status, COALESCE(message, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	if err := row.Scan(&b.ID, &b.Name, &b.Email, &b.Phone, &b.Service, &b.Date, &b.Time,
		&b.Status, &b.Message, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking inserts a new record. It fails with ErrDuplicateID when the id is taken.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now()
	}
	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	booking.UpdatedAt = booking.CreatedAt

	query := `INSERT INTO bookings (id, name, email, phone, service, date, time, status, message, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		booking.ID,
		booking.Name,
		booking.Email,
		booking.Phone,
		booking.Service,
		booking.Date,
		booking.Time,
		booking.Status,
		booking.Message,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("create booking %s: %w", booking.ID, ErrDuplicateID)
		}
		return unavailable("create booking", err)
	}

	db.logger.Debug().Str("booking_id", booking.ID).Msg("Booking stored")
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", id, ErrNotFound)
		}
		return nil, unavailable("get booking", err)
	}
	return b, nil
}

// ListBookings returns every record, newest first.
func (db *DB) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC`
	return db.queryBookings(ctx, "list bookings", query)
}

// UpdateBookingStatus overwrites the status without checking the transition.
func (db *DB) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) error {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return unavailable("update booking status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("update booking status", err)
	}
	if n == 0 {
		return fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	return nil
}

// SearchBookings filters server side. All given filters must match.
// An empty status or "all" matches any status.
func (db *DB) SearchBookings(ctx context.Context, term, status, date string) ([]*models.Booking, error) {
	var (
		where []string
		args  []any
	)

	if term = strings.TrimSpace(term); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		where = append(where, `(LOWER(id) LIKE ? OR LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(service) LIKE ?)`)
		args = append(args, like, like, like, like, like)
	}
	if status != "" && status != models.StatusAll {
		where = append(where, `status = ?`)
		args = append(args, status)
	}
	if date != "" {
		where = append(where, `date = ?`)
		args = append(args, date)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	return db.queryBookings(ctx, "search bookings", query, args...)
}

func (db *DB) DeleteBooking(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete booking", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete booking", err)
	}
	if n == 0 {
		return fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	return nil
}

// BookingStats counts bookings per status.
func (db *DB) BookingStats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return stats, unavailable("booking stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status models.BookingStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return stats, unavailable("booking stats", err)
		}
		for i := 0; i < count; i++ {
			stats.Add(status)
		}
	}
	if err := rows.Err(); err != nil {
		return stats, unavailable("booking stats", err)
	}
	return stats, nil
}

func (db *DB) queryBookings(ctx context.Context, op, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	bookings := make([]*models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return bookings, nil
}
