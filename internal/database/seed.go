package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carwash/internal/models"
)

// SeedBooking is one entry of a seed file.
type SeedBooking struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	Email     string `yaml:"email" json:"email"`
	Phone     string `yaml:"phone" json:"phone"`
	Service   string `yaml:"service" json:"service"`
	Date      string `yaml:"date" json:"date"`
	Time      string `yaml:"time" json:"time"`
	Status    string `yaml:"status" json:"status"`
	Message   string `yaml:"message" json:"message"`
	CreatedAt string `yaml:"created_at" json:"createdAt"`
}

// SeedFile is the layout of configs/seed.yaml.
type SeedFile struct {
	Bookings []SeedBooking `yaml:"bookings" json:"bookings"`
}

func (s SeedBooking) toBooking(now time.Time) (*models.Booking, error) {
	b := &models.Booking{
		ID:      s.ID,
		Name:    s.Name,
		Email:   s.Email,
		Phone:   s.Phone,
		Service: s.Service,
		Date:    s.Date,
		Time:    s.Time,
		Status:  models.BookingStatus(s.Status),
		Message: s.Message,
	}
	if b.Status == "" {
		b.Status = models.StatusPending
	}
	b.CreatedAt = now
	if s.CreatedAt != "" {
		ts, err := time.Parse(time.RFC3339, s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("seed %s: created_at: %w", s.ID, err)
		}
		b.CreatedAt = ts
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("seed %s: %w", s.ID, err)
	}
	return b, nil
}

// SeedBookings inserts the seed entries whose ids are not stored yet and
// returns how many were added.
func (db *DB) SeedBookings(ctx context.Context, seed SeedFile) (int, error) {
	now := time.Now()
	added := 0
	for _, entry := range seed.Bookings {
		b, err := entry.toBooking(now)
		if err != nil {
			return added, err
		}
		err = db.CreateBooking(ctx, b)
		if errors.Is(err, ErrDuplicateID) {
			continue
		}
		if err != nil {
			return added, err
		}
		added++
	}
	if added > 0 {
		db.logger.Info().Int("count", added).Msg("Seed bookings inserted")
	}
	return added, nil
}
