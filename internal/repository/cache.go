package repository

import (
	"context"
	"time"

	"carwash/internal/domain"
	"carwash/internal/models"
)

// UpdateBookings runs fn against the bookings slot. Stores implementing
// domain.SlotUpdater apply it atomically; for others it is a plain load
// and save, and callers must serialize.
func UpdateBookings(ctx context.Context, s domain.SlotStore, fn domain.BookingsMutation) (bool, error) {
	if u, ok := s.(domain.SlotUpdater); ok {
		return u.UpdateBookings(ctx, fn)
	}
	bookings, err := s.LoadBookings(ctx)
	if err != nil {
		return false, err
	}
	next, changed := fn(bookings)
	if !changed {
		return false, nil
	}
	return true, s.SaveBookings(ctx, next)
}

// AppendBooking adds the booking to the bookings slot unless a record with
// the same id is already cached. It reports whether the slot changed.
func AppendBooking(ctx context.Context, s domain.SlotStore, booking *models.Booking) (bool, error) {
	return UpdateBookings(ctx, s, func(bookings []*models.Booking) ([]*models.Booking, bool) {
		for _, b := range bookings {
			if b.ID == booking.ID {
				return bookings, false
			}
		}
		return append(bookings, booking), true
	})
}

// ApplyStatus overwrites the status of a cached booking.
// It reports false when the id is not cached.
func ApplyStatus(ctx context.Context, s domain.SlotStore, id string, status models.BookingStatus) (bool, error) {
	now := time.Now()
	return mutate(ctx, s, id, func(bookings []*models.Booking, i int) []*models.Booking {
		bookings[i].Status = status
		bookings[i].UpdatedAt = now
		return bookings
	})
}

// RemoveBooking drops a cached booking. It reports false when the id is not cached.
func RemoveBooking(ctx context.Context, s domain.SlotStore, id string) (bool, error) {
	return mutate(ctx, s, id, func(bookings []*models.Booking, i int) []*models.Booking {
		return append(bookings[:i], bookings[i+1:]...)
	})
}

func mutate(ctx context.Context, s domain.SlotStore, id string, fn func([]*models.Booking, int) []*models.Booking) (bool, error) {
	return UpdateBookings(ctx, s, func(bookings []*models.Booking) ([]*models.Booking, bool) {
		for i, b := range bookings {
			if b.ID == id {
				return fn(bookings, i), true
			}
		}
		return bookings, false
	})
}
