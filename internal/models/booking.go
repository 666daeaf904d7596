package models

import (
	"fmt"
	"time"
)

// Booking is one customer's scheduled service request.
type Booking struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone"`
	Service   string        `json:"service"`
	Date      string        `json:"date"`
	Time      string        `json:"time"`
	Status    BookingStatus `json:"status"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Clone returns a copy that can be handed to another context.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// ParsedDate returns the booking date as a calendar date in UTC.
func (b *Booking) ParsedDate() (time.Time, error) {
	return time.Parse(DateLayout, b.Date)
}

// NewBookingID builds "BK" followed by the last six digits of the
// millisecond timestamp.
func NewBookingID(now time.Time) string {
	ms := now.UnixMilli()
	return fmt.Sprintf("BK%06d", ms%1000000)
}

// Stats holds per-status booking counts.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

// Add counts one booking.
func (s *Stats) Add(status BookingStatus) {
	s.Total++
	switch status {
	case StatusPending:
		s.Pending++
	case StatusConfirmed:
		s.Confirmed++
	case StatusCompleted:
		s.Completed++
	case StatusCancelled:
		s.Cancelled++
	}
}
