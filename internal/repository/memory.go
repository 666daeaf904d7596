package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"carwash/internal/domain"
	"carwash/internal/models"
)

// MemorySlotStore keeps the fallback slots in process memory.
// Bookings are stored as JSON so readers never share records with writers.
type MemorySlotStore struct {
	mu       sync.Mutex
	bookings []byte
	mailbox  []byte
}

func NewMemorySlotStore() *MemorySlotStore {
	return &MemorySlotStore{}
}

var _ domain.SlotUpdater = (*MemorySlotStore)(nil)

func (r *MemorySlotStore) LoadBookings(ctx context.Context) ([]*models.Booking, error) {
	r.mu.Lock()
	data := r.bookings
	r.mu.Unlock()
	return decodeBookings(data)
}

func (r *MemorySlotStore) SaveBookings(ctx context.Context, bookings []*models.Booking) error {
	data, err := encodeBookings(bookings)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.bookings = data
	r.mu.Unlock()
	return nil
}

// UpdateBookings holds the store lock across the read and the write.
func (r *MemorySlotStore) UpdateBookings(ctx context.Context, fn domain.BookingsMutation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bookings, err := decodeBookings(r.bookings)
	if err != nil {
		return false, err
	}
	next, changed := fn(bookings)
	if !changed {
		return false, nil
	}
	data, err := encodeBookings(next)
	if err != nil {
		return false, err
	}
	r.bookings = data
	return true, nil
}

func decodeBookings(data []byte) ([]*models.Booking, error) {
	bookings := []*models.Booking{}
	if len(data) == 0 {
		return bookings, nil
	}
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookings slot: %w", err)
	}
	return bookings, nil
}

func encodeBookings(bookings []*models.Booking) ([]byte, error) {
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	data, err := json.Marshal(bookings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bookings: %w", err)
	}
	return data, nil
}

func (r *MemorySlotStore) PutMailbox(ctx context.Context, payload []byte) error {
	r.mu.Lock()
	r.mailbox = append([]byte(nil), payload...)
	r.mu.Unlock()
	return nil
}

func (r *MemorySlotStore) TakeMailbox(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	val := r.mailbox
	r.mailbox = nil
	return val, nil
}
