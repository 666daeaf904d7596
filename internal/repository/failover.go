package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"carwash/internal/domain"
	"carwash/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSlotStore uses the primary (Redis) store and switches to the
// fallback (memory) store when it fails. Recovery is probed once a minute.
type FailoverSlotStore struct {
	primary   domain.SlotStore
	fallback  domain.SlotStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSlotStore(primary, fallback domain.SlotStore, logger *zerolog.Logger) *FailoverSlotStore {
	return &FailoverSlotStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the primary should be tried for this call.
func (r *FailoverSlotStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	if time.Since(last) > recoveryInterval {
		r.lastCheck.Store(time.Now().UnixNano())
		return true
	}
	return false
}

func (r *FailoverSlotStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary slot store failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverSlotStore) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary slot store recovered")
	}
}

func (r *FailoverSlotStore) LoadBookings(ctx context.Context) ([]*models.Booking, error) {
	if r.usePrimary() {
		bookings, err := r.primary.LoadBookings(ctx)
		if err == nil {
			r.markUp()
			return bookings, nil
		}
		r.markDown(err)
	}
	return r.fallback.LoadBookings(ctx)
}

func (r *FailoverSlotStore) SaveBookings(ctx context.Context, bookings []*models.Booking) error {
	if r.usePrimary() {
		err := r.primary.SaveBookings(ctx, bookings)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SaveBookings(ctx, bookings)
}

// UpdateBookings runs fn on the primary, or on the fallback when the
// primary is down or fails.
func (r *FailoverSlotStore) UpdateBookings(ctx context.Context, fn domain.BookingsMutation) (bool, error) {
	if r.usePrimary() {
		changed, err := UpdateBookings(ctx, r.primary, fn)
		if err == nil {
			r.markUp()
			return changed, nil
		}
		r.markDown(err)
	}
	return UpdateBookings(ctx, r.fallback, fn)
}

func (r *FailoverSlotStore) PutMailbox(ctx context.Context, payload []byte) error {
	if r.usePrimary() {
		err := r.primary.PutMailbox(ctx, payload)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.PutMailbox(ctx, payload)
}

// TakeMailbox drains the fallback mailbox first so nothing written
// during an outage is lost.
func (r *FailoverSlotStore) TakeMailbox(ctx context.Context) ([]byte, error) {
	if val, err := r.fallback.TakeMailbox(ctx); err != nil || val != nil {
		return val, err
	}
	if r.usePrimary() {
		val, err := r.primary.TakeMailbox(ctx)
		if err == nil {
			r.markUp()
			return val, nil
		}
		r.markDown(err)
	}
	return nil, nil
}

// Watch delegates to the primary when it supports notifications.
func (r *FailoverSlotStore) Watch(ctx context.Context) (<-chan domain.StorageEvent, error) {
	w, ok := r.primary.(domain.SlotWatcher)
	if !ok {
		return nil, errors.New("primary slot store does not support watching")
	}
	return w.Watch(ctx)
}
