package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"carwash/internal/database"
	"carwash/internal/domain"
	"carwash/internal/events"
	"carwash/internal/metrics"
	"carwash/internal/models"
	"carwash/internal/repository"
	"carwash/internal/viewmodel"
	"carwash/internal/worker"

	"github.com/rs/zerolog"
)

// BookingService is the application layer over the store. When the store is
// unavailable, writes land in the local cache and reads are served from it;
// callers see success.
type BookingService struct {
	repo         domain.BookingStore
	cache        domain.SlotStore
	notifier     domain.Notifier
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	logger       *zerolog.Logger
	now          func() time.Time

	// cacheMu serializes this process's read-modify-write cycles on the
	// cache; stores without atomic updates would otherwise lose writes.
	cacheMu sync.Mutex
}

var _ domain.BookingService = (*BookingService)(nil)

func NewBookingService(
	repo domain.BookingStore,
	cache domain.SlotStore,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	logger *zerolog.Logger,
) *BookingService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:         repo,
		cache:        cache,
		notifier:     notifier,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateBooking validates and stores a booking, then announces it.
// The caller's booking is not modified; the stored copy is returned.
func (s *BookingService) CreateBooking(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	if booking == nil {
		return nil, &models.ValidationError{Field: "booking", Message: "empty booking"}
	}

	b := booking.Clone()
	now := s.now()
	if b.ID == "" {
		b.ID = models.NewBookingID(now)
	}
	if b.Status == "" {
		b.Status = models.StatusPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	err := s.repo.CreateBooking(ctx, b)
	switch {
	case err == nil:
		metrics.IncBookingCreated("store")
		s.mirror(ctx, "append", func() error {
			_, err := s.cacheAppendBooking(ctx, b)
			return err
		})
	case errors.Is(err, database.ErrUnavailable) && s.cache != nil:
		added, cacheErr := s.cacheAppendBooking(ctx, b)
		if cacheErr != nil {
			return nil, errors.Join(err, cacheErr)
		}
		if !added {
			return nil, fmt.Errorf("create booking %s: %w", b.ID, database.ErrDuplicateID)
		}
		metrics.IncBookingCreated("fallback")
		metrics.IncFallback("create")
		s.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("store unavailable, booking kept in local cache")
	default:
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.Announce(ctx, b); err != nil {
			s.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("announce booking error")
		}
	}
	s.enqueueSync(ctx, worker.TaskUpsert, b, "")

	s.logger.Info().Str("booking_id", b.ID).Str("service", b.Service).Str("date", b.Date).Msg("booking created")
	return b.Clone(), nil
}

func (s *BookingService) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	bookings, err := s.repo.ListBookings(ctx)
	if err == nil {
		return bookings, nil
	}
	cached, ok := s.fromCache(ctx, "list", err)
	if !ok {
		return nil, err
	}
	viewmodel.Sort(cached, "", viewmodel.Desc)
	return cached, nil
}

// UpdateStatus overwrites a booking's status. Any known status is accepted
// from any other; the dashboards restrict what they offer.
func (s *BookingService) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error {
	st, err := models.ParseStatus(string(status))
	if err != nil {
		return err
	}

	err = s.repo.UpdateBookingStatus(ctx, id, st)
	switch {
	case err == nil:
		s.mirror(ctx, "status", func() error {
			_, err := s.cacheApplyStatus(ctx, id, st)
			return err
		})
	case errors.Is(err, database.ErrUnavailable) && s.cache != nil:
		found, cacheErr := s.cacheApplyStatus(ctx, id, st)
		if cacheErr != nil || !found {
			return err
		}
		metrics.IncFallback("update_status")
		s.logger.Warn().Err(err).Str("booking_id", id).Msg("store unavailable, status kept in local cache")
	default:
		return err
	}

	s.publish(events.EventBookingStatusChanged, events.StatusChangedPayload{BookingID: id, Status: st, ChangedBy: "admin"})
	s.enqueueSync(ctx, worker.TaskUpdateStatus, &models.Booking{ID: id, Status: st}, st)
	return nil
}

// SearchBookings ANDs the term, status and date filters, newest first.
func (s *BookingService) SearchBookings(ctx context.Context, term, status, date string) ([]*models.Booking, error) {
	bookings, err := s.repo.SearchBookings(ctx, term, status, date)
	if err == nil {
		return bookings, nil
	}
	cached, ok := s.fromCache(ctx, "search", err)
	if !ok {
		return nil, err
	}

	rows := viewmodel.Filter(cached, viewmodel.ViewState{StatusFilter: status, SearchTerm: term})
	if date != "" {
		kept := rows[:0]
		for _, b := range rows {
			if b.Date == date {
				kept = append(kept, b)
			}
		}
		rows = kept
	}
	viewmodel.Sort(rows, "", viewmodel.Desc)
	return rows, nil
}

func (s *BookingService) DeleteBooking(ctx context.Context, id string) error {
	err := s.repo.DeleteBooking(ctx, id)
	switch {
	case err == nil:
		s.mirror(ctx, "remove", func() error {
			_, err := s.cacheRemoveBooking(ctx, id)
			return err
		})
	case errors.Is(err, database.ErrUnavailable) && s.cache != nil:
		found, cacheErr := s.cacheRemoveBooking(ctx, id)
		if cacheErr != nil || !found {
			return err
		}
		metrics.IncFallback("delete")
		s.logger.Warn().Err(err).Str("booking_id", id).Msg("store unavailable, booking removed from local cache")
	default:
		return err
	}

	s.publish(events.EventBookingDeleted, events.BookingDeletedPayload{BookingID: id})
	s.enqueueSync(ctx, worker.TaskDelete, &models.Booking{ID: id}, "")
	return nil
}

func (s *BookingService) Stats(ctx context.Context) (models.Stats, error) {
	stats, err := s.repo.BookingStats(ctx)
	if err == nil {
		return stats, nil
	}
	cached, ok := s.fromCache(ctx, "stats", err)
	if !ok {
		return models.Stats{}, err
	}
	var out models.Stats
	for _, b := range cached {
		out.Add(b.Status)
	}
	return out, nil
}

func (s *BookingService) cacheAppendBooking(ctx context.Context, b *models.Booking) (bool, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return repository.AppendBooking(ctx, s.cache, b)
}

func (s *BookingService) cacheApplyStatus(ctx context.Context, id string, status models.BookingStatus) (bool, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return repository.ApplyStatus(ctx, s.cache, id, status)
}

func (s *BookingService) cacheRemoveBooking(ctx context.Context, id string) (bool, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return repository.RemoveBooking(ctx, s.cache, id)
}

// fromCache loads the cached bookings when storeErr is an availability failure.
func (s *BookingService) fromCache(ctx context.Context, op string, storeErr error) ([]*models.Booking, bool) {
	if !errors.Is(storeErr, database.ErrUnavailable) || s.cache == nil {
		return nil, false
	}
	cached, err := s.cache.LoadBookings(ctx)
	if err != nil {
		s.logger.Error().Err(err).AnErr("store_error", storeErr).Str("op", op).Msg("local cache unavailable")
		return nil, false
	}
	metrics.IncFallback(op)
	s.logger.Warn().Err(storeErr).Str("op", op).Int("cached", len(cached)).Msg("serving bookings from local cache")
	return cached, true
}

// mirror keeps the local cache in step after a successful store write.
func (s *BookingService) mirror(ctx context.Context, op string, fn func() error) {
	if s.cache == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.Debug().Err(err).Str("op", op).Msg("local cache mirror error")
	}
}

func (s *BookingService) publish(eventType string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, taskType string, booking *models.Booking, status models.BookingStatus) {
	if s.sheetsWorker == nil {
		return
	}
	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, booking.ID, booking, status); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
