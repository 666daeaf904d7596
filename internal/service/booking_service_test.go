package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"carwash/internal/database"
	"carwash/internal/events"
	"carwash/internal/models"
	"carwash/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockStore) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockStore) UpdateBookingStatus(ctx context.Context, id string, s models.BookingStatus) error {
	return m.Called(ctx, id, s).Error(0)
}
func (m *mockStore) SearchBookings(ctx context.Context, term, status, date string) ([]*models.Booking, error) {
	args := m.Called(ctx, term, status, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockStore) DeleteBooking(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockStore) BookingStats(ctx context.Context) (models.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Stats), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Announce(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType, bookingID string, b *models.Booking, status models.BookingStatus) error {
	return m.Called(ctx, taskType, bookingID, b, status).Error(0)
}

var errDown = fmt.Errorf("list bookings: %w: connection refused", database.ErrUnavailable)

type fixture struct {
	store    *mockStore
	cache    *repository.MemorySlotStore
	notifier *mockNotifier
	worker   *mockSyncWorker
	bus      *events.EventBus
	svc      *BookingService
}

func newFixture() *fixture {
	f := &fixture{
		store:    new(mockStore),
		cache:    repository.NewMemorySlotStore(),
		notifier: new(mockNotifier),
		worker:   new(mockSyncWorker),
		bus:      events.NewEventBus(),
	}
	f.svc = NewBookingService(f.store, f.cache, f.notifier, f.bus, f.worker, nil)
	f.svc.now = func() time.Time { return time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC) }
	return f
}

func validBooking() *models.Booking {
	return &models.Booking{
		Name:    "Raj Kumar",
		Email:   "raj@example.com",
		Phone:   "9876543210",
		Service: "Basic Wash - ₹299",
		Date:    "2026-02-20",
		Time:    "10:00",
	}
}

func TestCreateBookingStored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.On("CreateBooking", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()
	f.notifier.On("Announce", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()
	f.worker.On("EnqueueTask", ctx, "upsert", mock.Anything, mock.Anything, models.BookingStatus("")).Return(nil).Once()

	in := validBooking()
	got, err := f.svc.CreateBooking(ctx, in)
	require.NoError(t, err)

	assert.Regexp(t, `^BK\d{6}$`, got.ID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Empty(t, in.ID)

	cached, err := f.cache.LoadBookings(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, got.ID, cached[0].ID)

	f.store.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.worker.AssertExpectations(t)
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture()
	b := validBooking()
	b.Phone = "12345"

	_, err := f.svc.CreateBooking(context.Background(), b)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrValidation)
	f.store.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestCreateBookingDuplicate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.On("CreateBooking", ctx, mock.Anything).Return(fmt.Errorf("create booking BK001: %w", database.ErrDuplicateID)).Once()

	b := validBooking()
	b.ID = "BK001"
	_, err := f.svc.CreateBooking(ctx, b)
	assert.ErrorIs(t, err, database.ErrDuplicateID)
	f.notifier.AssertNotCalled(t, "Announce", mock.Anything, mock.Anything)
}

func TestCreateBookingMaskedByCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.On("CreateBooking", ctx, mock.Anything).Return(errDown).Twice()
	f.notifier.On("Announce", ctx, mock.Anything).Return(nil).Once()
	f.worker.On("EnqueueTask", ctx, "upsert", "BK042", mock.Anything, models.BookingStatus("")).Return(nil).Once()

	b := validBooking()
	b.ID = "BK042"
	got, err := f.svc.CreateBooking(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "BK042", got.ID)

	cached, _ := f.cache.LoadBookings(ctx)
	require.Len(t, cached, 1)
	assert.Equal(t, "BK042", cached[0].ID)

	// the same id again is a duplicate even while the store is down
	_, err = f.svc.CreateBooking(ctx, b)
	assert.ErrorIs(t, err, database.ErrDuplicateID)
}

func TestListBookingsFallsBackToCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	older := validBooking()
	older.ID = "BK001"
	older.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	newer := validBooking()
	newer.ID = "BK002"
	newer.CreatedAt = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.cache.SaveBookings(ctx, []*models.Booking{older, newer}))

	f.store.On("ListBookings", ctx).Return(nil, errDown).Once()
	got, err := f.svc.ListBookings(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BK002", got[0].ID)

	f.store.On("ListBookings", ctx).Return(nil, assert.AnError).Once()
	_, err = f.svc.ListBookings(ctx)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var changed []string
	f.bus.Subscribe(events.EventBookingStatusChanged, func(e *events.Event) error {
		changed = append(changed, string(e.Payload))
		return nil
	})

	t.Run("Stored", func(t *testing.T) {
		f.store.On("UpdateBookingStatus", ctx, "BK001", models.StatusCompleted).Return(nil).Once()
		f.worker.On("EnqueueTask", ctx, "update_status", "BK001", mock.Anything, models.StatusCompleted).Return(nil).Once()

		require.NoError(t, f.svc.UpdateStatus(ctx, "BK001", "Completed"))
		require.Len(t, changed, 1)
		assert.Contains(t, changed[0], `"status":"completed"`)
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		err := f.svc.UpdateStatus(ctx, "BK001", "archived")
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("NotFound", func(t *testing.T) {
		f.store.On("UpdateBookingStatus", ctx, "BK404", models.StatusConfirmed).
			Return(fmt.Errorf("booking BK404: %w", database.ErrNotFound)).Once()
		assert.ErrorIs(t, f.svc.UpdateStatus(ctx, "BK404", models.StatusConfirmed), database.ErrNotFound)
	})

	t.Run("MaskedByCache", func(t *testing.T) {
		cached := validBooking()
		cached.ID = "BK005"
		cached.Status = models.StatusPending
		require.NoError(t, f.cache.SaveBookings(ctx, []*models.Booking{cached}))

		f.store.On("UpdateBookingStatus", ctx, "BK005", models.StatusConfirmed).Return(errDown).Once()
		f.worker.On("EnqueueTask", ctx, "update_status", "BK005", mock.Anything, models.StatusConfirmed).Return(nil).Once()
		require.NoError(t, f.svc.UpdateStatus(ctx, "BK005", models.StatusConfirmed))

		got, _ := f.cache.LoadBookings(ctx)
		assert.Equal(t, models.StatusConfirmed, got[0].Status)
	})

	t.Run("UnavailableAndNotCached", func(t *testing.T) {
		f.store.On("UpdateBookingStatus", ctx, "BK999", models.StatusConfirmed).Return(errDown).Once()
		assert.ErrorIs(t, f.svc.UpdateStatus(ctx, "BK999", models.StatusConfirmed), database.ErrUnavailable)
	})
}

func TestSearchBookingsFallbackAndsFilters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a := validBooking()
	a.ID, a.Date = "BK001", "2026-02-20"
	b := validBooking()
	b.ID, b.Date = "BK002", "2026-02-21"
	c := validBooking()
	c.ID, c.Name, c.Email, c.Date = "BK003", "Amit Patel", "amit@example.com", "2026-02-20"
	require.NoError(t, f.cache.SaveBookings(ctx, []*models.Booking{a, b, c}))

	f.store.On("SearchBookings", ctx, "raj", "all", "2026-02-20").Return(nil, errDown).Once()
	got, err := f.svc.SearchBookings(ctx, "raj", "all", "2026-02-20")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BK001", got[0].ID)
}

func TestDeleteAndStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	x := validBooking()
	x.ID, x.Status = "BK001", models.StatusPending
	y := validBooking()
	y.ID, y.Status = "BK002", models.StatusConfirmed
	require.NoError(t, f.cache.SaveBookings(ctx, []*models.Booking{x, y}))

	f.store.On("DeleteBooking", ctx, "BK001").Return(nil).Once()
	f.worker.On("EnqueueTask", ctx, "delete", "BK001", mock.Anything, models.BookingStatus("")).Return(nil).Once()
	require.NoError(t, f.svc.DeleteBooking(ctx, "BK001"))

	f.store.On("BookingStats", ctx).Return(models.Stats{}, errDown).Once()
	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Total: 1, Confirmed: 1}, stats)

	f.store.On("DeleteBooking", ctx, "BK404").Return(fmt.Errorf("booking BK404: %w", database.ErrNotFound)).Once()
	assert.ErrorIs(t, f.svc.DeleteBooking(ctx, "BK404"), database.ErrNotFound)
}

// slowSlots is a cache without atomic updates whose loads take a while,
// like a round trip to a remote slot.
type slowSlots struct {
	inner *repository.MemorySlotStore
}

func (s slowSlots) LoadBookings(ctx context.Context) ([]*models.Booking, error) {
	time.Sleep(time.Millisecond)
	return s.inner.LoadBookings(ctx)
}

func (s slowSlots) SaveBookings(ctx context.Context, bookings []*models.Booking) error {
	return s.inner.SaveBookings(ctx, bookings)
}

func (s slowSlots) PutMailbox(ctx context.Context, payload []byte) error {
	return s.inner.PutMailbox(ctx, payload)
}

func (s slowSlots) TakeMailbox(ctx context.Context) ([]byte, error) {
	return s.inner.TakeMailbox(ctx)
}

func TestCreateBookingMaskedConcurrently(t *testing.T) {
	store := new(mockStore)
	cache := slowSlots{inner: repository.NewMemorySlotStore()}
	svc := NewBookingService(store, cache, nil, nil, nil, nil)
	ctx := context.Background()

	store.On("CreateBooking", ctx, mock.AnythingOfType("*models.Booking")).Return(errDown)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := validBooking()
			b.ID = fmt.Sprintf("BK%06d", i)
			_, err := svc.CreateBooking(ctx, b)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	cached, err := cache.inner.LoadBookings(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, n, "every booking reported as created is in the cache")
}
