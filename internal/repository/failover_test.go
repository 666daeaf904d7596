package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"carwash/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSlots struct {
	mock.Mock
}

func (m *mockSlots) LoadBookings(ctx context.Context) ([]*models.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockSlots) SaveBookings(ctx context.Context, bookings []*models.Booking) error {
	args := m.Called(ctx, bookings)
	return args.Error(0)
}

func (m *mockSlots) PutMailbox(ctx context.Context, payload []byte) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *mockSlots) TakeMailbox(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func TestFailoverSlotStore(t *testing.T) {
	primary := new(mockSlots)
	fallback := NewMemorySlotStore()
	logger := zerolog.New(io.Discard)
	repo := NewFailoverSlotStore(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		want := []*models.Booking{{ID: "BK001"}}
		primary.On("LoadBookings", ctx).Return(want, nil).Once()

		got, err := repo.LoadBookings(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		in := []*models.Booking{{ID: "BK002"}}
		primary.On("SaveBookings", ctx, in).Return(errors.New("connection refused")).Once()

		require.NoError(t, repo.SaveBookings(ctx, in))
		assert.True(t, repo.isDown.Load())

		got, err := repo.LoadBookings(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "BK002", got[0].ID)
		primary.AssertExpectations(t)
	})

	t.Run("MailboxDrainsFallbackFirst", func(t *testing.T) {
		require.NoError(t, repo.PutMailbox(ctx, []byte(`{"id":"BK003"}`)))

		got, err := repo.TakeMailbox(ctx)
		require.NoError(t, err)
		assert.Equal(t, `{"id":"BK003"}`, string(got))
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		want := []*models.Booking{{ID: "BK004"}}
		primary.On("LoadBookings", ctx).Return(want, nil).Once()

		got, err := repo.LoadBookings(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("WatchUnsupported", func(t *testing.T) {
		_, err := repo.Watch(ctx)
		assert.Error(t, err)
	})
}
