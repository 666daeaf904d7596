package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"carwash/internal/config"
	"carwash/internal/domain"
	"carwash/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisSlotStore keeps the fallback slots in Redis and publishes a
// storage-change notification after every write.
type RedisSlotStore struct {
	client       *redis.Client
	bookingsKey  string
	mailboxKey   string
	eventChannel string
}

// NewRedisClient builds a client from the redis config section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisSlotStore(client *redis.Client, cfg config.NotifyConfig) *RedisSlotStore {
	return &RedisSlotStore{
		client:       client,
		bookingsKey:  cfg.BookingsSlot,
		mailboxKey:   cfg.MailboxSlot,
		eventChannel: cfg.Channel,
	}
}

var _ domain.SlotUpdater = (*RedisSlotStore)(nil)

// maxTxAttempts bounds optimistic retries when other writers keep
// changing the bookings slot.
const maxTxAttempts = 32

func (r *RedisSlotStore) LoadBookings(ctx context.Context) ([]*models.Booking, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return r.loadBookings(ctx, r.client)
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisSlotStore) loadBookings(ctx context.Context, c getter) ([]*models.Booking, error) {
	val, err := c.Get(ctx, r.bookingsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return []*models.Booking{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings slot: %w", err)
	}
	return decodeBookings(val)
}

func (r *RedisSlotStore) SaveBookings(ctx context.Context, bookings []*models.Booking) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := encodeBookings(bookings)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.bookingsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set bookings slot: %w", err)
	}
	return r.publish(ctx, r.bookingsKey, data)
}

// UpdateBookings watches the bookings key and writes in a MULTI/EXEC
// transaction, retrying when another writer changed the key in between.
func (r *RedisSlotStore) UpdateBookings(ctx context.Context, fn domain.BookingsMutation) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	var (
		changed bool
		data    []byte
	)
	txf := func(tx *redis.Tx) error {
		bookings, err := r.loadBookings(ctx, tx)
		if err != nil {
			return err
		}
		var next []*models.Booking
		next, changed = fn(bookings)
		if !changed {
			return nil
		}
		if data, err = encodeBookings(next); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.bookingsKey, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, r.bookingsKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to update bookings slot: %w", err)
		}
		if !changed {
			return false, nil
		}
		return true, r.publish(ctx, r.bookingsKey, data)
	}
	return false, fmt.Errorf("failed to update bookings slot: %w", redis.TxFailedErr)
}

func (r *RedisSlotStore) PutMailbox(ctx context.Context, payload []byte) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Set(ctx, r.mailboxKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to set mailbox slot: %w", err)
	}
	return r.publish(ctx, r.mailboxKey, payload)
}

// TakeMailbox reads and clears the mailbox atomically.
func (r *RedisSlotStore) TakeMailbox(ctx context.Context) ([]byte, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.GetDel(ctx, r.mailboxKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take mailbox slot: %w", err)
	}
	return val, nil
}

func (r *RedisSlotStore) publish(ctx context.Context, key string, value []byte) error {
	if r.eventChannel == "" {
		return nil
	}
	msg, err := json.Marshal(domain.StorageEvent{Key: key, NewValue: json.RawMessage(value)})
	if err != nil {
		return fmt.Errorf("failed to marshal storage event: %w", err)
	}
	if err := r.client.Publish(ctx, r.eventChannel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish storage event: %w", err)
	}
	return nil
}

// Watch subscribes to storage-change notifications until ctx is done.
// Messages that are not storage events are skipped.
func (r *RedisSlotStore) Watch(ctx context.Context) (<-chan domain.StorageEvent, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	sub := r.client.Subscribe(ctx, r.eventChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.eventChannel, err)
	}

	out := make(chan domain.StorageEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.StorageEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || ev.Key == "" {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping checks the Redis connection with a short timeout.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close is a nil-safe client close.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
