package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"carwash/internal/config"
	"carwash/internal/domain"
	"carwash/internal/events"
	"carwash/internal/metrics"
	"carwash/internal/models"
	"carwash/internal/viewmodel"

	"github.com/rs/zerolog"
)

// maxSeen bounds the remembered ids; the oldest are forgotten first.
const maxSeen = 10000

// Receiver listens on the enabled channels and merges each booking into
// its dashboards. Only the first copy of an id counts as new.
type Receiver struct {
	cfg    config.NotifyConfig
	slots  domain.SlotStore
	bus    *events.EventBus
	logger zerolog.Logger
	now    func() time.Time

	mu         sync.Mutex
	seen       map[string]struct{}
	order      []string
	dashboards []*viewmodel.Dashboard
	handlers   []func(*models.Booking)
}

func NewReceiver(cfg config.NotifyConfig, slots domain.SlotStore, bus *events.EventBus, logger *zerolog.Logger) *Receiver {
	r := &Receiver{
		cfg:    cfg,
		slots:  slots,
		bus:    bus,
		logger: zerolog.Nop(),
		now:    time.Now,
		seen:   make(map[string]struct{}),
	}
	if logger != nil {
		r.logger = logger.With().Str("component", "notify_receiver").Logger()
	}
	if r.cfg.PollInterval <= 0 {
		r.cfg.PollInterval = models.DefaultPollInterval * time.Second
	}
	return r
}

// Attach registers a dashboard. Bookings already in its snapshot count as seen.
func (r *Receiver) Attach(d *viewmodel.Dashboard) {
	r.MarkSeen(d.Snapshot()...)
	r.mu.Lock()
	r.dashboards = append(r.dashboards, d)
	r.mu.Unlock()
}

// Detach removes a dashboard registered with Attach.
func (r *Receiver) Detach(d *viewmodel.Dashboard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.dashboards {
		if cur == d {
			r.dashboards = append(r.dashboards[:i], r.dashboards[i+1:]...)
			return
		}
	}
}

// OnBooking registers a callback run once per new booking id.
func (r *Receiver) OnBooking(fn func(*models.Booking)) {
	r.mu.Lock()
	r.handlers = append(r.handlers, fn)
	r.mu.Unlock()
}

// MarkSeen records ids that are already known, e.g. after a store reload.
func (r *Receiver) MarkSeen(bookings ...*models.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range bookings {
		if b != nil {
			r.remember(b.ID)
		}
	}
}

func (r *Receiver) remember(id string) bool {
	if _, ok := r.seen[id]; ok {
		return false
	}
	r.seen[id] = struct{}{}
	r.order = append(r.order, id)
	if len(r.order) > maxSeen {
		delete(r.seen, r.order[0])
		r.order = r.order[1:]
	}
	return true
}

// Deliver decodes a raw payload and merges it. It reports whether the
// booking was new.
func (r *Receiver) Deliver(channel string, raw []byte) bool {
	return r.DeliverBooking(channel, DecodePayload(raw, r.now()))
}

// DeliverBooking merges b into every attached dashboard. Dashboard.Merge is
// idempotent per id, so a dashboard attached after an earlier copy still
// picks the booking up. Handlers and metrics see each id once.
func (r *Receiver) DeliverBooking(channel string, b *models.Booking) bool {
	if b == nil {
		return false
	}

	r.mu.Lock()
	fresh := r.remember(b.ID)
	dashboards := make([]*viewmodel.Dashboard, len(r.dashboards))
	copy(dashboards, r.dashboards)
	var handlers []func(*models.Booking)
	if fresh {
		handlers = make([]func(*models.Booking), len(r.handlers))
		copy(handlers, r.handlers)
	}
	r.mu.Unlock()

	for _, d := range dashboards {
		d.Merge(b)
	}

	if !fresh {
		metrics.IncDuplicate(channel)
		r.logger.Debug().Str("booking_id", b.ID).Str("channel", channel).Msg("duplicate booking notification")
		return false
	}

	metrics.IncNotification(channel)
	for _, h := range handlers {
		h(b.Clone())
	}
	r.logger.Info().Str("booking_id", b.ID).Str("name", b.Name).Str("channel", channel).Msg("new booking received")
	return true
}

// Remove drops a deleted booking from every attached dashboard.
func (r *Receiver) Remove(id string) {
	r.mu.Lock()
	dashboards := make([]*viewmodel.Dashboard, len(r.dashboards))
	copy(dashboards, r.dashboards)
	r.mu.Unlock()

	for _, d := range dashboards {
		if d.Remove(id) {
			r.logger.Info().Str("booking_id", id).Msg("deleted booking removed from dashboard")
		}
	}
}

// Run listens on every enabled channel until ctx is cancelled. A channel
// that fails to start is logged and skipped; the others keep running.
func (r *Receiver) Run(ctx context.Context) {
	var wg sync.WaitGroup

	if r.cfg.Direct && r.bus != nil {
		unsubscribe := r.bus.Subscribe(events.EventBookingCreated, func(e *events.Event) error {
			r.Deliver(ChannelDirect, e.Payload)
			return nil
		})
		defer unsubscribe()

		unsubscribeDeleted := r.bus.Subscribe(events.EventBookingDeleted, func(e *events.Event) error {
			var p events.BookingDeletedPayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return err
			}
			r.Remove(p.BookingID)
			return nil
		})
		defer unsubscribeDeleted()
	}

	if r.cfg.PubSub {
		if watcher, ok := r.slots.(domain.SlotWatcher); ok {
			ch, err := watcher.Watch(ctx)
			if err != nil {
				r.logger.Warn().Err(err).Msg("storage-change notifications unavailable")
			} else {
				wg.Add(1)
				go func() {
					defer wg.Done()
					r.consume(ch)
				}()
			}
		}
	}

	if r.cfg.Mailbox && r.slots != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.poll(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
}

func (r *Receiver) consume(ch <-chan domain.StorageEvent) {
	for ev := range ch {
		if ev.Key != r.cfg.MailboxSlot {
			continue
		}
		r.Deliver(ChannelPubSub, ev.NewValue)
	}
}

func (r *Receiver) poll(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.PollOnce(ctx)
		}
	}
}

// PollOnce takes the mailbox and delivers its content, if any.
func (r *Receiver) PollOnce(ctx context.Context) bool {
	raw, err := r.slots.TakeMailbox(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("mailbox poll failed")
		return false
	}
	if raw == nil {
		return false
	}
	return r.Deliver(ChannelMailbox, raw)
}
