package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"carwash/internal/config"
	"carwash/internal/domain"
	"carwash/internal/events"
	"carwash/internal/models"

	"github.com/rs/zerolog"
)

// Delivery channels, used as metric labels.
const (
	ChannelPubSub  = "pubsub"
	ChannelDirect  = "direct"
	ChannelMailbox = "mailbox"
	ChannelFeed    = "feed"
)

// Broadcaster announces created bookings on every enabled channel.
type Broadcaster struct {
	cfg    config.NotifyConfig
	slots  domain.SlotStore
	bus    domain.EventPublisher
	logger zerolog.Logger
}

var _ domain.Notifier = (*Broadcaster)(nil)

func NewBroadcaster(cfg config.NotifyConfig, slots domain.SlotStore, bus domain.EventPublisher, logger *zerolog.Logger) *Broadcaster {
	b := &Broadcaster{cfg: cfg, slots: slots, bus: bus, logger: zerolog.Nop()}
	if logger != nil {
		b.logger = logger.With().Str("component", "notify").Logger()
	}
	return b
}

// Announce writes the booking to the mailbox slot, which also fires a
// storage-change notification on shared slots, and publishes it on the
// in-process bus. The error joins every channel that failed.
func (b *Broadcaster) Announce(ctx context.Context, booking *models.Booking) error {
	if booking == nil {
		return errors.New("nil booking")
	}

	var errs []error
	if (b.cfg.Mailbox || b.cfg.PubSub) && b.slots != nil {
		data, err := json.Marshal(booking)
		if err != nil {
			return fmt.Errorf("marshal booking %s: %w", booking.ID, err)
		}
		if err := b.slots.PutMailbox(ctx, data); err != nil {
			errs = append(errs, fmt.Errorf("mailbox: %w", err))
		}
	}

	if b.cfg.Direct && b.bus != nil {
		if err := b.bus.PublishJSON(events.EventBookingCreated, booking); err != nil {
			errs = append(errs, fmt.Errorf("direct: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		b.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("booking announcement partially failed")
	} else {
		b.logger.Debug().Str("booking_id", booking.ID).Msg("booking announced")
	}
	return err
}
