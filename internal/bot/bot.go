package bot

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"carwash/internal/config"
	"carwash/internal/domain"
	"carwash/internal/models"
	"carwash/internal/notify"
	"carwash/internal/viewmodel"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Bot is the staff dashboard: every admin chat gets its own bookings view
// and is told about new bookings as they arrive.
type Bot struct {
	tgService      domain.TelegramService
	bookingService domain.BookingService
	receiver       *notify.Receiver
	config         *config.Config
	admins         map[int64]struct{}
	metrics        *Metrics
	logger         *zerolog.Logger
	now            func() time.Time

	mu         sync.Mutex
	dashboards map[int64]*viewmodel.Dashboard
}

func NewBot(
	tgService domain.TelegramService,
	bookingService domain.BookingService,
	receiver *notify.Receiver,
	config *config.Config,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tgService == nil || bookingService == nil {
		return nil, fmt.Errorf("bot: telegram and booking services are required")
	}

	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	admins := make(map[int64]struct{}, len(config.Telegram.AdminChatIDs))
	for _, id := range config.Telegram.AdminChatIDs {
		admins[id] = struct{}{}
	}

	b := &Bot{
		tgService:      tgService,
		bookingService: bookingService,
		receiver:       receiver,
		config:         config,
		admins:         admins,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
		dashboards:     make(map[int64]*viewmodel.Dashboard),
	}
	if receiver != nil {
		receiver.OnBooking(b.announceBooking)
	}
	return b, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			b.tgService.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.guard(updateCtx, update, func(ctx context.Context) {
		if update.CallbackQuery != nil {
			b.handleCallbackQuery(ctx, update.CallbackQuery)
			return
		}
		b.handleMessage(ctx, update.Message)
	})
}

func (b *Bot) isAdmin(chatID int64) bool {
	_, ok := b.admins[chatID]
	return ok
}

func (b *Bot) countUpdate(kind string) {
	if b.metrics != nil {
		b.metrics.UpdatesProcessed.WithLabelValues(kind).Inc()
	}
}

// dashboard returns the chat's view, loading the bookings on first use.
func (b *Bot) dashboard(ctx context.Context, chatID int64) (*viewmodel.Dashboard, error) {
	b.mu.Lock()
	d, ok := b.dashboards[chatID]
	b.mu.Unlock()
	if ok {
		return d, nil
	}

	d = viewmodel.NewDashboard(b.config.Telegram.PageSize)
	if err := b.reload(ctx, d); err != nil {
		return nil, err
	}

	b.mu.Lock()
	if existing, ok := b.dashboards[chatID]; ok {
		b.mu.Unlock()
		return existing, nil
	}
	b.dashboards[chatID] = d
	b.mu.Unlock()

	if b.receiver != nil {
		b.receiver.Attach(d)
	}
	return d, nil
}

// reload replaces the snapshot with the current store contents.
func (b *Bot) reload(ctx context.Context, d *viewmodel.Dashboard) error {
	list, err := b.bookingService.ListBookings(ctx)
	if err != nil {
		return err
	}
	d.Replace(list)
	if b.receiver != nil {
		b.receiver.MarkSeen(list...)
	}
	return nil
}

// eachDashboard runs fn on every open dashboard.
func (b *Bot) eachDashboard(fn func(*viewmodel.Dashboard)) {
	b.mu.Lock()
	all := make([]*viewmodel.Dashboard, 0, len(b.dashboards))
	for _, d := range b.dashboards {
		all = append(all, d)
	}
	b.mu.Unlock()
	for _, d := range all {
		fn(d)
	}
}

// announceBooking pushes a new booking to every admin chat.
func (b *Bot) announceBooking(booking *models.Booking) {
	text := fmt.Sprintf("New booking *%s*\n%s", escape(booking.ID), formatBooking(booking))
	for chatID := range b.admins {
		b.notify(chatID, SeverityInfo, text)
	}
	if b.metrics != nil {
		b.metrics.NotificationsSent.Add(float64(len(b.admins)))
	}
}
