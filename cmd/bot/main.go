package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"carwash/internal/bot"
	"carwash/internal/config"
	"carwash/internal/database"
	"carwash/internal/domain"
	"carwash/internal/logging"
	"carwash/internal/metrics"
	"carwash/internal/notify"
	"carwash/internal/repository"
	"carwash/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := cfg.ValidateBot(); err != nil {
		logger.Error().Err(err).Msg("Telegram settings are incomplete")
		return err
	}

	db, err := database.Open(cfg.Database, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slots := initSlots(ctx, cfg, &logger)

	// status changes from the dashboard go straight to the store; only the
	// API process announces new bookings
	bookingService := service.NewBookingService(db, slots, nil, nil, nil, &logger)

	receiver := notify.NewReceiver(cfg.Notify, slots, nil, &logger)
	go receiver.Run(ctx)

	if cfg.Notify.Direct && cfg.Notify.FeedAddress != "" {
		feed := notify.NewFeedClient(cfg.Notify.FeedAddress, cfg.API.Auth.HeaderAPIKey, cfg.Notify.FeedAPIKey, receiver, &logger)
		go func() {
			if err := feed.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("Booking feed stopped")
			}
		}()
	}

	return startBot(ctx, cfg, bookingService, receiver, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()
	return cfg, logger, closer, nil
}

func initSlots(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.SlotStore {
	memory := repository.NewMemorySlotStore()
	if cfg.Redis.Address == "" {
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}
	return repository.NewFailoverSlotStore(repository.NewRedisSlotStore(client, cfg.Notify), memory, logger)
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	bookingService domain.BookingService,
	receiver *notify.Receiver,
	logger *zerolog.Logger,
) error {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create bot API")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	tgService := service.NewTelegramServiceFromAPI(botAPI)

	metrics.Register()
	telegramBot, err := bot.NewBot(tgService, bookingService, receiver, cfg, bot.NewMetrics(prometheus.DefaultRegisterer), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create bot")
		return err
	}

	logger.Info().Int("admins", len(cfg.Telegram.AdminChatIDs)).Msg("Dashboard bot started")
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}
