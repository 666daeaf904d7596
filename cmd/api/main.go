package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carwash/internal/api"
	"carwash/internal/config"
	"carwash/internal/database"
	"carwash/internal/domain"
	"carwash/internal/events"
	"carwash/internal/google"
	"carwash/internal/logging"
	"carwash/internal/metrics"
	"carwash/internal/notify"
	"carwash/internal/repository"
	"carwash/internal/service"
	"carwash/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
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
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	slots := initSlots(cfg, redisClient, &logger)

	var syncWorker domain.SyncWorker
	if sheetsService := initGoogleSheets(ctx, cfg, db, &logger); sheetsService != nil {
		w := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, &logger)
		go w.Start(ctx)
		go sheetsService.RefreshCache(ctx, time.Hour)
		syncWorker = w
	}

	eventBus := events.NewEventBus()
	broadcaster := notify.NewBroadcaster(cfg.Notify, slots, eventBus, &logger)

	bookingService := service.NewBookingService(db, slots, broadcaster, eventBus, syncWorker, &logger)
	authService, err := service.NewAuthService(db, cfg.Admin, cfg.API.Auth, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("init auth service")
		return err
	}
	formService := service.NewFormService(db, &logger)

	metrics.Register()
	startMetrics(ctx, cfg, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Bookings: bookingService,
		Auth:     authService,
		Forms:    formService,
		Health:   db,
	}, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, api.NewBookingFeed(eventBus, &logger), &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return nil, err
	}

	if err := db.EnsureAdmin(ctx, cfg.Admin.DefaultUsername, cfg.Admin.DefaultPassword); err != nil {
		logger.Error().Err(err).Msg("ensure admin account")
	}

	if cfg.Seed.File != "" {
		seed, err := loadSeed(cfg.Seed.File)
		if err != nil {
			logger.Warn().Err(err).Str("seed_file", cfg.Seed.File).Msg("read seed file")
		} else if _, err := db.SeedBookings(ctx, seed); err != nil {
			logger.Warn().Err(err).Str("seed_file", cfg.Seed.File).Msg("apply seed file")
		}
	}
	return db, nil
}

func loadSeed(path string) (database.SeedFile, error) {
	var seed database.SeedFile
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, err
	}
	err = yaml.Unmarshal(data, &seed)
	return seed, err
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		// the failover store keeps probing it
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory slots for now")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return client
}

// initSlots builds the local fallback cache: Redis when configured, memory otherwise.
func initSlots(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.SlotStore {
	memory := repository.NewMemorySlotStore()
	if client == nil {
		return memory
	}
	return repository.NewFailoverSlotStore(repository.NewRedisSlotStore(client, cfg.Notify), memory, logger)
}

// initGoogleSheets returns nil when Sheets mirroring is not configured or
// cannot be reached.
func initGoogleSheets(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingsSpreadsheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadsheetID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without sheets")
		return nil
	}

	if bookings, err := db.ListBookings(ctx); err == nil {
		if err := sheetsService.ReplaceBookingsSheet(ctx, bookings); err != nil {
			logger.Warn().Err(err).Msg("initial sheet export failed")
		}
	}

	if email, err := google.GetServiceAccountEmail(cfg.Google.CredentialsFile); err == nil {
		logger.Info().Str("service_account", email).Msg("google sheets connected")
	}
	return sheetsService
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
		logger.Info().Str("grpc_addr", grpcServer.Addr()).Msg("booking feed started")
	}

	if cfg.API.HTTP.Enabled {
		go func() {
			if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
		logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")
	}

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
