package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"carwash/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Notify     NotifyConfig     `yaml:"notify"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Admin      AdminConfig      `yaml:"admin"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Seed       SeedConfig       `yaml:"seed"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig         `yaml:"cors"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

// APIAuthConfig guards admin actions. Public actions (create_booking,
// submit_contact, ...) are always open.
type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
	JWTSecret    string         `yaml:"jwt_secret"`
	TokenTTL     time.Duration  `yaml:"token_ttl"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type AdminConfig struct {
	DefaultUsername string `yaml:"default_username"`
	DefaultPassword string `yaml:"default_password"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	Debug        bool    `yaml:"debug"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	PageSize     int     `yaml:"page_size"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// NotifyConfig configures the booking-created broadcast.
type NotifyConfig struct {
	PubSub       bool          `yaml:"pubsub"`
	Mailbox      bool          `yaml:"mailbox"`
	Direct       bool          `yaml:"direct"`
	Channel      string        `yaml:"channel"`
	BookingsSlot string        `yaml:"bookings_slot"`
	MailboxSlot  string        `yaml:"mailbox_slot"`
	PollInterval time.Duration `yaml:"poll_interval"`
	FeedAddress  string        `yaml:"feed_address"`
	FeedAPIKey   string        `yaml:"feed_api_key"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
}

type SeedConfig struct {
	File string `yaml:"file"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case "mysql":
		if c.Database.DSN == "" {
			return errors.New("database dsn is required for mysql")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Notify.PollInterval <= 0 {
		return errors.New("notify poll interval must be positive")
	}

	if c.API.Auth.Enabled && c.API.Auth.JWTSecret == "" {
		return errors.New("api auth enabled but jwt secret is empty")
	}

	return nil
}

// ValidateBot checks the settings only the Telegram dashboard needs.
func (c *Config) ValidateBot() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}
	if len(c.Telegram.AdminChatIDs) == 0 {
		return errors.New("at least one admin chat id is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "carwash"
	}
	if c.Database.Driver == "" || c.Database.Driver == "sqlite" {
		c.Database.Driver = "sqlite3"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = 12 * time.Hour
	}
	if len(c.API.CORS.AllowedOrigins) == 0 {
		c.API.CORS.AllowedOrigins = []string{"*"}
	}

	if c.Admin.DefaultUsername == "" {
		c.Admin.DefaultUsername = "admin"
	}
	if c.Admin.DefaultPassword == "" {
		c.Admin.DefaultPassword = "admin123"
	}

	if c.Notify.Channel == "" {
		c.Notify.Channel = "carwash:bookings"
	}
	if c.Notify.BookingsSlot == "" {
		c.Notify.BookingsSlot = models.SlotBookings
	}
	if c.Notify.MailboxSlot == "" {
		c.Notify.MailboxSlot = models.SlotNewBooking
	}
	if c.Notify.PollInterval == 0 {
		c.Notify.PollInterval = models.DefaultPollInterval * time.Second
	}

	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}

	if c.Telegram.PageSize == 0 {
		c.Telegram.PageSize = models.DefaultPageSize
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
