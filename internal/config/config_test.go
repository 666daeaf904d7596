package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"carwash/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("CARWASH_BOT_TOKEN", "test_token")

	yamlContent := `
telegram:
  bot_token: "${CARWASH_BOT_TOKEN}"
  admin_chat_ids: [42]
database:
  path: "test.db"
notify:
  poll_interval: 5s
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Telegram.BotToken != "test_token" {
		t.Errorf("expected bot_token test_token, got %s", cfg.Telegram.BotToken)
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected default driver sqlite3, got %s", cfg.Database.Driver)
	}
	if cfg.Notify.PollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %s", cfg.Notify.PollInterval)
	}
	if err := cfg.ValidateBot(); err != nil {
		t.Errorf("expected bot config to be valid: %v", err)
	}
}

func TestLoadConfigWithEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("database:\n  path: \"${CARWASH_DB_PATH}\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	if err := os.WriteFile(".env", []byte("CARWASH_DB_PATH=from_env.db\n"), 0o644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	defer os.Remove(".env")
	defer os.Unsetenv("CARWASH_DB_PATH")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Database.Path != "from_env.db" {
		t.Errorf("expected path from .env, got %q", cfg.Database.Path)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid sqlite",
			cfg: Config{
				Database: DatabaseConfig{Driver: "sqlite3", Path: "path"},
				Notify:   NotifyConfig{PollInterval: time.Second},
			},
			wantErr: false,
		},
		{
			name: "missing path",
			cfg: Config{
				Database: DatabaseConfig{Driver: "sqlite3"},
				Notify:   NotifyConfig{PollInterval: time.Second},
			},
			wantErr: true,
		},
		{
			name: "mysql without dsn",
			cfg: Config{
				Database: DatabaseConfig{Driver: "mysql"},
				Notify:   NotifyConfig{PollInterval: time.Second},
			},
			wantErr: true,
		},
		{
			name: "unknown driver",
			cfg: Config{
				Database: DatabaseConfig{Driver: "oracle", Path: "x"},
				Notify:   NotifyConfig{PollInterval: time.Second},
			},
			wantErr: true,
		},
		{
			name: "auth without secret",
			cfg: Config{
				Database: DatabaseConfig{Driver: "sqlite3", Path: "path"},
				Notify:   NotifyConfig{PollInterval: time.Second},
				API:      APIConfig{Auth: APIAuthConfig{Enabled: true}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBot(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{BotToken: "YOUR_BOT_TOKEN_HERE", AdminChatIDs: []int64{1}}}
	if err := cfg.ValidateBot(); err == nil {
		t.Errorf("expected placeholder token to be rejected")
	}

	cfg.Telegram.BotToken = "real"
	cfg.Telegram.AdminChatIDs = nil
	if err := cfg.ValidateBot(); err == nil {
		t.Errorf("expected missing admin chats to be rejected")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Notify.PollInterval != 2*time.Second {
		t.Errorf("expected default poll interval 2s, got %s", cfg.Notify.PollInterval)
	}
	if cfg.Notify.BookingsSlot != models.SlotBookings {
		t.Errorf("expected bookings slot %s, got %s", models.SlotBookings, cfg.Notify.BookingsSlot)
	}
	if cfg.Notify.MailboxSlot != models.SlotNewBooking {
		t.Errorf("expected mailbox slot %s, got %s", models.SlotNewBooking, cfg.Notify.MailboxSlot)
	}
	if cfg.Telegram.PageSize != models.DefaultPageSize {
		t.Errorf("expected default page size %d, got %d", models.DefaultPageSize, cfg.Telegram.PageSize)
	}
	if cfg.API.GRPC.Port != 8081 {
		t.Errorf("expected default gRPC port 8081, got %d", cfg.API.GRPC.Port)
	}
	if cfg.Admin.DefaultUsername != "admin" || cfg.Admin.DefaultPassword != "admin123" {
		t.Errorf("unexpected default admin credentials %s/%s", cfg.Admin.DefaultUsername, cfg.Admin.DefaultPassword)
	}
}
