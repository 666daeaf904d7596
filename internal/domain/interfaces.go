package domain

import (
	"context"
	"encoding/json"

	"carwash/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BookingStore is the authoritative record store.
type BookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context) ([]*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) error
	SearchBookings(ctx context.Context, term, status, date string) ([]*models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	BookingStats(ctx context.Context) (models.Stats, error)
}

type AdminStore interface {
	VerifyAdmin(ctx context.Context, username, password string) (bool, error)
}

type FormStore interface {
	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	CreateContactMessage(ctx context.Context, msg *models.ContactMessage) error
}

// Repository is everything the application layer needs from the database.
type Repository interface {
	BookingStore
	AdminStore
	FormStore
}

// StorageEvent is published whenever a shared slot changes.
type StorageEvent struct {
	Key      string          `json:"key"`
	NewValue json.RawMessage `json:"newValue"`
}

// SlotStore is the local fallback cache: a slot with the full bookings
// array and a transient mailbox slot cleared on read.
type SlotStore interface {
	LoadBookings(ctx context.Context) ([]*models.Booking, error)
	SaveBookings(ctx context.Context, bookings []*models.Booking) error
	PutMailbox(ctx context.Context, payload []byte) error
	// TakeMailbox returns nil when the mailbox is empty.
	TakeMailbox(ctx context.Context) ([]byte, error)
}

// BookingsMutation edits a copy of the bookings slot and reports whether
// anything changed. It may run more than once per update.
type BookingsMutation func(bookings []*models.Booking) ([]*models.Booking, bool)

// SlotUpdater applies a BookingsMutation as one atomic read-modify-write.
type SlotUpdater interface {
	UpdateBookings(ctx context.Context, fn BookingsMutation) (bool, error)
}

// SlotWatcher delivers storage-change notifications.
type SlotWatcher interface {
	Watch(ctx context.Context) (<-chan StorageEvent, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier broadcasts a created booking to other contexts.
type Notifier interface {
	Announce(ctx context.Context, booking *models.Booking) error
}

type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus) error
	DeleteBookingRow(ctx context.Context, bookingID string) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType, bookingID string, booking *models.Booking, status models.BookingStatus) error
}

// TelegramSender is the subset of *tgbotapi.BotAPI the bot needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendMarkdown(chatID int64, text string) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	SendDocument(chatID int64, name string, data []byte, caption string) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// BookingService is the application layer used by the API and the bot.
type BookingService interface {
	CreateBooking(ctx context.Context, booking *models.Booking) (*models.Booking, error)
	ListBookings(ctx context.Context) ([]*models.Booking, error)
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error
	SearchBookings(ctx context.Context, term, status, date string) ([]*models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	Stats(ctx context.Context) (models.Stats, error)
}

type AuthService interface {
	AdminLogin(ctx context.Context, username, password string) (string, error)
	ValidateToken(token string) (string, error)
}

type FormService interface {
	SubmitApplication(ctx context.Context, app *models.Application) (*models.Application, error)
	CheckApplication(ctx context.Context, id, mobile string) (*models.Application, error)
	SubmitContact(ctx context.Context, msg *models.ContactMessage) error
}
