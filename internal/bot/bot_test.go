package bot

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"carwash/internal/config"
	"carwash/internal/database"
	"carwash/internal/domain"
	"carwash/internal/models"
	"carwash/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminChat int64 = 100

type sentDocument struct {
	chatID int64
	name   string
	data   []byte
}

type mockTelegramService struct {
	domain.TelegramService
	updatesChan chan tgbotapi.Update

	mu        sync.Mutex
	texts     []string
	keyboards []tgbotapi.InlineKeyboardMarkup
	edits     []string
	answers   []string
	documents []sentDocument
	stopped   bool
}

func (m *mockTelegramService) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updatesChan
}

func (m *mockTelegramService) GetSelf() tgbotapi.User { return tgbotapi.User{UserName: "carwash_bot"} }

func (m *mockTelegramService) StopReceivingUpdates() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *mockTelegramService) SendMarkdown(_ int64, text string) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return tgbotapi.Message{}, nil
}

func (m *mockTelegramService) SendWithInlineKeyboard(_ int64, text string, kb tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	m.keyboards = append(m.keyboards, kb)
	return tgbotapi.Message{MessageID: 1}, nil
}

func (m *mockTelegramService) EditMessage(_ int64, _ int, text string, _ *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, text)
	return tgbotapi.Message{}, nil
}

func (m *mockTelegramService) SendDocument(chatID int64, name string, data []byte, _ string) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, sentDocument{chatID: chatID, name: name, data: data})
	return tgbotapi.Message{}, nil
}

func (m *mockTelegramService) AnswerCallback(_ string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, text)
	return nil
}

func (m *mockTelegramService) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.texts) == 0 {
		return ""
	}
	return m.texts[len(m.texts)-1]
}

type fakeBookingService struct {
	domain.BookingService

	mu       sync.Mutex
	bookings []*models.Booking
	updates  map[string]models.BookingStatus
	listErr  error
	lists    int
}

func (f *fakeBookingService) ListBookings(context.Context) ([]*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Booking, 0, len(f.bookings))
	for _, b := range f.bookings {
		out = append(out, b.Clone())
	}
	return out, nil
}

func (f *fakeBookingService) UpdateStatus(_ context.Context, id string, status models.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.ID == id {
			b.Status = status
			f.updates[id] = status
			return nil
		}
	}
	return database.ErrNotFound
}

func (f *fakeBookingService) Stats(context.Context) (models.Stats, error) {
	var s models.Stats
	for _, b := range f.bookings {
		s.Add(b.Status)
	}
	return s, nil
}

func booking(id, name string, status models.BookingStatus, created time.Time) *models.Booking {
	return &models.Booking{
		ID: id, Name: name, Email: strings.ToLower(name[:3]) + "@example.com", Phone: "9876543210",
		Service: "Basic Wash - ₹299", Date: "2026-03-15", Time: "10:00",
		Status: status, CreatedAt: created, UpdatedAt: created,
	}
}

type testBot struct {
	*Bot
	tg       *mockTelegramService
	svc      *fakeBookingService
	receiver *notify.Receiver
}

func newTestBot(t *testing.T, pageSize int) *testBot {
	t.Helper()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := &fakeBookingService{
		bookings: []*models.Booking{
			booking("BK001", "Raj Kumar", models.StatusPending, base),
			booking("BK002", "Priya Sharma", models.StatusConfirmed, base.Add(time.Hour)),
			booking("BK003", "Amit Patel", models.StatusCompleted, base.Add(2*time.Hour)),
		},
		updates: make(map[string]models.BookingStatus),
	}
	tg := &mockTelegramService{updatesChan: make(chan tgbotapi.Update, 1)}
	logger := zerolog.New(io.Discard)
	receiver := notify.NewReceiver(config.NotifyConfig{}, nil, nil, nil)

	cfg := &config.Config{Telegram: config.TelegramConfig{AdminChatIDs: []int64{adminChat}, PageSize: pageSize}}
	cfg.Exports.Path = t.TempDir()

	b, err := NewBot(tg, svc, receiver, cfg, NewMetrics(prometheus.NewRegistry()), &logger)
	require.NoError(t, err)
	b.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return &testBot{Bot: b, tg: tg, svc: svc, receiver: receiver}
}

func command(chatID int64, text string) tgbotapi.Update {
	cmd := strings.SplitN(text, " ", 2)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func callback(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func TestNewBotRequiresServices(t *testing.T) {
	_, err := NewBot(nil, nil, nil, &config.Config{}, nil, nil)
	assert.Error(t, err)
}

func TestBotStartStopsOnCancel(t *testing.T) {
	tb := newTestBot(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tb.Start(ctx)
		close(done)
	}()

	tb.tg.updatesChan <- command(adminChat, "/help")
	require.Eventually(t, func() bool { return strings.Contains(tb.tg.lastText(), "/bookings") }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	assert.True(t, tb.tg.stopped)
}

func TestNonAdminChatIsRejected(t *testing.T) {
	tb := newTestBot(t, 10)
	tb.processUpdate(context.Background(), command(555, "/bookings"))

	assert.Contains(t, tb.tg.lastText(), "staff only")
	assert.Zero(t, tb.svc.lists)

	tb.processUpdate(context.Background(), callback(555, "page:2"))
	assert.Equal(t, []string{"Not allowed"}, tb.tg.answers)
}

func TestBookingsCommandRendersDashboard(t *testing.T) {
	tb := newTestBot(t, 10)
	tb.processUpdate(context.Background(), command(adminChat, "/bookings"))

	text := tb.tg.lastText()
	assert.Contains(t, text, "(3 of 3)")
	assert.Contains(t, text, "BK001")
	assert.Contains(t, text, "Raj Kumar")
	assert.Contains(t, text, "sort: newest first")
	// newest first
	assert.Less(t, strings.Index(text, "BK003"), strings.Index(text, "BK001"))

	require.Len(t, tb.tg.keyboards, 1)
	var data []string
	for _, row := range tb.tg.keyboards[0].InlineKeyboard {
		for _, btn := range row {
			data = append(data, *btn.CallbackData)
		}
	}
	assert.Contains(t, data, "st:BK001:confirmed")
	assert.Contains(t, data, "st:BK001:cancelled")
	assert.Contains(t, data, "st:BK002:completed")
	for _, d := range data {
		assert.False(t, strings.HasPrefix(d, "st:BK003"), "completed booking offers no transitions")
		assert.False(t, strings.HasPrefix(d, cbPage), "single page hides pagination")
	}
}

func TestFilterSearchAndDateCommands(t *testing.T) {
	tb := newTestBot(t, 10)
	ctx := context.Background()

	tb.processUpdate(ctx, command(adminChat, "/filter confirmed"))
	text := tb.tg.lastText()
	assert.Contains(t, text, "BK002")
	assert.NotContains(t, text, "BK001")

	tb.processUpdate(ctx, command(adminChat, "/filter bogus"))
	assert.Contains(t, tb.tg.lastText(), "Unknown status")

	tb.processUpdate(ctx, command(adminChat, "/filter all"))
	tb.processUpdate(ctx, command(adminChat, "/search amit"))
	text = tb.tg.lastText()
	assert.Contains(t, text, "BK003")
	assert.NotContains(t, text, "BK002")

	tb.processUpdate(ctx, command(adminChat, "/search"))
	tb.processUpdate(ctx, command(adminChat, "/date 15-03-2026"))
	assert.Contains(t, tb.tg.lastText(), "Use a date like")

	tb.processUpdate(ctx, command(adminChat, "/date 2026-03-16"))
	assert.Contains(t, tb.tg.lastText(), "No bookings match")

	tb.processUpdate(ctx, command(adminChat, "/date clear"))
	assert.Contains(t, tb.tg.lastText(), "(3 of 3)")
}

func TestSortCommandTogglesDirection(t *testing.T) {
	tb := newTestBot(t, 10)
	ctx := context.Background()

	tb.processUpdate(ctx, command(adminChat, "/sort name"))
	text := tb.tg.lastText()
	assert.Contains(t, text, "sort: name asc")
	assert.Less(t, strings.Index(text, "Amit"), strings.Index(text, "Raj"))

	tb.processUpdate(ctx, command(adminChat, "/sort name"))
	text = tb.tg.lastText()
	assert.Contains(t, text, "sort: name desc")
	assert.Less(t, strings.Index(text, "Raj"), strings.Index(text, "Amit"))

	tb.processUpdate(ctx, command(adminChat, "/sort colour"))
	assert.Contains(t, tb.tg.lastText(), "Sort by one of")
}

func TestPagination(t *testing.T) {
	tb := newTestBot(t, 1)
	ctx := context.Background()

	tb.processUpdate(ctx, command(adminChat, "/bookings"))
	assert.Contains(t, tb.tg.lastText(), "Page 1 of 3")

	tb.processUpdate(ctx, callback(adminChat, "page:2"))
	require.Len(t, tb.tg.edits, 1)
	assert.Contains(t, tb.tg.edits[0], "Page 2 of 3")
	assert.Contains(t, tb.tg.edits[0], "BK002")

	tb.processUpdate(ctx, callback(adminChat, "page:9"))
	assert.Equal(t, "Page not available", tb.tg.answers[len(tb.tg.answers)-1])
	assert.Len(t, tb.tg.edits, 1)

	tb.processUpdate(ctx, command(adminChat, "/page 3"))
	assert.Contains(t, tb.tg.lastText(), "Page 3 of 3")

	tb.processUpdate(ctx, command(adminChat, "/page x"))
	assert.Contains(t, tb.tg.lastText(), "followed by a number")

	tb.processUpdate(ctx, callback(adminChat, cbNoop))
	assert.Equal(t, "", tb.tg.answers[len(tb.tg.answers)-1])
}

func TestStatusCallback(t *testing.T) {
	tb := newTestBot(t, 10)
	ctx := context.Background()
	tb.processUpdate(ctx, command(adminChat, "/bookings"))

	tb.processUpdate(ctx, callback(adminChat, "st:BK001:confirmed"))
	assert.Equal(t, models.StatusConfirmed, tb.svc.updates["BK001"])
	assert.Equal(t, "Status updated", tb.tg.answers[len(tb.tg.answers)-1])

	d, err := tb.dashboard(ctx, adminChat)
	require.NoError(t, err)
	got, ok := d.Get("BK001")
	require.True(t, ok)
	assert.Equal(t, models.StatusConfirmed, got.Status)

	// illegal move from the cached status never reaches the store
	tb.processUpdate(ctx, callback(adminChat, "st:BK003:pending"))
	_, touched := tb.svc.updates["BK003"]
	assert.False(t, touched)
	assert.Equal(t, "That change is no longer available", tb.tg.answers[len(tb.tg.answers)-1])

	tb.processUpdate(ctx, callback(adminChat, "st:broken"))
	assert.Equal(t, "Unknown action", tb.tg.answers[len(tb.tg.answers)-1])
}

func TestStatusCallbackStoreError(t *testing.T) {
	tb := newTestBot(t, 10)
	ctx := context.Background()
	tb.processUpdate(ctx, command(adminChat, "/bookings"))

	tb.svc.mu.Lock()
	tb.svc.bookings = tb.svc.bookings[1:]
	tb.svc.mu.Unlock()

	tb.processUpdate(ctx, callback(adminChat, "st:BK001:confirmed"))
	assert.Contains(t, tb.tg.answers[len(tb.tg.answers)-1], "no longer exists")

	// the deleted booking leaves the dashboard
	d, err := tb.dashboard(ctx, adminChat)
	require.NoError(t, err)
	_, ok := d.Get("BK001")
	assert.False(t, ok)
	assert.Equal(t, 2, d.Len())
}

func TestReloadFailureKeepsCachedBookings(t *testing.T) {
	tb := newTestBot(t, 10)
	ctx := context.Background()
	tb.processUpdate(ctx, command(adminChat, "/bookings"))

	tb.svc.listErr = database.ErrUnavailable
	tb.processUpdate(ctx, command(adminChat, "/bookings"))

	assert.Contains(t, tb.tg.lastText(), "BK001")
	var warned bool
	for _, txt := range tb.tg.texts {
		if strings.Contains(txt, "unavailable") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestNewBookingAnnouncedOnce(t *testing.T) {
	tb := newTestBot(t, 10)
	ctx := context.Background()
	tb.processUpdate(ctx, command(adminChat, "/bookings"))
	before := len(tb.tg.texts)

	fresh := booking("BK004", "Neha Singh", models.StatusPending, time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC))
	assert.True(t, tb.receiver.DeliverBooking("direct", fresh))
	assert.False(t, tb.receiver.DeliverBooking("pubsub", fresh.Clone()))

	require.Len(t, tb.tg.texts, before+1)
	assert.Contains(t, tb.tg.lastText(), "New booking *BK004*")
	assert.Equal(t, float64(1), testutil.ToFloat64(tb.metrics.NotificationsSent))

	d, err := tb.dashboard(ctx, adminChat)
	require.NoError(t, err)
	assert.Equal(t, 4, d.Len())

	// bookings already loaded are not announced again
	assert.False(t, tb.receiver.DeliverBooking("mailbox", booking("BK002", "Priya Sharma", models.StatusConfirmed, time.Now())))
}

func TestStatsCommand(t *testing.T) {
	tb := newTestBot(t, 10)
	tb.processUpdate(context.Background(), command(adminChat, "/stats"))

	text := tb.tg.lastText()
	assert.Contains(t, text, "Total: 3")
	assert.Contains(t, text, "Pending: 1")
	assert.Equal(t, float64(1), testutil.ToFloat64(tb.metrics.CommandsProcessed.WithLabelValues("stats")))
}

func TestExportCommand(t *testing.T) {
	tb := newTestBot(t, 1)
	ctx := context.Background()

	tb.processUpdate(ctx, command(adminChat, "/filter confirmed"))
	tb.processUpdate(ctx, command(adminChat, "/export csv"))

	require.Len(t, tb.tg.documents, 1)
	doc := tb.tg.documents[0]
	assert.Equal(t, "bookings_2026-03-15.csv", doc.name)
	assert.Contains(t, string(doc.data), "ID,Name,Email")
	assert.Contains(t, string(doc.data), "BK002")
	assert.NotContains(t, string(doc.data), "BK001")
	assert.FileExists(t, tb.config.Exports.Path+"/bookings_2026-03-15.csv")
	assert.Equal(t, float64(1), testutil.ToFloat64(tb.metrics.ExportsTotal.WithLabelValues("csv")))

	tb.processUpdate(ctx, command(adminChat, "/export docx"))
	assert.Len(t, tb.tg.documents, 1)
	assert.Contains(t, tb.tg.lastText(), "/export xlsx")
}

func TestUnknownInput(t *testing.T) {
	tb := newTestBot(t, 10)
	ctx := context.Background()

	tb.processUpdate(ctx, command(adminChat, "/frobnicate"))
	assert.Contains(t, tb.tg.lastText(), "Unknown command")

	tb.processUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: adminChat}, Text: "hello"}})
	assert.Contains(t, tb.tg.lastText(), "/help")
}

func TestGetErrorMessage(t *testing.T) {
	b := &Bot{}
	assert.Empty(t, b.getErrorMessage(nil))
	assert.Equal(t, "name is required", b.getErrorMessage(&models.ValidationError{Field: "name", Message: "name is required"}))
	assert.Contains(t, b.getErrorMessage(database.ErrDuplicateID), "already exists")
	assert.Contains(t, b.getErrorMessage(database.ErrUnavailable), "unavailable")
	assert.Contains(t, b.getErrorMessage(assert.AnError), "Something went wrong")
}

func TestRecoveryKeepsBotAlive(t *testing.T) {
	tb := newTestBot(t, 10)
	tb.tgService = nil
	assert.NotPanics(t, func() {
		tb.processUpdate(context.Background(), command(adminChat, "/help"))
	})
}
