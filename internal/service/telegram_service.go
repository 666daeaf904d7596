package service

import (
	"errors"
	"strings"
	"unicode/utf8"

	"carwash/internal/domain"
	"carwash/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram rejects longer message texts and captions.
const (
	maxMessageRunes = 4096
	maxCaptionRunes = 1024
)

const truncatedSuffix = "\n…"

// apiSender adapts *tgbotapi.BotAPI, whose Self is a field, to domain.TelegramSender.
type apiSender struct {
	*tgbotapi.BotAPI
}

func (a apiSender) GetSelf() tgbotapi.User { return a.Self }

// TelegramService sends the dashboard's messages. Texts are clamped to
// Telegram's limits and re-rendering an unchanged page is not an error.
type TelegramService struct {
	bot domain.TelegramSender
}

var _ domain.TelegramService = (*TelegramService)(nil)

func NewTelegramService(bot domain.TelegramSender) *TelegramService {
	return &TelegramService{bot: bot}
}

// NewTelegramServiceFromAPI wraps a live bot client.
func NewTelegramServiceFromAPI(api *tgbotapi.BotAPI) *TelegramService {
	return NewTelegramService(apiSender{BotAPI: api})
}

func (s *TelegramService) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.bot.Send(c)
}

func (s *TelegramService) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return s.bot.Request(c)
}

func (s *TelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	return s.bot.Send(s.message(chatID, text, ""))
}

func (s *TelegramService) SendMarkdown(chatID int64, text string) (tgbotapi.Message, error) {
	return s.bot.Send(s.message(chatID, text, models.ParseModeMarkdown))
}

func (s *TelegramService) SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	msg := s.message(chatID, text, models.ParseModeMarkdown)
	msg.ReplyMarkup = keyboard
	return s.bot.Send(msg)
}

// EditMessage replaces a dashboard in place. Pressing the button of the page
// already shown makes Telegram answer "message is not modified"; that is
// reported as success.
func (s *TelegramService) EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, clamp(text, maxMessageRunes))
	edit.ParseMode = models.ParseModeMarkdown
	edit.DisableWebPagePreview = true
	if keyboard != nil {
		edit.ReplyMarkup = keyboard
	}

	msg, err := s.bot.Send(edit)
	if isNotModified(err) {
		return msg, nil
	}
	return msg, err
}

// SendDocument uploads an in-memory export.
func (s *TelegramService) SendDocument(chatID int64, name string, data []byte, caption string) (tgbotapi.Message, error) {
	if len(data) == 0 {
		return tgbotapi.Message{}, errors.New("telegram: empty document")
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = clamp(caption, maxCaptionRunes)
	return s.bot.Send(doc)
}

func (s *TelegramService) AnswerCallback(callbackID, text string) error {
	_, err := s.bot.Request(tgbotapi.NewCallback(callbackID, clamp(text, 200)))
	return err
}

func (s *TelegramService) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return s.bot.GetUpdatesChan(config)
}

func (s *TelegramService) GetSelf() tgbotapi.User {
	return s.bot.GetSelf()
}

func (s *TelegramService) StopReceivingUpdates() {
	s.bot.StopReceivingUpdates()
}

func (s *TelegramService) message(chatID int64, text, parseMode string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, clamp(text, maxMessageRunes))
	msg.ParseMode = parseMode
	msg.DisableWebPagePreview = true
	return msg
}

// clamp cuts text to limit runes, ending on a line break when one is close.
func clamp(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:limit-utf8.RuneCountInString(truncatedSuffix)])
	if i := strings.LastIndexByte(cut, '\n'); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + truncatedSuffix
}

func isNotModified(err error) bool {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return strings.Contains(tgErr.Message, "message is not modified")
	}
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
