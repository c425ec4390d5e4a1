package notify

import (
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// telegram rejects longer texts
const maxMessageLen = 4096

// Telegram posts messages to one chat. Each message is sent on its own goroutine.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewTelegram connects to the bot API and verifies the token.
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	return newTelegram(token, chatID, tgbotapi.APIEndpoint, &http.Client{Timeout: 10 * time.Second}, logger)
}

func newTelegram(token string, chatID int64, endpoint string, client *http.Client, logger *zap.Logger) (*Telegram, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, errors.Wrap(err, "init telegram bot")
	}

	logger.Info("telegram notifications enabled", zap.String("bot", bot.Self.UserName))
	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

// Notify sends text in the background.
func (t *Telegram) Notify(text string) {
	msg := tgbotapi.NewMessage(t.chatID, truncate(text))

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if _, err := t.bot.Send(msg); err != nil {
			t.logger.Warn("telegram notification failed", zap.Error(err))
		}
	}()
}

// truncate cuts text to maxMessageLen characters without splitting a rune.
func truncate(text string) string {
	if utf8.RuneCountInString(text) <= maxMessageLen {
		return text
	}
	return string([]rune(text)[:maxMessageLen])
}

// Close waits for in-flight messages.
func (t *Telegram) Close() {
	t.wg.Wait()
}
