package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"HealthIntake/model"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

// Retry settings (tuned in tests)
var (
	sendMaxRetries  = 3
	sendBaseBackoff = 500 * time.Millisecond
)

// sleepHook is replaced in tests to avoid sleeping for real
var sleepHook = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TelegramChannel posts rendered questionnaires to a staff chat
type TelegramChannel struct {
	bot     *bot.Bot
	chatID  any
	timeout time.Duration
}

// NewTelegramBot creates a bot client without the getMe round trip
func NewTelegramBot(token string, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, model.ErrChannelNotConfigured
	}
	b, err := bot.New(token, append([]bot.Option{bot.WithSkipGetMe()}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("error creating bot: %w", err)
	}
	return b, nil
}

// NewTelegramChannel sends to chatID, which is a numeric id or an @channel name
func NewTelegramChannel(b *bot.Bot, chatID string, timeout time.Duration) *TelegramChannel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TelegramChannel{bot: b, chatID: ParseChatID(chatID), timeout: timeout}
}

// ParseChatID returns an int64 for numeric ids and the trimmed string otherwise
func ParseChatID(s string) any {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id
	}
	return s
}

// Send posts text (Telegram HTML) and returns the ids of the messages carrying
// it. Text over the length limit goes out as several messages; if one of them
// fails the ones already sent are removed.
func (t *TelegramChannel) Send(ctx context.Context, text string) ([]int, error) {
	var ids []int
	for _, chunk := range SplitMessage(text, MaxMessageLength) {
		var msg *models.Message
		err := t.withRetries(ctx, "sendMessage", func(ctx context.Context) error {
			var err error
			msg, err = t.bot.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:    t.chatID,
				Text:      chunk,
				ParseMode: models.ParseModeHTML,
			})
			return err
		})
		if err != nil {
			for _, id := range ids {
				if derr := t.Delete(context.WithoutCancel(ctx), id); derr != nil {
					log.Warn().Err(derr).Int("message_id", id).Msg("failed to remove partial message")
				}
			}
			return nil, fmt.Errorf("send telegram message: %w", err)
		}
		ids = append(ids, msg.ID)
	}
	log.Debug().Ints("message_ids", ids).Msg("telegram message sent")
	return ids, nil
}

// Delete removes one message from the chat
func (t *TelegramChannel) Delete(ctx context.Context, messageID int) error {
	return t.withRetries(ctx, "deleteMessage", func(ctx context.Context) error {
		_, err := t.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    t.chatID,
			MessageID: messageID,
		})
		return err
	})
}

// withRetries runs call with a per-attempt timeout, backing off exponentially
// between attempts. Errors Telegram reports about the request itself are not retried.
func (t *TelegramChannel) withRetries(ctx context.Context, method string, call func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= sendMaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, t.timeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if IsAPIError(err) || ctx.Err() != nil {
			return err
		}
		log.Warn().Err(err).Str("method", method).Int("attempt", attempt).Msg("telegram call failed")
		if attempt < sendMaxRetries {
			if err := sleepHook(ctx, sendBaseBackoff*time.Duration(1<<uint(attempt-1))); err != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

// IsAPIError reports whether Telegram answered and rejected the request, as
// opposed to a transport failure
func IsAPIError(err error) bool {
	return errors.Is(err, bot.ErrorBadRequest) ||
		errors.Is(err, bot.ErrorForbidden) ||
		errors.Is(err, bot.ErrorUnauthorized) ||
		errors.Is(err, bot.ErrorNotFound)
}

// LogChannel stands in for Telegram when no credentials are configured. It
// logs what would have been sent and reports no message ids.
type LogChannel struct {
	sent atomic.Int64
}

func (l *LogChannel) Send(_ context.Context, text string) ([]int, error) {
	n := l.sent.Add(1)
	log.Info().Int64("seq", n).Int("length", len(text)).Msg("telegram not configured, questionnaire logged only")
	log.Debug().Str("text", text).Msg("questionnaire message")
	return nil, nil
}

func (l *LogChannel) Delete(_ context.Context, messageID int) error {
	return model.ErrChannelNotConfigured
}
