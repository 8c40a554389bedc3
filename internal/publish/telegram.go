// Package publish implements the outbound message senders.
//
// Two targets: the Telegram bot API for trade signals and chat replies,
// and the Twitter API (v2 create-tweet plus v1.1 media upload) for the
// scheduled public posts. Both wrap resty clients; Telegram retries
// transient failures with exponential backoff, Twitter honours the
// provider's rate-limit reset once before giving up.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/johnossawy/xrp-price-alerts/internal/config"
)

var (
	// ErrNetwork is returned when the chat API stays unreachable after
	// all retries.
	ErrNetwork = errors.New("publish: network error")
	// ErrRateLimited is returned when the microblog API rejects the
	// post with 429 twice in a row.
	ErrRateLimited = errors.New("publish: rate limited")
)

const (
	telegramRetries   = 3
	telegramRetryBase = 2 * time.Second

	parseModeMarkdown = "Markdown"
)

// Telegram sends messages through the Telegram bot API.
type Telegram struct {
	http   *resty.Client
	logger *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewTelegram creates a sender for the configured bot token.
func NewTelegram(cfg config.TelegramConfig, logger *slog.Logger) *Telegram {
	httpClient := resty.New().
		SetBaseURL(fmt.Sprintf("%s/bot%s", cfg.BaseURL, cfg.BotToken)).
		SetTimeout(15 * time.Second)

	return &Telegram{
		http:   httpClient,
		logger: logger.With("component", "telegram"),
		sleep:  sleepCtx,
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage posts a Markdown-formatted message to a chat. Transient
// failures are retried with exponential backoff.
func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string) error {
	return t.SendMessageMode(ctx, chatID, text, parseModeMarkdown)
}

// SendMessageMode posts with an explicit parse mode. An empty mode
// sends plain text.
func (t *Telegram) SendMessageMode(ctx context.Context, chatID int64, text, parseMode string) error {
	var lastErr error
	for attempt := 0; attempt < telegramRetries; attempt++ {
		if attempt > 0 {
			if err := t.sleep(ctx, telegramRetryBase<<(attempt-1)); err != nil {
				return err
			}
		}
		lastErr = t.send(ctx, chatID, text, parseMode)
		if lastErr == nil {
			return nil
		}
		t.logger.Warn("sendMessage failed", "attempt", attempt+1, "error", lastErr)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, lastErr)
}

func (t *Telegram) send(ctx context.Context, chatID int64, text, parseMode string) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}

	var body telegramResponse
	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&body).
		SetError(&body).
		Post("/sendMessage")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK || !body.OK {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), body.Description)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
