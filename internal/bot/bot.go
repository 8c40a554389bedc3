// Package bot implements the Telegram chat interface: a getUpdates
// long-poll loop and the command handlers that answer from the durable
// stores.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/johnossawy/xrp-price-alerts/internal/config"
	"github.com/johnossawy/xrp-price-alerts/internal/store"
)

const longPollSeconds = 50

// ChatSender delivers replies; satisfied by publish.Telegram.
type ChatSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

type handlerFunc func(ctx context.Context, chatID int64, args string) string

// Listener polls Telegram for commands and replies from the stores.
type Listener struct {
	http     *resty.Client
	sender   ChatSender
	store    store.Store
	symbol   string
	logger   *slog.Logger
	handlers map[string]handlerFunc
	offset   int64
}

// NewListener creates the command listener.
func NewListener(cfg config.TelegramConfig, sender ChatSender, st store.Store, symbol string, logger *slog.Logger) *Listener {
	httpClient := resty.New().
		SetBaseURL(fmt.Sprintf("%s/bot%s", cfg.BaseURL, cfg.BotToken)).
		SetTimeout((longPollSeconds + 10) * time.Second)

	l := &Listener{
		http:   httpClient,
		sender: sender,
		store:  st,
		symbol: symbol,
		logger: logger.With("component", "bot"),
	}
	l.handlers = map[string]handlerFunc{
		"/start":      l.handleStart,
		"/price":      l.handlePrice,
		"/lastsignal": l.handleLastSignal,
		"/setcapital": l.handleSetCapital,
		"/portfolio":  l.handlePortfolio,
		"/setalert":   l.handleSetAlert,
		"/viewalert":  l.handleViewAlert,
		"/capital":    l.handleCapital,
		"/help":       l.handleHelp,
		"/about":      l.handleAbout,
	}
	return l
}

// Run long-polls for updates until the context is cancelled.
func (l *Listener) Run(ctx context.Context) {
	l.logger.Info("command listener started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("command listener stopped")
			return
		default:
		}

		updates, err := l.fetchUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			l.logger.Warn("getUpdates failed", "error", err)
			time.Sleep(2 * time.Second)
			continue
		}

		for _, u := range updates {
			l.offset = u.UpdateID + 1
			if u.Message == nil || !strings.HasPrefix(u.Message.Text, "/") {
				continue
			}
			reply := l.HandleCommand(ctx, u.Message.Chat.ID, u.Message.Text)
			if reply == "" {
				continue
			}
			if err := l.sender.SendMessage(ctx, u.Message.Chat.ID, reply); err != nil {
				l.logger.Warn("reply failed", "chat_id", u.Message.Chat.ID, "error", err)
			}
		}
	}
}

func (l *Listener) fetchUpdates(ctx context.Context) ([]update, error) {
	var body updatesResponse
	resp, err := l.http.R().
		SetContext(ctx).
		SetQueryParam("offset", strconv.FormatInt(l.offset, 10)).
		SetQueryParam("timeout", strconv.Itoa(longPollSeconds)).
		SetResult(&body).
		Get("/getUpdates")
	if err != nil {
		return nil, err
	}
	if !body.OK {
		return nil, fmt.Errorf("getUpdates: status %d: %s", resp.StatusCode(), resp.String())
	}
	return body.Result, nil
}

// HandleCommand dispatches one command line and returns the reply text.
// Unknown commands get a pointer to /help.
func (l *Listener) HandleCommand(ctx context.Context, chatID int64, text string) string {
	cmd, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	// Strip the @botname suffix used in group chats.
	cmd, _, _ = strings.Cut(cmd, "@")

	handler, ok := l.handlers[strings.ToLower(cmd)]
	if !ok {
		return "Unknown command. Try /help."
	}

	l.logger.Info("command received", "chat_id", chatID, "command", cmd)
	return handler(ctx, chatID, strings.TrimSpace(args))
}
