package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/johnossawy/xrp-price-alerts/internal/config"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestTelegramSendMessage(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("path = %q, want /bottest-token/sendMessage", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{BaseURL: srv.URL, BotToken: "test-token"}, discard())
	tg.sleep = noSleep

	if err := tg.SendMessage(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got["chat_id"].(float64) != 42 {
		t.Errorf("chat_id = %v, want 42", got["chat_id"])
	}
	if got["text"] != "hello" {
		t.Errorf("text = %v, want hello", got["text"])
	}
	if got["parse_mode"] != "Markdown" {
		t.Errorf("parse_mode = %v, want Markdown", got["parse_mode"])
	}
}

func TestTelegramSendMessageMode(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{BaseURL: srv.URL, BotToken: "t"}, discard())
	tg.sleep = noSleep
	ctx := context.Background()

	if err := tg.SendMessageMode(ctx, 1, "<b>hi</b>", "HTML"); err != nil {
		t.Fatalf("SendMessageMode: %v", err)
	}
	if got["parse_mode"] != "HTML" {
		t.Errorf("parse_mode = %v, want HTML", got["parse_mode"])
	}

	got = nil
	if err := tg.SendMessageMode(ctx, 1, "plain", ""); err != nil {
		t.Fatalf("SendMessageMode: %v", err)
	}
	if _, ok := got["parse_mode"]; ok {
		t.Errorf("empty mode sent parse_mode = %v, want field omitted", got["parse_mode"])
	}
}

func TestTelegramRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{BaseURL: srv.URL, BotToken: "t"}, discard())
	tg.sleep = noSleep

	if err := tg.SendMessage(context.Background(), 1, "x"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if calls != 3 {
		t.Errorf("server saw %d calls, want 3", calls)
	}
}

func TestTelegramGivesUp(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{BaseURL: srv.URL, BotToken: "t"}, discard())
	tg.sleep = noSleep

	if err := tg.SendMessage(context.Background(), 1, "x"); !errors.Is(err, ErrNetwork) {
		t.Errorf("SendMessage = %v, want ErrNetwork", err)
	}
}

// newTestTwitter bypasses OAuth signing; the tests exercise request
// shape and rate-limit behaviour, not signatures.
func newTestTwitter(tweetURL, uploadURL string) *Twitter {
	return &Twitter{
		http:      resty.New(),
		logger:    discard(),
		tweetURL:  tweetURL,
		uploadURL: uploadURL,
		sleep:     noSleep,
		now:       time.Now,
	}
}

func TestTwitterPostText(t *testing.T) {
	t.Parallel()

	var got tweetRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1"}}`))
	}))
	defer srv.Close()

	tw := newTestTwitter(srv.URL, srv.URL)
	if err := tw.PostText(context.Background(), "gm"); err != nil {
		t.Fatalf("PostText: %v", err)
	}
	if got.Text != "gm" {
		t.Errorf("text = %q, want gm", got.Text)
	}
	if got.Media != nil {
		t.Errorf("media = %+v, want nil", got.Media)
	}
}

func TestTwitterPostWithImage(t *testing.T) {
	t.Parallel()

	img := filepath.Join(t.TempDir(), "chart.png")
	if err := os.WriteFile(img, []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	var got tweetRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upload":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"media_id_string": "9001"}`))
		case "/tweet":
			json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	tw := newTestTwitter(srv.URL+"/tweet", srv.URL+"/upload")
	if err := tw.PostWithImage(context.Background(), "chart time", img); err != nil {
		t.Fatalf("PostWithImage: %v", err)
	}
	if got.Media == nil || len(got.Media.MediaIDs) != 1 || got.Media.MediaIDs[0] != "9001" {
		t.Errorf("media = %+v, want media_ids [9001]", got.Media)
	}
}

func TestTwitterRateLimitRetryOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tw := newTestTwitter(srv.URL, srv.URL)
	if err := tw.PostText(context.Background(), "x"); err != nil {
		t.Fatalf("PostText: %v", err)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2", calls)
	}
}

func TestTwitterRateLimitTwiceFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tw := newTestTwitter(srv.URL, srv.URL)
	if err := tw.PostText(context.Background(), "x"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("PostText = %v, want ErrRateLimited", err)
	}
}
