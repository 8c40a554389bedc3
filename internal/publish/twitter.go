package publish

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/go-resty/resty/v2"

	"github.com/johnossawy/xrp-price-alerts/internal/config"
)

const (
	tweetURL       = "https://api.twitter.com/2/tweets"
	mediaUploadURL = "https://upload.twitter.com/1.1/media/upload.json"

	// Fallback wait when a 429 response carries no usable reset header.
	defaultRateLimitWait = 15 * time.Minute
)

// Twitter posts tweets, optionally with an attached image. Requests are
// OAuth1-signed with the configured user credentials.
type Twitter struct {
	http   *resty.Client
	logger *slog.Logger

	tweetURL  string
	uploadURL string

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewTwitter creates a poster with OAuth1 request signing.
func NewTwitter(cfg config.TwitterConfig, logger *slog.Logger) *Twitter {
	oauthCfg := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret)
	signing := oauthCfg.Client(oauth1.NoContext, token)

	httpClient := resty.NewWithClient(signing).
		SetTimeout(30 * time.Second)

	return &Twitter{
		http:      httpClient,
		logger:    logger.With("component", "twitter"),
		tweetURL:  tweetURL,
		uploadURL: mediaUploadURL,
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type mediaUploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

// PostText publishes a text-only tweet.
func (t *Twitter) PostText(ctx context.Context, body string) error {
	return t.createTweet(ctx, tweetRequest{Text: body})
}

// PostWithImage uploads the image, then publishes the tweet referencing
// it.
func (t *Twitter) PostWithImage(ctx context.Context, body, imagePath string) error {
	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var upload mediaUploadResponse
	resp, err := t.http.R().
		SetContext(ctx).
		SetFileReader("media", filepath.Base(imagePath), f).
		SetResult(&upload).
		Post(t.uploadURL)
	if err != nil {
		return fmt.Errorf("media upload: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || upload.MediaIDString == "" {
		return fmt.Errorf("media upload: status %d: %s", resp.StatusCode(), resp.String())
	}

	return t.createTweet(ctx, tweetRequest{
		Text:  body,
		Media: &tweetMedia{MediaIDs: []string{upload.MediaIDString}},
	})
}

// createTweet posts once; on 429 it waits for the provider's reset and
// retries once more before returning ErrRateLimited.
func (t *Twitter) createTweet(ctx context.Context, req tweetRequest) error {
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := t.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(req).
			Post(t.tweetURL)
		if err != nil {
			return fmt.Errorf("create tweet: %w", err)
		}

		switch {
		case resp.StatusCode() == http.StatusCreated || resp.StatusCode() == http.StatusOK:
			t.logger.Info("tweet posted", "len", len(req.Text))
			return nil
		case resp.StatusCode() == http.StatusTooManyRequests && attempt == 0:
			wait := t.resetWait(resp)
			t.logger.Warn("rate limited, waiting for reset", "wait", wait)
			if err := t.sleep(ctx, wait); err != nil {
				return err
			}
		case resp.StatusCode() == http.StatusTooManyRequests:
			return fmt.Errorf("%w: create tweet", ErrRateLimited)
		default:
			return fmt.Errorf("create tweet: status %d: %s", resp.StatusCode(), resp.String())
		}
	}
	return fmt.Errorf("%w: create tweet", ErrRateLimited)
}

// resetWait derives the wait from the x-rate-limit-reset header.
func (t *Twitter) resetWait(resp *resty.Response) time.Duration {
	epoch, err := strconv.ParseInt(resp.Header().Get("x-rate-limit-reset"), 10, 64)
	if err != nil || epoch <= 0 {
		return defaultRateLimitWait
	}
	wait := time.Unix(epoch, 0).Sub(t.now())
	if wait <= 0 || wait > time.Hour {
		return defaultRateLimitWait
	}
	return wait
}
