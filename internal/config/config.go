// Package config defines all configuration for the price-alert bot.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via XRP_* environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Ticker   TickerConfig   `mapstructure:"ticker"`
	Store    StoreConfig    `mapstructure:"store"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Events   EventsConfig   `mapstructure:"events"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Twitter  TwitterConfig  `mapstructure:"twitter"`
	Chart    ChartConfig    `mapstructure:"chart"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	LockFile string         `mapstructure:"lock_file"`
}

// TickerConfig holds the exchange ticker endpoint and polling behavior.
//
//   - URL: the public spot ticker endpoint (numeric fields arrive as strings).
//   - Symbol: the symbol samples are stored under (e.g. "XRP").
//   - PollInterval: steady period between successful polls.
//   - RetryBase: exponential backoff base for failed fetches.
//   - RetryMax: attempts per cycle before the cycle is skipped.
type TickerConfig struct {
	URL          string        `mapstructure:"url"`
	Symbol       string        `mapstructure:"symbol"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	RetryBase    time.Duration `mapstructure:"retry_base"`
	RetryMax     int           `mapstructure:"retry_max"`
}

// StoreConfig selects and parameterizes the persistence backend.
// Backend "postgres" is the production store; "memory" is the file-less
// fallback used by tests and dry runs.
type StoreConfig struct {
	Backend  string `mapstructure:"backend"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// StrategyConfig tunes the single-position trading FSM.
//
//   - OversoldThreshold: buy when (last−vwap)/vwap ≤ this (negative).
//   - TakeProfit: exit when last ≥ entry·(1+this).
//   - StopLoss: exit when last ≤ entry·(1+this) (negative).
//   - TrailPct: trailing distance below the highest price since entry.
//   - LossCooldown: minimum gap after a losing exit before the next buy.
//   - FeePct: venue maker fee, charged on both entry and exit.
//   - InitialCapital: starting capital when no prior state or ledger exists.
type StrategyConfig struct {
	OversoldThreshold decimal.Decimal `mapstructure:"oversold_threshold"`
	TakeProfit        decimal.Decimal `mapstructure:"take_profit"`
	StopLoss          decimal.Decimal `mapstructure:"stop_loss"`
	TrailPct          decimal.Decimal `mapstructure:"trail_pct"`
	LossCooldown      time.Duration   `mapstructure:"loss_cooldown"`
	FeePct            decimal.Decimal `mapstructure:"fee_pct"`
	InitialCapital    decimal.Decimal `mapstructure:"initial_capital"`
}

// EventsConfig enables/disables each scheduled publication and sets the
// volatility parameters. Dedupe buckets and grace windows are fixed by
// the router.
type EventsConfig struct {
	HourlyUpdate        bool            `mapstructure:"hourly_update"`
	NHourSummary        bool            `mapstructure:"n_hour_summary"`
	DailySummary        bool            `mapstructure:"daily_summary"`
	VolatilityAlert     bool            `mapstructure:"volatility_alert"`
	VolatilityThreshold decimal.Decimal `mapstructure:"volatility_threshold"` // fraction, e.g. 0.02
	AllTimeHigh         decimal.Decimal `mapstructure:"all_time_high"`
}

// TelegramConfig holds the chat bot credentials. ChatID is the channel
// that receives trade signals; commands are answered to their sender.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
	BaseURL  string `mapstructure:"base_url"`
}

// TwitterConfig holds the microblog OAuth1 credentials.
type TwitterConfig struct {
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
	AccessToken    string `mapstructure:"access_token"`
	AccessSecret   string `mapstructure:"access_secret"`
}

// ChartConfig controls candlestick chart rendering and house-keeping.
type ChartConfig struct {
	Dir        string `mapstructure:"dir"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: XRP_TELEGRAM_BOT_TOKEN, XRP_TELEGRAM_CHAT_ID,
// XRP_TWITTER_CONSUMER_KEY, XRP_TWITTER_CONSUMER_SECRET, XRP_TWITTER_ACCESS_TOKEN,
// XRP_TWITTER_ACCESS_SECRET, XRP_DB_PASSWORD.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("XRP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		decimalDecodeHook(),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if tok := os.Getenv("XRP_TELEGRAM_BOT_TOKEN"); tok != "" {
		cfg.Telegram.BotToken = tok
	}
	if id := os.Getenv("XRP_TELEGRAM_CHAT_ID"); id != "" {
		var chatID int64
		if _, err := fmt.Sscan(id, &chatID); err != nil {
			return nil, fmt.Errorf("XRP_TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = chatID
	}
	if key := os.Getenv("XRP_TWITTER_CONSUMER_KEY"); key != "" {
		cfg.Twitter.ConsumerKey = key
	}
	if secret := os.Getenv("XRP_TWITTER_CONSUMER_SECRET"); secret != "" {
		cfg.Twitter.ConsumerSecret = secret
	}
	if tok := os.Getenv("XRP_TWITTER_ACCESS_TOKEN"); tok != "" {
		cfg.Twitter.AccessToken = tok
	}
	if secret := os.Getenv("XRP_TWITTER_ACCESS_SECRET"); secret != "" {
		cfg.Twitter.AccessSecret = secret
	}
	if pw := os.Getenv("XRP_DB_PASSWORD"); pw != "" {
		cfg.Store.Password = pw
	}

	// Feature flags keep their historical env names.
	applyFlag(&cfg.Events.HourlyUpdate, "ENABLE_HOURLY_TWEET")
	applyFlag(&cfg.Events.NHourSummary, "ENABLE_N_HOUR_SUMMARY")
	applyFlag(&cfg.Events.VolatilityAlert, "ENABLE_VOLATILITY_ALERT")
	applyFlag(&cfg.Events.DailySummary, "ENABLE_DAILY_SUMMARY")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ticker.url", "https://www.bitstamp.net/api/v2/ticker/xrpusd/")
	v.SetDefault("ticker.symbol", "XRP")
	v.SetDefault("ticker.poll_interval", "60s")
	v.SetDefault("ticker.retry_base", "2s")
	v.SetDefault("ticker.retry_max", 5)

	v.SetDefault("store.backend", "postgres")
	v.SetDefault("store.host", "localhost")
	v.SetDefault("store.port", 5432)

	v.SetDefault("strategy.oversold_threshold", "-0.019")
	v.SetDefault("strategy.take_profit", "0.015")
	v.SetDefault("strategy.stop_loss", "-0.02")
	v.SetDefault("strategy.trail_pct", "0.005")
	v.SetDefault("strategy.loss_cooldown", "30m")
	v.SetDefault("strategy.fee_pct", "0.004")
	v.SetDefault("strategy.initial_capital", "12800")

	v.SetDefault("events.hourly_update", true)
	v.SetDefault("events.n_hour_summary", true)
	v.SetDefault("events.daily_summary", true)
	v.SetDefault("events.volatility_alert", true)
	v.SetDefault("events.volatility_threshold", "0.02")
	v.SetDefault("events.all_time_high", "3.65")

	v.SetDefault("telegram.base_url", "https://api.telegram.org")

	v.SetDefault("chart.dir", ".")
	v.SetDefault("chart.max_age_days", 7)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("lock_file", "trading_bot.lock")
}

// applyFlag overrides a feature flag from its environment variable, if set.
func applyFlag(dst *bool, env string) {
	switch os.Getenv(env) {
	case "true", "1":
		*dst = true
	case "false", "0":
		*dst = false
	}
}

// decimalDecodeHook lets viper unmarshal YAML strings and numbers into
// decimal.Decimal fields without a float64 round-trip.
func decimalDecodeHook() mapstructure.DecodeHookFuncType {
	decimalType := reflect.TypeOf(decimal.Decimal{})
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(v)
		case float64:
			return decimal.NewFromFloat(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		default:
			return data, nil
		}
	}
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Ticker.URL == "" {
		return fmt.Errorf("ticker.url is required")
	}
	if c.Ticker.Symbol == "" {
		return fmt.Errorf("ticker.symbol is required")
	}
	if c.Ticker.PollInterval <= 0 {
		return fmt.Errorf("ticker.poll_interval must be > 0")
	}
	switch c.Store.Backend {
	case "postgres":
		if c.Store.Name == "" || c.Store.User == "" {
			return fmt.Errorf("store.name and store.user are required for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be postgres or memory")
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required (set XRP_TELEGRAM_BOT_TOKEN)")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required (set XRP_TELEGRAM_CHAT_ID)")
	}
	if !c.Strategy.OversoldThreshold.IsNegative() {
		return fmt.Errorf("strategy.oversold_threshold must be negative")
	}
	if !c.Strategy.TakeProfit.IsPositive() {
		return fmt.Errorf("strategy.take_profit must be positive")
	}
	if !c.Strategy.StopLoss.IsNegative() {
		return fmt.Errorf("strategy.stop_loss must be negative")
	}
	if c.Strategy.TrailPct.IsNegative() || c.Strategy.TrailPct.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("strategy.trail_pct must be in [0, 1)")
	}
	if !c.Strategy.InitialCapital.IsPositive() {
		return fmt.Errorf("strategy.initial_capital must be positive")
	}
	if !c.Events.VolatilityThreshold.IsPositive() {
		return fmt.Errorf("events.volatility_threshold must be positive")
	}
	return nil
}

// DSN builds the Postgres connection string for the store backend.
func (c *StoreConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.Host, c.Port, c.Name, c.User, c.Password)
}
