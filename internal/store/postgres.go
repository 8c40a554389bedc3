package store

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/johnossawy/xrp-price-alerts/internal/config"
	"github.com/johnossawy/xrp-price-alerts/pkg/types"
)

// Postgres is the gorm-backed production store.
type Postgres struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewPostgres opens the database and migrates the schema.
func NewPostgres(cfg config.StoreConfig, logger *slog.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.AutoMigrate(
		&types.Sample{},
		&types.BotState{},
		&types.TradeSignal{},
		&types.Activity{},
		&types.Portfolio{},
		&types.PriceAlert{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Postgres{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

func (p *Postgres) AppendSample(s types.Sample) error {
	if err := p.db.Create(&s).Error; err != nil {
		return fmt.Errorf("append sample: %w", err)
	}
	return nil
}

func (p *Postgres) LatestSample(symbol string) (types.Sample, error) {
	var s types.Sample
	err := p.db.Where("symbol = ?", symbol).Order("timestamp DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Sample{}, ErrNotFound
	}
	if err != nil {
		return types.Sample{}, fmt.Errorf("latest sample: %w", err)
	}
	return s, nil
}

func (p *Postgres) SamplesSince(symbol string, t0 time.Time) ([]types.Sample, error) {
	var out []types.Sample
	err := p.db.Where("symbol = ? AND timestamp >= ?", symbol, t0).
		Order("timestamp ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("samples since: %w", err)
	}
	return out, nil
}

func (p *Postgres) SaveBotState(st types.BotState) error {
	st.ID = 1
	if err := p.db.Save(&st).Error; err != nil {
		return fmt.Errorf("save bot state: %w", err)
	}
	return nil
}

func (p *Postgres) LoadBotState() (types.BotState, error) {
	var st types.BotState
	err := p.db.First(&st, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.BotState{}, ErrNotFound
	}
	if err != nil {
		return types.BotState{}, fmt.Errorf("load bot state: %w", err)
	}
	return st, nil
}

func (p *Postgres) AppendTradeSignal(sig types.TradeSignal) error {
	if err := p.db.Create(&sig).Error; err != nil {
		return fmt.Errorf("append trade signal: %w", err)
	}
	return nil
}

func (p *Postgres) LatestTradeSignal() (types.TradeSignal, error) {
	var sig types.TradeSignal
	err := p.db.Order("timestamp DESC").First(&sig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.TradeSignal{}, ErrNotFound
	}
	if err != nil {
		return types.TradeSignal{}, fmt.Errorf("latest trade signal: %w", err)
	}
	return sig, nil
}

func (p *Postgres) LatestBuySignal() (types.TradeSignal, error) {
	var sig types.TradeSignal
	err := p.db.Where("signal_type = ?", types.SignalBuy).
		Order("timestamp DESC").First(&sig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.TradeSignal{}, ErrNotFound
	}
	if err != nil {
		return types.TradeSignal{}, fmt.Errorf("latest buy signal: %w", err)
	}
	return sig, nil
}

func (p *Postgres) AppendActivity(a types.Activity) error {
	if err := p.db.Create(&a).Error; err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (p *Postgres) LatestActivity(kind types.ActivityKind) (types.Activity, error) {
	var a types.Activity
	err := p.db.Where("activity_type = ?", kind).
		Order("timestamp DESC").First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Activity{}, ErrNotFound
	}
	if err != nil {
		return types.Activity{}, fmt.Errorf("latest activity: %w", err)
	}
	return a, nil
}

func (p *Postgres) GetPortfolio(chatID int64) (types.Portfolio, error) {
	var pf types.Portfolio
	err := p.db.First(&pf, "chat_id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Portfolio{}, ErrNotFound
	}
	if err != nil {
		return types.Portfolio{}, fmt.Errorf("get portfolio: %w", err)
	}
	return pf, nil
}

func (p *Postgres) PutPortfolio(pf types.Portfolio) error {
	if err := p.db.Save(&pf).Error; err != nil {
		return fmt.Errorf("put portfolio: %w", err)
	}
	return nil
}

func (p *Postgres) AllPortfolios() ([]types.Portfolio, error) {
	var out []types.Portfolio
	if err := p.db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("all portfolios: %w", err)
	}
	return out, nil
}

func (p *Postgres) GetAlert(chatID int64) (types.PriceAlert, error) {
	var a types.PriceAlert
	err := p.db.First(&a, "chat_id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.PriceAlert{}, ErrNotFound
	}
	if err != nil {
		return types.PriceAlert{}, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (p *Postgres) PutAlert(a types.PriceAlert) error {
	if err := p.db.Save(&a).Error; err != nil {
		return fmt.Errorf("put alert: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteAlert(chatID int64) error {
	if err := p.db.Delete(&types.PriceAlert{}, "chat_id = ?", chatID).Error; err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	return nil
}

func (p *Postgres) AllAlerts() ([]types.PriceAlert, error) {
	var out []types.PriceAlert
	if err := p.db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("all alerts: %w", err)
	}
	return out, nil
}
