package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MikeMC777/cafe-pos/internal/money"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Store       string
	SQLitePath  string
	PostgresDSN string
	Addr        string

	TaxRate        decimal.Decimal
	CashierName    string
	CommitRetries  uint
	Location       *time.Location
	DisplayLang    string
	CurrencySymbol string

	ReceiptsDir     string
	ReportsDir      string
	RenderWorkers   int
	RenderQueueSize int

	LogLevel  string
	LogFormat string
}

type posEnv struct {
	Store       string `env:"POS_STORE"    envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"data/cafe_pos.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	Addr        string `env:"POS_ADDR"     envDefault:":8080"`

	TaxRate        string `env:"TAX_RATE"        envDefault:"0.10"`
	CashierName    string `env:"CASHIER_NAME"    envDefault:"Kasir"`
	CommitRetries  uint   `env:"COMMIT_RETRIES"  envDefault:"3"`
	Timezone       string `env:"TIMEZONE"        envDefault:"Local"`
	DisplayLang    string `env:"DISPLAY_LANG"    envDefault:"id"`
	CurrencySymbol string `env:"CURRENCY_SYMBOL" envDefault:"Rp"`

	ReceiptsDir     string `env:"RECEIPTS_DIR"      envDefault:"receipts"`
	ReportsDir      string `env:"REPORTS_DIR"       envDefault:"reports"`
	RenderWorkers   int    `env:"RENDER_WORKERS"    envDefault:"1"`
	RenderQueueSize int    `env:"RENDER_QUEUE_SIZE" envDefault:"16"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load() // load .env if it exists
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var raw posEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	store := strings.ToLower(strings.TrimSpace(raw.Store))
	switch store {
	case StoreSQLite:
	case StorePostgres:
		if raw.PostgresDSN == "" {
			return Config{}, fmt.Errorf("POSTGRES_DSN is required when POS_STORE=postgres")
		}
	default:
		return Config{}, fmt.Errorf("POS_STORE must be %q or %q, got %q", StoreSQLite, StorePostgres, raw.Store)
	}

	rate, err := money.ParseRate(raw.TaxRate)
	if err != nil {
		return Config{}, fmt.Errorf("TAX_RATE: %w", err)
	}
	loc, err := time.LoadLocation(raw.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("TIMEZONE: %w", err)
	}
	retries := raw.CommitRetries
	if retries == 0 {
		retries = 1
	}

	return Config{
		Store:           store,
		SQLitePath:      raw.SQLitePath,
		PostgresDSN:     raw.PostgresDSN,
		Addr:            raw.Addr,
		TaxRate:         rate,
		CashierName:     raw.CashierName,
		CommitRetries:   retries,
		Location:        loc,
		DisplayLang:     raw.DisplayLang,
		CurrencySymbol:  raw.CurrencySymbol,
		ReceiptsDir:     raw.ReceiptsDir,
		ReportsDir:      raw.ReportsDir,
		RenderWorkers:   raw.RenderWorkers,
		RenderQueueSize: raw.RenderQueueSize,
		LogLevel:        raw.LogLevel,
		LogFormat:       raw.LogFormat,
	}, nil
}

// Fields lists the settings worth logging at startup. The DSN is left out.
func (c Config) Fields() []zap.Field {
	return []zap.Field{
		zap.String("store", c.Store),
		zap.String("sqlite_path", c.SQLitePath),
		zap.String("addr", c.Addr),
		zap.String("tax_rate", c.TaxRate.String()),
		zap.String("timezone", c.Location.String()),
		zap.String("receipts_dir", c.ReceiptsDir),
		zap.String("reports_dir", c.ReportsDir),
		zap.Int("render_workers", c.RenderWorkers),
	}
}
