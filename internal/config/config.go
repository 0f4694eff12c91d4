package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/utafrali/posledger/internal/receipt"
	pkgconfig "github.com/utafrali/posledger/pkg/config"
	"github.com/utafrali/posledger/pkg/database"
	"github.com/utafrali/posledger/pkg/httpclient"
	"github.com/utafrali/posledger/pkg/tracing"
)

// Config holds all configuration for a POS terminal.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	TerminalID  string `env:"TERMINAL_ID" envDefault:"till-01"`

	// Local HTTP API for the presentation layer
	HTTPPort int `env:"POS_HTTP_PORT" envDefault:"8090"`

	// Sales backend
	BackendURL            string `env:"BACKEND_URL" envDefault:"http://localhost:3000"`
	BackendTimeoutSeconds int    `env:"BACKEND_TIMEOUT_SECONDS" envDefault:"15"`
	BackendMaxRetries     int    `env:"BACKEND_MAX_RETRIES" envDefault:"2"`

	// Circuit breaker settings for backend calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Ledger
	LedgerPageSize          int  `env:"LEDGER_PAGE_SIZE" envDefault:"100"`
	LedgerMaxPages          int  `env:"LEDGER_MAX_PAGES" envDefault:"1000"`
	LedgerReloadSeconds     int  `env:"LEDGER_RELOAD_INTERVAL_SECONDS" envDefault:"10"`
	RemoteDateFilterEnabled bool `env:"REMOTE_DATE_FILTER_ENABLED" envDefault:"true"`

	// Calendar and money
	Timezone         string `env:"TIMEZONE" envDefault:"Local"`
	CurrencyExponent int32  `env:"CURRENCY_EXPONENT" envDefault:"2"`

	// Receipts
	StoreName    string `env:"STORE_NAME" envDefault:"POS Store"`
	StoreAddress string `env:"STORE_ADDRESS"`
	StorePhone   string `env:"STORE_PHONE"`
	ReceiptWidth int    `env:"RECEIPT_WIDTH" envDefault:"42"`
	PrinterType  string `env:"PRINTER_TYPE" envDefault:"stdout"`
	PrinterPath  string `env:"PRINTER_PATH"`

	// Redis ledger cache
	LedgerCacheEnabled bool   `env:"LEDGER_CACHE_ENABLED" envDefault:"false"`
	RedisHost          string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort          int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword      string `env:"REDIS_PASSWORD"`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL sale journal
	JournalEnabled bool   `env:"JOURNAL_ENABLED" envDefault:"false"`
	PostgresHost   string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort   int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser   string `env:"POSTGRES_USER" envDefault:"pos"`
	PostgresPass   string `env:"POSTGRES_PASSWORD" envDefault:"pos_secret"`
	PostgresDB     string `env:"POSTGRES_DB" envDefault:"posledger"`
	PostgresSSL    string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns     int32  `env:"DB_MAX_CONNS" envDefault:"4"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"200"`

	// Kafka
	EventsEnabled bool     `env:"EVENTS_ENABLED" envDefault:"false"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load terminal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.TerminalID == "" {
		return fmt.Errorf("TERMINAL_ID is required")
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if _, err := url.ParseRequestURI(c.BackendURL); err != nil {
		return fmt.Errorf("invalid BACKEND_URL %q: %w", c.BackendURL, err)
	}
	if c.BackendTimeoutSeconds < 1 {
		return fmt.Errorf("BACKEND_TIMEOUT_SECONDS must be positive, got %d", c.BackendTimeoutSeconds)
	}
	if c.BackendMaxRetries < 0 {
		return fmt.Errorf("BACKEND_MAX_RETRIES must not be negative, got %d", c.BackendMaxRetries)
	}
	if c.LedgerPageSize < 1 {
		return fmt.Errorf("LEDGER_PAGE_SIZE must be positive, got %d", c.LedgerPageSize)
	}
	if c.LedgerMaxPages < 1 {
		return fmt.Errorf("LEDGER_MAX_PAGES must be positive, got %d", c.LedgerMaxPages)
	}
	if c.LedgerReloadSeconds < 0 {
		return fmt.Errorf("LEDGER_RELOAD_INTERVAL_SECONDS must not be negative, got %d", c.LedgerReloadSeconds)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.CurrencyExponent < 0 || c.CurrencyExponent > 4 {
		return fmt.Errorf("CURRENCY_EXPONENT must be between 0 and 4, got %d", c.CurrencyExponent)
	}
	if c.ReceiptWidth < receipt.MinWidth {
		return fmt.Errorf("RECEIPT_WIDTH must be at least %d, got %d", receipt.MinWidth, c.ReceiptWidth)
	}
	switch c.PrinterType {
	case receipt.PrinterNone, receipt.PrinterStdout:
	case receipt.PrinterFile, receipt.PrinterNetwork:
		if c.PrinterPath == "" {
			return fmt.Errorf("PRINTER_PATH is required for printer type %q", c.PrinterType)
		}
	default:
		return fmt.Errorf("invalid PRINTER_TYPE %q", c.PrinterType)
	}
	if c.EventsEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Location resolves TIMEZONE. The sale day of a timestamp is computed in
// this location.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// HTTPClient returns the backend client settings.
func (c *Config) HTTPClient() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = time.Duration(c.BackendTimeoutSeconds) * time.Second
	hc.MaxRetries = c.BackendMaxRetries
	hc.MaxConnsPerHost = 8
	return hc
}

// CircuitBreaker returns breaker settings under the given name.
func (c *Config) CircuitBreaker(name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBInterval) * time.Second,
		Timeout:      time.Duration(c.CBTimeout) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}

// Postgres returns the journal database settings.
func (c *Config) Postgres() database.PostgresConfig {
	pc := database.DefaultPostgresConfig()
	pc.Host = c.PostgresHost
	pc.Port = c.PostgresPort
	pc.User = c.PostgresUser
	pc.Password = c.PostgresPass
	pc.DBName = c.PostgresDB
	pc.SSLMode = c.PostgresSSL
	pc.MaxConns = c.DBMaxConns
	return pc
}

// Redis returns the ledger cache settings.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// Tracing returns the OpenTelemetry settings for this terminal.
func (c *Config) Tracing(serviceName string) tracing.Config {
	tc := tracing.DefaultConfig(serviceName)
	tc.Environment = c.Environment
	tc.TerminalID = c.TerminalID
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	tc.Enabled = c.OTELEnabled
	return tc
}

// Store returns the receipt header.
func (c *Config) Store() receipt.StoreInfo {
	return receipt.StoreInfo{Name: c.StoreName, Address: c.StoreAddress, Phone: c.StorePhone}
}
