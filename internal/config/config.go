// Package config defines the top-level configuration for the sniper bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SNIPEBOT_* environment variables.
type Config struct {
	Gmgn     GmgnConfig     `toml:"gmgn"`
	Rugcheck RugcheckConfig `toml:"rugcheck"`
	Wallet   WalletConfig   `toml:"wallet"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Trading  TradingConfig  `toml:"trading"`
	Quotes   QuotesConfig   `toml:"quotes"`
	Driver   DriverConfig   `toml:"driver"`
	Retry    RetryConfig    `toml:"retry"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	DryRun   bool           `toml:"dry_run"`
	LogLevel string         `toml:"log_level"`
}

// GmgnConfig holds GMGN router and analytics API endpoints.
type GmgnConfig struct {
	BaseURL        string `toml:"base_url"`
	SolMint        string `toml:"sol_mint"`
	SlippageBps    int    `toml:"slippage_bps"`
	RateLimitPerSec int   `toml:"rate_limit_per_sec"`
}

// RugcheckConfig holds risk API parameters. Token is optional; when empty a
// bearer token is obtained via the login flow using the wallet signer.
type RugcheckConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// WalletConfig holds the Solana wallet identity used for API auth and swap
// submission. Exactly one keypair source is needed for live trading: a raw
// base64 keypair (env only), a Solana CLI keypair file, or an encrypted
// keypair file plus password.
type WalletConfig struct {
	PublicKey        string `toml:"public_key"`
	Keypair          string `toml:"keypair"`
	KeypairPath      string `toml:"keypair_path"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// TradingConfig holds screening thresholds and position sizing policy.
type TradingConfig struct {
	VolumeMinUSD        float64 `toml:"volume_min_usd"`
	LiquidityMinUSD     float64 `toml:"liquidity_min_usd"`
	TxCountMin          int64   `toml:"tx_count_min"`
	TrendMin            float64 `toml:"trend_min"`
	ScamRiskMax         float64 `toml:"scam_risk_max"`
	BuyAmountSOL        float64 `toml:"buy_amount_sol"`
	ProfitMultiplierMin float64 `toml:"profit_multiplier_min"`
	ProfitMultiplierMax float64 `toml:"profit_multiplier_max"`
	SellPercentage      float64 `toml:"sell_percentage"`
}

// QuotesConfig holds quote cache freshness parameters. TTL is the soft
// refresh age; MaxStale is the hard ceiling past which stale data is refused.
type QuotesConfig struct {
	TTL      duration `toml:"ttl"`
	MaxStale duration `toml:"max_stale"`
}

// DriverConfig holds evaluation loop parameters.
type DriverConfig struct {
	PollInterval   duration `toml:"poll_interval"`
	DiscoveryLimit int      `toml:"discovery_limit"`
	MaxConcurrent  int      `toml:"max_concurrent"`
	CycleLockTTL   duration `toml:"cycle_lock_ttl"`
}

// RetryConfig bounds retries of external calls. Backoff grows by Multiplier
// up to MaxBackoff.
type RetryConfig struct {
	MaxAttempts    int      `toml:"max_attempts"`
	InitialBackoff duration `toml:"initial_backoff"`
	MaxBackoff     duration `toml:"max_backoff"`
	Multiplier     float64  `toml:"multiplier"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters. When APIKey is empty the API
// accepts unauthenticated requests.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Gmgn: GmgnConfig{
			BaseURL:         "https://gmgn.ai",
			SolMint:         "So11111111111111111111111111111111111111112",
			SlippageBps:     50,
			RateLimitPerSec: 5,
		},
		Rugcheck: RugcheckConfig{
			BaseURL: "https://api.rugcheck.xyz/v1",
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "snipebot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "snipebot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Trading: TradingConfig{
			VolumeMinUSD:        1000,
			LiquidityMinUSD:     500,
			TxCountMin:          100,
			TrendMin:            0.5,
			ScamRiskMax:         0.5,
			BuyAmountSOL:        1.0,
			ProfitMultiplierMin: 2.0,
			ProfitMultiplierMax: 3.0,
			SellPercentage:      0.5,
		},
		Quotes: QuotesConfig{
			TTL:      duration{5 * time.Minute},
			MaxStale: duration{15 * time.Minute},
		},
		Driver: DriverConfig{
			PollInterval:   duration{60 * time.Second},
			DiscoveryLimit: 50,
			MaxConcurrent:  8,
			CycleLockTTL:   duration{55 * time.Second},
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: duration{500 * time.Millisecond},
			MaxBackoff:     duration{5 * time.Second},
			Multiplier:     2.0,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"trade.buy", "trade.partial_sell", "trade.full_sell", "invariant.violation", "reconcile.resolved"},
		},
		Mode:     "full",
		DryRun:   true,
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// GMGN endpoints
	if c.Gmgn.BaseURL == "" {
		errs = append(errs, "gmgn: base_url must not be empty")
	}
	if c.Gmgn.SolMint == "" {
		errs = append(errs, "gmgn: sol_mint must not be empty")
	}
	if c.Gmgn.SlippageBps < 0 || c.Gmgn.SlippageBps > 10_000 {
		errs = append(errs, fmt.Sprintf("gmgn: slippage_bps must be 0-10000, got %d", c.Gmgn.SlippageBps))
	}
	if c.Gmgn.RateLimitPerSec < 1 {
		errs = append(errs, "gmgn: rate_limit_per_sec must be >= 1")
	}

	// Rugcheck
	if c.Rugcheck.BaseURL == "" {
		errs = append(errs, "rugcheck: base_url must not be empty")
	}

	// Wallet, required for live trading; dry-run synthesizes fills locally.
	needsWallet := !c.DryRun && (c.Mode == "trade" || c.Mode == "full")
	if needsWallet && c.Wallet.PublicKey == "" {
		errs = append(errs, "wallet: public_key must be set for live mode "+c.Mode)
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3, only needed when archival is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Trading thresholds
	if c.Trading.VolumeMinUSD < 0 {
		errs = append(errs, "trading: volume_min_usd must be >= 0")
	}
	if c.Trading.LiquidityMinUSD < 0 {
		errs = append(errs, "trading: liquidity_min_usd must be >= 0")
	}
	if c.Trading.TxCountMin < 0 {
		errs = append(errs, "trading: tx_count_min must be >= 0")
	}
	if c.Trading.TrendMin < 0 || c.Trading.TrendMin > 1 {
		errs = append(errs, fmt.Sprintf("trading: trend_min must be 0-1, got %g", c.Trading.TrendMin))
	}
	if c.Trading.ScamRiskMax < 0 || c.Trading.ScamRiskMax > 1 {
		errs = append(errs, fmt.Sprintf("trading: scam_risk_max must be 0-1, got %g", c.Trading.ScamRiskMax))
	}
	if c.Trading.BuyAmountSOL <= 0 {
		errs = append(errs, "trading: buy_amount_sol must be > 0")
	}
	if c.Trading.ProfitMultiplierMin <= 1 {
		errs = append(errs, "trading: profit_multiplier_min must be > 1")
	}
	if c.Trading.ProfitMultiplierMax <= c.Trading.ProfitMultiplierMin {
		errs = append(errs, "trading: profit_multiplier_max must exceed profit_multiplier_min")
	}
	if c.Trading.SellPercentage <= 0 || c.Trading.SellPercentage >= 1 {
		errs = append(errs, fmt.Sprintf("trading: sell_percentage must be in (0, 1), got %g", c.Trading.SellPercentage))
	}

	// Quotes
	if c.Quotes.TTL.Duration <= 0 {
		errs = append(errs, "quotes: ttl must be > 0")
	}
	if c.Quotes.MaxStale.Duration < c.Quotes.TTL.Duration {
		errs = append(errs, "quotes: max_stale must be >= ttl")
	}

	// Driver
	if c.Driver.PollInterval.Duration <= 0 {
		errs = append(errs, "driver: poll_interval must be > 0")
	}
	if c.Driver.DiscoveryLimit < 1 {
		errs = append(errs, "driver: discovery_limit must be >= 1")
	}
	if c.Driver.MaxConcurrent < 1 {
		errs = append(errs, "driver: max_concurrent must be >= 1")
	}
	if c.Driver.CycleLockTTL.Duration <= 0 {
		errs = append(errs, "driver: cycle_lock_ttl must be > 0")
	}

	// Retry
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry: max_attempts must be >= 1")
	}
	if c.Retry.InitialBackoff.Duration <= 0 {
		errs = append(errs, "retry: initial_backoff must be > 0")
	}
	if c.Retry.MaxBackoff.Duration < c.Retry.InitialBackoff.Duration {
		errs = append(errs, "retry: max_backoff must be >= initial_backoff")
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, "retry: multiplier must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
