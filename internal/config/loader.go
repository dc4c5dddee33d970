package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SNIPEBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SNIPEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── GMGN ──
	setStr(&cfg.Gmgn.BaseURL, "SNIPEBOT_GMGN_BASE_URL")
	setStr(&cfg.Gmgn.SolMint, "SNIPEBOT_GMGN_SOL_MINT")
	setInt(&cfg.Gmgn.SlippageBps, "SNIPEBOT_GMGN_SLIPPAGE_BPS")
	setInt(&cfg.Gmgn.RateLimitPerSec, "SNIPEBOT_GMGN_RATE_LIMIT_PER_SEC")

	// ── Rugcheck ──
	setStr(&cfg.Rugcheck.BaseURL, "SNIPEBOT_RUGCHECK_BASE_URL")
	setStr(&cfg.Rugcheck.Token, "SNIPEBOT_RUGCHECK_TOKEN")

	// ── Wallet ──
	setStr(&cfg.Wallet.PublicKey, "SNIPEBOT_WALLET_PUBLIC_KEY")
	setStr(&cfg.Wallet.Keypair, "SNIPEBOT_WALLET_KEYPAIR")
	setStr(&cfg.Wallet.KeypairPath, "SNIPEBOT_WALLET_KEYPAIR_PATH")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SNIPEBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SNIPEBOT_WALLET_KEY_PASSWORD")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SNIPEBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "SNIPEBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SNIPEBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SNIPEBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SNIPEBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SNIPEBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SNIPEBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SNIPEBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SNIPEBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SNIPEBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SNIPEBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SNIPEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SNIPEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SNIPEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SNIPEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SNIPEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SNIPEBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SNIPEBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SNIPEBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "SNIPEBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SNIPEBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SNIPEBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SNIPEBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SNIPEBOT_S3_FORCE_PATH_STYLE")

	// ── Trading ──
	setFloat64(&cfg.Trading.VolumeMinUSD, "SNIPEBOT_TRADING_VOLUME_MIN_USD")
	setFloat64(&cfg.Trading.LiquidityMinUSD, "SNIPEBOT_TRADING_LIQUIDITY_MIN_USD")
	setInt64(&cfg.Trading.TxCountMin, "SNIPEBOT_TRADING_TX_COUNT_MIN")
	setFloat64(&cfg.Trading.TrendMin, "SNIPEBOT_TRADING_TREND_MIN")
	setFloat64(&cfg.Trading.ScamRiskMax, "SNIPEBOT_TRADING_SCAM_RISK_MAX")
	setFloat64(&cfg.Trading.BuyAmountSOL, "SNIPEBOT_TRADING_BUY_AMOUNT_SOL")
	setFloat64(&cfg.Trading.ProfitMultiplierMin, "SNIPEBOT_TRADING_PROFIT_MULTIPLIER_MIN")
	setFloat64(&cfg.Trading.ProfitMultiplierMax, "SNIPEBOT_TRADING_PROFIT_MULTIPLIER_MAX")
	setFloat64(&cfg.Trading.SellPercentage, "SNIPEBOT_TRADING_SELL_PERCENTAGE")

	// ── Quotes ──
	setDuration(&cfg.Quotes.TTL, "SNIPEBOT_QUOTES_TTL")
	setDuration(&cfg.Quotes.MaxStale, "SNIPEBOT_QUOTES_MAX_STALE")

	// ── Driver ──
	setDuration(&cfg.Driver.PollInterval, "SNIPEBOT_DRIVER_POLL_INTERVAL")
	setInt(&cfg.Driver.DiscoveryLimit, "SNIPEBOT_DRIVER_DISCOVERY_LIMIT")
	setInt(&cfg.Driver.MaxConcurrent, "SNIPEBOT_DRIVER_MAX_CONCURRENT")
	setDuration(&cfg.Driver.CycleLockTTL, "SNIPEBOT_DRIVER_CYCLE_LOCK_TTL")

	// ── Retry ──
	setInt(&cfg.Retry.MaxAttempts, "SNIPEBOT_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.Retry.InitialBackoff, "SNIPEBOT_RETRY_INITIAL_BACKOFF")
	setDuration(&cfg.Retry.MaxBackoff, "SNIPEBOT_RETRY_MAX_BACKOFF")
	setFloat64(&cfg.Retry.Multiplier, "SNIPEBOT_RETRY_MULTIPLIER")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SNIPEBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "SNIPEBOT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "SNIPEBOT_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SNIPEBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SNIPEBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SNIPEBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SNIPEBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SNIPEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SNIPEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SNIPEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SNIPEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SNIPEBOT_MODE")
	setBool(&cfg.DryRun, "SNIPEBOT_DRY_RUN")
	setStr(&cfg.LogLevel, "SNIPEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
