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
// built-in defaults, applies BASKETOPT_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BASKETOPT_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BASKETOPT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "BASKETOPT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BASKETOPT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BASKETOPT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BASKETOPT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BASKETOPT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BASKETOPT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BASKETOPT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BASKETOPT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BASKETOPT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BASKETOPT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BASKETOPT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BASKETOPT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BASKETOPT_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "BASKETOPT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.ResultTTL, "BASKETOPT_REDIS_RESULT_TTL")
	setDuration(&cfg.Redis.LockTTL, "BASKETOPT_REDIS_LOCK_TTL")
	setInt64(&cfg.Redis.StreamMaxLen, "BASKETOPT_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BASKETOPT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BASKETOPT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BASKETOPT_S3_REGION")
	setStr(&cfg.S3.Bucket, "BASKETOPT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BASKETOPT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BASKETOPT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BASKETOPT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BASKETOPT_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.ReportPrefix, "BASKETOPT_S3_REPORT_PREFIX")

	// ── Optimizer ──
	setStr(&cfg.Optimizer.Engine, "BASKETOPT_OPTIMIZER_ENGINE")
	setInt64(&cfg.Optimizer.DirectThreshold, "BASKETOPT_OPTIMIZER_DIRECT_THRESHOLD")
	setInt64(&cfg.Optimizer.MaxCombinations, "BASKETOPT_OPTIMIZER_MAX_COMBINATIONS")

	// ── Worker ──
	setInt(&cfg.Worker.Concurrency, "BASKETOPT_WORKER_CONCURRENCY")
	setInt(&cfg.Worker.BatchSize, "BASKETOPT_WORKER_BATCH_SIZE")
	setDuration(&cfg.Worker.PollInterval, "BASKETOPT_WORKER_POLL_INTERVAL")
	setDuration(&cfg.Worker.RunTimeout, "BASKETOPT_WORKER_RUN_TIMEOUT")
	setStr(&cfg.Worker.Group, "BASKETOPT_WORKER_GROUP")
	setStr(&cfg.Worker.Consumer, "BASKETOPT_WORKER_CONSUMER")

	// ── Server ──
	setInt(&cfg.Server.Port, "BASKETOPT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BASKETOPT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BASKETOPT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "BASKETOPT_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "BASKETOPT_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BASKETOPT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BASKETOPT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BASKETOPT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BASKETOPT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BASKETOPT_MODE")
	setStr(&cfg.LogLevel, "BASKETOPT_LOG_LEVEL")
}

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
