package config

import (
	"log/slog"
	"net/url"
	"regexp"
)

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log. Plain secrets
// become "***"; connection strings keep their host and database so a log line
// still shows where the service points.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	out.Postgres.DSN = redactDSN(cfg.Postgres.DSN)
	out.Notify.DiscordWebhookURL = redactURLPath(cfg.Notify.DiscordWebhookURL)
	for _, s := range []*string{
		&out.Postgres.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Server.APIKey,
		&out.Notify.TelegramToken,
	} {
		if *s != "" {
			*s = redacted
		}
	}

	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	return out
}

// LogValue renders the redacted settings an operator needs when reading
// startup logs.
func (c Config) LogValue() slog.Value {
	r := RedactedConfig(&c)
	attrs := []slog.Attr{
		slog.String("mode", r.Mode),
		slog.Group("postgres",
			slog.String("target", postgresTarget(r.Postgres)),
			slog.Bool("migrations", r.Postgres.RunMigrations),
		),
		slog.Group("redis",
			slog.String("addr", r.Redis.Addr),
			slog.Int("db", r.Redis.DB),
			slog.Duration("result_ttl", r.Redis.ResultTTL.Duration),
		),
		slog.Group("optimizer",
			slog.String("engine", r.Optimizer.Engine),
			slog.Int64("direct_threshold", r.Optimizer.DirectThreshold),
			slog.Int64("max_combinations", r.Optimizer.MaxCombinations),
		),
		slog.Group("notify",
			slog.Bool("telegram", r.Notify.TelegramToken != ""),
			slog.String("discord", r.Notify.DiscordWebhookURL),
			slog.Any("events", r.Notify.Events),
		),
	}
	if r.S3.Enabled {
		attrs = append(attrs, slog.Group("s3",
			slog.String("endpoint", r.S3.Endpoint),
			slog.String("bucket", r.S3.Bucket),
			slog.String("report_prefix", r.S3.ReportPrefix),
		))
	}
	if r.Mode != "worker" {
		attrs = append(attrs, slog.Group("server",
			slog.Int("port", r.Server.Port),
			slog.Bool("auth", r.Server.APIKey != ""),
			slog.Int("rate_limit", r.Server.RateLimit),
		))
	}
	if r.Mode != "server" {
		attrs = append(attrs, slog.Group("worker",
			slog.String("group", r.Worker.Group),
			slog.Int("concurrency", r.Worker.Concurrency),
		))
	}
	return slog.GroupValue(attrs...)
}

func postgresTarget(p PostgresConfig) string {
	if p.DSN != "" {
		return p.DSN
	}
	return (&url.URL{Scheme: "postgres", Host: p.Host, Path: "/" + p.Database}).String()
}

var dsnPassword = regexp.MustCompile(`(?i)(password=)('[^']*'|\S+)`)

// redactDSN hides the password of a URL or key=value connection string.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
		q := u.Query()
		if q.Has("password") {
			q.Set("password", "xxxxx")
			u.RawQuery = q.Encode()
		}
		return u.String()
	}
	return dsnPassword.ReplaceAllString(dsn, "${1}"+redacted)
}

// redactURLPath keeps scheme and host; webhook URLs carry their token in the
// path.
func redactURLPath(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}
	return u.Scheme + "://" + u.Host + "/" + redacted
}
