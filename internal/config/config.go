package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the server and worker
// processes. Only DATABASE_URL and JWT_SECRET are required.
type Config struct {
	Env             string        `env:"APP_ENV" envDefault:"production"`
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MetricsAddr     string        `env:"METRICS_ADDR" envDefault:":9091"`

	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"2"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"5"`

	// Queue-backend acceptance retries on the request path.
	EnqueueAttempts uint          `env:"ENQUEUE_ATTEMPTS" envDefault:"3"`
	EnqueueDelay    time.Duration `env:"ENQUEUE_DELAY" envDefault:"100ms"`

	// Delivery retries in the worker. NOTIFY_MAX_RETRY and NOTIFY_TIMEOUT are
	// stamped on each job by the server at enqueue time.
	NotifyMaxRetry    int           `env:"NOTIFY_MAX_RETRY" envDefault:"5"`
	NotifyRetryBase   time.Duration `env:"NOTIFY_RETRY_BASE" envDefault:"30s"`
	NotifyRetryMax    time.Duration `env:"NOTIFY_RETRY_MAX" envDefault:"1h"`
	NotifyTimeout     time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"30s"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"1"`

	MailDriver    string `env:"MAIL_DRIVER" envDefault:"smtp"`
	SMTPHost      string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername  string `env:"SMTP_USERNAME"`
	SMTPPassword  string `env:"SMTP_PASSWORD"`
	MailFrom      string `env:"MAIL_FROM" envDefault:"Equipe MeetApp <noreply@meetapp.com>"`
	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"pt-BR"`
	MailTimezone  string `env:"MAIL_TIMEZONE" envDefault:"America/Sao_Paulo"`
}

// Load reads an optional .env file and parses the environment into a Config.
// A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MailDriver != "smtp" && cfg.MailDriver != "log" {
		return nil, fmt.Errorf("MAIL_DRIVER must be smtp or log, got %q", cfg.MailDriver)
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}
	return cfg, nil
}

// Development reports whether the process runs with developer defaults.
func (c *Config) Development() bool {
	return c.Env == "development"
}
