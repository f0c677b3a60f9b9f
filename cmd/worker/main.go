package main

import (
	"context"
	"errors"
	"net/http"
	"time"
	_ "time/tzdata" // mail timezone on minimal images

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"meetapp/internal/config"
	"meetapp/internal/db"
	"meetapp/internal/mailer"
	"meetapp/internal/metrics"
	"meetapp/internal/notify"
	"meetapp/internal/worker"
	"meetapp/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger, err := zap.NewProduction()
	if cfg.Development() {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync() //nolint:errcheck

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	// Either process may start first; migrations take their own lock.
	if err := db.Migrate(conn); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	store := db.NewStore(conn)
	reportDeadLetters(store, logger)

	loc, err := time.LoadLocation(cfg.MailTimezone)
	if err != nil {
		logger.Warn("unknown mail timezone, using UTC", zap.String("timezone", cfg.MailTimezone), zap.Error(err))
		loc = time.UTC
	}
	renderer, err := mailer.NewRenderer(cfg.DefaultLocale, loc)
	if err != nil {
		logger.Fatal("failed to build mail renderer", zap.Error(err))
	}

	var sender mailer.Sender
	switch cfg.MailDriver {
	case "log":
		sender = mailer.NewLogSender(logger)
	default:
		sender = mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom, logger)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	go serveMetrics(cfg.MetricsAddr, reg, logger)

	w := notify.NewWorker(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		notify.WorkerConfig{
			Concurrency: cfg.WorkerConcurrency,
			Retry: notify.RetryPolicy{
				Base: cfg.NotifyRetryBase,
				Max:  cfg.NotifyRetryMax,
			},
		},
		store,
		notify.FailureHooks{OnRetry: m.ObserveRetry, OnDeadLetter: m.ObserveDeadLetter},
		logger,
	)

	taskHandler := worker.NewTaskHandler(renderer, sender, logger, m.ObserveSent)
	w.HandleFunc(tasks.TypeSubscriptionMail, taskHandler.HandleSubscriptionMailTask)

	logger.Info("worker starting", zap.String("commit", CommitSHA))
	if err := w.Run(); err != nil {
		logger.Fatal("could not run worker", zap.Error(err))
	}
}

func reportDeadLetters(store *db.Store, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	letters, err := store.ListDeadLetters(ctx, 20)
	if err != nil {
		logger.Warn("could not list dead letters", zap.Error(err))
		return
	}
	for _, dl := range letters {
		logger.Warn("dead-lettered notification awaiting review",
			zap.String("task_id", dl.TaskID),
			zap.String("error", dl.Error),
			zap.Time("at", dl.CreatedAt))
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}
