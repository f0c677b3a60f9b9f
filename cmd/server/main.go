package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"meetapp/internal/admission"
	"meetapp/internal/config"
	"meetapp/internal/db"
	"meetapp/internal/handlers"
	"meetapp/internal/metrics"
	"meetapp/internal/middleware"
	"meetapp/internal/notify"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger := newLogger(cfg)
	defer logger.Sync() //nolint:errcheck

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.Migrate(conn); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database ready")

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := db.NewStore(conn)

	queue := notify.NewQueue(client, notify.QueueConfig{
		Attempts: cfg.EnqueueAttempts,
		Delay:    cfg.EnqueueDelay,
		MaxRetry: cfg.NotifyMaxRetry,
		Timeout:  cfg.NotifyTimeout,
	}, logger, m.ObserveEnqueueFailure)

	engine := admission.NewEngine(store, store, store, queue, logger,
		admission.WithOutcomeHook(m.ObserveAdmission))

	h := handlers.New(engine, store, logger)
	limiter := middleware.NewRateLimiterMiddleware(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, logger)
	router := newRouter(h, middleware.AuthMiddleware([]byte(cfg.JWTSecret), logger), limiter, reg, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("commit", CommitSHA))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newRouter(h *handlers.Handlers, auth func(http.Handler) http.Handler, limiter *middleware.RateLimiterMiddleware, reg prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(logger))

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/subscriptions").Subrouter()
	api.Use(auth)
	api.HandleFunc("", h.GetSubscriptions).Methods(http.MethodGet)
	api.Handle("", limiter.Middleware(http.HandlerFunc(h.PostSubscription))).Methods(http.MethodPost)

	return r
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Development() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewExample()
	}
	return logger
}
