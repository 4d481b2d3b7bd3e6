package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"coursedash.app/cloud/internal/auth"
	"coursedash.app/cloud/internal/cache"
	"coursedash.app/cloud/internal/config"
	"coursedash.app/cloud/internal/dashboard"
	"coursedash.app/cloud/internal/email"
	"coursedash.app/cloud/internal/handlers"
	"coursedash.app/cloud/internal/logger"
	"coursedash.app/cloud/internal/payments"
	"coursedash.app/cloud/internal/ratelimit"
	"coursedash.app/cloud/internal/storage"
	"coursedash.app/cloud/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %s", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	v := version.Load("VERSION")

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.SentryEnv,
		Release:          version.Release("coursedash-cloud", v),
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	server, cleanup, err := newApp(cfg, v)
	if err != nil {
		logger.Error("Failed to start", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
	defer cleanup()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Course dashboard API starting", map[string]interface{}{
			"version": v,
			"port":    cfg.Port,
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", map[string]interface{}{
				"error": err.Error(),
			})
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// newApp wires storage, cache, payments and mail into the HTTP server. The
// returned cleanup releases everything newApp opened.
func newApp(cfg *config.Config, v string) (*handlers.Server, func(), error) {
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}

	var responseCache cache.Cache = cache.Noop{}
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr)
		if err != nil {
			logger.Warn("Redis unavailable, dashboard cache disabled", map[string]interface{}{
				"redis_addr": cfg.RedisAddr,
				"error":      err.Error(),
			})
		} else {
			responseCache = redisCache
		}
	}

	var mailer email.Sender = email.Discard{}
	if cfg.EmailEnabled() {
		mailer = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom)
	}

	var limiter *ratelimit.FixedWindow
	sweepDone := make(chan struct{})
	if cfg.CheckoutRateLimit > 0 {
		limiter = ratelimit.New(cfg.CheckoutRateLimit, cfg.CheckoutRateWindow)
		go sweep(limiter, cfg.CheckoutRateWindow, sweepDone)
	}

	opts := handlers.Options{
		Store:          store,
		Dashboard:      dashboard.NewService(store, responseCache, dashboard.NewMemo(cfg.MemoCapacity), cfg.CacheTTL),
		Payments:       payments.NewStripeProvider(cfg.StripeSecret, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL),
		Mailer:         mailer,
		Auth:           auth.NewMiddleware(cfg.JWTSecret),
		WebhookSecret:  cfg.StripeWebhookSecret,
		AllowedOrigins: cfg.AllowedOrigin,
		Version:        v,
	}
	if limiter != nil {
		opts.CheckoutLimiter = limiter
		opts.CheckoutWindow = cfg.CheckoutRateWindow
	}

	cleanup := func() {
		close(sweepDone)
		if err := responseCache.Close(); err != nil {
			logger.Warn("Failed to close cache", map[string]interface{}{"error": err.Error()})
		}
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close storage", map[string]interface{}{"error": err.Error()})
		}
	}

	return handlers.NewServer(opts), cleanup, nil
}

func sweep(l *ratelimit.FixedWindow, every time.Duration, done <-chan struct{}) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				logger.Debug("Swept rate limit windows", map[string]interface{}{"removed": n})
			}
		case <-done:
			return
		}
	}
}
