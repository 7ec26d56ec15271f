package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hisab/internal/amqp"
	"hisab/internal/auth"
	"hisab/internal/cache"
	"hisab/internal/cli"
	"hisab/internal/config"
	"hisab/internal/events"
	apphttp "hisab/internal/http"
	"hisab/internal/ledger"
	"hisab/internal/log"
	"hisab/internal/views"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).Validate)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	res := cli.OpenStore(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close data backend", log.FieldError, err)
		}
	}()

	bus := events.NewBus()
	authSvc := auth.NewService(res.Store, auth.Options{
		SessionTTL:   cfg.SessionTTL,
		CookieSecure: cfg.SessionCookieSecure,
	})
	l := ledger.New(res.Store, authSvc, bus, ledger.Options{CacheTTL: cfg.CacheTTL})
	registry := views.NewRegistry(l, cfg.SessionTTL)

	caches := cache.NewManager()
	caches.Register("sessions", authSvc.Sessions())
	caches.Register("stats", l.StatsCache())
	caches.Register("pages", registry.Pages())
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	// Ledger events go to the broker only when one is configured; the web
	// server works the same without it.
	var forwarder *amqp.Forwarder
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqp.Options{Prefetch: cfg.AMQPPrefetch})
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events will not be mirrored", log.FieldError, err)
		} else {
			defer client.Close()
			forwarder = amqp.NewForwarder(client, bus, 0)
			logger.Info("Forwarding ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:             l,
		Auth:               authSvc,
		Views:              registry,
		Store:              res.Store,
		Logger:             logger.WithComponent(log.ComponentHTTP),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ForceHSTS:          cfg.SessionCookieSecure,
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting hisab server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	if forwarder != nil {
		if err := forwarder.Close(shutdownCtx); err != nil {
			logger.Warn("Ledger events still queued at shutdown", log.FieldError, err)
		}
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
