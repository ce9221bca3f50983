package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"financeboard/internal/cli"
	apphttp "financeboard/internal/http"
	"financeboard/internal/log"
	"financeboard/internal/worker"
)

func main() {
	cfg, logger := cli.MustLoadConfig()
	logger = logger.WithComponent(log.ComponentApp)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	rt, err := cli.NewRuntime(ctx, cfg, logger, cli.Options{})
	if err != nil {
		cli.Fatal(logger, "Failed to initialize runtime", err)
	}
	rt.Caches.StartCleanup(5 * time.Minute)

	opts := apphttp.Options{
		Addr:               net.JoinHostPort("", cfg.Port),
		Budget:             rt.Budget,
		Refresher:          rt.Refresh,
		Logger:             logger,
		Currency:           cfg.DisplayCurrency,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		PollInterval:       cfg.RefreshInterval,
	}

	// Without a broker the scheduled refresh runs here; with one it belongs
	// to cmd/refresh-worker.
	var scheduler *worker.RefreshWorker
	if err := rt.ConnectBroker(); err != nil {
		logger.Warn("AMQP unavailable, refreshing in-process", log.FieldError, err.Error())
	}
	if rt.Broker != nil {
		opts.Publisher = rt.Broker
	} else {
		scheduler = worker.NewRefreshWorker(rt.Refresh, cfg.RefreshInterval, logger)
		if err := scheduler.Start(ctx); err != nil {
			cli.Fatal(logger, "Failed to start refresh worker", err)
		}
	}

	srv, err := apphttp.NewServer(opts)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize HTTP server", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting dashboard",
			"addr", srv.Addr,
			log.FieldBackend, cfg.DataBackend,
			log.FieldSource, cfg.ExtractSource,
			"broker", rt.Broker != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err.Error())
		}
	}

	steps := []func(context.Context) error{srv.Shutdown}
	if scheduler != nil {
		steps = append(steps, scheduler.Stop)
	}
	steps = append(steps, func(context.Context) error { return rt.Close() })
	cli.RunShutdown(logger, 30*time.Second, steps...)
}
