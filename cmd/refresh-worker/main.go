package main

import (
	"context"
	"errors"
	"time"

	"financeboard/internal/cli"
	"financeboard/internal/log"
	"financeboard/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, logger := cli.MustLoadConfig()
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting refresh worker")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	rt, err := cli.NewRuntime(ctx, cfg, logger, cli.Options{})
	if err != nil {
		cli.Fatal(logger, "Failed to initialize runtime", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Failed to release runtime", log.FieldError, err.Error())
		}
	}()
	rt.Caches.StartCleanup(5 * time.Minute)

	if err := rt.ConnectBroker(); err != nil {
		cli.Fatal(logger, "Failed to connect to AMQP", err)
	}

	w := worker.NewRefreshWorker(rt.Refresh, cfg.RefreshInterval, logger)
	g, gctx := errgroup.WithContext(ctx)
	if rt.Broker != nil {
		g.Go(func() error {
			return rt.Broker.ConsumeRefresh(gctx, w.HandleRefreshRequest)
		})
	} else {
		logger.Info("No AMQP_URL configured, running the schedule only")
	}
	g.Go(func() error {
		return w.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Refresh worker stopped", log.FieldError, err.Error())
		return
	}
	logger.Info("Refresh worker stopped")
}
