package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"financeboard/internal/amqp"
	"financeboard/internal/backend"
	"financeboard/internal/budget"
	"financeboard/internal/cache"
	"financeboard/internal/config"
	"financeboard/internal/core"
	"financeboard/internal/ingest"
	"financeboard/internal/log"
	"financeboard/internal/services"
	"financeboard/internal/sheets"
	"financeboard/internal/storage"
)

// Runtime is the assembled application: persistence, extract source, budget
// core and refresh pipeline.
type Runtime struct {
	Config     *config.Config
	Logger     *log.Logger
	Repository storage.Repository
	Source     sheets.ExtractSource
	Budget     *budget.Service
	Ingestor   *ingest.Ingestor
	Refresh    *services.RefreshService
	Caches     *cache.Manager
	// Broker is nil until ConnectBroker succeeds.
	Broker *amqp.Client

	cleanup backend.CleanupFunc
}

// Options override pieces of the runtime, mostly for tests.
type Options struct {
	Factory backend.Factory
	Now     func() time.Time
}

// NewRuntime wires everything described by cfg.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *log.Logger, opts Options) (*Runtime, error) {
	if logger == nil {
		logger = log.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	factory := opts.Factory
	if factory == nil {
		factory = backend.NewFactory(logger)
	}

	defaults, err := budget.LoadDefaults(cfg.BudgetDefaultsFile)
	if err != nil {
		return nil, err
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	maxTotal, err := cfg.MaxPercent()
	if err != nil {
		return nil, err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	bcfg.Now = now
	res, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	svc := budget.NewService(budget.Options{
		Settings:        res.Repository,
		Rollups:         res.Repository,
		Defaults:        defaults,
		MaxPercentTotal: maxTotal,
		Retention:       cfg.RollupRetentionDays,
		Now:             now,
		Logger:          logger,
	})

	in := ingest.New(ingest.Config{
		Columns: ingest.Columns{
			Date:        cfg.DateColumns,
			Category:    cfg.CategoryColumns,
			Amount:      cfg.AmountColumns,
			Description: cfg.DescriptionColumns,
		},
		DateLayouts: cfg.DateLayouts,
		Categories:  svc.Categories(),
		Normalizer:  core.NewNormalizer(cfg.CurrencySymbols...),
		Now:         now,
		Logger:      logger,
	})

	caches := cache.NewManager(logger)
	if res.Cacheable != nil {
		caches.Register(res.Cacheable)
	}

	logger.Info("Runtime ready",
		log.FieldBackend, cfg.DataBackend,
		log.FieldSource, cfg.ExtractSource,
		"categories", len(svc.Categories()),
	)

	return &Runtime{
		Config:     cfg,
		Logger:     logger,
		Repository: res.Repository,
		Source:     res.Source,
		Budget:     svc,
		Ingestor:   in,
		Refresh:    services.NewRefreshService(res.Source, in, svc.Rollups, now, logger),
		Caches:     caches,
		cleanup:    res.Cleanup,
	}, nil
}

// ConnectBroker dials AMQP when configured. It is a no-op otherwise.
func (r *Runtime) ConnectBroker() error {
	if !r.Config.UsesBroker() || r.Broker != nil {
		return nil
	}
	client, err := amqp.NewClient(r.Config.AMQPURL, r.Config.AMQPExchange, r.Config.AMQPQueue, r.Logger)
	if err != nil {
		return fmt.Errorf("connect AMQP: %w", err)
	}
	r.Broker = client
	r.Logger.Info("Connected to AMQP", "exchange", r.Config.AMQPExchange, "queue", r.Config.AMQPQueue)
	return nil
}

// Close stops cache cleanup and releases the broker and the repository.
func (r *Runtime) Close() error {
	r.Caches.Stop()
	var errs []error
	if r.Broker != nil {
		errs = append(errs, r.Broker.Close())
	}
	if r.cleanup != nil {
		errs = append(errs, r.cleanup())
	}
	return errors.Join(errs...)
}
