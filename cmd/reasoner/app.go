package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/builder"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/config"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/experience"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/metrics"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/oracle"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/retrieval"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/trainer"
)

// #region app

// app holds the components shared by every subcommand.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    experience.Store
	oracle   oracle.Oracle
	recorder *metrics.Recorder
	registry *prometheus.Registry
	sink     metrics.Sink
	closers  []func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		recorder: metrics.NewRecorder(),
		registry: prometheus.NewRegistry(),
	}

	promCfg := metrics.DefaultPrometheusConfig()
	promCfg.Registry = a.registry
	prom, err := metrics.NewPrometheus(promCfg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	a.sink = metrics.Multi(a.recorder, prom)

	store, err := experience.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	if cfg.Oracle.Address != "" {
		client, err := oracle.NewGRPCClient(cfg.Oracle.Address)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("oracle client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.oracle = oracle.NewLimited(client, cfg.Oracle.RateLimit, cfg.Oracle.Burst)
		logger.Info("oracle configured", "address", cfg.Oracle.Address, "rate_limit", cfg.Oracle.RateLimit)
	} else {
		logger.Info("no oracle configured, every step runs internally")
	}
	return a, nil
}

// builder assembles the chain builder from config.
func (a *app) builder() *builder.Builder {
	opts := []builder.Option{builder.WithSink(a.sink), builder.WithLogger(a.logger)}
	if a.oracle != nil {
		opts = append(opts, builder.WithOracle(a.oracle))
	}
	if a.cfg.Retrieval.Enabled {
		opts = append(opts, builder.WithContextProvider(retrieval.NewRetriever(a.store, a.cfg.RetrievalConfig())))
	}
	return builder.New(a.cfg.Builder(), opts...)
}

// provenance returns the decision log when enabled. It shares the SQLite store's database.
func (a *app) provenance() (trainer.Provenance, error) {
	if !a.cfg.Store.Provenance {
		return nil, nil
	}
	sqlite, ok := a.store.(*experience.SQLiteStore)
	if !ok {
		return nil, fmt.Errorf("provenance requires the sqlite store, got %q", a.cfg.Store.Driver)
	}
	p, err := logging.NewSQLProvenance(sqlite.DB())
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Close releases every opened resource in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// #endregion app
