package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pders01/research-collector/internal/archive"
	"github.com/pders01/research-collector/internal/catalog"
	"github.com/pders01/research-collector/internal/config"
	"github.com/pders01/research-collector/internal/logging"
	"github.com/pders01/research-collector/internal/models"
	"github.com/pders01/research-collector/internal/provider"
	"github.com/pders01/research-collector/internal/research"
	"github.com/pders01/research-collector/internal/store"
	"github.com/spf13/cobra"
)

const preflightTimeout = 10 * time.Second

// newCompleter builds the configured backend. Tests replace it.
var newCompleter = func(cfg provider.Config, opts ...provider.Option) (provider.Completer, error) {
	return provider.New(cfg, opts...)
}

type deps struct {
	logger    *slog.Logger
	store     *store.Store
	topics    []models.Topic
	completer provider.Completer
}

func openStore() (*store.Store, error) {
	objects, err := store.NewFSStore(config.GetStorageRoot())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store.New(objects), nil
}

// buildDeps wires logger, storage and catalog, plus the provider when
// withProvider is set
func buildDeps(cmd *cobra.Command, withProvider bool) (*deps, error) {
	logger, err := logging.New(config.GetLogLevel(), config.GetLogFormat(), cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	st, err := openStore()
	if err != nil {
		return nil, err
	}

	topics, err := catalog.Load(config.GetCatalogPath())
	if err != nil {
		return nil, err
	}

	d := &deps{logger: logger, store: st, topics: topics}
	if !withProvider {
		return d, nil
	}

	d.completer, err = newCompleter(config.GetProviderConfig(),
		provider.WithTimeout(config.GetProviderTimeout()),
		provider.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), preflightTimeout)
	defer cancel()
	if err := provider.Preflight(ctx, d.completer,
		config.GetScanModel(), config.GetResearchModel(), config.GetSynthesisModel()); err != nil {
		return nil, fmt.Errorf("provider not ready: %w", err)
	}
	return d, nil
}

func researchOptions() research.Options {
	return research.Options{
		ScanModel:         config.GetScanModel(),
		ResearchModel:     config.GetResearchModel(),
		ScanMaxTokens:     config.GetScanMaxTokens(),
		ResearchMaxTokens: config.GetResearchMaxTokens(),
		CycleSize:         config.GetCycleSize(),
		Timeout:           config.GetResearchTimeout(),
		WatchlistLimit:    config.GetWatchlistLimit(),
		CheckVersion:      config.GetCheckVersion(),
		Pricing:           config.GetPricing(),
		Throttle:          config.GetThrottleOptions(),
	}
}

func archiveOptions() archive.Options {
	opts := archive.DefaultOptions()
	opts.SynthesisModel = config.GetSynthesisModel()
	opts.SynthesisMaxTokens = config.GetSynthesisMaxTokens()
	opts.HistoryMaxTokens = config.GetHistoryMaxTokens()
	opts.RetentionDays = config.GetRetentionDays()
	opts.HistoryMonths = config.GetHistoryMonths()
	opts.DedupeThreshold = config.GetDedupeThreshold()
	opts.Throttle = config.GetThrottleOptions()
	return opts
}

func (d *deps) orchestrator(opts research.Options) *research.Orchestrator {
	return research.New(d.completer, d.store, d.topics, opts,
		research.WithLogger(d.logger),
		research.WithArchivalCheck(d.engine().Pending),
	)
}

func (d *deps) engine() *archive.Engine {
	return archive.New(d.completer, d.store, d.topics, archiveOptions(), archive.WithLogger(d.logger))
}
