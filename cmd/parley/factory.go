package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/parleyhq/parley/internal/capability"
	"github.com/parleyhq/parley/internal/capability/builtin"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/intent"
	"github.com/parleyhq/parley/internal/llm"
	"github.com/parleyhq/parley/internal/orchestrator"
	"github.com/parleyhq/parley/internal/resolver"
	"github.com/parleyhq/parley/internal/state"
)

// runtime bundles everything a command needs to drive turns.
type runtime struct {
	cfg    *config.Config
	db     *state.DB
	client *llm.Client
	runner *orchestrator.TurnRunner
	logger *slog.Logger
}

// clientConfig maps the anthropic section of the config onto the LLM
// client's settings.
func clientConfig(cfg *config.Config) llm.ClientConfig {
	return llm.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
}

// buildRuntime wires the full pipeline from configuration: store, LLM
// client, intent catalog, capabilities, resolver, and turn runner.
// Without an API key the resolver degrades to its rule tier and chat
// replies become canned, but the pipeline stays functional.
func buildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	if cfg.Store.SeedDemoData {
		if err := db.SeedDemoMetrics(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed metrics: %w", err)
		}
	}

	var client *llm.Client
	if cfg.Anthropic.APIKey != "" || cfg.Anthropic.UseAWSBedrock {
		client, err = llm.NewClient(clientConfig(cfg))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("completion client: %w", err)
		}
	} else {
		logger.Warn("no completion credentials; resolver runs rule tier only")
	}

	catalog := intent.Default()
	if cfg.Intents.OverlayPath != "" {
		if err := catalog.LoadOverlay(cfg.Intents.OverlayPath); err != nil {
			db.Close()
			return nil, fmt.Errorf("intent overlay: %w", err)
		}
	}

	registry := capability.NewRegistry()
	var completer builtin.Completer
	if client != nil {
		completer = client
	}
	builtin.RegisterAll(registry, db, completer)

	var svc resolver.CompletionService
	if client != nil {
		svc = client
	}
	res := resolver.New(catalog, svc,
		resolver.WithEscalateValidationFailures(cfg.Resolver.EscalateValidationFailures))

	runnerCfg := orchestrator.Config{
		Registry:            registry,
		Catalog:             catalog,
		Resolver:            res,
		Store:               db,
		Concurrency:         cfg.Scheduler.Concurrency,
		TaskTimeout:         cfg.Scheduler.TaskTimeout,
		ConfidenceThreshold: cfg.Resolver.ConfidenceThreshold,
		Logger:              logger,
		HistoryDepth:        cfg.Resolver.HistoryDepth,
	}
	if client != nil {
		runnerCfg.Completer = client
	}
	runner, err := orchestrator.NewTurnRunner(runnerCfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, db: db, client: client, runner: runner, logger: logger}, nil
}

// Close releases the runtime's resources.
func (rt *runtime) Close() error {
	return rt.db.Close()
}
