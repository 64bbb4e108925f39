package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/haasonsaas/scribe/internal/agents"
	"github.com/haasonsaas/scribe/internal/blob"
	"github.com/haasonsaas/scribe/internal/classify"
	"github.com/haasonsaas/scribe/internal/config"
	"github.com/haasonsaas/scribe/internal/github"
	"github.com/haasonsaas/scribe/internal/model"
	"github.com/haasonsaas/scribe/internal/observability"
	"github.com/haasonsaas/scribe/internal/orchestrator"
	"github.com/haasonsaas/scribe/internal/secrets"
)

// runtime holds the wired component graph for one process.
type runtime struct {
	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
	store   blob.Store
	secrets secrets.Provider
	orch    *orchestrator.Orchestrator
	health  *orchestrator.HealthCheck
}

// buildRuntime loads config and wires every component. When local is true the
// blob store is in-memory, the classifier drops to path-hint, and the
// repository processor is disabled so nothing reaches external services.
func buildRuntime(ctx context.Context, path string, local bool) (*runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		// Local mode touches no remote service, so a config file is optional.
		if !local {
			return nil, err
		}
		cfg = config.Default()
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	if local {
		return buildLocalRuntime(cfg, logger, metrics)
	}

	store, err := blob.NewS3Store(ctx, &blob.S3StoreConfig{
		Bucket:        cfg.Blob.Bucket,
		Region:        cfg.Blob.Region,
		Endpoint:      cfg.Blob.Endpoint,
		AppendRetries: cfg.Blob.AppendRetries,
		ConflictHook:  metrics.AppendConflicts.Inc,
	})
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Blob.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	secretCache := secrets.NewCache(secrets.NewManager(awsCfg), cfg.Secret.CacheTTL)

	var invoker model.Invoker
	if cfg.NeedsModel() {
		apiKey, err := secretCache.Fetch(ctx, cfg.Secret.ModelKeyName)
		if err != nil {
			return nil, err
		}
		anthropic, err := model.NewAnthropic(model.AnthropicConfig{
			APIKey:  apiKey,
			Model:   cfg.Model.Name,
			Timeout: cfg.ModelTimeout(),
		}, logger)
		if err != nil {
			return nil, err
		}
		invoker = anthropic
	}

	var classifier classify.Classifier
	if cfg.Classifier.Mode == "content" {
		classifier = classify.NewContent(model.Instrument(invoker, "classify", metrics), cfg.Classifier.MinConfidence, logger)
	} else {
		classifier = classify.NewPathHint()
	}

	var memoryInvoker model.Invoker
	if cfg.Memory.Enrichment == "on" {
		memoryInvoker = model.Instrument(invoker, "enrich", metrics)
	}

	ghClient := github.NewRESTClient(secretCache, cfg.Secret.TokenName, logger)
	processors := []agents.Processor{
		agents.NewJournal(store, logger),
		agents.NewMemory(store, memoryInvoker, logger),
		agents.NewRepository(store, model.Instrument(invoker, "generate", metrics), ghClient, agents.RepositoryConfig{
			Private: cfg.Repository.DefaultVisibility == "private",
			Enabled: cfg.RepositoryEnabled(),
		}, logger),
	}

	orch := orchestrator.New(store, classifier, processors, orchestrator.Config{
		EventDeadline:     cfg.EventDeadline(),
		ProcessorDeadline: cfg.ProcessorDeadline(),
	}, logger, metrics)

	var healthInvoker model.Invoker
	if cfg.Classifier.Mode != "path_hint" {
		healthInvoker = model.Instrument(invoker, "health", metrics)
	}
	secretNames := []string{}
	if cfg.RepositoryEnabled() {
		secretNames = append(secretNames, cfg.Secret.TokenName)
	}
	if cfg.NeedsModel() {
		secretNames = append(secretNames, cfg.Secret.ModelKeyName)
	}
	health := &orchestrator.HealthCheck{
		Store:       store,
		Secrets:     secretCache,
		SecretNames: secretNames,
		Invoker:     healthInvoker,
		Logger:      logger,
	}

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		store:   store,
		secrets: secretCache,
		orch:    orch,
		health:  health,
	}, nil
}

func buildLocalRuntime(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (*runtime, error) {
	store := blob.NewMemStore()
	processors := []agents.Processor{
		agents.NewJournal(store, logger),
		agents.NewMemory(store, nil, logger),
		agents.NewRepository(store, nil, nil, agents.RepositoryConfig{Enabled: false}, logger),
	}
	orch := orchestrator.New(store, classify.NewPathHint(), processors, orchestrator.Config{
		EventDeadline:     cfg.EventDeadline(),
		ProcessorDeadline: cfg.ProcessorDeadline(),
	}, logger, metrics)

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		store:   store,
		orch:    orch,
	}, nil
}
