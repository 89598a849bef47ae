package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hirely/hirely-cli/internal/apiclient"
	"github.com/hirely/hirely-cli/internal/config"
	"github.com/hirely/hirely-cli/internal/jobs"
	"github.com/hirely/hirely-cli/internal/monitoring"
	"github.com/hirely/hirely-cli/internal/netstatus"
	"github.com/hirely/hirely-cli/internal/queue"
	"github.com/hirely/hirely-cli/internal/resilience"
	"github.com/hirely/hirely-cli/internal/store"
	"github.com/hirely/hirely-cli/pkg/firecrawl"
	"github.com/hirely/hirely-cli/pkg/theirstack"
)

// clientEnv holds everything the client-side commands share.
type clientEnv struct {
	Store    store.KV
	Queue    *queue.Queue
	Monitor  *netstatus.Monitor
	API      *apiclient.Client
	Breakers *resilience.ServiceBreakers
}

// Close releases resources held by the environment.
func (e *clientEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initClient opens the store and wires queue, monitor and API client.
// Callers should defer env.Close().
func initClient(ctx context.Context) (*clientEnv, error) {
	if err := cfg.Validate("client"); err != nil {
		return nil, err
	}

	kv, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	mon := netstatus.NewMonitor()
	q := queue.New(kv,
		queue.WithKey(cfg.Queue.Key),
		queue.WithMaxRetries(cfg.Queue.MaxRetries),
		queue.WithConnectivity(mon.IsOnline),
	)

	breakers := resilience.NewServiceBreakers(
		resilience.FromCircuitConfig(cfg.Resilience.FailureThreshold, cfg.Resilience.ResetTimeoutSecs),
	)

	opts := []apiclient.Option{
		apiclient.WithBaseURL(cfg.API.BaseURL),
		apiclient.WithConnectivity(mon),
		apiclient.WithQueue(q),
		apiclient.WithDefaults(apiDefaults(cfg.API, cfg.Queue)),
		apiclient.WithRateLimit(cfg.API.RateLimitRPS),
	}
	if cfg.API.Token != "" {
		opts = append(opts, apiclient.WithTokenSource(apiclient.StaticToken(cfg.API.Token)))
	}

	zap.L().Debug("client environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("api", cfg.API.BaseURL),
	)

	return &clientEnv{
		Store:    kv,
		Queue:    q,
		Monitor:  mon,
		API:      apiclient.New(opts...),
		Breakers: breakers,
	}, nil
}

// apiDefaults turns config values into per-request defaults.
func apiDefaults(api config.APIConfig, qc config.QueueConfig) apiclient.Options {
	rc := resilience.FromAPIConfig(api.Retries, api.RetryDelayMs)
	retries := rc.Retries
	if retries == 0 {
		retries = apiclient.NoRetry
	}
	return apiclient.Options{
		Timeout:         time.Duration(api.TimeoutMs) * time.Millisecond,
		Retries:         retries,
		RetryDelay:      rc.BaseDelay,
		MaxQueueRetries: qc.MaxRetries,
	}
}

// probe returns the connectivity signal configured for this process, or nil.
func probe() netstatus.Signal {
	if cfg.Network.ProbeURL == "" {
		return nil
	}
	return netstatus.NewProber(cfg.Network.ProbeURL,
		time.Duration(cfg.Network.ProbeTimeoutMs)*time.Millisecond, nil)
}

// refreshConnectivity takes one probe reading so one-shot commands start
// from an observed state.
func refreshConnectivity(ctx context.Context, mon *netstatus.Monitor) {
	sig := probe()
	if sig == nil {
		return
	}
	online, err := sig.Online(ctx)
	if err != nil {
		zap.L().Debug("network probe failed", zap.Error(err))
		return
	}
	mon.Set(online)
}

// watchConnectivity keeps mon current until ctx is done.
func watchConnectivity(ctx context.Context, mon *netstatus.Monitor) {
	sig := probe()
	if sig == nil {
		zap.L().Info("network.probe_url not set, assuming online")
		return
	}
	go netstatus.Watch(ctx, mon, sig, time.Duration(cfg.Network.ProbeIntervalSec)*time.Second)
}

// buildSources creates the configured job sources. Providers without
// credentials are left out and reported as unknown by the aggregator.
func buildSources() []jobs.Source {
	var sources []jobs.Source
	if cfg.TheirStack.Key != "" {
		client := theirstack.NewClient(cfg.TheirStack.Key, theirstack.WithBaseURL(cfg.TheirStack.BaseURL))
		sources = append(sources, jobs.NewTheirStackSource(client, cfg.TheirStack.Limit))
	} else {
		zap.L().Warn("HIRELY_THEIRSTACK_KEY not set, theirstack source disabled")
	}
	if cfg.Firecrawl.Key != "" && len(cfg.Firecrawl.BoardURLs) > 0 {
		client := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		sources = append(sources, jobs.NewFirecrawlSource(client, cfg.Firecrawl.BoardURLs))
	} else {
		zap.L().Warn("firecrawl key or board_urls not set, firecrawl source disabled")
	}
	return sources
}

// buildAggregator wires the job sources behind their circuit breakers.
func buildAggregator(breakers *resilience.ServiceBreakers) *jobs.Aggregator {
	return jobs.NewAggregator(buildSources(),
		jobs.WithBreakers(breakers),
		jobs.WithDefaultSources(cfg.Aggregate.Sources),
		jobs.WithPageSize(cfg.Aggregate.PageSize),
		jobs.WithSourceTimeout(time.Duration(cfg.Aggregate.SourceTimeoutSecs)*time.Second),
	)
}

// buildMonitoring creates the health collector and background checker.
func buildMonitoring(q monitoring.QueueInspector, mon monitoring.Connectivity, breakers monitoring.BreakerRegistry) (*monitoring.Collector, *monitoring.Checker) {
	collector := monitoring.NewCollector(q, mon, breakers)
	checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
	return collector, checker
}
