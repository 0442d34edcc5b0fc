package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"finsight/internal/adapters/ai"
	"finsight/internal/adapters/config"
	"finsight/internal/adapters/errors/noop"
	"finsight/internal/adapters/errors/sentry"
	"finsight/internal/adapters/fimcp"
	"finsight/internal/adapters/redis"
	"finsight/internal/agents"
	httpapi "finsight/internal/api/http"
	"finsight/internal/invoker"
	"finsight/internal/orchestrator"
	"finsight/internal/quota"
	"finsight/internal/workers"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate := initQuotaGate(cfg, log)

	client, err := ai.BuildClient(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("Failed to initialize AI client: %v", err)
	}
	inv := invoker.New(client)

	orch := initOrchestrator(cfg, inv, gate, log)

	report := orch.InitializeSystem()
	if report.SystemHealth == "failed" {
		log.Fatalf("System initialization failed: %v", report.Errors)
	}
	log.Infof("System initialized: %s, agents: %v", report.SystemHealth, report.ReadyAgents)

	server := httpapi.NewServer(cfg.Server, orch, gate, cfg.FiMCP.DefaultIdentity)

	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewAnalysisWorker(orch, gate, cfg.Scheduler))
	scheduler.RegisterWorker(workers.NewQuotaCleanupWorker(gate, time.Hour))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return scheduler.Stop()
	})
	g.Go(func() error {
		waitForShutdown(gctx, log)
		cancel()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Shutdown with error: %v", err)
	}

	if err := errorTracker.Flush(context.Background()); err != nil {
		log.Warnf("Failed to flush error tracker: %v", err)
	}
	log.Info("Shutdown complete")
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initQuotaGate builds the quota gate over a file or Redis backed store.
func initQuotaGate(cfg *config.Config, log *logger.Logger) *quota.Gate {
	var store quota.Store = quota.NewFileStore(cfg.Quota.StorePath)

	if cfg.Quota.UseRedis {
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Warnf("Redis unavailable, falling back to file quota store: %v", err)
		} else {
			store = quota.NewRedisStore(client)
			log.Info("Quota state backed by Redis")
		}
	}

	return quota.NewGate(store, quota.Config{
		MaxDailyRequests:  cfg.Quota.MaxDailyRequests,
		MaxHourlyRequests: cfg.Quota.MaxHourlyRequests,
	})
}

// initOrchestrator wires the capability agents and the workflow engine.
func initOrchestrator(cfg *config.Config, inv *invoker.Invoker, gate *quota.Gate, log *logger.Logger) *orchestrator.Orchestrator {
	collector := agents.NewCollector(fimcp.NewClient(cfg.FiMCP), inv)
	risk := agents.NewRiskAgent(inv)
	market := agents.NewMarketAgent(inv)
	synth := agents.NewSynthesizer(inv)

	registry := agents.NewRegistry()
	for _, c := range []agents.Capability{risk, market, synth} {
		if err := registry.Register(c); err != nil {
			log.Fatalf("Failed to register capability %s: %v", c.ID(), err)
		}
	}

	return orchestrator.New(orchestrator.Deps{
		Registry:    registry,
		Collector:   collector,
		Risk:        risk,
		Market:      market,
		Synthesizer: synth,
		Invoker:     inv,
		Gate:        gate,
	})
}

// waitForShutdown blocks until a termination signal or context cancel.
func waitForShutdown(ctx context.Context, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infof("Received signal %s, shutting down...", sig)
	case <-ctx.Done():
	}
}
