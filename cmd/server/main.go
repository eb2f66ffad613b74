package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-orchestrator/internal/api"
	"github.com/ignite/campaign-orchestrator/internal/clock"
	"github.com/ignite/campaign-orchestrator/internal/config"
	"github.com/ignite/campaign-orchestrator/internal/domain"
	"github.com/ignite/campaign-orchestrator/internal/experiment"
	"github.com/ignite/campaign-orchestrator/internal/orchestration"
	"github.com/ignite/campaign-orchestrator/internal/performance"
	"github.com/ignite/campaign-orchestrator/internal/provider"
	"github.com/ignite/campaign-orchestrator/internal/repository/postgres"
	"github.com/ignite/campaign-orchestrator/internal/store"
	"github.com/ignite/campaign-orchestrator/internal/store/redisstore"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// stores bundles the three persistence interfaces behind one selection.
type stores struct {
	plans       orchestration.PlanStore
	sessions    performance.SessionStore
	experiments experiment.Store
}

// buildStores selects the persistence backend from configuration. Memory is
// the default; redis covers sessions and experiments; postgres covers plans.
// Anything a backend does not cover falls back to memory.
func buildStores(cfg *config.Config) (stores, func(), error) {
	mem := store.NewMemory()
	s := stores{plans: mem, sessions: mem, experiments: mem}
	cleanup := func() {}

	switch cfg.Storage.Type {
	case "memory":
		// nothing to do

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return stores{}, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		rs := redisstore.New(client)
		s.sessions = rs
		s.experiments = rs
		cleanup = func() { client.Close() }

	case "postgres":
		db, err := sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			return stores{}, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.Ping(); err != nil {
			return stores{}, nil, fmt.Errorf("postgres ping: %w", err)
		}
		s.plans = postgres.NewPlanRepo(db)
		cleanup = func() { db.Close() }

	default:
		return stores{}, nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
	return s, cleanup, nil
}

// costTable converts configured channel costs, keeping defaults for channels
// the config does not mention.
func costTable(cfg config.OrchestrationConfig) orchestration.CostTable {
	table := orchestration.DefaultCostTable()
	for name, cost := range cfg.ChannelCosts {
		table[domain.ChannelType(name)] = orchestration.ChannelCost{
			Base:         time.Duration(cost.BaseSeconds) * time.Second,
			PerRecipient: time.Duration(cost.PerRecipientMs) * time.Millisecond,
		}
	}
	return table
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	s, cleanup, err := buildStores(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer cleanup()
	log.Printf("Storage backend: %s", cfg.Storage.Type)

	clk := clock.New()
	stub := provider.NewStub(clk, cfg.Provider.Ramp())

	planner := orchestration.NewPlanner(orchestration.PlannerConfig{
		SequentialDelay:        cfg.Orchestration.SequentialDelay(),
		OptimalSequentialDelay: cfg.Orchestration.OptimalSequentialDelay(),
		OptimalParallelDelay:   cfg.Orchestration.OptimalParallelDelay(),
		LargeAudienceThreshold: cfg.Orchestration.LargeAudienceThreshold,
		StageSize:              cfg.Orchestration.StageSize,
		StageDelay:             cfg.Orchestration.StageDelay(),
		Costs:                  costTable(cfg.Orchestration),
	}, clk, nil)
	scheduler := orchestration.NewScheduler(clk)

	tracker := performance.NewAggregator(performance.Config{
		CollectionInterval: cfg.Tracking.Interval(),
		HistoryLimit:       cfg.Tracking.HistoryLimit,
		TrendWindow:        cfg.Tracking.TrendWindow,
		OverlapFraction:    cfg.Tracking.OverlapFraction,
	}, clk, stub, s.sessions)

	experiments := experiment.NewEngine(experiment.Config{
		MinSampleSize:         cfg.Experiment.MinSampleSize,
		ConfidenceLevel:       cfg.Experiment.ConfidenceLevel,
		SignificanceThreshold: cfg.Experiment.SignificanceThreshold,
		BaselineRate:          cfg.Experiment.BaselineRate,
		ExpectedImprovement:   cfg.Experiment.ExpectedImprovement,
		Power:                 cfg.Experiment.Power,
		MinDuration:           cfg.Experiment.MinDuration(),
	}, clk, s.experiments, nil, func(testID, variantID string) {
		log.Printf("[experiment] %s winner declared: %s", testID, variantID)
	})

	handlers := api.NewHandlers(planner, scheduler, s.plans, tracker, experiments, stub)
	server := api.NewServer(cfg.Server, handlers)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	tracker.Shutdown(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
