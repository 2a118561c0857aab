// Command discover runs one discovery cycle and prints the ranked whales.
// Useful for seeding a fresh deployment or inspecting the heuristic without
// starting the full server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stacks-whale-intel/internal/chain"
	"stacks-whale-intel/internal/config"
	"stacks-whale-intel/internal/discovery"
	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/pricing"
	"stacks-whale-intel/internal/profile"
	"stacks-whale-intel/internal/storage/migrations"
	pgstore "stacks-whale-intel/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	apiURL := flag.String("api-url", cfg.ChainAPIURL, "Chain HTTP API base URL")
	topN := flag.Int("top-n", cfg.TopN, "Number of whales to rank")
	scanWindow := flag.Int("scan-window", cfg.ScanWindow, "Recent transactions to sample")
	minBalance := flag.Float64("min-balance", cfg.MinBalanceSTX, "Minimum liquid STX balance")
	minTxCount := flag.Int("min-tx-count", cfg.MinTxCount30d, "Minimum 30-day transaction count")
	postgresDSN := flag.String("postgres-dsn", "", "Persist results to this PostgreSQL instance")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[discover] ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("Interrupted, cancelling...")
		cancel()
	}()

	client := chain.NewClient(*apiURL,
		chain.WithTimeout(cfg.APITimeout),
		chain.WithMinInterval(cfg.APIMinInterval),
		chain.WithMaxRetries(cfg.APIMaxRetries),
		chain.WithLogger(logger),
	)

	var oracle pricing.Oracle
	if cfg.PriceAPIURL != "" {
		oracle = pricing.NewHTTPOracle(cfg.PriceAPIURL, cfg.PriceCacheTTL)
	} else {
		oracle = &pricing.StaticOracle{}
	}

	registry := profile.DefaultRegistry()
	builder := profile.NewBuilder(client, oracle, registry, logger)

	engine := discovery.NewEngine(discovery.Config{
		ScanWindow:          *scanWindow,
		MinBalanceSTX:       *minBalance,
		MinTxCount30d:       *minTxCount,
		MaxConcurrentBuilds: discovery.DefaultConfig().MaxConcurrentBuilds,
	}, client, builder, registry, logger)

	start := time.Now()
	profiles, err := engine.DiscoverTop(ctx, *topN)
	if err != nil {
		logger.Fatalf("Discovery failed: %v", err)
	}
	logger.Printf("Discovered %d whales in %v", len(profiles), time.Since(start))

	if *postgresDSN != "" {
		if err := persist(ctx, *postgresDSN, profiles); err != nil {
			logger.Fatalf("Persist failed: %v", err)
		}
		logger.Printf("Persisted %d profiles", len(profiles))
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(profiles); err != nil {
			logger.Fatalf("Encode failed: %v", err)
		}
		return
	}

	printTable(profiles)
}

func persist(ctx context.Context, dsn string, profiles []*domain.WhaleProfile) error {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	store := pgstore.NewProfileStore(pool)
	for _, p := range profiles {
		if err := store.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert %s: %w", p.Address, err)
		}
	}
	return nil
}

func printTable(profiles []*domain.WhaleProfile) {
	fmt.Printf("%-4s %-44s %-10s %6s %6s %14s %12s\n",
		"#", "ADDRESS", "CATEGORY", "SCORE", "PCT", "BALANCE (STX)", "TX (30D)")
	for i, p := range profiles {
		fmt.Printf("%-4d %-44s %-10s %6d %5d%% %14.0f %12d\n",
			i+1, p.Address, p.Category, p.Scores.Composite, p.Percentile,
			p.Portfolio.STXBalance, p.Activity.TxCount30d)
	}
}
