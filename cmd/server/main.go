// Package main provides the unified server that runs all components together:
// - Discovery (scheduled): sample recent activity, rank and store whales
// - Refresh (scheduled): re-fetch balances and activity for tracked whales
// - Monitoring (continuous): live feed, classification, broadcast
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"stacks-whale-intel/internal/chain"
	"stacks-whale-intel/internal/config"
	"stacks-whale-intel/internal/discovery"
	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/hub"
	"stacks-whale-intel/internal/monitor"
	"stacks-whale-intel/internal/observability"
	"stacks-whale-intel/internal/pricing"
	"stacks-whale-intel/internal/profile"
	"stacks-whale-intel/internal/scheduler"
	"stacks-whale-intel/internal/storage"
	chstore "stacks-whale-intel/internal/storage/clickhouse"
	"stacks-whale-intel/internal/storage/memory"
	"stacks-whale-intel/internal/storage/migrations"
	pgstore "stacks-whale-intel/internal/storage/postgres"
)

// Server holds all components of the unified service.
type Server struct {
	cfg    *config.Config
	logger *log.Logger

	store   storage.ProfileStore
	archive storage.EventArchive

	sched   *scheduler.Scheduler
	mon     *monitor.Monitor
	evHub   *hub.Hub
	started time.Time
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Flags override the environment for local runs.
	apiURL := flag.String("api-url", cfg.ChainAPIURL, "Chain HTTP API base URL")
	feedURL := flag.String("feed-url", cfg.ChainFeedURL, "Chain websocket feed URL")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	addr := flag.String("addr", ":"+strconv.Itoa(cfg.ServerPort), "HTTP listen address")
	discoveryInterval := flag.Duration("discovery-interval", cfg.DiscoveryInterval, "Discovery cycle interval")
	updateInterval := flag.Duration("update-interval", cfg.UpdateInterval, "Profile refresh interval")
	topN := flag.Int("top-n", cfg.TopN, "Number of whales to track")

	flag.Parse()

	cfg.ChainAPIURL = *apiURL
	cfg.ChainFeedURL = *feedURL
	cfg.PostgresDSN = *postgresDSN
	cfg.ClickhouseDSN = *clickhouseDSN
	cfg.UseMemory = *useMemory
	cfg.DiscoveryInterval = *discoveryInterval
	cfg.UpdateInterval = *updateInterval
	cfg.TopN = *topN

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !cfg.UseMemory && cfg.PostgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	if cfg.UseMemory {
		logger.Println("Using in-memory storage")
	} else {
		logger.Printf("Using PostgreSQL storage (%s)", cfg.MaskedPostgresDSN())
	}

	ctx, cancel := context.WithCancel(context.Background())

	store, archive, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server := buildServer(cfg, store, archive, logger)

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	go server.startHTTPServer(*addr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the profile store and event archive. The archive is
// nil when no ClickHouse DSN is configured; archiving is optional.
func createStores(ctx context.Context, cfg *config.Config) (storage.ProfileStore, storage.EventArchive, func(), error) {
	if cfg.UseMemory {
		return memory.NewProfileStore(), memory.NewEventArchive(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	var archive storage.EventArchive
	cleanup := func() { pool.Close() }

	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		archive = chstore.NewEventArchive(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return pgstore.NewProfileStore(pool), archive, cleanup, nil
}

// buildServer wires the pipeline components together.
func buildServer(cfg *config.Config, store storage.ProfileStore, archive storage.EventArchive, logger *log.Logger) *Server {
	client := chain.NewClient(cfg.ChainAPIURL,
		chain.WithTimeout(cfg.APITimeout),
		chain.WithMinInterval(cfg.APIMinInterval),
		chain.WithMaxRetries(cfg.APIMaxRetries),
		chain.WithRateLimitCooldown(cfg.RateLimitCooldown),
		chain.WithLogger(log.New(os.Stdout, "[chain] ", log.LstdFlags)),
	)

	var oracle pricing.Oracle
	if cfg.PriceAPIURL != "" {
		oracle = pricing.NewHTTPOracle(cfg.PriceAPIURL, cfg.PriceCacheTTL)
	} else {
		oracle = &pricing.StaticOracle{}
	}

	registry := profile.DefaultRegistry()
	builder := profile.NewBuilder(client, oracle, registry,
		log.New(os.Stdout, "[profile] ", log.LstdFlags))

	engine := discovery.NewEngine(discovery.Config{
		ScanWindow:          cfg.ScanWindow,
		MinBalanceSTX:       cfg.MinBalanceSTX,
		MinTxCount30d:       cfg.MinTxCount30d,
		MaxConcurrentBuilds: discovery.DefaultConfig().MaxConcurrentBuilds,
	}, client, builder, registry, log.New(os.Stdout, "[discovery] ", log.LstdFlags))

	sched := scheduler.New(scheduler.Config{
		DiscoveryInterval:   cfg.DiscoveryInterval,
		UpdateInterval:      cfg.UpdateInterval,
		TopN:                cfg.TopN,
		RunDiscoveryAtStart: true,
	}, engine, builder, store, log.New(os.Stdout, "[scheduler] ", log.LstdFlags))

	evHub := hub.New(log.New(os.Stdout, "[hub] ", log.LstdFlags))

	mon := monitor.New(monitor.Config{
		AlertThresholdUSD: cfg.AlertThresholdUSD,
		ReconnectDelay:    cfg.ReconnectDelay,
		MaxReconnectDelay: cfg.MaxReconnectDelay,
	}, &chain.WSFeedDialer{Endpoint: cfg.ChainFeedURL}, store, archive, oracle, registry, evHub,
		log.New(os.Stdout, "[monitor] ", log.LstdFlags))

	return &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		archive: archive,
		sched:   sched,
		mon:     mon,
		evHub:   evHub,
		started: time.Now(),
	}
}

// Run starts the schedulers and the live monitor and blocks until shutdown.
// The monitor is started after the first discovery cycle has had a chance
// to seed the tracked set; an empty set is still a valid start.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting unified server...")

	errCh := make(chan error, 2)

	go func() {
		err := s.sched.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	go func() {
		err := s.mon.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("monitor: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// startHTTPServer starts the HTTP server for the read API, health, metrics,
// status, and the event stream.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/whales", s.handleWhales)
	mux.HandleFunc("/whales/", s.handleWhale)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/ws", s.evHub.HandleWebSocket)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// handleWhales returns tracked whales ordered by score (default) or balance.
func (s *Server) handleWhales(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	var (
		profiles []*domain.WhaleProfile
		err      error
	)
	switch r.URL.Query().Get("sort") {
	case "", "score":
		profiles, err = s.store.TopByScore(r.Context(), limit)
	case "balance":
		profiles, err = s.store.TopByBalance(r.Context(), limit)
	default:
		http.Error(w, "sort must be score or balance", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.Printf("list whales failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, profiles)
}

// handleWhale returns one whale by address, with its recent archived events
// when an archive is configured.
func (s *Server) handleWhale(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimPrefix(r.URL.Path, "/whales/")
	if address == "" {
		http.Error(w, "address required", http.StatusBadRequest)
		return
	}

	p, err := s.store.GetByAddress(r.Context(), address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		s.logger.Printf("get whale %s failed: %v", address, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := struct {
		Profile *domain.WhaleProfile              `json:"profile"`
		Events  []*domain.TrackedTransactionEvent `json:"events,omitempty"`
	}{Profile: p}

	if s.archive != nil {
		events, err := s.archive.GetByAddress(r.Context(), address, 50)
		if err != nil {
			s.logger.Printf("archive lookup for %s failed: %v", address, err)
		} else {
			resp.Events = events
		}
	}

	writeJSON(w, resp)
}

// handleHealth reports feed liveness alongside a basic ok.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.mon.Health())
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status      string           `json:"status"`
	Uptime      string           `json:"uptime"`
	Whales      int              `json:"whales"`
	Subscribers int              `json:"subscribers"`
	Monitor     monitor.Health   `json:"monitor"`
	Scheduler   scheduler.Status `json:"scheduler"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		s.logger.Printf("count whales failed: %v", err)
	}

	writeJSON(w, StatusResponse{
		Status:      "running",
		Uptime:      time.Since(s.started).String(),
		Whales:      count,
		Subscribers: s.evHub.SubscriberCount(),
		Monitor:     s.mon.Health(),
		Scheduler:   s.sched.Status(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
