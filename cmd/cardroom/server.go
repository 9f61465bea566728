package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openfelt/cardroom/cmd/cardroom/shared"
	"github.com/openfelt/cardroom/internal/auth"
	"github.com/openfelt/cardroom/internal/engine"
	"github.com/openfelt/cardroom/internal/gateway"
	"github.com/openfelt/cardroom/internal/history"
	"github.com/openfelt/cardroom/internal/kv"
	"github.com/openfelt/cardroom/internal/metrics"
	"github.com/openfelt/cardroom/internal/store"
)

// ServerCmd runs the cardroom server.
type ServerCmd struct {
	Config   string `kong:"short='c',default='cardroom.hcl',help='Path to HCL configuration file'"`
	Listen   string `kong:"short='a',help='Listen address (overrides config)'"`
	LogLevel string `kong:"short='l',help='Log level (overrides config)'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := gateway.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Listen != "" {
		cfg.Server.Listen = c.Listen
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := shared.SetupLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	ctx := shared.SetupSignalHandler(logger)

	// Live state and durable state fall back to in-memory implementations
	// when no redis or postgres block is configured.
	var kvs kv.Store
	if cfg.Redis != nil {
		rds, err := kv.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		kvs = rds
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to redis")
	} else {
		kvs = kv.NewMemory()
		logger.Warn().Msg("No redis configured, live state will not survive a restart")
	}
	defer func() { _ = kvs.Close() }()

	var st store.Store
	if cfg.Postgres != nil {
		pg, err := store.OpenPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		st = pg
		logger.Info().Msg("Connected to postgres")
	} else {
		st = store.NewMemory()
		logger.Warn().Msg("No postgres configured, balances reset on restart")
	}
	defer func() { _ = st.Close() }()

	var verifier auth.Verifier
	switch cfg.Auth.Mode {
	case "http":
		verifier = auth.NewHTTPVerifier(cfg.Auth.URL, cfg.Auth.Secret)
	default:
		verifier = auth.NewInsecureVerifier()
		logger.Warn().Msg("Insecure auth mode, tokens are taken at face value")
	}

	mets := metrics.New()
	recorder := history.NewRecorder(logger, st)
	defer recorder.Close()

	hub := gateway.NewHub(logger)
	eng := engine.New(cfg.EngineConfig(), logger, kvs, st,
		engine.WithBroadcaster(hub),
		engine.WithMonitor(engine.MultiMonitor{mets, recorder}),
	)
	defer eng.Close()

	for _, table := range cfg.StoreTables() {
		if err := st.EnsureTable(ctx, table); err != nil {
			return fmt.Errorf("table %s: %w", table.ID, err)
		}
		logger.Info().
			Str("table_id", table.ID).
			Str("stakes", fmt.Sprintf("%d/%d", table.SmallBlind, table.BigBlind)).
			Int("max_seats", table.MaxSeats).
			Msg("Table ready")
	}

	// Resume any hands that were live when the previous process died.
	if err := eng.Recover(ctx); err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	gw := gateway.New(gateway.Options{
		Log:             logger,
		Engine:          eng,
		Store:           st,
		KV:              kvs,
		Verifier:        verifier,
		Hub:             hub,
		StartingBalance: cfg.Server.StartingBalance,
		Stats:           mets,
	})

	mux := http.NewServeMux()
	mux.Handle("/", gw.Handler())
	mux.Handle("/metrics", mets.Handler())

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().
		Str("listen", cfg.Server.Listen).
		Int("tables", len(cfg.Tables)).
		Str("auth_mode", cfg.Auth.Mode).
		Msg("Starting cardroom server")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
