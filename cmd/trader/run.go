package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/opensqt/daytrader/internal/archive"
	"github.com/opensqt/daytrader/internal/config"
	"github.com/opensqt/daytrader/internal/core"
	"github.com/opensqt/daytrader/internal/earnings"
	"github.com/opensqt/daytrader/internal/engine"
	"github.com/opensqt/daytrader/internal/gateway"
	"github.com/opensqt/daytrader/internal/ledger"
	"github.com/opensqt/daytrader/internal/orders"
	"github.com/opensqt/daytrader/internal/plan"
	"github.com/opensqt/daytrader/internal/risk"
	"github.com/opensqt/daytrader/internal/session"
	"github.com/opensqt/daytrader/pkg/cli"
	"github.com/opensqt/daytrader/pkg/logging"
	"github.com/opensqt/daytrader/pkg/telemetry"
)

const (
	connectTimeout = 30 * time.Second

	// planWriteAttempts and planWriteDelay ride out the plan workbook
	// being open in the operator's spreadsheet program.
	planWriteAttempts = 3
	planWriteDelay    = 500 * time.Millisecond

	// maxHoursTokens bounds the open/close token index prompts; liquid
	// hours rarely carry more than a handful of instants.
	maxHoursTokens = 8
)

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if portFlag > 0 {
		cfg.Gateway.Port = portFlag
	}

	zlog, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()
	logging.SetGlobalLogger(zlog)

	// Each run gets a session ID so interleaved log archives stay
	// attributable.
	logger := zlog.WithField("session_id", uuid.New().String()[:8])

	venueCode := strings.ToUpper(venueFlag)
	venue, err := cfg.Venue(venueCode)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(venue.TimeZone)
	if err != nil {
		return fmt.Errorf("venue timezone: %w", err)
	}

	planPath := filepath.Join(cfg.Files.PlanDir, venue.PlanFile)

	// Startup questionnaire. Declining the plan gate aborts the session.
	prompter := cli.NewPrompter(os.Stdin, os.Stdout)
	confirmed, err := prompter.Confirm(fmt.Sprintf("Is the trading plan %s up to date?", planPath))
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	if !confirmed {
		return errors.New("trading plan not confirmed, aborting")
	}
	maxInvested, err := prompter.Fraction("Maximum invested portfolio percentage:")
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	openIdx, err := prompter.Index("Session open token index:", maxHoursTokens)
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	closeIdx, err := prompter.Index("Session close token index:", maxHoursTokens)
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}

	logger.Info("Starting trader",
		"venue", venueCode, "plan", planPath,
		"max_invested_pct", maxInvested*100)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.GetGlobalMetrics()
	if cfg.Telemetry.EnableMetrics {
		srv := telemetry.NewServer(cfg.Telemetry.MetricsPort, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	// Plan load. A missing or unreadable plan at startup is fatal, unlike
	// mid-session sync failures which just skip a cycle.
	store := plan.NewStore(planPath, planWriteAttempts, planWriteDelay, logger)
	planRows, err := store.Load()
	if err != nil {
		return fmt.Errorf("load trading plan: %w", err)
	}
	if len(planRows) == 0 {
		return errors.New("trading plan has no rows")
	}

	table := ledger.NewTable(logger)
	table.Mu.Lock()
	for _, p := range planRows {
		table.Append(plan.RowToLedger(p))
	}
	rowCount := table.Len()
	table.Mu.Unlock()
	logger.Info("Trading plan loaded", "rows", rowCount)

	client := gateway.NewClient(cfg.Gateway, venue.ClientID, logger)
	connectCtx, cancelConnect := context.WithTimeout(ctx, connectTimeout)
	err = client.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		return fmt.Errorf("gateway connect: %w", err)
	}
	defer func() { _ = client.Close() }()
	gw := gateway.NewInstrumentedGateway(client, metrics)

	fxRate := decimal.NewFromFloat(venue.ExchangeRate)
	monitor := risk.NewMonitor(
		fxRate,
		decimal.NewFromFloat(cfg.Rules.MaxDailyLoss),
		decimal.NewFromFloat(cfg.Rules.PnLPrintThreshold),
		logger)

	clock := session.NewClock(loc, venue.HasPause, cfg.Gateway.ContractDaysToOpen,
		time.Duration(cfg.Windows.ShutdownGraceMin)*time.Minute, logger)

	builder := orders.NewBuilder(
		time.Duration(cfg.Windows.EntryTTLMin)*time.Minute,
		time.Duration(cfg.Windows.CloseLegLeadMin)*time.Minute)

	archiver := archive.NewArchiver(table, cfg.Files.OutputDir, venue.OutputPrefix,
		decimal.NewFromFloat(cfg.Rules.SentinelEntryPrice),
		decimal.NewFromFloat(cfg.Rules.SentinelStopPrice),
		logger)

	if err := subscribe(ctx, gw, table); err != nil {
		return fmt.Errorf("gateway subscriptions: %w", err)
	}

	if cfg.Earnings.Enabled && venueCode == "NY" {
		fetcher := earnings.NewFetcher(cfg.Earnings, logger)
		defer fetcher.Stop()
		fetcher.Lookup(ctx, symbols(table))
	}

	eng := engine.New(engine.Params{
		Config:   cfg,
		Table:    table,
		Gateway:  gw,
		Clock:    clock,
		Risk:     monitor,
		Syncer:   plan.NewSyncer(store, table, gw, builder, logger),
		Store:    store,
		Archiver: archiver,
		Builder:  builder,
		Metrics:  metrics,
		Logger:   logger,

		MaxInvestedPct: decimal.NewFromFloat(maxInvested),
		FXRate:         fxRate,
		OpenIdx:        openIdx,
		CloseIdx:       closeIdx,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("Interrupted, shutting down")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("Session complete")
	return nil
}

func loadConfig() (*config.Config, error) {
	if configFlag == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// subscribe requests the account, position, contract-details and
// market-data streams for every ledger row.
func subscribe(ctx context.Context, gw core.IGateway, table *ledger.Table) error {
	if err := gw.RequestAccountUpdates(ctx); err != nil {
		return err
	}
	if err := gw.RequestPositions(ctx); err != nil {
		return err
	}

	table.Mu.RLock()
	defer table.Mu.RUnlock()
	for _, r := range table.Rows() {
		if err := gw.RequestContractDetails(ctx, r.ReqID, r.Contract()); err != nil {
			return err
		}
		if err := gw.RequestMarketData(ctx, r.ReqID, r.Contract()); err != nil {
			return err
		}
	}
	return nil
}

func symbols(table *ledger.Table) []string {
	table.Mu.RLock()
	defer table.Mu.RUnlock()
	var out []string
	for _, r := range table.Rows() {
		out = append(out, r.Symbol)
	}
	return out
}
