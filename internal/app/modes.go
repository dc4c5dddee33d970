package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/you/snipebot/internal/archive"
	"github.com/you/snipebot/internal/crypto"
	"github.com/you/snipebot/internal/domain"
	"github.com/you/snipebot/internal/driver"
	"github.com/you/snipebot/internal/engine"
	"github.com/you/snipebot/internal/executor"
	"github.com/you/snipebot/internal/ledger"
	"github.com/you/snipebot/internal/notify"
	"github.com/you/snipebot/internal/platform/gmgn"
	"github.com/you/snipebot/internal/platform/rugcheck"
	"github.com/you/snipebot/internal/quote"
	"github.com/you/snipebot/internal/screener"
	"github.com/you/snipebot/internal/server"
	"github.com/you/snipebot/internal/server/handler"
	"github.com/you/snipebot/internal/server/ws"
)

// tradingStack bundles the components built on top of the wired
// infrastructure: market data, screening, the ledger, and execution.
type tradingStack struct {
	gmgnClient *gmgn.Client
	quoteCache *quote.Cache
	screener   *screener.Screener
	ledger     *ledger.Ledger
	driver     *driver.Driver
}

// TradeMode runs the evaluation loop and trade execution without the HTTP
// API. Notifications are relayed if configured.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode", slog.Bool("dry_run", a.cfg.DryRun))

	g, ctx := errgroup.WithContext(ctx)

	stack, err := a.buildTradingStack(deps)
	if err != nil {
		return fmt.Errorf("trade mode: %w", err)
	}

	g.Go(func() error {
		return stack.driver.Run(ctx)
	})

	a.startRelay(ctx, g, deps)
	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// MonitorMode serves the read-only HTTP and WebSocket API over the persisted
// state. No tokens are evaluated and no trades are placed; the screen and
// quote endpoints still fetch market data on demand.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	stack, err := a.buildMarketStack(deps)
	if err != nil {
		return fmt.Errorf("monitor mode: %w", err)
	}
	if err := stack.ledger.Restore(ctx); err != nil {
		return fmt.Errorf("monitor mode: restore ledger: %w", err)
	}

	a.startHTTPServer(ctx, g, deps, stack, nil)
	a.startRelay(ctx, g, deps)
	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// FullMode runs everything: the evaluation loop, the HTTP API, notification
// relay, and archival.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode", slog.Bool("dry_run", a.cfg.DryRun))

	g, ctx := errgroup.WithContext(ctx)

	stack, err := a.buildTradingStack(deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	g.Go(func() error {
		return stack.driver.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, stack, stack.driver)
	}
	a.startRelay(ctx, g, deps)
	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// buildMarketStack wires the market-data side only: GMGN and RugCheck
// clients, the quote cache, the screener, and an (unrestored) ledger.
func (a *App) buildMarketStack(deps *Dependencies) (*tradingStack, error) {
	signer, err := a.loadSigner()
	if err != nil {
		return nil, err
	}

	gmgnClient := gmgn.NewClient(gmgn.Config{
		BaseURL:         a.cfg.Gmgn.BaseURL,
		SolMint:         a.cfg.Gmgn.SolMint,
		WalletPublicKey: a.cfg.Wallet.PublicKey,
		SlippageBps:     a.cfg.Gmgn.SlippageBps,
		RateLimitPerSec: a.cfg.Gmgn.RateLimitPerSec,
	}, deps.RateLimiter)

	var authSigner domain.AuthSigner
	if signer != nil {
		authSigner = signer
	}
	rugcheckClient := rugcheck.NewClient(
		a.cfg.Rugcheck.BaseURL,
		a.cfg.Rugcheck.Token,
		a.cfg.Wallet.PublicKey,
		authSigner,
	)

	riskScorer := quote.NewRiskScorer(
		gmgnClient, rugcheckClient,
		a.cfg.Trading.LiquidityMinUSD, a.cfg.Trading.TxCountMin,
	)
	quoteCache := quote.NewCache(
		gmgnClient, riskScorer,
		a.cfg.Quotes.TTL.Duration, a.cfg.Quotes.MaxStale.Duration,
		a.logger,
		quote.Options{Snapshots: deps.QuoteSnapshots},
	)

	screen := screener.New(quoteCache, screener.Thresholds{
		VolumeMinUSD:    a.cfg.Trading.VolumeMinUSD,
		LiquidityMinUSD: a.cfg.Trading.LiquidityMinUSD,
		TxCountMin:      a.cfg.Trading.TxCountMin,
		TrendMin:        a.cfg.Trading.TrendMin,
		ScamRiskMax:     a.cfg.Trading.ScamRiskMax,
	}, a.logger)

	book := ledger.New(deps.PositionStore, a.logger)

	return &tradingStack{
		gmgnClient: gmgnClient,
		quoteCache: quoteCache,
		screener:   screen,
		ledger:     book,
	}, nil
}

// buildTradingStack extends the market stack with execution: gateway,
// journal-backed executor, reconciler, decision engine, and the driver.
func (a *App) buildTradingStack(deps *Dependencies) (*tradingStack, error) {
	stack, err := a.buildMarketStack(deps)
	if err != nil {
		return nil, err
	}

	var gateway domain.ExecutionGateway
	if a.cfg.DryRun {
		gateway = executor.NewDryRunGateway(stack.quoteCache, a.logger)
	} else {
		signer, err := a.loadSigner()
		if err != nil {
			return nil, err
		}
		if signer == nil {
			return nil, fmt.Errorf("build trading stack: live trading requires a wallet keypair")
		}
		gateway = executor.NewGateway(stack.gmgnClient, signer, a.logger)
	}

	exec := executor.New(gateway, deps.ExecutionStore, executor.RetryPolicy{
		MaxAttempts:    a.cfg.Retry.MaxAttempts,
		InitialBackoff: a.cfg.Retry.InitialBackoff.Duration,
		MaxBackoff:     a.cfg.Retry.MaxBackoff.Duration,
		Multiplier:     a.cfg.Retry.Multiplier,
	}, a.logger)

	reconciler := executor.NewReconciler(
		deps.ExecutionStore, gateway, stack.ledger,
		deps.TradeStore, deps.AuditStore, stack.quoteCache,
		a.logger,
	)

	eng := engine.New(
		stack.quoteCache, stack.screener, stack.ledger, exec,
		deps.TradeStore, deps.SignalBus,
		engine.TradeParams{
			BuyAmountSOL:        a.cfg.Trading.BuyAmountSOL,
			ProfitMultiplierMin: a.cfg.Trading.ProfitMultiplierMin,
			ProfitMultiplierMax: a.cfg.Trading.ProfitMultiplierMax,
			SellPercentage:      a.cfg.Trading.SellPercentage,
		},
		a.logger,
	)

	stack.driver = driver.New(
		stack.gmgnClient, eng, stack.ledger, reconciler, deps.LockManager,
		driver.Config{
			PollInterval:   a.cfg.Driver.PollInterval.Duration,
			DiscoveryLimit: a.cfg.Driver.DiscoveryLimit,
			MaxConcurrent:  a.cfg.Driver.MaxConcurrent,
			CycleLockTTL:   a.cfg.Driver.CycleLockTTL.Duration,
		},
		a.logger,
	)

	return stack, nil
}

// loadSigner resolves the wallet keypair into a Signer. It returns (nil, nil)
// when no key source is configured, which is fine for dry-run and monitor
// operation; callers that need a signature must check for nil.
func (a *App) loadSigner() (*crypto.Signer, error) {
	w := a.cfg.Wallet
	if w.Keypair == "" && w.KeypairPath == "" && w.EncryptedKeyPath == "" {
		return nil, nil
	}

	keypair, err := crypto.LoadKeypair(crypto.KeyConfig{
		RawKeypair:       w.Keypair,
		KeypairPath:      w.KeypairPath,
		EncryptedKeyPath: w.EncryptedKeyPath,
		KeyPassword:      w.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("load wallet keypair: %w", err)
	}
	return crypto.NewSigner(keypair, w.PublicKey)
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// errgroup. drv may be nil (monitor mode); the status endpoint then reports
// no cycle timestamp.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, stack *tradingStack, drv *driver.Driver) {
	status := a.statusSource(deps, stack, drv)

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(),
		Status:    handler.NewStatusHandler(status),
		Positions: handler.NewPositionHandler(stack.ledger, deps.PositionStore, a.logger),
		Trades:    handler.NewTradeHandler(deps.TradeStore, a.logger),
		Quotes:    handler.NewQuoteHandler(deps.QuoteSnapshots, a.logger),
		Events:    handler.NewEventHandler(deps.SignalBus, a.logger),
		Screen:    handler.NewScreenHandler(stack.screener, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	hub := ws.NewHub(deps.SignalBus, status, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}

// statusSource builds the BotStatus snapshot closure shared by the REST
// status endpoint and the WebSocket hello message.
func (a *App) statusSource(deps *Dependencies, stack *tradingStack, drv *driver.Driver) func() domain.BotStatus {
	startedAt := time.Now().UTC()

	return func() domain.BotStatus {
		st := domain.BotStatus{
			Mode:          a.cfg.Mode,
			DryRun:        a.cfg.DryRun,
			UptimeSeconds: int64(time.Since(startedAt).Seconds()),
			OpenPositions: int32(stack.ledger.OpenCount()),
		}
		if drv != nil {
			st.LastCycleAt = drv.LastCycleAt()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if pending, err := deps.ExecutionStore.ListPending(ctx); err == nil {
			st.PendingExecs = int32(len(pending))
		}
		return st
	}
}

// startRelay forwards bus events to the configured notification channels.
func (a *App) startRelay(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	relay := notify.NewRelay(deps.SignalBus, deps.Notifier, "events", a.logger)
	g.Go(func() error {
		return relay.Run(ctx)
	})
}

// startArchiver runs the periodic cold-storage sweep when archival is
// enabled and S3 is wired.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archive.Enabled || deps.Archiver == nil {
		return
	}
	arch := archive.New(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	g.Go(func() error {
		return arch.RunLoop(ctx, a.cfg.Archive.Interval.Duration)
	})
}
