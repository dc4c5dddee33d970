// Package driver runs the evaluation loop: every poll interval it gathers
// the candidate token set and evaluates each token concurrently, one
// evaluation per token at a time.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/you/snipebot/internal/domain"
)

// Config holds the loop parameters.
type Config struct {
	PollInterval   time.Duration
	DiscoveryLimit int
	MaxConcurrent  int
	CycleLockTTL   time.Duration
}

// Evaluator runs one token evaluation. Satisfied by engine.Engine.
type Evaluator interface {
	EvaluateToken(ctx context.Context, token domain.Token) (domain.Decision, error)
}

// Ledger is the slice of the position ledger the driver needs.
type Ledger interface {
	Restore(ctx context.Context) error
	ListOpen() []domain.Position
}

// Reconciler settles executions left pending by a previous run. It returns
// the tokens whose outcome is still unknown.
type Reconciler interface {
	Run(ctx context.Context) ([]string, error)
}

// Driver owns the polling loop. Before the first cycle it restores the
// ledger and reconciles the execution journal; tokens with an unresolved
// outcome are excluded from trading for the lifetime of the process.
type Driver struct {
	feed       domain.DiscoveryFeed
	evaluator  Evaluator
	ledger     Ledger
	reconciler Reconciler
	locks      domain.LockManager
	cfg        Config
	logger     *slog.Logger

	mu        sync.RWMutex
	excluded  map[string]struct{}
	lastCycle *time.Time
}

// New creates a Driver. locks may be nil when the bot runs as a single
// process without Redis.
func New(feed domain.DiscoveryFeed, evaluator Evaluator, ledger Ledger, reconciler Reconciler, locks domain.LockManager, cfg Config, logger *slog.Logger) *Driver {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Driver{
		feed:       feed,
		evaluator:  evaluator,
		ledger:     ledger,
		reconciler: reconciler,
		locks:      locks,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "driver")),
		excluded:   make(map[string]struct{}),
	}
}

// Run blocks until the context is cancelled. It runs one cycle immediately
// after startup recovery, then one per poll interval.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.recover(ctx); err != nil {
		return err
	}

	d.logger.Info("evaluation loop started",
		slog.Duration("poll_interval", d.cfg.PollInterval),
		slog.Int("max_concurrent", d.cfg.MaxConcurrent))

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("evaluation loop stopped")
			return ctx.Err()
		case <-ticker.C:
			d.cycle(ctx)
		}
	}
}

// LastCycleAt returns when the last cycle completed, or nil before the
// first one.
func (d *Driver) LastCycleAt() *time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.lastCycle == nil {
		return nil
	}
	t := *d.lastCycle
	return &t
}

// recover restores the ledger and settles the execution journal before any
// trading happens.
func (d *Driver) recover(ctx context.Context) error {
	if err := d.ledger.Restore(ctx); err != nil {
		return fmt.Errorf("driver: %w", err)
	}

	if d.reconciler == nil {
		return nil
	}
	unresolved, err := d.reconciler.Run(ctx)
	if err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	if len(unresolved) > 0 {
		d.mu.Lock()
		for _, addr := range unresolved {
			d.excluded[addr] = struct{}{}
		}
		d.mu.Unlock()
		d.logger.Warn("tokens excluded pending manual reconciliation",
			slog.Int("count", len(unresolved)),
			slog.Any("tokens", unresolved))
	}
	return nil
}

// cycle runs one evaluation pass over the candidate set. Evaluation errors
// are logged per token; a cycle never aborts because one token failed.
func (d *Driver) cycle(ctx context.Context) {
	start := time.Now()

	tokens, err := d.candidates(ctx)
	if err != nil {
		d.logger.Error("failed to gather candidates", slog.String("error", err.Error()))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.MaxConcurrent)

	for _, token := range tokens {
		token := token
		g.Go(func() error {
			d.evaluate(gctx, token)
			return nil
		})
	}
	g.Wait()

	now := time.Now().UTC()
	d.mu.Lock()
	d.lastCycle = &now
	d.mu.Unlock()

	d.logger.Debug("cycle complete",
		slog.Int("tokens", len(tokens)),
		slog.Duration("elapsed", time.Since(start)))
}

// candidates merges freshly discovered tokens with every token the bot
// holds, so open positions keep being evaluated after they fall off the
// discovery feed.
func (d *Driver) candidates(ctx context.Context) ([]domain.Token, error) {
	discovered, err := d.feed.ListNewTokens(ctx, d.cfg.DiscoveryLimit)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	seen := make(map[string]struct{}, len(discovered))
	tokens := make([]domain.Token, 0, len(discovered))

	d.mu.RLock()
	excluded := d.excluded
	d.mu.RUnlock()

	for _, t := range discovered {
		if _, skip := excluded[t.Address]; skip {
			continue
		}
		if _, dup := seen[t.Address]; dup {
			continue
		}
		seen[t.Address] = struct{}{}
		tokens = append(tokens, t)
	}

	for _, pos := range d.ledger.ListOpen() {
		if _, skip := excluded[pos.TokenAddress]; skip {
			continue
		}
		if _, dup := seen[pos.TokenAddress]; dup {
			continue
		}
		seen[pos.TokenAddress] = struct{}{}
		tokens = append(tokens, domain.Token{
			Address: pos.TokenAddress,
			Symbol:  pos.Symbol,
		})
	}

	return tokens, nil
}

// evaluate runs a single token evaluation under the per-token cycle lock.
func (d *Driver) evaluate(ctx context.Context, token domain.Token) {
	if d.locks != nil {
		unlock, err := d.locks.Acquire(ctx, "cycle:"+token.Address, d.cfg.CycleLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				// Another evaluation of this token is still in flight.
				return
			}
			d.logger.Warn("cycle lock failed",
				slog.String("token", token.Address),
				slog.String("error", err.Error()))
			return
		}
		defer unlock()
	}

	if _, err := d.evaluator.EvaluateToken(ctx, token); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		d.logger.Warn("evaluation failed",
			slog.String("token", token.Address),
			slog.String("error", err.Error()))
	}
}
