// Package executor submits trades through an execution gateway. Every
// request is journaled as pending before submission and resolved afterwards,
// so an interrupted run leaves a record that startup reconciliation can
// settle.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/you/snipebot/internal/domain"
)

// Executor wraps a domain.ExecutionGateway with request journaling, a
// bounded retry policy, and duplicate suppression.
type Executor struct {
	gateway domain.ExecutionGateway
	journal domain.ExecutionStore
	retry   RetryPolicy
	dedup   *Dedup
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// New creates an Executor.
func New(gateway domain.ExecutionGateway, journal domain.ExecutionStore, retry RetryPolicy, logger *slog.Logger) *Executor {
	return &Executor{
		gateway: gateway,
		journal: journal,
		retry:   retry,
		dedup:   NewDedup(2 * time.Minute),
		logger:  logger.With(slog.String("component", "executor")),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Buy submits a buy of amountSOL worth of the token and returns the fill.
// The symbol travels with the journal entry so a reconciled position keeps
// its name.
func (e *Executor) Buy(ctx context.Context, tokenAddress, symbol string, amountSOL float64) (domain.Fill, error) {
	req := domain.ExecutionRequest{
		ID:           e.newID(),
		TokenAddress: tokenAddress,
		Symbol:       symbol,
		Side:         domain.TradeSideBuy,
		Action:       domain.ActionBuy,
		AmountSOL:    amountSOL,
		Status:       domain.ExecutionStatusPending,
		CreatedAt:    e.now().UTC(),
	}
	return e.submit(ctx, req, func(ctx context.Context) (domain.Fill, error) {
		return e.gateway.ExecuteBuy(ctx, req)
	})
}

// Sell submits a sell of quantity tokens and returns the fill. action
// records whether this is a partial or a full close.
func (e *Executor) Sell(ctx context.Context, tokenAddress string, quantity float64, action domain.Action) (domain.Fill, error) {
	req := domain.ExecutionRequest{
		ID:           e.newID(),
		TokenAddress: tokenAddress,
		Side:         domain.TradeSideSell,
		Action:       action,
		Quantity:     quantity,
		Status:       domain.ExecutionStatusPending,
		CreatedAt:    e.now().UTC(),
	}
	return e.submit(ctx, req, func(ctx context.Context) (domain.Fill, error) {
		return e.gateway.ExecuteSell(ctx, req)
	})
}

// submit journals the request, runs the gateway call under the retry policy,
// and resolves the journal entry. A request interrupted by context
// cancellation stays pending for reconciliation; any other failure is
// resolved as failed.
func (e *Executor) submit(ctx context.Context, req domain.ExecutionRequest, call func(context.Context) (domain.Fill, error)) (domain.Fill, error) {
	log := e.logger.With(
		slog.String("request_id", req.ID),
		slog.String("token", req.TokenAddress),
		slog.String("action", string(req.Action)),
	)

	dedupKey := req.TokenAddress + ":" + string(req.Action)
	if e.dedup.IsDuplicate(dedupKey) {
		return domain.Fill{}, fmt.Errorf("executor: %s %s: %w: duplicate request within window",
			req.Action, req.TokenAddress, domain.ErrExecutionFailed)
	}

	if err := e.journal.Create(ctx, req); err != nil {
		// Nothing reached the gateway, so the next cycle may retry at once.
		e.dedup.Forget(dedupKey)
		return domain.Fill{}, fmt.Errorf("executor: journal %s: %w: %v", req.ID, domain.ErrPersistenceFailed, err)
	}

	var fill domain.Fill
	err := e.retry.Do(ctx, func() error {
		var callErr error
		fill, callErr = call(ctx)
		return callErr
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Outcome unknown: the request may have reached the venue. Leave
			// the journal entry pending for startup reconciliation.
			log.Warn("execution interrupted, outcome unknown", slog.String("error", err.Error()))
			return domain.Fill{}, fmt.Errorf("executor: %s %s interrupted: %w", req.Action, req.TokenAddress, err)
		}

		if rerr := e.journal.Resolve(ctx, req.ID, domain.ExecutionStatusFailed); rerr != nil {
			log.Error("failed to resolve journal entry", slog.String("error", rerr.Error()))
		}
		// A definite failure leaves the token eligible for the next cycle;
		// suppression only guards settled and outcome-unknown requests.
		e.dedup.Forget(dedupKey)
		log.Warn("execution failed", slog.String("error", err.Error()))
		return domain.Fill{}, fmt.Errorf("executor: %s %s: %w: %v", req.Action, req.TokenAddress, domain.ErrExecutionFailed, err)
	}

	if rerr := e.journal.Resolve(ctx, req.ID, domain.ExecutionStatusSettled); rerr != nil {
		// The trade happened; reconciliation will settle the journal later.
		log.Error("failed to resolve journal entry", slog.String("error", rerr.Error()))
	}

	log.Info("execution settled",
		slog.Float64("quantity", fill.Quantity),
		slog.Float64("price", fill.Price),
		slog.String("tx_hash", fill.TxHash))

	fill.RequestID = req.ID
	return fill, nil
}

// SetDedupTTL replaces the duplicate-suppression window. Useful in tests.
func (e *Executor) SetDedupTTL(ttl time.Duration) {
	e.dedup = NewDedup(ttl)
}
