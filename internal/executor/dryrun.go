package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/you/snipebot/internal/domain"
)

// DryRunGateway is an ExecutionGateway that never touches the chain. It
// prices fills from the live quote source and settles every request
// immediately, so the rest of the pipeline runs unmodified.
type DryRunGateway struct {
	quotes domain.QuoteSource
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	settled map[string]struct{}
}

// NewDryRunGateway creates a DryRunGateway priced by the given quote source.
func NewDryRunGateway(quotes domain.QuoteSource, logger *slog.Logger) *DryRunGateway {
	return &DryRunGateway{
		quotes:  quotes,
		logger:  logger.With(slog.String("component", "dryrun_gateway")),
		now:     time.Now,
		settled: make(map[string]struct{}),
	}
}

// ExecuteBuy synthesizes a buy fill at the current quoted price.
func (g *DryRunGateway) ExecuteBuy(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
	price, err := g.price(ctx, req.TokenAddress)
	if err != nil {
		return domain.Fill{}, err
	}

	fill := domain.Fill{
		RequestID:    req.ID,
		TokenAddress: req.TokenAddress,
		Side:         domain.TradeSideBuy,
		Quantity:     req.AmountSOL / price,
		Price:        price,
		AmountSOL:    req.AmountSOL,
		TxHash:       "dryrun-" + req.ID,
		ExecutedAt:   g.now().UTC(),
	}
	g.record(req.ID)
	g.logger.Info("simulated buy",
		slog.String("token", req.TokenAddress),
		slog.Float64("amount_sol", req.AmountSOL),
		slog.Float64("price", price))
	return fill, nil
}

// ExecuteSell synthesizes a sell fill at the current quoted price.
func (g *DryRunGateway) ExecuteSell(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
	price, err := g.price(ctx, req.TokenAddress)
	if err != nil {
		return domain.Fill{}, err
	}

	fill := domain.Fill{
		RequestID:    req.ID,
		TokenAddress: req.TokenAddress,
		Side:         domain.TradeSideSell,
		Quantity:     req.Quantity,
		Price:        price,
		AmountSOL:    req.Quantity * price,
		TxHash:       "dryrun-" + req.ID,
		ExecutedAt:   g.now().UTC(),
	}
	g.record(req.ID)
	g.logger.Info("simulated sell",
		slog.String("token", req.TokenAddress),
		slog.Float64("quantity", req.Quantity),
		slog.Float64("price", price))
	return fill, nil
}

// TradeStatus reports settled for requests this gateway filled. Requests it
// has never seen, including those journaled by a previous process, are
// reported failed so reconciliation clears them without inventing fills.
func (g *DryRunGateway) TradeStatus(ctx context.Context, requestID string) (domain.TradeStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.settled[requestID]; ok {
		return domain.TradeStatusSettled, nil
	}
	return domain.TradeStatusFailed, nil
}

func (g *DryRunGateway) price(ctx context.Context, tokenAddress string) (float64, error) {
	q, err := g.quotes.Quote(ctx, tokenAddress)
	if err != nil {
		return 0, fmt.Errorf("executor: dryrun price %s: %w", tokenAddress, err)
	}
	if q.Price <= 0 {
		return 0, fmt.Errorf("executor: dryrun price %s: %w: non-positive quoted price", tokenAddress, domain.ErrDataUnavailable)
	}
	return q.Price, nil
}

func (g *DryRunGateway) record(requestID string) {
	g.mu.Lock()
	g.settled[requestID] = struct{}{}
	g.mu.Unlock()
}

// Compile-time interface check.
var _ domain.ExecutionGateway = (*DryRunGateway)(nil)
