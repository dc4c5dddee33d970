package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/you/snipebot/internal/domain"
	"github.com/you/snipebot/internal/platform/gmgn"
)

const (
	lamportsPerSOL = 1e9
	// tokenBaseUnits assumes the SPL-standard 6 decimals. The GMGN API
	// carries no per-mint decimals field, and the launchpad mints the
	// discovery feed surfaces all use 6.
	tokenBaseUnits = 1e6
)

// SwapRouter is the slice of the GMGN client the gateway needs.
type SwapRouter interface {
	SwapRoute(ctx context.Context, tokenIn, tokenOut, amount string) (gmgn.APISwapRoute, error)
	SubmitTransaction(ctx context.Context, signedTx string) (string, error)
	SolMint() string
}

// TxSigner signs a base64-encoded unsigned transaction and returns the
// signed transaction, also base64 encoded.
type TxSigner interface {
	SignTransaction(ctx context.Context, unsignedTx string) (string, error)
}

// Gateway executes swaps through the GMGN router: route, sign, submit. It
// keeps an in-memory map of request IDs to transaction hashes, so requests
// from a previous process report an unknown status.
type Gateway struct {
	router SwapRouter
	signer TxSigner
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	hashes map[string]string
}

// NewGateway creates a live execution gateway.
func NewGateway(router SwapRouter, signer TxSigner, logger *slog.Logger) *Gateway {
	return &Gateway{
		router: router,
		signer: signer,
		logger: logger.With(slog.String("component", "gateway")),
		now:    time.Now,
		hashes: make(map[string]string),
	}
}

// ExecuteBuy swaps req.AmountSOL of SOL into the token.
func (g *Gateway) ExecuteBuy(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
	inLamports := strconv.FormatInt(int64(math.Round(req.AmountSOL*lamportsPerSOL)), 10)

	route, err := g.router.SwapRoute(ctx, g.router.SolMint(), req.TokenAddress, inLamports)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("executor: route buy %s: %w", req.TokenAddress, err)
	}

	outUnits, err := strconv.ParseFloat(route.Quote.OutAmount, 64)
	if err != nil || outUnits <= 0 {
		return domain.Fill{}, fmt.Errorf("executor: route buy %s: bad out amount %q", req.TokenAddress, route.Quote.OutAmount)
	}
	quantity := outUnits / tokenBaseUnits

	txHash, err := g.signAndSubmit(ctx, route.RawTx.SwapTransaction)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("executor: buy %s: %w", req.TokenAddress, err)
	}
	g.record(req.ID, txHash)

	return domain.Fill{
		RequestID:    req.ID,
		TokenAddress: req.TokenAddress,
		Side:         domain.TradeSideBuy,
		Quantity:     quantity,
		Price:        req.AmountSOL / quantity,
		AmountSOL:    req.AmountSOL,
		TxHash:       txHash,
		ExecutedAt:   g.now().UTC(),
	}, nil
}

// ExecuteSell swaps req.Quantity of the token back into SOL.
func (g *Gateway) ExecuteSell(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
	inUnits := strconv.FormatInt(int64(math.Round(req.Quantity*tokenBaseUnits)), 10)

	route, err := g.router.SwapRoute(ctx, req.TokenAddress, g.router.SolMint(), inUnits)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("executor: route sell %s: %w", req.TokenAddress, err)
	}

	outLamports, err := strconv.ParseFloat(route.Quote.OutAmount, 64)
	if err != nil || outLamports <= 0 {
		return domain.Fill{}, fmt.Errorf("executor: route sell %s: bad out amount %q", req.TokenAddress, route.Quote.OutAmount)
	}
	amountSOL := outLamports / lamportsPerSOL

	txHash, err := g.signAndSubmit(ctx, route.RawTx.SwapTransaction)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("executor: sell %s: %w", req.TokenAddress, err)
	}
	g.record(req.ID, txHash)

	return domain.Fill{
		RequestID:    req.ID,
		TokenAddress: req.TokenAddress,
		Side:         domain.TradeSideSell,
		Quantity:     req.Quantity,
		Price:        amountSOL / req.Quantity,
		AmountSOL:    amountSOL,
		TxHash:       txHash,
		ExecutedAt:   g.now().UTC(),
	}, nil
}

// TradeStatus reports settled for requests this process submitted. The
// router offers no lookup by client request ID, so anything else is unknown
// and reconciliation has to decide what to do with it.
func (g *Gateway) TradeStatus(ctx context.Context, requestID string) (domain.TradeStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.hashes[requestID]; ok {
		return domain.TradeStatusSettled, nil
	}
	return domain.TradeStatusUnknown, nil
}

func (g *Gateway) signAndSubmit(ctx context.Context, unsignedTx string) (string, error) {
	if unsignedTx == "" {
		return "", fmt.Errorf("%w: router returned no transaction", domain.ErrExecutionFailed)
	}

	signedTx, err := g.signer.SignTransaction(ctx, unsignedTx)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	txHash, err := g.router.SubmitTransaction(ctx, signedTx)
	if err != nil {
		return "", err
	}
	return txHash, nil
}

func (g *Gateway) record(requestID, txHash string) {
	g.mu.Lock()
	g.hashes[requestID] = txHash
	g.mu.Unlock()
}

// Compile-time interface check.
var _ domain.ExecutionGateway = (*Gateway)(nil)
