package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/you/snipebot/internal/domain"
)

// PositionLedger is the slice of the ledger the reconciler mutates.
type PositionLedger interface {
	Open(ctx context.Context, symbol string, fill domain.Fill) (domain.Position, error)
	RecordPartialSell(ctx context.Context, fill domain.Fill) (domain.Position, error)
	RecordFullSell(ctx context.Context, fill domain.Fill) (domain.Position, error)
}

// Reconciler resolves execution requests left pending by a previous run. It
// asks the gateway what happened to each one: settled requests are replayed
// into the ledger, failed ones are closed out, and unknown ones stay pending
// with their tokens excluded from trading until an operator intervenes.
type Reconciler struct {
	journal domain.ExecutionStore
	gateway domain.ExecutionGateway
	ledger  PositionLedger
	trades  domain.TradeStore
	audit   domain.AuditStore
	quotes  domain.QuoteSource
	logger  *slog.Logger
	now     func() time.Time
}

// NewReconciler creates a Reconciler. audit may be nil.
func NewReconciler(journal domain.ExecutionStore, gateway domain.ExecutionGateway, ledger PositionLedger, trades domain.TradeStore, audit domain.AuditStore, quotes domain.QuoteSource, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		journal: journal,
		gateway: gateway,
		ledger:  ledger,
		trades:  trades,
		audit:   audit,
		quotes:  quotes,
		logger:  logger.With(slog.String("component", "reconciler")),
		now:     time.Now,
	}
}

// Run processes every pending journal entry and returns the token addresses
// whose outcome is still unknown. Those tokens must not be traded this run.
func (r *Reconciler) Run(ctx context.Context) ([]string, error) {
	pending, err := r.journal.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconciler: list pending: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	r.logger.Info("reconciling pending executions", slog.Int("count", len(pending)))

	var unresolved []string
	for _, req := range pending {
		status, err := r.gateway.TradeStatus(ctx, req.ID)
		if err != nil {
			r.logger.Warn("trade status lookup failed",
				slog.String("request_id", req.ID),
				slog.String("error", err.Error()))
			unresolved = append(unresolved, req.TokenAddress)
			continue
		}

		switch status {
		case domain.TradeStatusSettled:
			if err := r.applySettled(ctx, req); err != nil {
				r.logger.Error("failed to apply settled execution",
					slog.String("request_id", req.ID),
					slog.String("error", err.Error()))
				unresolved = append(unresolved, req.TokenAddress)
			}
		case domain.TradeStatusFailed:
			if err := r.journal.Resolve(ctx, req.ID, domain.ExecutionStatusFailed); err != nil {
				r.logger.Error("failed to resolve journal entry",
					slog.String("request_id", req.ID),
					slog.String("error", err.Error()))
				unresolved = append(unresolved, req.TokenAddress)
				continue
			}
			r.logger.Info("pending execution resolved as failed",
				slog.String("request_id", req.ID),
				slog.String("token", req.TokenAddress))
		default:
			r.logger.Warn("execution outcome still unknown",
				slog.String("request_id", req.ID),
				slog.String("token", req.TokenAddress))
			unresolved = append(unresolved, req.TokenAddress)
		}
	}

	return unresolved, nil
}

// applySettled replays a settled request into the ledger. The original fill
// is gone, so the fill is reconstructed at the current quoted price; the
// approximation is audit-logged.
func (r *Reconciler) applySettled(ctx context.Context, req domain.ExecutionRequest) error {
	quote, err := r.quotes.Quote(ctx, req.TokenAddress)
	if err != nil {
		return fmt.Errorf("quote %s: %w", req.TokenAddress, err)
	}
	if quote.Price <= 0 {
		return fmt.Errorf("quote %s: non-positive price", req.TokenAddress)
	}

	fill := domain.Fill{
		RequestID:    req.ID,
		TokenAddress: req.TokenAddress,
		Side:         req.Side,
		Quantity:     req.Quantity,
		Price:        quote.Price,
		AmountSOL:    req.AmountSOL,
		ExecutedAt:   r.now().UTC(),
	}
	if req.Side == domain.TradeSideBuy {
		fill.Quantity = req.AmountSOL / quote.Price
	} else {
		fill.AmountSOL = req.Quantity * quote.Price
	}

	var pos domain.Position
	switch req.Action {
	case domain.ActionBuy:
		pos, err = r.ledger.Open(ctx, req.Symbol, fill)
	case domain.ActionPartialSell:
		pos, err = r.ledger.RecordPartialSell(ctx, fill)
	case domain.ActionFullSell:
		pos, err = r.ledger.RecordFullSell(ctx, fill)
	default:
		return fmt.Errorf("unknown action %q", req.Action)
	}

	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePosition) || errors.Is(err, domain.ErrNoSuchPosition) || errors.Is(err, domain.ErrOverSell) {
			// The ledger mutation landed before the crash; only the journal
			// entry is behind.
			r.logger.Info("settled execution already applied",
				slog.String("request_id", req.ID),
				slog.String("token", req.TokenAddress))
			return r.finishSettled(ctx, req, false)
		}
		return err
	}

	trade := domain.Trade{
		RequestID:    req.ID,
		PositionID:   pos.ID,
		TokenAddress: req.TokenAddress,
		Symbol:       pos.Symbol,
		Side:         req.Side,
		Action:       req.Action,
		Quantity:     fill.Quantity,
		Price:        fill.Price,
		AmountSOL:    fill.AmountSOL,
		ExecutedAt:   fill.ExecutedAt,
	}
	if err := r.trades.Insert(ctx, trade); err != nil {
		r.logger.Error("failed to record reconciled trade",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()))
	}

	return r.finishSettled(ctx, req, true)
}

func (r *Reconciler) finishSettled(ctx context.Context, req domain.ExecutionRequest, replayed bool) error {
	if err := r.journal.Resolve(ctx, req.ID, domain.ExecutionStatusSettled); err != nil {
		return fmt.Errorf("resolve %s: %w", req.ID, err)
	}
	if r.audit != nil {
		detail := map[string]any{
			"request_id": req.ID,
			"token":      req.TokenAddress,
			"action":     string(req.Action),
			"replayed":   replayed,
			"priced_at":  "current_quote",
		}
		if err := r.audit.Log(ctx, string(domain.EventReconcileResolved), detail); err != nil {
			r.logger.Warn("audit log failed", slog.String("error", err.Error()))
		}
	}
	return nil
}
