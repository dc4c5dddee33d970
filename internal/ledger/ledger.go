// Package ledger is the authoritative record of positions. It keeps the set
// of open positions in memory for the evaluation path and mirrors every
// mutation to the durable position store before committing it.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/you/snipebot/internal/domain"
)

// sellEpsilon absorbs float rounding when comparing a sell quantity against
// the remaining position.
const sellEpsilon = 1e-9

// Ledger enforces at-most-one open position per token. Mutations are
// persisted before the in-memory state is updated, so a persistence failure
// leaves the ledger unchanged and surfaces domain.ErrPersistenceFailed.
type Ledger struct {
	store  domain.PositionStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu   sync.RWMutex
	open map[string]domain.Position // keyed by token address
}

// New creates a Ledger. Call Restore before use to rebuild open positions
// from the store.
func New(store domain.PositionStore, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger.With(slog.String("component", "ledger")),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		open:   make(map[string]domain.Position),
	}
}

// Restore loads all open positions from the store into memory. It replaces
// any previous in-memory state.
func (l *Ledger) Restore(ctx context.Context) error {
	positions, err := l.store.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("ledger: restore: %w", err)
	}

	open := make(map[string]domain.Position, len(positions))
	for _, p := range positions {
		if prev, dup := open[p.TokenAddress]; dup {
			// Two open rows for one token should be impossible; keep the
			// older one and flag the newer for operator attention.
			l.logger.Error("duplicate open positions in store",
				slog.String("token", p.TokenAddress),
				slog.String("kept", prev.ID),
				slog.String("ignored", p.ID))
			continue
		}
		open[p.TokenAddress] = p
	}

	l.mu.Lock()
	l.open = open
	l.mu.Unlock()

	l.logger.Info("ledger restored", slog.Int("open_positions", len(open)))
	return nil
}

// Open records a new position from a buy fill. It returns
// domain.ErrDuplicatePosition when an open position already exists for the
// token.
func (l *Ledger) Open(ctx context.Context, symbol string, fill domain.Fill) (domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.open[fill.TokenAddress]; exists {
		return domain.Position{}, fmt.Errorf("ledger: open %s: %w", fill.TokenAddress, domain.ErrDuplicatePosition)
	}

	now := l.now().UTC()
	pos := domain.Position{
		ID:           l.newID(),
		TokenAddress: fill.TokenAddress,
		Symbol:       symbol,
		EntryPrice:   fill.Price,
		Quantity:     fill.Quantity,
		CostSOL:      fill.AmountSOL,
		Status:       domain.PositionStatusOpen,
		OpenedAt:     now,
		UpdatedAt:    now,
	}

	if err := l.store.Create(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("ledger: persist open %s: %w: %v", fill.TokenAddress, domain.ErrPersistenceFailed, err)
	}

	l.open[fill.TokenAddress] = pos
	return pos, nil
}

// RecordPartialSell applies a partial sell fill to the open position for the
// token. It returns domain.ErrNoSuchPosition when no open position exists
// and domain.ErrOverSell when the fill exceeds the remaining quantity; in
// both cases the ledger is unchanged.
func (l *Ledger) RecordPartialSell(ctx context.Context, fill domain.Fill) (domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, exists := l.open[fill.TokenAddress]
	if !exists {
		return domain.Position{}, fmt.Errorf("ledger: partial sell %s: %w", fill.TokenAddress, domain.ErrNoSuchPosition)
	}
	if fill.Quantity > pos.Remaining()+sellEpsilon {
		return domain.Position{}, fmt.Errorf("ledger: partial sell %s: %g > %g remaining: %w",
			fill.TokenAddress, fill.Quantity, pos.Remaining(), domain.ErrOverSell)
	}

	updated := pos
	updated.SoldQuantity += fill.Quantity
	updated.RealizedSOL += fill.AmountSOL
	updated.PartialSells++
	updated.Status = domain.PositionStatusPartiallyClosed
	updated.UpdatedAt = l.now().UTC()

	if err := l.store.Update(ctx, updated); err != nil {
		return domain.Position{}, fmt.Errorf("ledger: persist partial sell %s: %w: %v", fill.TokenAddress, domain.ErrPersistenceFailed, err)
	}

	l.open[fill.TokenAddress] = updated
	return updated, nil
}

// RecordFullSell applies a closing sell fill to the open position for the
// token and retires it. The closed position is terminal; a later buy for the
// same token opens a fresh position.
func (l *Ledger) RecordFullSell(ctx context.Context, fill domain.Fill) (domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, exists := l.open[fill.TokenAddress]
	if !exists {
		return domain.Position{}, fmt.Errorf("ledger: full sell %s: %w", fill.TokenAddress, domain.ErrNoSuchPosition)
	}
	if fill.Quantity > pos.Remaining()+sellEpsilon {
		return domain.Position{}, fmt.Errorf("ledger: full sell %s: %g > %g remaining: %w",
			fill.TokenAddress, fill.Quantity, pos.Remaining(), domain.ErrOverSell)
	}

	now := l.now().UTC()
	exitPrice := fill.Price

	updated := pos
	updated.SoldQuantity = pos.Quantity
	updated.RealizedSOL += fill.AmountSOL
	updated.Status = domain.PositionStatusClosed
	updated.UpdatedAt = now
	updated.ClosedAt = &now
	updated.ExitPrice = &exitPrice

	if err := l.store.Update(ctx, updated); err != nil {
		return domain.Position{}, fmt.Errorf("ledger: persist full sell %s: %w: %v", fill.TokenAddress, domain.ErrPersistenceFailed, err)
	}

	delete(l.open, fill.TokenAddress)
	return updated, nil
}

// Get returns the open position for a token, or domain.ErrNoSuchPosition.
func (l *Ledger) Get(tokenAddress string) (domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, exists := l.open[tokenAddress]
	if !exists {
		return domain.Position{}, fmt.Errorf("ledger: get %s: %w", tokenAddress, domain.ErrNoSuchPosition)
	}
	return pos, nil
}

// ListOpen returns a snapshot of all open positions.
func (l *Ledger) ListOpen() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Position, 0, len(l.open))
	for _, p := range l.open {
		out = append(out, p)
	}
	return out
}

// OpenCount returns the number of open positions.
func (l *Ledger) OpenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.open)
}
