package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/snipebot/internal/domain"
)

// fakeStore is an in-memory domain.PositionStore with injectable failures.
type fakeStore struct {
	created   []domain.Position
	updated   []domain.Position
	openRows  []domain.Position
	createErr error
	updateErr error
}

func (s *fakeStore) Create(ctx context.Context, p domain.Position) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, p)
	return nil
}

func (s *fakeStore) Update(ctx context.Context, p domain.Position) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = append(s.updated, p)
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	return domain.Position{}, domain.ErrNotFound
}

func (s *fakeStore) GetOpenByToken(ctx context.Context, token string) (domain.Position, error) {
	return domain.Position{}, domain.ErrNotFound
}

func (s *fakeStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	return s.openRows, nil
}

func (s *fakeStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.Position, error) {
	return nil, nil
}

func (s *fakeStore) ListHistory(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buyFill(token string, qty, amountSOL float64) domain.Fill {
	return domain.Fill{
		TokenAddress: token,
		Side:         domain.TradeSideBuy,
		Quantity:     qty,
		Price:        amountSOL / qty,
		AmountSOL:    amountSOL,
	}
}

func sellFill(token string, qty, amountSOL float64) domain.Fill {
	return domain.Fill{
		TokenAddress: token,
		Side:         domain.TradeSideSell,
		Quantity:     qty,
		Price:        amountSOL / qty,
		AmountSOL:    amountSOL,
	}
}

func TestOpenCreatesPosition(t *testing.T) {
	store := &fakeStore{}
	l := New(store, testLogger())

	pos, err := l.Open(context.Background(), "PEPE", buyFill("tok1", 1000, 1.0))
	require.NoError(t, err)

	assert.Equal(t, "tok1", pos.TokenAddress)
	assert.Equal(t, "PEPE", pos.Symbol)
	assert.Equal(t, 1000.0, pos.Quantity)
	assert.Equal(t, 1.0, pos.CostSOL)
	assert.Equal(t, domain.PositionStatusOpen, pos.Status)
	require.Len(t, store.created, 1)
	assert.Equal(t, 1, l.OpenCount())
}

func TestOpenDuplicateRejected(t *testing.T) {
	store := &fakeStore{}
	l := New(store, testLogger())

	_, err := l.Open(context.Background(), "PEPE", buyFill("tok1", 1000, 1.0))
	require.NoError(t, err)

	_, err = l.Open(context.Background(), "PEPE", buyFill("tok1", 500, 0.5))
	assert.ErrorIs(t, err, domain.ErrDuplicatePosition)
	assert.Len(t, store.created, 1)
	assert.Equal(t, 1, l.OpenCount())
}

func TestOpenPersistFailureLeavesLedgerEmpty(t *testing.T) {
	store := &fakeStore{createErr: errors.New("connection refused")}
	l := New(store, testLogger())

	_, err := l.Open(context.Background(), "PEPE", buyFill("tok1", 1000, 1.0))
	assert.ErrorIs(t, err, domain.ErrPersistenceFailed)

	_, err = l.Get("tok1")
	assert.ErrorIs(t, err, domain.ErrNoSuchPosition)
	assert.Equal(t, 0, l.OpenCount())
}

func TestPartialSellUpdatesPosition(t *testing.T) {
	store := &fakeStore{}
	l := New(store, testLogger())

	_, err := l.Open(context.Background(), "PEPE", buyFill("tok1", 1000, 1.0))
	require.NoError(t, err)

	pos, err := l.RecordPartialSell(context.Background(), sellFill("tok1", 500, 1.25))
	require.NoError(t, err)

	assert.Equal(t, 500.0, pos.SoldQuantity)
	assert.Equal(t, 500.0, pos.Remaining())
	assert.Equal(t, 1.25, pos.RealizedSOL)
	assert.Equal(t, 1, pos.PartialSells)
	assert.Equal(t, domain.PositionStatusPartiallyClosed, pos.Status)
}

func TestPartialSellNoPosition(t *testing.T) {
	l := New(&fakeStore{}, testLogger())

	_, err := l.RecordPartialSell(context.Background(), sellFill("tok1", 500, 1.25))
	assert.ErrorIs(t, err, domain.ErrNoSuchPosition)
}

func TestOverSellLeavesPositionUnchanged(t *testing.T) {
	store := &fakeStore{}
	l := New(store, testLogger())

	_, err := l.Open(context.Background(), "PEPE", buyFill("tok1", 1000, 1.0))
	require.NoError(t, err)

	_, err = l.RecordPartialSell(context.Background(), sellFill("tok1", 1500, 3.0))
	assert.ErrorIs(t, err, domain.ErrOverSell)

	pos, err := l.Get("tok1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, pos.SoldQuantity)
	assert.Equal(t, 0, pos.PartialSells)
	assert.Empty(t, store.updated)
}

func TestPartialSellPersistFailureRollsBack(t *testing.T) {
	store := &fakeStore{}
	l := New(store, testLogger())

	_, err := l.Open(context.Background(), "PEPE", buyFill("tok1", 1000, 1.0))
	require.NoError(t, err)

	store.updateErr = errors.New("write timeout")
	_, err = l.RecordPartialSell(context.Background(), sellFill("tok1", 500, 1.25))
	assert.ErrorIs(t, err, domain.ErrPersistenceFailed)

	pos, err := l.Get("tok1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, pos.SoldQuantity)
	assert.Equal(t, domain.PositionStatusOpen, pos.Status)
}

func TestFullSellIsTerminal(t *testing.T) {
	store := &fakeStore{}
	l := New(store, testLogger())

	_, err := l.Open(context.Background(), "PEPE", buyFill("tok1", 1000, 1.0))
	require.NoError(t, err)

	pos, err := l.RecordFullSell(context.Background(), sellFill("tok1", 1000, 3.0))
	require.NoError(t, err)

	assert.Equal(t, domain.PositionStatusClosed, pos.Status)
	assert.NotNil(t, pos.ClosedAt)
	assert.NotNil(t, pos.ExitPrice)
	assert.InDelta(t, 2.0, pos.RealizedPnL(), 1e-9)

	_, err = l.Get("tok1")
	assert.ErrorIs(t, err, domain.ErrNoSuchPosition)

	// A closed position is retired; the same token may be bought again.
	reopened, err := l.Open(context.Background(), "PEPE", buyFill("tok1", 2000, 1.0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, reopened.SoldQuantity)
	assert.NotEqual(t, pos.ID, reopened.ID)
}

func TestFullSellAfterPartial(t *testing.T) {
	store := &fakeStore{}
	l := New(store, testLogger())

	_, err := l.Open(context.Background(), "PEPE", buyFill("tok1", 1000, 1.0))
	require.NoError(t, err)
	_, err = l.RecordPartialSell(context.Background(), sellFill("tok1", 400, 1.0))
	require.NoError(t, err)

	pos, err := l.RecordFullSell(context.Background(), sellFill("tok1", 600, 2.0))
	require.NoError(t, err)

	assert.Equal(t, pos.Quantity, pos.SoldQuantity)
	assert.InDelta(t, 3.0, pos.RealizedSOL, 1e-9)
	assert.Equal(t, domain.PositionStatusClosed, pos.Status)
}

func TestRestoreRebuildsOpenPositions(t *testing.T) {
	store := &fakeStore{openRows: []domain.Position{
		{ID: "p1", TokenAddress: "tok1", Status: domain.PositionStatusOpen},
		{ID: "p2", TokenAddress: "tok2", Status: domain.PositionStatusPartiallyClosed},
	}}
	l := New(store, testLogger())

	require.NoError(t, l.Restore(context.Background()))
	assert.Equal(t, 2, l.OpenCount())

	pos, err := l.Get("tok2")
	require.NoError(t, err)
	assert.Equal(t, "p2", pos.ID)
}

func TestRestoreKeepsFirstOfDuplicateRows(t *testing.T) {
	store := &fakeStore{openRows: []domain.Position{
		{ID: "p1", TokenAddress: "tok1", Status: domain.PositionStatusOpen},
		{ID: "p2", TokenAddress: "tok1", Status: domain.PositionStatusOpen},
	}}
	l := New(store, testLogger())

	require.NoError(t, l.Restore(context.Background()))
	assert.Equal(t, 1, l.OpenCount())

	pos, err := l.Get("tok1")
	require.NoError(t, err)
	assert.Equal(t, "p1", pos.ID)
}
