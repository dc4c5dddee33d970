package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/snipebot/internal/domain"
)

// ---------------------------------------------------------------------------
// Shared fakes
// ---------------------------------------------------------------------------

type fakeJournal struct {
	mu         sync.Mutex
	created    []domain.ExecutionRequest
	resolved   map[string]domain.ExecutionStatus
	pending    []domain.ExecutionRequest
	createErr  error
	resolveErr error
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{resolved: make(map[string]domain.ExecutionStatus)}
}

func (j *fakeJournal) Create(ctx context.Context, req domain.ExecutionRequest) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.createErr != nil {
		return j.createErr
	}
	j.created = append(j.created, req)
	return nil
}

func (j *fakeJournal) Resolve(ctx context.Context, id string, status domain.ExecutionStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.resolveErr != nil {
		return j.resolveErr
	}
	j.resolved[id] = status
	return nil
}

func (j *fakeJournal) GetByID(ctx context.Context, id string) (domain.ExecutionRequest, error) {
	return domain.ExecutionRequest{}, domain.ErrNotFound
}

func (j *fakeJournal) ListPending(ctx context.Context) ([]domain.ExecutionRequest, error) {
	return j.pending, nil
}

func (j *fakeJournal) statusOf(id string) (domain.ExecutionStatus, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s, ok := j.resolved[id]
	return s, ok
}

type fakeGateway struct {
	buyFn    func(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error)
	sellFn   func(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error)
	statusFn func(ctx context.Context, requestID string) (domain.TradeStatus, error)
}

func (g *fakeGateway) ExecuteBuy(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
	return g.buyFn(ctx, req)
}

func (g *fakeGateway) ExecuteSell(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
	return g.sellFn(ctx, req)
}

func (g *fakeGateway) TradeStatus(ctx context.Context, requestID string) (domain.TradeStatus, error) {
	if g.statusFn == nil {
		return domain.TradeStatusUnknown, nil
	}
	return g.statusFn(ctx, requestID)
}

type fakeQuoteSource struct {
	price float64
	err   error
}

func (f *fakeQuoteSource) Quote(ctx context.Context, token string) (domain.Quote, error) {
	if f.err != nil {
		return domain.Quote{}, f.err
	}
	return domain.Quote{TokenAddress: token, Price: f.price, FetchedAt: time.Now()}, nil
}

func (f *fakeQuoteSource) Risk(ctx context.Context, token string) (domain.RiskReport, error) {
	return domain.RiskReport{TokenAddress: token}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quickRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2.0}
}

func settlingGateway() *fakeGateway {
	fill := func(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
		return domain.Fill{
			TokenAddress: req.TokenAddress,
			Quantity:     100,
			Price:        0.01,
			AmountSOL:    1.0,
			TxHash:       "0xabc",
			ExecutedAt:   time.Now(),
		}, nil
	}
	return &fakeGateway{buyFn: fill, sellFn: fill}
}

// ---------------------------------------------------------------------------
// Executor
// ---------------------------------------------------------------------------

func TestBuyJournalsAndSettles(t *testing.T) {
	journal := newFakeJournal()
	e := New(settlingGateway(), journal, quickRetry(), testLogger())

	fill, err := e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	require.NoError(t, err)

	require.Len(t, journal.created, 1)
	req := journal.created[0]
	assert.Equal(t, domain.ExecutionStatusPending, req.Status)
	assert.Equal(t, domain.TradeSideBuy, req.Side)
	assert.Equal(t, "PEPE", req.Symbol)
	assert.Equal(t, 1.0, req.AmountSOL)
	assert.NotEmpty(t, req.ID)

	status, ok := journal.statusOf(req.ID)
	require.True(t, ok)
	assert.Equal(t, domain.ExecutionStatusSettled, status)
	assert.Equal(t, req.ID, fill.RequestID)
}

func TestSellCarriesAction(t *testing.T) {
	journal := newFakeJournal()
	e := New(settlingGateway(), journal, quickRetry(), testLogger())

	_, err := e.Sell(context.Background(), "tok1", 50, domain.ActionPartialSell)
	require.NoError(t, err)

	require.Len(t, journal.created, 1)
	assert.Equal(t, domain.ActionPartialSell, journal.created[0].Action)
	assert.Equal(t, domain.TradeSideSell, journal.created[0].Side)
	assert.Equal(t, 50.0, journal.created[0].Quantity)
}

func TestFailedExecutionResolvesFailed(t *testing.T) {
	journal := newFakeJournal()
	gw := &fakeGateway{
		buyFn: func(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
			return domain.Fill{}, errors.New("slippage exceeded")
		},
	}
	e := New(gw, journal, quickRetry(), testLogger())

	_, err := e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	assert.ErrorIs(t, err, domain.ErrExecutionFailed)

	require.Len(t, journal.created, 1)
	status, ok := journal.statusOf(journal.created[0].ID)
	require.True(t, ok)
	assert.Equal(t, domain.ExecutionStatusFailed, status)
}

func TestRetriesBeforeGivingUp(t *testing.T) {
	journal := newFakeJournal()
	var attempts int
	gw := &fakeGateway{
		buyFn: func(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
			attempts++
			if attempts < 3 {
				return domain.Fill{}, errors.New("transient")
			}
			return domain.Fill{TokenAddress: req.TokenAddress, Quantity: 1}, nil
		},
	}
	e := New(gw, journal, quickRetry(), testLogger())

	_, err := e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestCancelledContextLeavesRequestPending(t *testing.T) {
	journal := newFakeJournal()
	ctx, cancel := context.WithCancel(context.Background())
	gw := &fakeGateway{
		buyFn: func(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
			// Shutdown arrives mid-flight; the venue may or may not have the tx.
			cancel()
			return domain.Fill{}, ctx.Err()
		},
	}
	e := New(gw, journal, quickRetry(), testLogger())

	_, err := e.Buy(ctx, "tok1", "PEPE", 1.0)
	require.Error(t, err)

	require.Len(t, journal.created, 1)
	_, resolved := journal.statusOf(journal.created[0].ID)
	assert.False(t, resolved, "interrupted request must stay pending for reconciliation")
}

func TestJournalFailureBlocksSubmission(t *testing.T) {
	journal := newFakeJournal()
	journal.createErr = errors.New("database down")
	var called bool
	gw := &fakeGateway{
		buyFn: func(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
			called = true
			return domain.Fill{}, nil
		},
	}
	e := New(gw, journal, quickRetry(), testLogger())

	_, err := e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	assert.ErrorIs(t, err, domain.ErrPersistenceFailed)
	assert.False(t, called, "gateway must not be reached without a journal entry")
}

func TestDuplicateRequestSuppressed(t *testing.T) {
	journal := newFakeJournal()
	e := New(settlingGateway(), journal, quickRetry(), testLogger())

	_, err := e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	require.NoError(t, err)

	_, err = e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	assert.ErrorIs(t, err, domain.ErrExecutionFailed)
	assert.Len(t, journal.created, 1)

	// A different action on the same token is not a duplicate.
	_, err = e.Sell(context.Background(), "tok1", 10, domain.ActionPartialSell)
	require.NoError(t, err)
}

func TestFailedExecutionAllowsRetryNextCycle(t *testing.T) {
	journal := newFakeJournal()
	var attempts int
	gw := &fakeGateway{
		buyFn: func(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
			attempts++
			// The whole first submission burns through its retry budget.
			if attempts <= 3 {
				return domain.Fill{}, errors.New("slippage exceeded")
			}
			return domain.Fill{TokenAddress: req.TokenAddress, Quantity: 100}, nil
		},
	}
	e := New(gw, journal, quickRetry(), testLogger())

	_, err := e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	require.ErrorIs(t, err, domain.ErrExecutionFailed)

	// The next cycle re-attempts the same token and action and must reach
	// the gateway instead of being swallowed by duplicate suppression.
	fill, err := e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fill.Quantity)
	assert.Equal(t, 4, attempts)

	require.Len(t, journal.created, 2)
	status, ok := journal.statusOf(journal.created[1].ID)
	require.True(t, ok)
	assert.Equal(t, domain.ExecutionStatusSettled, status)
}

func TestJournalFailureAllowsImmediateRetry(t *testing.T) {
	journal := newFakeJournal()
	journal.createErr = errors.New("database down")
	e := New(settlingGateway(), journal, quickRetry(), testLogger())

	_, err := e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	require.ErrorIs(t, err, domain.ErrPersistenceFailed)

	journal.createErr = nil
	_, err = e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	require.NoError(t, err)
	assert.Len(t, journal.created, 1)
}

func TestInterruptedRequestStaysSuppressed(t *testing.T) {
	journal := newFakeJournal()
	ctx, cancel := context.WithCancel(context.Background())
	gw := &fakeGateway{
		buyFn: func(ctx context.Context, req domain.ExecutionRequest) (domain.Fill, error) {
			cancel()
			return domain.Fill{}, ctx.Err()
		},
	}
	e := New(gw, journal, quickRetry(), testLogger())

	_, err := e.Buy(ctx, "tok1", "PEPE", 1.0)
	require.Error(t, err)

	// Outcome unknown: a re-attempt before reconciliation could double-buy.
	_, err = e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	assert.ErrorIs(t, err, domain.ErrExecutionFailed)
	assert.Len(t, journal.created, 1)
}

func TestDuplicateWindowExpires(t *testing.T) {
	journal := newFakeJournal()
	e := New(settlingGateway(), journal, quickRetry(), testLogger())
	e.SetDedupTTL(time.Millisecond)

	_, err := e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = e.Buy(context.Background(), "tok1", "PEPE", 1.0)
	require.NoError(t, err)
	assert.Len(t, journal.created, 2)
}
