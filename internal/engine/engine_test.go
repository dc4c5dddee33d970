package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/snipebot/internal/domain"
)

type fakeQuotes struct {
	price float64
	err   error
}

func (f *fakeQuotes) Quote(ctx context.Context, token string) (domain.Quote, error) {
	if f.err != nil {
		return domain.Quote{}, f.err
	}
	return domain.Quote{TokenAddress: token, Price: f.price, FetchedAt: time.Now()}, nil
}

func (f *fakeQuotes) Risk(ctx context.Context, token string) (domain.RiskReport, error) {
	return domain.RiskReport{TokenAddress: token}, nil
}

type fakeScreen struct {
	result domain.ScreenResult
	err    error
}

func (f *fakeScreen) Screen(ctx context.Context, token string) (domain.ScreenResult, error) {
	if f.err != nil {
		return domain.ScreenResult{}, f.err
	}
	return f.result, nil
}

type fakeLedger struct {
	positions map[string]domain.Position
	opened    []domain.Fill
	partials  []domain.Fill
	fulls     []domain.Fill
	openErr   error
	sellErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{positions: make(map[string]domain.Position)}
}

func (l *fakeLedger) Get(token string) (domain.Position, error) {
	pos, ok := l.positions[token]
	if !ok {
		return domain.Position{}, fmt.Errorf("ledger: %s: %w", token, domain.ErrNoSuchPosition)
	}
	return pos, nil
}

func (l *fakeLedger) Open(ctx context.Context, symbol string, fill domain.Fill) (domain.Position, error) {
	if l.openErr != nil {
		return domain.Position{}, l.openErr
	}
	l.opened = append(l.opened, fill)
	pos := domain.Position{
		ID:           "pos1",
		TokenAddress: fill.TokenAddress,
		Symbol:       symbol,
		EntryPrice:   fill.Price,
		Quantity:     fill.Quantity,
		CostSOL:      fill.AmountSOL,
		Status:       domain.PositionStatusOpen,
	}
	l.positions[fill.TokenAddress] = pos
	return pos, nil
}

func (l *fakeLedger) RecordPartialSell(ctx context.Context, fill domain.Fill) (domain.Position, error) {
	if l.sellErr != nil {
		return domain.Position{}, l.sellErr
	}
	l.partials = append(l.partials, fill)
	pos := l.positions[fill.TokenAddress]
	pos.SoldQuantity += fill.Quantity
	pos.RealizedSOL += fill.AmountSOL
	pos.PartialSells++
	pos.Status = domain.PositionStatusPartiallyClosed
	l.positions[fill.TokenAddress] = pos
	return pos, nil
}

func (l *fakeLedger) RecordFullSell(ctx context.Context, fill domain.Fill) (domain.Position, error) {
	if l.sellErr != nil {
		return domain.Position{}, l.sellErr
	}
	l.fulls = append(l.fulls, fill)
	pos := l.positions[fill.TokenAddress]
	pos.SoldQuantity = pos.Quantity
	pos.RealizedSOL += fill.AmountSOL
	pos.Status = domain.PositionStatusClosed
	delete(l.positions, fill.TokenAddress)
	return pos, nil
}

type fakeTrader struct {
	buys     []float64
	sells    []domain.ExecutionRequest
	buyErr   error
	sellErr  error
	price    float64
}

func (f *fakeTrader) Buy(ctx context.Context, token, symbol string, amountSOL float64) (domain.Fill, error) {
	if f.buyErr != nil {
		return domain.Fill{}, f.buyErr
	}
	f.buys = append(f.buys, amountSOL)
	return domain.Fill{
		RequestID:    "req1",
		TokenAddress: token,
		Side:         domain.TradeSideBuy,
		Quantity:     amountSOL / f.price,
		Price:        f.price,
		AmountSOL:    amountSOL,
		TxHash:       "0xbuy",
		ExecutedAt:   time.Now(),
	}, nil
}

func (f *fakeTrader) Sell(ctx context.Context, token string, quantity float64, action domain.Action) (domain.Fill, error) {
	if f.sellErr != nil {
		return domain.Fill{}, f.sellErr
	}
	f.sells = append(f.sells, domain.ExecutionRequest{TokenAddress: token, Quantity: quantity, Action: action})
	return domain.Fill{
		RequestID:    "req2",
		TokenAddress: token,
		Side:         domain.TradeSideSell,
		Quantity:     quantity,
		Price:        f.price,
		AmountSOL:    quantity * f.price,
		TxHash:       "0xsell",
		ExecutedAt:   time.Now(),
	}, nil
}

type fakeTradeStore struct {
	inserted []domain.Trade
}

func (s *fakeTradeStore) Insert(ctx context.Context, trade domain.Trade) error {
	s.inserted = append(s.inserted, trade)
	return nil
}

func (s *fakeTradeStore) ListByToken(ctx context.Context, token string, opts domain.ListOpts) ([]domain.Trade, error) {
	return nil, nil
}

func (s *fakeTradeStore) ListRecent(ctx context.Context, limit int) ([]domain.Trade, error) {
	return nil, nil
}

func (s *fakeTradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	return nil, nil
}

func (s *fakeTradeStore) SumAmount(ctx context.Context, side domain.TradeSide, since time.Time) (float64, error) {
	return 0, nil
}

type fakeBus struct {
	published [][]byte
	appended  [][]byte
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.published = append(b.published, payload)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	b.appended = append(b.appended, payload)
	return nil
}

func (b *fakeBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *fakeBus) eventKinds(t *testing.T) []domain.EventKind {
	t.Helper()
	var kinds []domain.EventKind
	for _, payload := range b.published {
		var ev domain.Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func testParams() TradeParams {
	return TradeParams{
		BuyAmountSOL:        1.0,
		ProfitMultiplierMin: 2.0,
		ProfitMultiplierMax: 3.0,
		SellPercentage:      0.5,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testToken() domain.Token {
	return domain.Token{Address: "tok1", Symbol: "PEPE"}
}

func openPosition(l *fakeLedger, entryPrice, qty float64) {
	l.positions["tok1"] = domain.Position{
		ID:           "pos1",
		TokenAddress: "tok1",
		Symbol:       "PEPE",
		EntryPrice:   entryPrice,
		Quantity:     qty,
		CostSOL:      entryPrice * qty,
		Status:       domain.PositionStatusOpen,
	}
}

func TestTradeableTokenIsBought(t *testing.T) {
	ledger := newFakeLedger()
	trader := &fakeTrader{price: 0.002}
	trades := &fakeTradeStore{}
	bus := &fakeBus{}
	e := New(&fakeQuotes{price: 0.002}, &fakeScreen{result: domain.ScreenResult{Tradeable: true}},
		ledger, trader, trades, bus, testParams(), testLogger())

	dec, err := e.EvaluateToken(context.Background(), testToken())
	require.NoError(t, err)

	assert.Equal(t, domain.ActionBuy, dec.Action)
	assert.Equal(t, domain.StateBought, dec.State)
	require.Len(t, trader.buys, 1)
	assert.Equal(t, 1.0, trader.buys[0])
	require.Len(t, ledger.opened, 1)
	require.Len(t, trades.inserted, 1)
	assert.Equal(t, domain.ActionBuy, trades.inserted[0].Action)
	assert.Contains(t, bus.eventKinds(t), domain.EventTradeBuy)
}

func TestRejectedTokenIsSkippedWithReasons(t *testing.T) {
	screen := &fakeScreen{result: domain.ScreenResult{
		Tradeable: false,
		Failures: []domain.ScreenFailure{
			{Condition: domain.ConditionVolume, Actual: 100, Threshold: 1000},
		},
	}}
	trader := &fakeTrader{price: 0.002}
	e := New(&fakeQuotes{price: 0.002}, screen, newFakeLedger(), trader, &fakeTradeStore{}, nil, testParams(), testLogger())

	dec, err := e.EvaluateToken(context.Background(), testToken())
	require.NoError(t, err)

	assert.Equal(t, domain.ActionSkip, dec.Action)
	assert.Equal(t, domain.StateScreenedRejected, dec.State)
	require.Len(t, dec.Reasons, 1)
	assert.Empty(t, trader.buys, "no trade on a rejected token")
}

func TestScreenErrorYieldsNoVerdict(t *testing.T) {
	screen := &fakeScreen{err: fmt.Errorf("screener: tok1: %w", domain.ErrDataUnavailable)}
	trader := &fakeTrader{price: 0.002}
	e := New(&fakeQuotes{price: 0.002}, screen, newFakeLedger(), trader, &fakeTradeStore{}, nil, testParams(), testLogger())

	_, err := e.EvaluateToken(context.Background(), testToken())
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Empty(t, trader.buys)
}

func TestHoldBelowMinMultiplier(t *testing.T) {
	ledger := newFakeLedger()
	openPosition(ledger, 0.001, 1000)
	trader := &fakeTrader{price: 0.0015}
	e := New(&fakeQuotes{price: 0.0015}, &fakeScreen{}, ledger, trader, &fakeTradeStore{}, nil, testParams(), testLogger())

	dec, err := e.EvaluateToken(context.Background(), testToken())
	require.NoError(t, err)

	assert.Equal(t, domain.ActionHold, dec.Action)
	assert.Equal(t, domain.StateBought, dec.State)
	assert.InDelta(t, 1.5, dec.ProfitMultiple, 1e-9)
	assert.Empty(t, trader.sells)
}

func TestPartialSellInsideBand(t *testing.T) {
	ledger := newFakeLedger()
	openPosition(ledger, 0.001, 1000)
	trader := &fakeTrader{price: 0.0025}
	e := New(&fakeQuotes{price: 0.0025}, &fakeScreen{}, ledger, trader, &fakeTradeStore{}, nil, testParams(), testLogger())

	dec, err := e.EvaluateToken(context.Background(), testToken())
	require.NoError(t, err)

	assert.Equal(t, domain.ActionPartialSell, dec.Action)
	assert.Equal(t, domain.StatePartiallySold, dec.State)
	require.Len(t, trader.sells, 1)
	assert.InDelta(t, 500.0, trader.sells[0].Quantity, 1e-9)
	require.Len(t, ledger.partials, 1)
}

func TestOnlyOnePartialSellPerPosition(t *testing.T) {
	ledger := newFakeLedger()
	openPosition(ledger, 0.001, 1000)
	pos := ledger.positions["tok1"]
	pos.SoldQuantity = 500
	pos.PartialSells = 1
	pos.Status = domain.PositionStatusPartiallyClosed
	ledger.positions["tok1"] = pos

	trader := &fakeTrader{price: 0.0025}
	e := New(&fakeQuotes{price: 0.0025}, &fakeScreen{}, ledger, trader, &fakeTradeStore{}, nil, testParams(), testLogger())

	dec, err := e.EvaluateToken(context.Background(), testToken())
	require.NoError(t, err)

	assert.Equal(t, domain.ActionHold, dec.Action)
	assert.Equal(t, domain.StatePartiallySold, dec.State)
	assert.Empty(t, trader.sells)
}

func TestFullSellAtMaxMultiplier(t *testing.T) {
	ledger := newFakeLedger()
	openPosition(ledger, 0.001, 1000)
	trader := &fakeTrader{price: 0.003}
	trades := &fakeTradeStore{}
	bus := &fakeBus{}
	e := New(&fakeQuotes{price: 0.003}, &fakeScreen{}, ledger, trader, trades, bus, testParams(), testLogger())

	dec, err := e.EvaluateToken(context.Background(), testToken())
	require.NoError(t, err)

	assert.Equal(t, domain.ActionFullSell, dec.Action)
	assert.Equal(t, domain.StateClosed, dec.State)
	require.Len(t, trader.sells, 1)
	assert.Equal(t, 1000.0, trader.sells[0].Quantity, "full close sells the entire remainder")
	require.Len(t, ledger.fulls, 1)
	assert.Contains(t, bus.eventKinds(t), domain.EventTradeFullSell)
}

func TestFullSellWinsOverPendingPartial(t *testing.T) {
	// Price has blown through both thresholds in one cycle and no partial has
	// happened yet: the full close takes precedence.
	ledger := newFakeLedger()
	openPosition(ledger, 0.001, 1000)
	trader := &fakeTrader{price: 0.005}
	e := New(&fakeQuotes{price: 0.005}, &fakeScreen{}, ledger, trader, &fakeTradeStore{}, nil, testParams(), testLogger())

	dec, err := e.EvaluateToken(context.Background(), testToken())
	require.NoError(t, err)

	assert.Equal(t, domain.ActionFullSell, dec.Action)
	assert.Empty(t, ledger.partials)
}

func TestFailedBuyLeavesTokenUnseen(t *testing.T) {
	ledger := newFakeLedger()
	trader := &fakeTrader{price: 0.002, buyErr: fmt.Errorf("executor: buy tok1: %w", domain.ErrExecutionFailed)}
	e := New(&fakeQuotes{price: 0.002}, &fakeScreen{result: domain.ScreenResult{Tradeable: true}},
		ledger, trader, &fakeTradeStore{}, nil, testParams(), testLogger())

	_, err := e.EvaluateToken(context.Background(), testToken())
	assert.ErrorIs(t, err, domain.ErrExecutionFailed)
	assert.Empty(t, ledger.opened, "a failed buy must not open a position")
}

func TestFailedSellLeavesPositionUntouched(t *testing.T) {
	ledger := newFakeLedger()
	openPosition(ledger, 0.001, 1000)
	trader := &fakeTrader{price: 0.003, sellErr: errors.New("slippage exceeded")}
	e := New(&fakeQuotes{price: 0.003}, &fakeScreen{}, ledger, trader, &fakeTradeStore{}, nil, testParams(), testLogger())

	_, err := e.EvaluateToken(context.Background(), testToken())
	require.Error(t, err)
	assert.Empty(t, ledger.fulls)

	pos, err := ledger.Get("tok1")
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusOpen, pos.Status)
}

func TestQuoteErrorOnHeldTokenIsAnError(t *testing.T) {
	ledger := newFakeLedger()
	openPosition(ledger, 0.001, 1000)
	quotes := &fakeQuotes{err: fmt.Errorf("quote: tok1: %w", domain.ErrDataUnavailable)}
	trader := &fakeTrader{}
	e := New(quotes, &fakeScreen{}, ledger, trader, &fakeTradeStore{}, nil, testParams(), testLogger())

	_, err := e.EvaluateToken(context.Background(), testToken())
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Empty(t, trader.sells)
}

func TestLedgerRefusalAfterFillPublishesViolation(t *testing.T) {
	ledger := newFakeLedger()
	ledger.openErr = fmt.Errorf("ledger: open tok1: %w", domain.ErrDuplicatePosition)
	bus := &fakeBus{}
	e := New(&fakeQuotes{price: 0.002}, &fakeScreen{result: domain.ScreenResult{Tradeable: true}},
		ledger, &fakeTrader{price: 0.002}, &fakeTradeStore{}, bus, testParams(), testLogger())

	_, err := e.EvaluateToken(context.Background(), testToken())
	require.Error(t, err)
	assert.Contains(t, bus.eventKinds(t), domain.EventInvariantViolation)
}
