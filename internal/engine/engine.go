// Package engine makes the per-token trading decision each cycle and carries
// it out. The engine itself is stateless: a token's lifecycle state is
// derived from the position ledger on every evaluation, so a restart loses
// nothing.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/you/snipebot/internal/domain"
)

const eventsChannel = "events"

// TradeParams are the sizing and take-profit settings.
type TradeParams struct {
	BuyAmountSOL        float64
	ProfitMultiplierMin float64
	ProfitMultiplierMax float64
	SellPercentage      float64
}

// Trader submits trades. Satisfied by executor.Executor.
type Trader interface {
	Buy(ctx context.Context, tokenAddress, symbol string, amountSOL float64) (domain.Fill, error)
	Sell(ctx context.Context, tokenAddress string, quantity float64, action domain.Action) (domain.Fill, error)
}

// Screen checks a token's tradeability. Satisfied by screener.Screener.
type Screen interface {
	Screen(ctx context.Context, tokenAddress string) (domain.ScreenResult, error)
}

// Ledger is the slice of the position ledger the engine needs.
type Ledger interface {
	Get(tokenAddress string) (domain.Position, error)
	Open(ctx context.Context, symbol string, fill domain.Fill) (domain.Position, error)
	RecordPartialSell(ctx context.Context, fill domain.Fill) (domain.Position, error)
	RecordFullSell(ctx context.Context, fill domain.Fill) (domain.Position, error)
}

// Engine evaluates one token at a time: screen and buy tokens it holds no
// position in, take profit on the ones it does.
type Engine struct {
	quotes   domain.QuoteSource
	screener Screen
	ledger   Ledger
	trader   Trader
	trades   domain.TradeStore
	bus      domain.SignalBus
	params   TradeParams
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Engine. bus may be nil, in which case no events are
// published.
func New(quotes domain.QuoteSource, screener Screen, ledger Ledger, trader Trader, trades domain.TradeStore, bus domain.SignalBus, params TradeParams, logger *slog.Logger) *Engine {
	return &Engine{
		quotes:   quotes,
		screener: screener,
		ledger:   ledger,
		trader:   trader,
		trades:   trades,
		bus:      bus,
		params:   params,
		logger:   logger.With(slog.String("component", "engine")),
		now:      time.Now,
	}
}

// EvaluateToken runs one full evaluation for a token and returns the
// decision that was acted on. A failed execution is reported in the error;
// the token's state is untouched, so the next cycle retries from the same
// point.
func (e *Engine) EvaluateToken(ctx context.Context, token domain.Token) (domain.Decision, error) {
	pos, err := e.ledger.Get(token.Address)
	if err == nil {
		return e.evaluateHeld(ctx, token, pos)
	}
	if !errors.Is(err, domain.ErrNoSuchPosition) {
		return domain.Decision{}, fmt.Errorf("engine: %s: %w", token.Address, err)
	}
	return e.evaluateNew(ctx, token)
}

// evaluateNew handles a token with no open position: screen it and buy when
// every condition passes.
func (e *Engine) evaluateNew(ctx context.Context, token domain.Token) (domain.Decision, error) {
	result, err := e.screener.Screen(ctx, token.Address)
	if err != nil {
		// No data, no verdict. The token stays unseen and is re-screened
		// next cycle.
		return domain.Decision{}, fmt.Errorf("engine: screen %s: %w", token.Address, err)
	}

	if !result.Tradeable {
		dec := domain.Decision{
			TokenAddress: token.Address,
			Symbol:       token.Symbol,
			Action:       domain.ActionSkip,
			State:        domain.StateScreenedRejected,
			Reasons:      result.Reasons(),
			DecidedAt:    e.now().UTC(),
		}
		e.publishDecision(ctx, dec)
		return dec, nil
	}

	dec := domain.Decision{
		TokenAddress: token.Address,
		Symbol:       token.Symbol,
		Action:       domain.ActionBuy,
		State:        domain.StateUnseen,
		AmountSOL:    e.params.BuyAmountSOL,
		DecidedAt:    e.now().UTC(),
	}
	e.publishDecision(ctx, dec)

	fill, err := e.trader.Buy(ctx, token.Address, token.Symbol, e.params.BuyAmountSOL)
	if err != nil {
		return dec, fmt.Errorf("engine: buy %s: %w", token.Address, err)
	}

	newPos, err := e.ledger.Open(ctx, token.Symbol, fill)
	if err != nil {
		// The swap settled but the ledger refused it. This needs an operator.
		e.publishViolation(ctx, token.Address, "buy fill could not be recorded", err)
		return dec, fmt.Errorf("engine: record buy %s: %w", token.Address, err)
	}

	dec.State = domain.StateBought
	dec.Price = fill.Price
	e.recordTrade(ctx, newPos, fill, domain.ActionBuy)
	e.publishTrade(ctx, domain.EventTradeBuy, newPos, fill)

	e.logger.Info("position opened",
		slog.String("token", token.Address),
		slog.String("symbol", token.Symbol),
		slog.Float64("entry_price", fill.Price),
		slog.Float64("quantity", fill.Quantity))

	return dec, nil
}

// evaluateHeld handles a token with an open position: compare the current
// price to entry and take profit per the multiplier band. A full close at or
// above the max multiplier always wins over a partial.
func (e *Engine) evaluateHeld(ctx context.Context, token domain.Token, pos domain.Position) (domain.Decision, error) {
	quote, err := e.quotes.Quote(ctx, token.Address)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("engine: quote %s: %w", token.Address, err)
	}

	multiple := pos.ProfitMultiple(quote.Price)
	state := domain.StateBought
	if pos.Status == domain.PositionStatusPartiallyClosed {
		state = domain.StatePartiallySold
	}

	dec := domain.Decision{
		TokenAddress:   token.Address,
		Symbol:         pos.Symbol,
		Action:         domain.ActionHold,
		State:          state,
		Price:          quote.Price,
		ProfitMultiple: multiple,
		DecidedAt:      e.now().UTC(),
	}

	switch {
	case multiple >= e.params.ProfitMultiplierMax:
		dec.Action = domain.ActionFullSell
		dec.Quantity = pos.Remaining()
	case multiple >= e.params.ProfitMultiplierMin && pos.PartialSells == 0:
		dec.Action = domain.ActionPartialSell
		dec.Quantity = pos.Remaining() * e.params.SellPercentage
	default:
		e.publishDecision(ctx, dec)
		return dec, nil
	}
	e.publishDecision(ctx, dec)

	fill, err := e.trader.Sell(ctx, token.Address, dec.Quantity, dec.Action)
	if err != nil {
		return dec, fmt.Errorf("engine: %s %s: %w", dec.Action, token.Address, err)
	}

	var (
		updated domain.Position
		kind    domain.EventKind
	)
	if dec.Action == domain.ActionFullSell {
		updated, err = e.ledger.RecordFullSell(ctx, fill)
		kind = domain.EventTradeFullSell
	} else {
		updated, err = e.ledger.RecordPartialSell(ctx, fill)
		kind = domain.EventTradePartialSell
	}
	if err != nil {
		e.publishViolation(ctx, token.Address, "sell fill could not be recorded", err)
		return dec, fmt.Errorf("engine: record %s %s: %w", dec.Action, token.Address, err)
	}

	if dec.Action == domain.ActionFullSell {
		dec.State = domain.StateClosed
	} else {
		dec.State = domain.StatePartiallySold
	}
	e.recordTrade(ctx, updated, fill, dec.Action)
	e.publishTrade(ctx, kind, updated, fill)

	e.logger.Info("position reduced",
		slog.String("token", token.Address),
		slog.String("action", string(dec.Action)),
		slog.Float64("profit_multiple", multiple),
		slog.Float64("quantity", fill.Quantity),
		slog.Float64("received_sol", fill.AmountSOL))

	return dec, nil
}

// recordTrade persists the fill to the trade history. A history write
// failure is logged, never fatal: the ledger already holds the truth.
func (e *Engine) recordTrade(ctx context.Context, pos domain.Position, fill domain.Fill, action domain.Action) {
	trade := domain.Trade{
		RequestID:    fill.RequestID,
		PositionID:   pos.ID,
		TokenAddress: fill.TokenAddress,
		Symbol:       pos.Symbol,
		Side:         fill.Side,
		Action:       action,
		Quantity:     fill.Quantity,
		Price:        fill.Price,
		AmountSOL:    fill.AmountSOL,
		TxHash:       fill.TxHash,
		ExecutedAt:   fill.ExecutedAt,
	}
	if err := e.trades.Insert(ctx, trade); err != nil {
		e.logger.Error("failed to record trade",
			slog.String("token", fill.TokenAddress),
			slog.String("error", err.Error()))
	}
}

func (e *Engine) publishDecision(ctx context.Context, dec domain.Decision) {
	detail := map[string]any{
		"action": string(dec.Action),
		"state":  string(dec.State),
	}
	if len(dec.Reasons) > 0 {
		detail["reasons"] = dec.Reasons
	}
	if dec.ProfitMultiple > 0 {
		detail["profit_multiple"] = dec.ProfitMultiple
	}
	e.publish(ctx, domain.Event{
		Kind:         domain.EventDecision,
		TokenAddress: dec.TokenAddress,
		Detail:       detail,
		At:           dec.DecidedAt,
	})
}

func (e *Engine) publishTrade(ctx context.Context, kind domain.EventKind, pos domain.Position, fill domain.Fill) {
	e.publish(ctx, domain.Event{
		Kind:         kind,
		TokenAddress: fill.TokenAddress,
		Detail: map[string]any{
			"position_id": pos.ID,
			"symbol":      pos.Symbol,
			"quantity":    fill.Quantity,
			"price":       fill.Price,
			"amount_sol":  fill.AmountSOL,
			"tx_hash":     fill.TxHash,
		},
		At: fill.ExecutedAt,
	})
}

func (e *Engine) publishViolation(ctx context.Context, tokenAddress, msg string, cause error) {
	e.publish(ctx, domain.Event{
		Kind:         domain.EventInvariantViolation,
		TokenAddress: tokenAddress,
		Detail: map[string]any{
			"message": msg,
			"error":   cause.Error(),
		},
		At: e.now().UTC(),
	})
}

func (e *Engine) publish(ctx context.Context, ev domain.Event) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		e.logger.Error("failed to encode event", slog.String("error", err.Error()))
		return
	}
	if err := e.bus.Publish(ctx, eventsChannel, payload); err != nil {
		e.logger.Warn("failed to publish event",
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()))
	}
	if err := e.bus.StreamAppend(ctx, eventsChannel, payload); err != nil {
		e.logger.Warn("failed to append event to stream",
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()))
	}
}
