package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/you/snipebot/internal/domain"
)

// Relay subscribes to the bot's event channel and turns bus events into
// operator notifications. Filtering by event kind happens in the Notifier.
type Relay struct {
	bus      domain.SignalBus
	notifier *Notifier
	channel  string
	logger   *slog.Logger
}

// NewRelay creates a Relay reading from the given bus channel.
func NewRelay(bus domain.SignalBus, notifier *Notifier, channel string, logger *slog.Logger) *Relay {
	return &Relay{
		bus:      bus,
		notifier: notifier,
		channel:  channel,
		logger:   logger.With(slog.String("component", "notify_relay")),
	}
}

// Run consumes events until the context is cancelled or the subscription
// channel closes.
func (r *Relay) Run(ctx context.Context) error {
	msgs, err := r.bus.Subscribe(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", r.channel, err)
	}

	r.logger.Info("relay started", slog.String("channel", r.channel))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-msgs:
			if !ok {
				return nil
			}
			r.handle(ctx, payload)
		}
	}
}

func (r *Relay) handle(ctx context.Context, payload []byte) {
	var ev domain.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.logger.Warn("bad event payload", slog.String("error", err.Error()))
		return
	}

	title, message := formatEvent(ev)
	if err := r.notifier.Notify(ctx, string(ev.Kind), title, message); err != nil {
		r.logger.Warn("notification failed",
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()))
	}
}

// formatEvent renders a bus event as a short operator message.
func formatEvent(ev domain.Event) (title, message string) {
	var b strings.Builder
	if ev.TokenAddress != "" {
		fmt.Fprintf(&b, "Token: %s\n", ev.TokenAddress)
	}

	switch ev.Kind {
	case domain.EventTradeBuy:
		title = "Bought"
		writeDetail(&b, ev.Detail, "quantity", "price", "amount_sol", "tx_hash")
	case domain.EventTradePartialSell:
		title = "Partial sell"
		writeDetail(&b, ev.Detail, "quantity", "price", "amount_sol", "tx_hash")
	case domain.EventTradeFullSell:
		title = "Position closed"
		writeDetail(&b, ev.Detail, "quantity", "price", "amount_sol", "tx_hash")
	case domain.EventInvariantViolation:
		title = "ATTENTION: invariant violation"
		writeDetail(&b, ev.Detail, "message", "error")
	case domain.EventReconcileResolved:
		title = "Reconciled pending trade"
		writeDetail(&b, ev.Detail, "action", "replayed")
	case domain.EventDecision:
		title = "Decision"
		writeDetail(&b, ev.Detail, "action", "state", "profit_multiple")
	default:
		title = string(ev.Kind)
	}

	return title, strings.TrimRight(b.String(), "\n")
}

// writeDetail appends the named detail fields that are present, in order.
func writeDetail(b *strings.Builder, detail map[string]any, keys ...string) {
	for _, k := range keys {
		v, ok := detail[k]
		if !ok {
			continue
		}
		fmt.Fprintf(b, "%s: %v\n", k, v)
	}
}
