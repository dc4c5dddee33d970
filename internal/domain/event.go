package domain

import "time"

// EventKind names a bus event published by the bot.
type EventKind string

const (
	EventDecision           EventKind = "decision"
	EventTradeBuy           EventKind = "trade.buy"
	EventTradePartialSell   EventKind = "trade.partial_sell"
	EventTradeFullSell      EventKind = "trade.full_sell"
	EventInvariantViolation EventKind = "invariant.violation"
	EventReconcileResolved  EventKind = "reconcile.resolved"
)

// Event is the JSON payload published on the signal bus and pushed to
// websocket subscribers.
type Event struct {
	Kind         EventKind      `json:"kind"`
	TokenAddress string         `json:"token_address,omitempty"`
	Detail       map[string]any `json:"detail,omitempty"`
	At           time.Time      `json:"at"`
}

// BotStatus is a summary of the bot's current operational state.
type BotStatus struct {
	Mode          string
	DryRun        bool
	UptimeSeconds int64
	OpenPositions int32
	PendingExecs  int32
	LastCycleAt   *time.Time
}
