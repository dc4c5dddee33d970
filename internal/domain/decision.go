package domain

import "time"

// Action is what the decision engine wants done for a token this cycle.
type Action string

const (
	ActionBuy         Action = "buy"
	ActionPartialSell Action = "partial_sell"
	ActionFullSell    Action = "full_sell"
	ActionHold        Action = "hold"
	ActionSkip        Action = "skip"
)

// TokenState is the derived lifecycle state of a token, reconstructed each
// cycle from the position ledger rather than cached between cycles.
type TokenState string

const (
	StateUnseen           TokenState = "unseen"
	StateScreenedRejected TokenState = "screened_rejected"
	StateBought           TokenState = "bought"
	StatePartiallySold    TokenState = "partially_sold"
	StateClosed           TokenState = "closed"
)

// Decision is a single evaluation outcome for one token.
type Decision struct {
	TokenAddress   string
	Symbol         string
	Action         Action
	State          TokenState
	Price          float64
	Quantity       float64 // tokens to sell; zero for buys
	AmountSOL      float64 // SOL to spend; zero for sells
	ProfitMultiple float64 // current price over entry, zero when no position
	Reasons        []string
	DecidedAt      time.Time
}
