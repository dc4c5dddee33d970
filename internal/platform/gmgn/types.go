package gmgn

import (
	"time"

	"github.com/you/snipebot/internal/domain"
)

// APIToken is a token entry from the router token list.
type APIToken struct {
	Address   string `json:"address"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_timestamp"`
}

// ToDomainToken converts an APIToken to the domain representation.
func (t APIToken) ToDomainToken() domain.Token {
	return domain.Token{
		Address:    t.Address,
		Symbol:     t.Symbol,
		Name:       t.Name,
		LaunchedAt: time.Unix(t.CreatedAt, 0).UTC(),
	}
}

// APITokenStats is the analytics payload for a single token.
type APITokenStats struct {
	Address        string  `json:"address"`
	PriceSOL       float64 `json:"price"`
	Volume24h      float64 `json:"volume_24h"`
	Liquidity      float64 `json:"liquidity"`
	TxCount24h     int64   `json:"tx_count_24h"`
	SniperActivity float64 `json:"sniper_activity"`
	InsiderTrades  int64   `json:"insider_trades"`
}

// APITrendToken is one entry in the trending-tokens payload.
type APITrendToken struct {
	Address    string  `json:"address"`
	TrendScore float64 `json:"trend_score"`
}

// APITrends is the market trends payload.
type APITrends struct {
	TrendingTokens []APITrendToken `json:"trending_tokens"`
}

// APISwapRoute is the router's swap quote and unsigned transaction.
type APISwapRoute struct {
	Quote struct {
		InAmount  string `json:"inAmount"`
		OutAmount string `json:"outAmount"`
	} `json:"quote"`
	RawTx struct {
		SwapTransaction string `json:"swapTransaction"`
	} `json:"raw_tx"`
}

// APISubmitResult is the router's response to a signed transaction submission.
type APISubmitResult struct {
	TxHash string `json:"tx_hash"`
	Error  string `json:"error"`
}
