package domain

import "context"

// DiscoveryFeed surfaces newly launched tokens for evaluation.
type DiscoveryFeed interface {
	ListNewTokens(ctx context.Context, limit int) ([]Token, error)
}

// QuoteFetcher retrieves a fresh market snapshot for a token.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, tokenAddress string) (Quote, error)
}

// RiskFetcher retrieves a fresh risk classification for a token.
type RiskFetcher interface {
	FetchRisk(ctx context.Context, tokenAddress string) (RiskReport, error)
}

// QuoteSource serves possibly-cached quote and risk data to the evaluation
// path. Implementations return ErrDataUnavailable when no fresh-enough data
// can be produced.
type QuoteSource interface {
	Quote(ctx context.Context, tokenAddress string) (Quote, error)
	Risk(ctx context.Context, tokenAddress string) (RiskReport, error)
}

// AuthSigner produces a wallet signature over an arbitrary message. Used for
// API authentication flows; key custody stays behind the interface.
type AuthSigner interface {
	SignMessage(ctx context.Context, msg []byte) (signature []byte, publicKey string, err error)
}
