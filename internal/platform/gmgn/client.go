// Package gmgn implements the REST client for the GMGN router and analytics
// APIs: token discovery, per-token analytics, market trends, and swap routing.
package gmgn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/you/snipebot/internal/domain"
)

// Config holds the client parameters.
type Config struct {
	BaseURL         string
	SolMint         string
	WalletPublicKey string
	SlippageBps     int
	RateLimitPerSec int
}

// Client is the REST client for the GMGN API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    domain.RateLimiter
}

// NewClient creates a GMGN client. limiter may be nil, in which case requests
// are not rate limited.
func NewClient(cfg Config, limiter domain.RateLimiter) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
	}
}

// ListNewTokens returns recently launched tokens from the router token list.
func (c *Client) ListNewTokens(ctx context.Context, limit int) ([]domain.Token, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("orderby", "created_timestamp")

	path := "/defi/router/v1/sol/tokens?" + params.Encode()

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("gmgn: list new tokens: %w", err)
	}

	var apiTokens []APIToken
	if err := json.Unmarshal(body, &apiTokens); err != nil {
		return nil, fmt.Errorf("gmgn: decode token list: %w", err)
	}

	tokens := make([]domain.Token, 0, len(apiTokens))
	for i := range apiTokens {
		tokens = append(tokens, apiTokens[i].ToDomainToken())
	}

	return tokens, nil
}

// TokenStats returns the analytics snapshot for a single token.
func (c *Client) TokenStats(ctx context.Context, tokenAddress string) (APITokenStats, error) {
	path := fmt.Sprintf("/defi/analytics/v1/sol/token/%s", url.PathEscape(tokenAddress))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return APITokenStats{}, fmt.Errorf("gmgn: token stats %s: %w", tokenAddress, err)
	}

	var stats APITokenStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return APITokenStats{}, fmt.Errorf("gmgn: decode token stats: %w", err)
	}
	if stats.Address == "" {
		stats.Address = tokenAddress
	}

	return stats, nil
}

// TrendScores returns the market-wide trend score per token address.
func (c *Client) TrendScores(ctx context.Context) (map[string]float64, error) {
	body, err := c.doGet(ctx, "/defi/analytics/v1/sol/trends")
	if err != nil {
		return nil, fmt.Errorf("gmgn: market trends: %w", err)
	}

	var trends APITrends
	if err := json.Unmarshal(body, &trends); err != nil {
		return nil, fmt.Errorf("gmgn: decode trends: %w", err)
	}

	scores := make(map[string]float64, len(trends.TrendingTokens))
	for _, t := range trends.TrendingTokens {
		scores[t.Address] = t.TrendScore
	}

	return scores, nil
}

// FetchQuote assembles a domain.Quote from the analytics and trends
// endpoints. Tokens absent from the trending list get a zero trend score.
func (c *Client) FetchQuote(ctx context.Context, tokenAddress string) (domain.Quote, error) {
	stats, err := c.TokenStats(ctx, tokenAddress)
	if err != nil {
		return domain.Quote{}, err
	}

	trends, err := c.TrendScores(ctx)
	if err != nil {
		return domain.Quote{}, err
	}

	return domain.Quote{
		TokenAddress: tokenAddress,
		Price:        stats.PriceSOL,
		VolumeUSD:    stats.Volume24h,
		LiquidityUSD: stats.Liquidity,
		TxCount:      stats.TxCount24h,
		TrendScore:   trends[tokenAddress],
		FetchedAt:    time.Now().UTC(),
	}, nil
}

// SwapRoute requests a swap quote and unsigned transaction from the router.
// amount is the input amount in the input token's base units.
func (c *Client) SwapRoute(ctx context.Context, tokenIn, tokenOut, amount string) (APISwapRoute, error) {
	params := url.Values{}
	params.Set("token_in_address", tokenIn)
	params.Set("token_out_address", tokenOut)
	params.Set("in_amount", amount)
	params.Set("from_address", c.cfg.WalletPublicKey)
	params.Set("slippage", strconv.FormatFloat(float64(c.cfg.SlippageBps)/100, 'f', -1, 64))

	path := "/defi/router/v1/sol/tx/get_swap_route?" + params.Encode()

	body, err := c.doGet(ctx, path)
	if err != nil {
		return APISwapRoute{}, fmt.Errorf("gmgn: swap route %s->%s: %w", tokenIn, tokenOut, err)
	}

	var route APISwapRoute
	if err := json.Unmarshal(body, &route); err != nil {
		return APISwapRoute{}, fmt.Errorf("gmgn: decode swap route: %w", err)
	}

	return route, nil
}

// SubmitTransaction submits a signed transaction to the router and returns
// the transaction hash.
func (c *Client) SubmitTransaction(ctx context.Context, signedTx string) (string, error) {
	payload, err := json.Marshal(map[string]string{"signed_tx": signedTx})
	if err != nil {
		return "", fmt.Errorf("gmgn: encode submit payload: %w", err)
	}

	body, err := c.doPost(ctx, "/defi/router/v1/sol/tx/submit_signed_transaction", payload)
	if err != nil {
		return "", fmt.Errorf("gmgn: submit transaction: %w", err)
	}

	var result APISubmitResult
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("gmgn: decode submit result: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("gmgn: submit transaction: %w: %s", domain.ErrExecutionFailed, result.Error)
	}

	return result.TxHash, nil
}

// SolMint returns the configured wrapped-SOL mint address.
func (c *Client) SolMint() string {
	return c.cfg.SolMint
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// throttle blocks until the shared rate limit admits another request.
func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	for {
		allowed, err := c.limiter.Allow(ctx, "gmgn", c.cfg.RateLimitPerSec, time.Second)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		timer := time.NewTimer(50 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// doGet sends an unauthenticated GET request to the GMGN API.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, fmt.Errorf("throttle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// doPost sends a JSON POST request to the GMGN API.
func (c *Client) doPost(ctx context.Context, path string, payload []byte) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, fmt.Errorf("throttle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps HTTP error responses to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// Compile-time interface checks.
var (
	_ domain.DiscoveryFeed = (*Client)(nil)
	_ domain.QuoteFetcher  = (*Client)(nil)
)
