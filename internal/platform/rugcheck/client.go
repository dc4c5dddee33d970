// Package rugcheck implements the REST client for the RugCheck token risk
// API, including the wallet-signature login flow used to obtain a bearer
// token when none is configured.
package rugcheck

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/you/snipebot/internal/domain"
)

// loginMessage is the fixed message RugCheck expects the wallet to sign.
const loginMessage = "Sign-in to Rugcheck.xyz"

// APIRisk is one risk item in a token report.
type APIRisk struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

// APIReport is the token report payload.
type APIReport struct {
	Status string    `json:"status"`
	Score  float64   `json:"score_normalised"`
	Risks  []APIRisk `json:"risks"`
}

// Good reports whether RugCheck classifies the token as clean.
func (r APIReport) Good() bool {
	return r.Status == "GOOD" || r.Status == "good"
}

// Client is the REST client for the RugCheck API. It lazily obtains a bearer
// token via the Solana login flow when none was configured.
type Client struct {
	baseURL    string
	wallet     string
	signer     domain.AuthSigner
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewClient creates a RugCheck client. token may be empty, in which case the
// first authenticated request triggers the login flow using signer. signer
// may be nil only when token is set.
func NewClient(baseURL, token, wallet string, signer domain.AuthSigner) *Client {
	return &Client{
		baseURL: baseURL,
		wallet:  wallet,
		signer:  signer,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		token: token,
	}
}

// TokenReport fetches the risk report for a token mint.
func (c *Client) TokenReport(ctx context.Context, tokenAddress string) (APIReport, error) {
	bearer, err := c.ensureToken(ctx)
	if err != nil {
		return APIReport{}, fmt.Errorf("rugcheck: token report %s: %w", tokenAddress, err)
	}

	path := fmt.Sprintf("/tokens/%s/report", url.PathEscape(tokenAddress))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return APIReport{}, fmt.Errorf("rugcheck: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	body, err := c.do(req)
	if err != nil {
		return APIReport{}, fmt.Errorf("rugcheck: token report %s: %w", tokenAddress, err)
	}

	var report APIReport
	if err := json.Unmarshal(body, &report); err != nil {
		return APIReport{}, fmt.Errorf("rugcheck: decode report: %w", err)
	}

	return report, nil
}

// ensureToken returns the configured or previously obtained bearer token,
// performing the login flow on first use.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}
	if c.signer == nil {
		return "", fmt.Errorf("%w: no token configured and no signer available", domain.ErrUnauthorized)
	}

	sig, pubkey, err := c.signer.SignMessage(ctx, []byte(loginMessage))
	if err != nil {
		return "", fmt.Errorf("sign login message: %w", err)
	}
	if pubkey == "" {
		pubkey = c.wallet
	}

	payload, err := json.Marshal(map[string]string{
		"wallet":    pubkey,
		"message":   loginMessage,
		"signature": base64.StdEncoding.EncodeToString(sig),
	})
	if err != nil {
		return "", fmt.Errorf("encode login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login/solana", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("login: %w: empty token in response", domain.ErrUnauthorized)
	}

	c.token = result.Token
	return c.token, nil
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
