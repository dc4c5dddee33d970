package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/snipebot/internal/domain"
)

// snapshotTTL bounds how long a write-through snapshot stays readable. The
// evaluation path never reads these keys; they serve the HTTP API and
// dashboards, so expiry just caps memory.
const snapshotTTL = 30 * time.Minute

// QuoteSnapshotCache implements domain.QuoteSnapshotCache using Redis string
// keys with JSON values: "quote:{token}" and "risk:{token}".
type QuoteSnapshotCache struct {
	rdb *redis.Client
}

// NewQuoteSnapshotCache creates a QuoteSnapshotCache backed by the given Client.
func NewQuoteSnapshotCache(c *Client) *QuoteSnapshotCache {
	return &QuoteSnapshotCache{rdb: c.Underlying()}
}

func quoteKey(tokenAddress string) string {
	return "quote:" + tokenAddress
}

func riskKey(tokenAddress string) string {
	return "risk:" + tokenAddress
}

// SetQuote stores the latest quote snapshot for a token.
func (qc *QuoteSnapshotCache) SetQuote(ctx context.Context, q domain.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("redis: marshal quote %s: %w", q.TokenAddress, err)
	}
	if err := qc.rdb.Set(ctx, quoteKey(q.TokenAddress), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", q.TokenAddress, err)
	}
	return nil
}

// GetQuote retrieves the latest quote snapshot for a token. It returns
// domain.ErrNotFound when no snapshot exists.
func (qc *QuoteSnapshotCache) GetQuote(ctx context.Context, tokenAddress string) (domain.Quote, error) {
	data, err := qc.rdb.Get(ctx, quoteKey(tokenAddress)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.Quote{}, domain.ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", tokenAddress, err)
	}

	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: unmarshal quote %s: %w", tokenAddress, err)
	}
	return q, nil
}

// SetRisk stores the latest risk snapshot for a token.
func (qc *QuoteSnapshotCache) SetRisk(ctx context.Context, r domain.RiskReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redis: marshal risk %s: %w", r.TokenAddress, err)
	}
	if err := qc.rdb.Set(ctx, riskKey(r.TokenAddress), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set risk %s: %w", r.TokenAddress, err)
	}
	return nil
}

// GetRisk retrieves the latest risk snapshot for a token. It returns
// domain.ErrNotFound when no snapshot exists.
func (qc *QuoteSnapshotCache) GetRisk(ctx context.Context, tokenAddress string) (domain.RiskReport, error) {
	data, err := qc.rdb.Get(ctx, riskKey(tokenAddress)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.RiskReport{}, domain.ErrNotFound
		}
		return domain.RiskReport{}, fmt.Errorf("redis: get risk %s: %w", tokenAddress, err)
	}

	var r domain.RiskReport
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.RiskReport{}, fmt.Errorf("redis: unmarshal risk %s: %w", tokenAddress, err)
	}
	return r, nil
}

// Compile-time interface check.
var _ domain.QuoteSnapshotCache = (*QuoteSnapshotCache)(nil)
