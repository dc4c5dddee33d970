package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/snipebot/internal/domain"
)

type fakeFeed struct {
	tokens []domain.Token
	err    error
}

func (f *fakeFeed) ListNewTokens(ctx context.Context, limit int) ([]domain.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens, nil
}

type fakeEvaluator struct {
	mu        sync.Mutex
	evaluated []string
	err       error
}

func (f *fakeEvaluator) EvaluateToken(ctx context.Context, token domain.Token) (domain.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluated = append(f.evaluated, token.Address)
	return domain.Decision{TokenAddress: token.Address}, f.err
}

func (f *fakeEvaluator) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.evaluated))
	copy(out, f.evaluated)
	return out
}

type fakeLedger struct {
	open       []domain.Position
	restoreErr error
	restored   bool
}

func (l *fakeLedger) Restore(ctx context.Context) error {
	if l.restoreErr != nil {
		return l.restoreErr
	}
	l.restored = true
	return nil
}

func (l *fakeLedger) ListOpen() []domain.Position {
	return l.open
}

type fakeReconciler struct {
	unresolved []string
	err        error
	runs       int
}

func (r *fakeReconciler) Run(ctx context.Context) ([]string, error) {
	r.runs++
	return r.unresolved, r.err
}

type fakeLocks struct {
	mu       sync.Mutex
	acquired []string
	held     map[string]bool
}

func (l *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, fmt.Errorf("lock %s: %w", key, domain.ErrLockHeld)
	}
	l.acquired = append(l.acquired, key)
	return func() {}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		PollInterval:   time.Minute,
		DiscoveryLimit: 50,
		MaxConcurrent:  4,
		CycleLockTTL:   55 * time.Second,
	}
}

func TestRecoverRestoresLedgerAndReconciles(t *testing.T) {
	ledger := &fakeLedger{}
	rec := &fakeReconciler{}
	d := New(&fakeFeed{}, &fakeEvaluator{}, ledger, rec, nil, testConfig(), testLogger())

	require.NoError(t, d.recover(context.Background()))
	assert.True(t, ledger.restored)
	assert.Equal(t, 1, rec.runs)
}

func TestRecoverFailsWhenRestoreFails(t *testing.T) {
	ledger := &fakeLedger{restoreErr: errors.New("connection refused")}
	d := New(&fakeFeed{}, &fakeEvaluator{}, ledger, &fakeReconciler{}, nil, testConfig(), testLogger())

	assert.Error(t, d.recover(context.Background()))
}

func TestCycleEvaluatesDiscoveredTokens(t *testing.T) {
	feed := &fakeFeed{tokens: []domain.Token{
		{Address: "tok1", Symbol: "AAA"},
		{Address: "tok2", Symbol: "BBB"},
	}}
	eval := &fakeEvaluator{}
	d := New(feed, eval, &fakeLedger{}, nil, nil, testConfig(), testLogger())

	d.cycle(context.Background())

	assert.ElementsMatch(t, []string{"tok1", "tok2"}, eval.seen())
	assert.NotNil(t, d.LastCycleAt())
}

func TestCycleIncludesHeldTokensOffTheFeed(t *testing.T) {
	feed := &fakeFeed{tokens: []domain.Token{{Address: "tok1", Symbol: "AAA"}}}
	ledger := &fakeLedger{open: []domain.Position{
		{TokenAddress: "tok1", Symbol: "AAA"},
		{TokenAddress: "tok9", Symbol: "OLD"},
	}}
	eval := &fakeEvaluator{}
	d := New(feed, eval, ledger, nil, nil, testConfig(), testLogger())

	d.cycle(context.Background())

	// tok1 appears once despite being both discovered and held.
	assert.ElementsMatch(t, []string{"tok1", "tok9"}, eval.seen())
}

func TestUnresolvedTokensAreExcludedFromCycles(t *testing.T) {
	feed := &fakeFeed{tokens: []domain.Token{
		{Address: "tok1", Symbol: "AAA"},
		{Address: "tok2", Symbol: "BBB"},
	}}
	ledger := &fakeLedger{open: []domain.Position{{TokenAddress: "tok2", Symbol: "BBB"}}}
	rec := &fakeReconciler{unresolved: []string{"tok2"}}
	eval := &fakeEvaluator{}
	d := New(feed, eval, ledger, rec, nil, testConfig(), testLogger())

	require.NoError(t, d.recover(context.Background()))
	d.cycle(context.Background())

	assert.Equal(t, []string{"tok1"}, eval.seen())
}

func TestHeldCycleLockSkipsEvaluation(t *testing.T) {
	feed := &fakeFeed{tokens: []domain.Token{
		{Address: "tok1", Symbol: "AAA"},
		{Address: "tok2", Symbol: "BBB"},
	}}
	locks := &fakeLocks{held: map[string]bool{"cycle:tok1": true}}
	eval := &fakeEvaluator{}
	d := New(feed, eval, &fakeLedger{}, nil, locks, testConfig(), testLogger())

	d.cycle(context.Background())

	assert.Equal(t, []string{"tok2"}, eval.seen())
	assert.Equal(t, []string{"cycle:tok2"}, locks.acquired)
}

func TestDiscoveryFailureSkipsCycle(t *testing.T) {
	feed := &fakeFeed{err: errors.New("gateway timeout")}
	eval := &fakeEvaluator{}
	d := New(feed, eval, &fakeLedger{}, nil, nil, testConfig(), testLogger())

	d.cycle(context.Background())

	assert.Empty(t, eval.seen())
	assert.Nil(t, d.LastCycleAt())
}

func TestEvaluationErrorDoesNotAbortCycle(t *testing.T) {
	feed := &fakeFeed{tokens: []domain.Token{
		{Address: "tok1", Symbol: "AAA"},
		{Address: "tok2", Symbol: "BBB"},
	}}
	eval := &fakeEvaluator{err: errors.New("screen failed")}
	d := New(feed, eval, &fakeLedger{}, nil, nil, testConfig(), testLogger())

	d.cycle(context.Background())

	assert.Len(t, eval.seen(), 2)
	assert.NotNil(t, d.LastCycleAt())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := New(&fakeFeed{}, &fakeEvaluator{}, &fakeLedger{}, nil, nil, testConfig(), testLogger())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("driver did not stop after cancellation")
	}
}
