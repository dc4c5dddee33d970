package s3blob

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/snipebot/internal/domain"
)

type fakeWriter struct {
	puts  map[string][]byte
	multi map[string][]byte
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if w.puts == nil {
		w.puts = make(map[string][]byte)
	}
	w.puts[path] = buf
	return nil
}

func (w *fakeWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if w.multi == nil {
		w.multi = make(map[string][]byte)
	}
	w.multi[path] = buf
	return nil
}

type stubPositions struct {
	rows []domain.Position
	err  error
}

func (s stubPositions) ListClosedBefore(context.Context, time.Time) ([]domain.Position, error) {
	return s.rows, s.err
}

type stubTrades struct{ rows []domain.Trade }

func (s stubTrades) ListBefore(context.Context, time.Time) ([]domain.Trade, error) {
	return s.rows, nil
}

type stubAuditSrc struct{ rows []domain.AuditEntry }

func (s stubAuditSrc) ListBefore(context.Context, time.Time) ([]domain.AuditEntry, error) {
	return s.rows, nil
}

type recordingAudit struct {
	events  []string
	details []map[string]any
}

func (a *recordingAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.events = append(a.events, event)
	a.details = append(a.details, detail)
	return nil
}

func (a *recordingAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (a *recordingAudit) ListBefore(context.Context, time.Time) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveClosedPositionsUploadsJSONL(t *testing.T) {
	writer := &fakeWriter{}
	audit := &recordingAudit{}
	arch := NewArchiver(writer,
		stubPositions{rows: make([]domain.Position, 3)},
		stubTrades{}, stubAuditSrc{}, audit)

	cutoff := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	n, err := arch.ArchiveClosedPositions(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	body, ok := writer.puts["archive/positions/2026-08.jsonl"]
	require.True(t, ok, "expected upload keyed by cutoff month")
	assert.Equal(t, 3, bytes.Count(body, []byte("\n")), "one line per record")

	require.Equal(t, []string{"archive.positions"}, audit.events)
	assert.EqualValues(t, 3, audit.details[0]["count"])
}

func TestArchiveSkipsUploadWhenNothingQualifies(t *testing.T) {
	writer := &fakeWriter{}
	audit := &recordingAudit{}
	arch := NewArchiver(writer, stubPositions{}, stubTrades{}, stubAuditSrc{}, audit)

	n, err := arch.ArchiveTrades(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.puts)
	assert.Empty(t, audit.events)
}

func TestArchiveAuditLogRecordsItsOwnEvent(t *testing.T) {
	writer := &fakeWriter{}
	audit := &recordingAudit{}
	arch := NewArchiver(writer, stubPositions{}, stubTrades{},
		stubAuditSrc{rows: make([]domain.AuditEntry, 2)}, audit)

	cutoff := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	n, err := arch.ArchiveAuditLog(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, ok := writer.puts["archive/audit/2026-07.jsonl"]
	assert.True(t, ok)
	assert.Equal(t, []string{"archive.audit"}, audit.events)
}

func TestArchiveQueryErrorPropagates(t *testing.T) {
	writer := &fakeWriter{}
	arch := NewArchiver(writer,
		stubPositions{err: assert.AnError},
		stubTrades{}, stubAuditSrc{}, &recordingAudit{})

	_, err := arch.ArchiveClosedPositions(context.Background(), time.Now())
	require.Error(t, err)
	assert.Empty(t, writer.puts)
}

func TestUploadSwitchesToMultipartForLargePayloads(t *testing.T) {
	writer := &fakeWriter{}
	arch := NewArchiver(writer, stubPositions{}, stubTrades{}, stubAuditSrc{}, &recordingAudit{})

	small := bytes.Repeat([]byte("a"), 64)
	require.NoError(t, arch.upload(context.Background(), "archive/trades/small.jsonl", small))
	assert.Contains(t, writer.puts, "archive/trades/small.jsonl")
	assert.Empty(t, writer.multi)

	big := bytes.Repeat([]byte("b"), multipartThreshold)
	require.NoError(t, arch.upload(context.Background(), "archive/trades/big.jsonl", big))
	assert.Contains(t, writer.multi, "archive/trades/big.jsonl")
}
