// Package archive copies aged rows from PostgreSQL into S3 cold storage on
// a fixed schedule.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/you/snipebot/internal/domain"
)

// Archiver runs periodic archive sweeps over closed positions, trades, and
// the audit log.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	logger        *slog.Logger
}

// New creates an Archiver that archives rows older than retentionDays.
func New(blobArchiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive sweep. The cutoff is now minus the retention
// window; everything older is copied to cold storage.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	positionsArchived, err := a.blobArchiver.ArchiveClosedPositions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving closed positions before %v: %w", cutoff, err)
	}

	tradesArchived, err := a.blobArchiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving trades before %v: %w", cutoff, err)
	}

	auditArchived, err := a.blobArchiver.ArchiveAuditLog(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving audit log before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete",
		slog.Int64("positions_archived", positionsArchived),
		slog.Int64("trades_archived", tradesArchived),
		slog.Int64("audit_archived", auditArchived),
	)

	return nil
}

// RunLoop runs archive sweeps at the given interval until the context is
// cancelled. A failed sweep is logged and retried at the next tick.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	a.logger.Info("archiver loop started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
