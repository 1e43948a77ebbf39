package core

// scheduler.go runs background maintenance. Currently that is the retention
// job for processing_errors: failure records older than the retention window
// are purged once at start and then on every tick. Failures are logged and
// retried on the next tick; they never stop the process.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls the retention job. Zero values use defaults.
type RetentionConfig struct {
	ProcessingErrorDays int           // Days to keep processing errors (default: 30)
	CheckInterval       time.Duration // How often to run (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.ProcessingErrorDays <= 0 {
		c.ProcessingErrorDays = 30
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetentionScheduler runs the retention job until ctx is cancelled.
// It blocks; start it in its own goroutine.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("retention scheduler started",
		"processing_error_days", cfg.ProcessingErrorDays,
		"interval", cfg.CheckInterval,
	)

	s.runRetentionJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx, cfg)
		}
	}
}

// runRetentionJob performs one purge and reports how many rows it removed.
func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig) int64 {
	start := s.now()
	cutoff := start.AddDate(0, 0, -cfg.ProcessingErrorDays)

	purged, err := s.repo.PurgeProcessingErrors(ctx, cutoff)
	if err != nil {
		slog.Error("processing error purge failed", "error", err)
		return 0
	}

	slog.Info("purged processing errors",
		"entries_purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)
	return purged
}
