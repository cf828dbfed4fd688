// Package jobs contains the background maintenance loops run by the server
// process alongside the HTTP listener.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/rabbit-console/rabbit-console/internal/config"
	"github.com/rabbit-console/rabbit-console/internal/db/repositories"
	"github.com/rabbit-console/rabbit-console/internal/safego"
	"github.com/rabbit-console/rabbit-console/internal/telemetry"
)

// AuditRetentionJob periodically removes audit records older than the
// configured retention window. The sweep is the only path that deletes audit
// rows.
type AuditRetentionJob struct {
	repo     *repositories.AuditRepository
	cfg      *config.AuditConfig
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewAuditRetentionJob creates the retention sweep. The sweep runs once per
// interval; once a day is plenty for a retention measured in days.
func NewAuditRetentionJob(repo *repositories.AuditRepository, cfg *config.AuditConfig, interval time.Duration) *AuditRetentionJob {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &AuditRetentionJob{
		repo:     repo,
		cfg:      cfg,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop in the background. One sweep runs immediately so a
// long-stopped server catches up on restart without waiting a full interval.
func (j *AuditRetentionJob) Start() {
	safego.Go(func() {
		defer close(j.doneCh)

		j.sweep()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				j.sweep()
			case <-j.stopCh:
				return
			}
		}
	})
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (j *AuditRetentionJob) Stop() {
	close(j.stopCh)
	<-j.doneCh
}

func (j *AuditRetentionJob) sweep() {
	retention := j.cfg.RetentionDays
	if retention < 1 {
		retention = 1
	}
	cutoff := time.Now().AddDate(0, 0, -retention)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := j.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("audit retention sweep failed", "cutoff", cutoff, "error", err)
		return
	}
	if deleted > 0 {
		telemetry.AuditRecordsPurgedTotal.Add(float64(deleted))
		slog.Info("audit retention sweep completed", "deleted", deleted, "cutoff", cutoff)
	}
}
