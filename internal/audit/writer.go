// Package audit produces the immutable write trail for mutating operations
// relayed to clusters. The writer decouples record persistence from request
// handling: in async mode records enter a bounded queue drained by one
// background goroutine, in sync mode each record is persisted inline. In both
// modes a persistence failure is logged and counted but never surfaced to the
// request that produced the record.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbit-console/rabbit-console/internal/config"
	"github.com/rabbit-console/rabbit-console/internal/db/models"
	"github.com/rabbit-console/rabbit-console/internal/db/repositories"
	"github.com/rabbit-console/rabbit-console/internal/safego"
	"github.com/rabbit-console/rabbit-console/internal/telemetry"
)

// Writer persists audit records.
type Writer struct {
	repo *repositories.AuditRepository
	cfg  *config.AuditConfig

	// queue is nil in sync mode.
	queue chan *models.AuditRecord
	done  chan struct{}
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// NewWriter creates a Writer. In async mode the caller must call Start once
// and Close on shutdown.
func NewWriter(repo *repositories.AuditRepository, cfg *config.AuditConfig) *Writer {
	w := &Writer{repo: repo, cfg: cfg}
	if cfg.Async {
		w.queue = make(chan *models.AuditRecord, cfg.QueueSize)
		w.done = make(chan struct{})
	}
	return w
}

// Start launches the background drain loop. No-op in sync mode.
func (w *Writer) Start() {
	if w.queue == nil {
		return
	}
	w.wg.Add(1)
	safego.Go(func() {
		defer w.wg.Done()
		w.drain()
	})
}

// Record persists one audit record. In async mode this enqueues; when the
// queue is full it blocks until the drain loop catches up, never dropping the
// record. In sync mode the record is persisted before Record returns. Errors
// are swallowed after logging so audit trouble never fails the operation
// being audited.
func (w *Writer) Record(ctx context.Context, rec *models.AuditRecord) {
	if !w.cfg.IsEnabled() {
		return
	}
	if w.queue == nil {
		w.persist(ctx, []*models.AuditRecord{rec})
		return
	}

	select {
	case w.queue <- rec:
		telemetry.AuditQueueDepth.Set(float64(len(w.queue)))
	case <-w.done:
		// Shutting down. Persist inline so the record is not lost.
		w.persist(ctx, []*models.AuditRecord{rec})
	}
}

// drain batches queued records and flushes on batch size or interval,
// whichever comes first.
func (w *Writer) drain() {
	interval := w.cfg.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	batch := make([]*models.AuditRecord, 0, w.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.persist(context.Background(), batch)
		batch = make([]*models.AuditRecord, 0, w.cfg.BatchSize)
	}

	for {
		select {
		case rec := <-w.queue:
			batch = append(batch, rec)
			telemetry.AuditQueueDepth.Set(float64(len(w.queue)))
			if len(batch) >= w.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			// Drain whatever is left, then flush once.
			for {
				select {
				case rec := <-w.queue:
					batch = append(batch, rec)
					if len(batch) >= w.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					telemetry.AuditQueueDepth.Set(0)
					return
				}
			}
		}
	}
}

func (w *Writer) persist(ctx context.Context, records []*models.AuditRecord) {
	if err := w.repo.CreateBatch(ctx, records); err != nil {
		telemetry.AuditRecordsWrittenTotal.WithLabelValues("error").Add(float64(len(records)))
		slog.Error("failed to persist audit records", "count", len(records), "error", err)
		return
	}
	telemetry.AuditRecordsWrittenTotal.WithLabelValues("ok").Add(float64(len(records)))
}

// Close stops the drain loop after flushing everything queued. Safe to call
// more than once.
func (w *Writer) Close() {
	if w.queue == nil {
		return
	}
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		// A Record racing Close can enqueue after the drain loop exits.
		// Sweep the queue once more so nothing is stranded.
		var leftovers []*models.AuditRecord
		for {
			select {
			case rec := <-w.queue:
				leftovers = append(leftovers, rec)
			default:
				if len(leftovers) > 0 {
					w.persist(context.Background(), leftovers)
				}
				return
			}
		}
	})
}
