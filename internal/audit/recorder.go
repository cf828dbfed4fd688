package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/rabbit-console/rabbit-console/internal/db/models"
)

// Entry describes one mutating operation about to be relayed upstream.
// Operation must be a member of the closed set in models; Recorder.Do refuses
// anything else so unknown operation strings can never reach the trail.
type Entry struct {
	Username     string
	ClusterID    string
	ClusterName  string
	Operation    string
	ResourceType string
	ResourceName string
	Vhost        string
	Description  string
	ClientIP     string
}

// Recorder wraps mutating operations with audit record production.
type Recorder struct {
	writer *Writer
}

// NewRecorder creates a Recorder over writer.
func NewRecorder(writer *Writer) *Recorder {
	return &Recorder{writer: writer}
}

// Do runs fn and records exactly one audit entry for it: SUCCESS when fn
// returns nil, FAILURE otherwise, with the failure description appended. The
// record is produced regardless of outcome, and fn's error is returned
// unchanged. Audit persistence problems never alter the result of fn.
func (r *Recorder) Do(ctx context.Context, e Entry, fn func() error) error {
	if !models.ValidOperation(e.Operation) {
		// A bad operation constant is a programming error in the handler, not
		// a runtime condition. Run fn unaudited rather than fail the request.
		slog.Error("unknown audit operation, skipping record", "operation", e.Operation)
		return fn()
	}

	err := fn()

	rec := &models.AuditRecord{
		OccurredAt:   time.Now().UTC(),
		Username:     e.Username,
		ClusterName:  e.ClusterName,
		Operation:    e.Operation,
		ResourceType: e.ResourceType,
		ResourceName: e.ResourceName,
		Vhost:        e.Vhost,
		Status:       models.AuditStatusSuccess,
		Description:  e.Description,
	}
	if e.ClusterID != "" {
		id := e.ClusterID
		rec.ClusterID = &id
	}
	if e.ClientIP != "" {
		ip := e.ClientIP
		rec.ClientIP = &ip
	}
	if err != nil {
		rec.Status = models.AuditStatusFailure
		if rec.Description != "" {
			rec.Description += ": "
		}
		rec.Description += err.Error()
	}

	r.writer.Record(ctx, rec)
	return err
}
