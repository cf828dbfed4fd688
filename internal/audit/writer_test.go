package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/rabbit-console/rabbit-console/internal/config"
	"github.com/rabbit-console/rabbit-console/internal/db/models"
	"github.com/rabbit-console/rabbit-console/internal/db/repositories"
)

func newTestWriter(t *testing.T, cfg *config.AuditConfig) (*Writer, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewWriter(repositories.NewAuditRepository(db), cfg), mock
}

func syncConfig() *config.AuditConfig {
	cfg := &config.AuditConfig{RetentionDays: 30, BatchSize: 10}
	cfg.SetEnabled(true)
	return cfg
}

func asyncConfig(queueSize, batchSize int, flush time.Duration) *config.AuditConfig {
	cfg := &config.AuditConfig{
		RetentionDays: 30,
		BatchSize:     batchSize,
		Async:         true,
		QueueSize:     queueSize,
		FlushInterval: flush,
	}
	cfg.SetEnabled(true)
	return cfg
}

func sampleRecord() *models.AuditRecord {
	return &models.AuditRecord{
		OccurredAt:   time.Now().UTC(),
		Username:     "alice",
		ClusterName:  "prod-east",
		Operation:    models.OpCreateQueue,
		ResourceType: "queue",
		ResourceName: "orders",
		Vhost:        "/",
		Status:       models.AuditStatusSuccess,
	}
}

func expectBatchInsert(mock sqlmock.Sqlmock, rows int) {
	mock.ExpectBegin()
	for i := 0; i < rows; i++ {
		mock.ExpectExec(`INSERT INTO audit_records`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
}

func TestSyncWriterPersistsInline(t *testing.T) {
	writer, mock := newTestWriter(t, syncConfig())
	expectBatchInsert(mock, 1)

	writer.Record(context.Background(), sampleRecord())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestWriterDisabledProducesNothing(t *testing.T) {
	cfg := syncConfig()
	cfg.SetEnabled(false)
	writer, mock := newTestWriter(t, cfg)

	writer.Record(context.Background(), sampleRecord())

	// No expectations were registered; any insert would have failed the mock.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

func TestAsyncWriterFlushesOnBatchSize(t *testing.T) {
	writer, mock := newTestWriter(t, asyncConfig(16, 2, time.Hour))
	expectBatchInsert(mock, 2)

	writer.Start()
	writer.Record(context.Background(), sampleRecord())
	writer.Record(context.Background(), sampleRecord())

	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 10*time.Millisecond)

	writer.Close()
}

func TestAsyncWriterFlushesOnInterval(t *testing.T) {
	writer, mock := newTestWriter(t, asyncConfig(16, 100, 20*time.Millisecond))
	expectBatchInsert(mock, 1)

	writer.Start()
	writer.Record(context.Background(), sampleRecord())

	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 10*time.Millisecond)

	writer.Close()
}

func TestAsyncWriterCloseDrainsQueue(t *testing.T) {
	writer, mock := newTestWriter(t, asyncConfig(16, 100, time.Hour))
	expectBatchInsert(mock, 3)

	writer.Start()
	for i := 0; i < 3; i++ {
		writer.Record(context.Background(), sampleRecord())
	}
	writer.Close()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAsyncWriterBlocksWhenFullThenRecovers(t *testing.T) {
	// Queue of one, drain not started: the second Record must block until the
	// drain loop begins consuming.
	writer, mock := newTestWriter(t, asyncConfig(1, 10, time.Hour))
	expectBatchInsert(mock, 2)

	writer.Record(context.Background(), sampleRecord())

	blocked := make(chan struct{})
	go func() {
		writer.Record(context.Background(), sampleRecord())
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("expected Record to block on a full queue")
	case <-time.After(50 * time.Millisecond):
	}

	writer.Start()
	select {
	case <-blocked:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Record to unblock once the drain loop started")
	}

	writer.Close()
}

func TestAsyncWriterCloseSweepsLateEnqueue(t *testing.T) {
	// Drain loop never started, so the record enqueued before Close can only
	// be persisted by the final sweep inside Close.
	writer, mock := newTestWriter(t, asyncConfig(4, 10, time.Hour))
	expectBatchInsert(mock, 1)

	writer.Record(context.Background(), sampleRecord())
	writer.Close()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestWriterPersistFailureIsSwallowed(t *testing.T) {
	writer, mock := newTestWriter(t, syncConfig())
	mock.ExpectBegin().WillReturnError(errors.New("connection lost"))

	// Must not panic or propagate.
	writer.Record(context.Background(), sampleRecord())
}

func TestCloseIsIdempotent(t *testing.T) {
	writer, _ := newTestWriter(t, asyncConfig(4, 10, time.Hour))
	writer.Start()
	writer.Close()
	writer.Close()
}
