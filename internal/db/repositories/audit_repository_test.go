package repositories

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/rabbit-console/rabbit-console/internal/db/models"
)

func newAuditRepo(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAuditRepository(db), mock
}

func auditRows(n int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "occurred_at", "username", "cluster_id", "cluster_name", "operation",
		"resource_type", "resource_name", "vhost", "status", "description", "client_ip", "created_at",
	})
	now := time.Now()
	for i := 0; i < n; i++ {
		rows.AddRow("rec-"+strings.Repeat("a", i+1), now, "alice", nil, "prod-east",
			models.OpCreateQueue, "queue", "orders", "/", models.AuditStatusSuccess, "", nil, now)
	}
	return rows
}

// ---------------------------------------------------------------------------
// CreateBatch
// ---------------------------------------------------------------------------

func TestCreateBatchAssignsIdentity(t *testing.T) {
	repo, mock := newAuditRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO audit_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	records := []*models.AuditRecord{
		{Username: "alice", Operation: models.OpCreateQueue, Status: models.AuditStatusSuccess},
		{Username: "bob", Operation: models.OpPurgeQueue, Status: models.AuditStatusFailure},
	}
	if err := repo.CreateBatch(context.Background(), records); err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}

	for i, rec := range records {
		if rec.ID == "" {
			t.Errorf("record %d: expected an assigned ID", i)
		}
		if rec.CreatedAt.IsZero() {
			t.Errorf("record %d: expected created_at to be assigned", i)
		}
		if rec.OccurredAt.IsZero() {
			t.Errorf("record %d: expected zero occurred_at to be defaulted", i)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateBatchEmptyIsNoop(t *testing.T) {
	repo, mock := newAuditRepo(t)

	if err := repo.CreateBatch(context.Background(), nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

// ---------------------------------------------------------------------------
// ValidateSort
// ---------------------------------------------------------------------------

func TestValidateSort(t *testing.T) {
	tests := []struct {
		field, direction string
		want             string
		wantErr          bool
	}{
		{"timestamp", "asc", "occurred_at ASC", false},
		{"timestamp", "desc", "occurred_at DESC", false},
		{"clusterName", "asc", "cluster_name ASC", false},
		{"operation", "desc", "operation DESC", false},
		{"clientIp", "asc", "client_ip ASC", false},
		{"createdAt", "desc", "created_at DESC", false},
		{"password", "asc", "", true},
		{"timestamp; DROP TABLE audit_records", "asc", "", true},
		{"timestamp", "sideways", "", true},
	}
	for _, tt := range tests {
		got, err := ValidateSort(tt.field, tt.direction)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ValidateSort(%q, %q): expected error", tt.field, tt.direction)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateSort(%q, %q): unexpected error %v", tt.field, tt.direction, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidateSort(%q, %q) = %q, want %q", tt.field, tt.direction, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestListUnfiltered(t *testing.T) {
	repo, mock := newAuditRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_records WHERE 1=1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT .+ FROM audit_records WHERE 1=1 ORDER BY occurred_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(5, 0).
		WillReturnRows(auditRows(5))

	records, total, err := repo.List(context.Background(), AuditFilters{}, "occurred_at DESC", 5, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 7 {
		t.Errorf("expected total 7, got %d", total)
	}
	if len(records) != 5 {
		t.Errorf("expected 5 records, got %d", len(records))
	}
}

func TestListFiltered(t *testing.T) {
	repo, mock := newAuditRepo(t)

	username := "alice"
	status := models.AuditStatusFailure
	start := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_records WHERE 1=1 AND username = \$1 AND status = \$2 AND occurred_at >= \$3`).
		WithArgs(username, status, start).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT .+ FROM audit_records WHERE 1=1 AND username = \$1 AND status = \$2 AND occurred_at >= \$3 ORDER BY username ASC LIMIT \$4 OFFSET \$5`).
		WithArgs(username, status, start, 50, 0).
		WillReturnRows(auditRows(1))

	filters := AuditFilters{Username: &username, Status: &status, StartDate: &start}
	records, total, err := repo.List(context.Background(), filters, "username ASC", 50, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(records) != 1 {
		t.Errorf("expected 1/1, got total=%d records=%d", total, len(records))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Get / DeleteOlderThan
// ---------------------------------------------------------------------------

func TestGetAbsentReturnsNil(t *testing.T) {
	repo, mock := newAuditRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM audit_records WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(auditRows(0))

	rec, err := repo.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	repo, mock := newAuditRepo(t)

	cutoff := time.Now().AddDate(0, 0, -30)
	mock.ExpectExec(`DELETE FROM audit_records WHERE occurred_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	deleted, err := repo.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 42 {
		t.Errorf("expected 42 deleted, got %d", deleted)
	}
}
