package admin

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/rabbit-console/rabbit-console/internal/config"
	"github.com/rabbit-console/rabbit-console/internal/db/models"
	"github.com/rabbit-console/rabbit-console/internal/db/repositories"
)

func newAuditTestServer(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.AuditConfig{
		RetentionDays: 90,
		BatchSize:     50,
		Async:         true,
		QueueSize:     1000,
		FlushInterval: time.Second,
	}
	cfg.SetEnabled(true)

	h := NewAuditHandlers(repositories.NewAuditRepository(db), cfg)

	r := gin.New()
	r.GET("/audit", h.ListAuditRecordsHandler())
	r.GET("/audit/config", h.GetAuditConfigHandler())
	r.GET("/audit/:id", h.GetAuditRecordHandler())
	r.PUT("/audit/:id", h.RejectMutationHandler())
	r.DELETE("/audit/:id", h.RejectMutationHandler())
	return r, mock
}

func auditRecordRows(n int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "occurred_at", "username", "cluster_id", "cluster_name", "operation",
		"resource_type", "resource_name", "vhost", "status", "description", "client_ip", "created_at",
	})
	now := time.Now()
	for i := 0; i < n; i++ {
		rows.AddRow("rec-1", now, "alice", nil, "prod-east",
			models.OpCreateQueue, "queue", "orders", "/", models.AuditStatusSuccess, "", nil, now)
	}
	return rows
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestListAuditRecords(t *testing.T) {
	r, mock := newAuditTestServer(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_records`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT .+ FROM audit_records .+ LIMIT \$1 OFFSET \$2`).
		WithArgs(50, 0).
		WillReturnRows(auditRecordRows(2))

	w := doJSON(r, http.MethodGet, "/audit", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"totalItems":2`) {
		t.Errorf("expected totalItems in response, got %s", w.Body.String())
	}
}

func TestListAuditRecordsFiltered(t *testing.T) {
	r, mock := newAuditTestServer(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_records`).
		WithArgs("alice", string(models.AuditStatusFailure)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT .+ FROM audit_records .+ LIMIT \$3 OFFSET \$4`).
		WithArgs("alice", string(models.AuditStatusFailure), 50, 0).
		WillReturnRows(auditRecordRows(1))

	w := doJSON(r, http.MethodGet, "/audit?username=alice&status=FAILURE", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListAuditRecordsInvalidSortField(t *testing.T) {
	r, mock := newAuditTestServer(t)

	w := doJSON(r, http.MethodGet, "/audit?sortBy=password", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no database activity expected: %v", err)
	}
}

func TestListAuditRecordsRejectsBadPagination(t *testing.T) {
	r, mock := newAuditTestServer(t)

	for _, path := range []string{
		"/audit?page=-3",
		"/audit?page=abc",
		"/audit?pageSize=9999",
	} {
		w := doJSON(r, http.MethodGet, path, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", path, w.Code, w.Body.String())
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no database activity expected: %v", err)
	}
}

func TestListAuditRecordsInvalidStartDate(t *testing.T) {
	r, _ := newAuditTestServer(t)

	w := doJSON(r, http.MethodGet, "/audit?startDate=yesterday", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "RFC 3339") {
		t.Errorf("expected date format message, got %s", w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Get / immutability
// ---------------------------------------------------------------------------

func TestGetAuditRecord(t *testing.T) {
	r, mock := newAuditTestServer(t)

	mock.ExpectQuery(`SELECT .+ FROM audit_records WHERE id = \$1`).
		WithArgs("rec-1").
		WillReturnRows(auditRecordRows(1))

	w := doJSON(r, http.MethodGet, "/audit/rec-1", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetAuditRecordNotFound(t *testing.T) {
	r, mock := newAuditTestServer(t)

	mock.ExpectQuery(`SELECT .+ FROM audit_records WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doJSON(r, http.MethodGet, "/audit/missing", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAuditMutationsAlwaysNotFound(t *testing.T) {
	r, mock := newAuditTestServer(t)

	for _, method := range []string{http.MethodPut, http.MethodDelete} {
		w := doJSON(r, method, "/audit/rec-1", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", method, w.Code)
		}
		if !strings.Contains(w.Body.String(), "immutable") {
			t.Errorf("%s: expected immutability message, got %s", method, w.Body.String())
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no database activity expected: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestGetAuditConfigReadOnly(t *testing.T) {
	r, _ := newAuditTestServer(t)

	w := doJSON(r, http.MethodGet, "/audit/config", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"enabled":true`) {
		t.Errorf("expected enabled flag, got %s", body)
	}
	if !strings.Contains(body, `"retentionDays":90`) {
		t.Errorf("expected retention days, got %s", body)
	}
}
