// audit_repository.go implements AuditRepository, providing batch insertion and
// filtered, sorted, paginated retrieval of audit records. Records are immutable:
// this file deliberately contains no UPDATE statement and no single-row DELETE;
// rows leave the table only through DeleteOlderThan, driven by retention policy.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbit-console/rabbit-console/internal/db/models"
)

// AuditRepository handles audit record database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit records. Nil fields are not applied.
type AuditFilters struct {
	Username     *string
	ClusterID    *string
	Operation    *string
	ResourceType *string
	ResourceName *string
	Status       *string
	StartDate    *time.Time
	EndDate      *time.Time
}

// auditSortColumns maps API sort keys to columns. This is the complete
// allow-list; any other key is rejected before a query is built so user input
// never reaches the ORDER BY clause.
var auditSortColumns = map[string]string{
	"timestamp":    "occurred_at",
	"username":     "username",
	"clusterName":  "cluster_name",
	"operation":    "operation",
	"resourceType": "resource_type",
	"resourceName": "resource_name",
	"status":       "status",
	"createdAt":    "created_at",
	"clientIp":     "client_ip",
}

// ErrInvalidSort is returned when the sort field or direction is not in the allow-list.
var ErrInvalidSort = fmt.Errorf("invalid sort field or direction")

// ValidateSort resolves an API sort key and direction into a SQL ORDER BY
// fragment. Empty values default to occurred_at DESC.
func ValidateSort(field, direction string) (string, error) {
	if field == "" {
		field = "timestamp"
	}
	column, ok := auditSortColumns[field]
	if !ok {
		return "", ErrInvalidSort
	}
	switch strings.ToLower(direction) {
	case "", "desc":
		return column + " DESC", nil
	case "asc":
		return column + " ASC", nil
	default:
		return "", ErrInvalidSort
	}
}

const auditColumns = `id, occurred_at, username, cluster_id, cluster_name, operation, resource_type, resource_name, vhost, status, description, client_ip, created_at`

// CreateBatch inserts a batch of audit records in one transaction. IDs and
// created_at are assigned here so callers never have to touch row identity.
func (r *AuditRepository) CreateBatch(ctx context.Context, records []*models.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO audit_records (id, occurred_at, username, cluster_id, cluster_name,
			operation, resource_type, resource_name, vhost, status, description, client_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	now := time.Now()
	for _, rec := range records {
		rec.ID = uuid.New().String()
		rec.CreatedAt = now
		if rec.OccurredAt.IsZero() {
			rec.OccurredAt = now
		}
		if _, err := tx.ExecContext(ctx, query,
			rec.ID, rec.OccurredAt, rec.Username, rec.ClusterID, rec.ClusterName,
			rec.Operation, rec.ResourceType, rec.ResourceName, rec.Vhost,
			rec.Status, rec.Description, rec.ClientIP, rec.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// List retrieves audit records with filters, an allow-listed sort, and offset
// pagination. The total reflects the filtered set.
func (r *AuditRepository) List(ctx context.Context, filters AuditFilters, orderBy string, limit, offset int) ([]*models.AuditRecord, int, error) {
	countQuery := `SELECT COUNT(*) FROM audit_records WHERE 1=1`
	query := `SELECT ` + auditColumns + ` FROM audit_records WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	addFilter := func(clause string, value interface{}) {
		countQuery += fmt.Sprintf(clause, paramIndex)
		query += fmt.Sprintf(clause, paramIndex)
		args = append(args, value)
		paramIndex++
	}

	if filters.Username != nil {
		addFilter(` AND username = $%d`, *filters.Username)
	}
	if filters.ClusterID != nil {
		addFilter(` AND cluster_id = $%d`, *filters.ClusterID)
	}
	if filters.Operation != nil {
		addFilter(` AND operation = $%d`, *filters.Operation)
	}
	if filters.ResourceType != nil {
		addFilter(` AND resource_type = $%d`, *filters.ResourceType)
	}
	if filters.ResourceName != nil {
		addFilter(` AND resource_name = $%d`, *filters.ResourceName)
	}
	if filters.Status != nil {
		addFilter(` AND status = $%d`, *filters.Status)
	}
	if filters.StartDate != nil {
		addFilter(` AND occurred_at >= $%d`, *filters.StartDate)
	}
	if filters.EndDate != nil {
		addFilter(` AND occurred_at <= $%d`, *filters.EndDate)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if orderBy == "" {
		orderBy = "occurred_at DESC"
	}
	query += fmt.Sprintf(` ORDER BY %s LIMIT $%d OFFSET $%d`, orderBy, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := make([]*models.AuditRecord, 0)
	for rows.Next() {
		rec := &models.AuditRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.OccurredAt, &rec.Username, &rec.ClusterID, &rec.ClusterName,
			&rec.Operation, &rec.ResourceType, &rec.ResourceName, &rec.Vhost,
			&rec.Status, &rec.Description, &rec.ClientIP, &rec.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// Get retrieves a single audit record by ID, or nil when absent.
func (r *AuditRepository) Get(ctx context.Context, id string) (*models.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_records WHERE id = $1`

	rec := &models.AuditRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.OccurredAt, &rec.Username, &rec.ClusterID, &rec.ClusterName,
		&rec.Operation, &rec.ResourceType, &rec.ResourceName, &rec.Vhost,
		&rec.Status, &rec.Description, &rec.ClientIP, &rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteOlderThan removes records whose occurred_at precedes the cutoff and
// returns the number removed. This is the only deletion path for audit data.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_records WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
