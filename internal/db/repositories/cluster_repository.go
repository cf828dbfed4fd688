// cluster_repository.go implements ClusterRepository, providing database queries for
// registered RabbitMQ clusters and their user assignments.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rabbit-console/rabbit-console/internal/db/models"
)

// ClusterRepository handles cluster database operations
type ClusterRepository struct {
	db *sql.DB
}

// NewClusterRepository creates a new ClusterRepository
func NewClusterRepository(db *sql.DB) *ClusterRepository {
	return &ClusterRepository{db: db}
}

const clusterColumns = `id, name, api_url, username, password_encrypted, description, active, created_at, updated_at`

func scanCluster(row interface{ Scan(...any) error }) (*models.Cluster, error) {
	c := &models.Cluster{}
	err := row.Scan(
		&c.ID, &c.Name, &c.APIURL, &c.Username, &c.PasswordEncrypted,
		&c.Description, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new cluster. The caller is responsible for having encrypted
// the password before it reaches this layer.
func (r *ClusterRepository) Create(ctx context.Context, c *models.Cluster) error {
	c.ID = uuid.New().String()
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO clusters (id, name, api_url, username, password_encrypted, description, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.APIURL, c.Username, c.PasswordEncrypted,
		c.Description, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetByID retrieves a cluster by ID, or nil when absent.
func (r *ClusterRepository) GetByID(ctx context.Context, id string) (*models.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE id = $1`
	c, err := scanCluster(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByName retrieves a cluster by its unique name, or nil when absent.
func (r *ClusterRepository) GetByName(ctx context.Context, name string) (*models.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE name = $1`
	c, err := scanCluster(r.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List retrieves clusters ordered by name with offset pagination.
func (r *ClusterRepository) List(ctx context.Context, limit, offset int) ([]*models.Cluster, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clusters`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + clusterColumns + ` FROM clusters ORDER BY name LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	clusters := make([]*models.Cluster, 0)
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, 0, err
		}
		clusters = append(clusters, c)
	}
	return clusters, total, rows.Err()
}

// ListForUser retrieves the active clusters assigned to a user.
func (r *ClusterRepository) ListForUser(ctx context.Context, userID string) ([]*models.Cluster, error) {
	query := `
		SELECT ` + clusterColumns + `
		FROM clusters c
		JOIN cluster_users cu ON cu.cluster_id = c.id
		WHERE cu.user_id = $1 AND c.active
		ORDER BY c.name
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clusters := make([]*models.Cluster, 0)
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}
	return clusters, rows.Err()
}

// Update persists name, URL, credentials, description, and active flag.
func (r *ClusterRepository) Update(ctx context.Context, c *models.Cluster) error {
	c.UpdatedAt = time.Now()
	query := `
		UPDATE clusters
		SET name = $2, api_url = $3, username = $4, password_encrypted = $5,
		    description = $6, active = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.APIURL, c.Username, c.PasswordEncrypted,
		c.Description, c.Active, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("cluster %s not found", c.ID)
	}
	return nil
}

// Delete removes a cluster row. Callers must check HasAuditRecords first:
// deleting a cluster that audit records still reference is rejected at the
// handler layer so history is never silently orphaned.
func (r *ClusterRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM clusters WHERE id = $1`, id)
	return err
}

// SetActive flips the active flag without touching credentials.
func (r *ClusterRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clusters SET active = $2, updated_at = $3 WHERE id = $1`,
		id, active, time.Now(),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("cluster %s not found", id)
	}
	return nil
}

// AssignUsers replaces the set of users allowed to act on a cluster.
func (r *ClusterRepository) AssignUsers(ctx context.Context, clusterID string, userIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cluster_users WHERE cluster_id = $1`, clusterID); err != nil {
		return err
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cluster_users (cluster_id, user_id) VALUES ($1, $2)`,
			clusterID, userID,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetAssignedUserIDs returns the user ids assigned to a cluster.
func (r *ClusterRepository) GetAssignedUserIDs(ctx context.Context, clusterID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM cluster_users WHERE cluster_id = $1 ORDER BY user_id`, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsUserAssigned reports whether the user may act on the cluster.
func (r *ClusterRepository) IsUserAssigned(ctx context.Context, clusterID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cluster_users WHERE cluster_id = $1 AND user_id = $2`,
		clusterID, userID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasAuditRecords reports whether any audit records reference the cluster.
func (r *ClusterRepository) HasAuditRecords(ctx context.Context, clusterID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_records WHERE cluster_id = $1`, clusterID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, used to translate duplicate cluster names into 409 responses.
func IsUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
