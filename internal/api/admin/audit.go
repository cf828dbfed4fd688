// audit.go exposes the audit trail over HTTP. Records are immutable: the
// mutation routes on /audit/:id are registered only to answer 404, so the
// immutability guarantee is visible in the API surface rather than implied by
// an absent route.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rabbit-console/rabbit-console/internal/config"
	"github.com/rabbit-console/rabbit-console/internal/db/repositories"
)

const maxAuditPageSize = 200

// AuditHandlers handles audit trail endpoints.
type AuditHandlers struct {
	auditRepo *repositories.AuditRepository
	auditCfg  *config.AuditConfig
}

// NewAuditHandlers creates an AuditHandlers instance.
func NewAuditHandlers(auditRepo *repositories.AuditRepository, auditCfg *config.AuditConfig) *AuditHandlers {
	return &AuditHandlers{auditRepo: auditRepo, auditCfg: auditCfg}
}

func optionalQuery(c *gin.Context, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}

// ListAuditRecordsHandler lists audit records with filters, sort, and
// pagination.
// GET /api/v1/audit
func (h *AuditHandlers) ListAuditRecordsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize, ok := parsePagination(c, 50, maxAuditPageSize)
		if !ok {
			return
		}

		orderBy, err := repositories.ValidateSort(
			c.DefaultQuery("sortBy", "timestamp"),
			c.DefaultQuery("sortOrder", "desc"),
		)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		filters := repositories.AuditFilters{
			Username:     optionalQuery(c, "username"),
			ClusterID:    optionalQuery(c, "clusterId"),
			Operation:    optionalQuery(c, "operation"),
			ResourceType: optionalQuery(c, "resourceType"),
			ResourceName: optionalQuery(c, "resourceName"),
			Status:       optionalQuery(c, "status"),
		}
		if v := c.Query("startDate"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "startDate must be RFC 3339"})
				return
			}
			filters.StartDate = &ts
		}
		if v := c.Query("endDate"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "endDate must be RFC 3339"})
				return
			}
			filters.EndDate = &ts
		}

		records, total, err := h.auditRepo.List(c.Request.Context(), filters, orderBy, pageSize, (page-1)*pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit records"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"items":      records,
			"page":       page,
			"pageSize":   pageSize,
			"totalItems": total,
		})
	}
}

// GetAuditRecordHandler returns one audit record.
// GET /api/v1/audit/:id
func (h *AuditHandlers) GetAuditRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := h.auditRepo.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit record"})
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "audit record not found"})
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// RejectMutationHandler answers 404 for any attempt to modify or delete an
// audit record, whether or not the record exists.
// PUT|DELETE /api/v1/audit/:id
func (h *AuditHandlers) RejectMutationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit records are immutable"})
	}
}

// GetAuditConfigHandler reports the effective audit configuration, read-only.
// GET /api/v1/audit/config
func (h *AuditHandlers) GetAuditConfigHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"enabled":       h.auditCfg.IsEnabled(),
			"retentionDays": h.auditCfg.RetentionDays,
			"batchSize":     h.auditCfg.BatchSize,
			"async":         h.auditCfg.Async,
			"queueSize":     h.auditCfg.QueueSize,
		})
	}
}
