// Package admin implements the administrative HTTP handlers: the cluster
// registry, user management, and the audit trail surface. Every route sits
// behind the auth middleware; mutating routes additionally require the admin
// flag, while cluster listing is open to any authenticated user and scoped to
// their assignments.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rabbit-console/rabbit-console/internal/crypto"
	"github.com/rabbit-console/rabbit-console/internal/db/models"
	"github.com/rabbit-console/rabbit-console/internal/db/repositories"
	"github.com/rabbit-console/rabbit-console/internal/middleware"
)

// ClusterHandlers handles cluster registry endpoints.
type ClusterHandlers struct {
	clusterRepo *repositories.ClusterRepository
	userRepo    *repositories.UserRepository
	cipher      *crypto.CredentialCipher
}

// NewClusterHandlers creates a ClusterHandlers instance.
func NewClusterHandlers(clusterRepo *repositories.ClusterRepository, userRepo *repositories.UserRepository, cipher *crypto.CredentialCipher) *ClusterHandlers {
	return &ClusterHandlers{clusterRepo: clusterRepo, userRepo: userRepo, cipher: cipher}
}

// CreateClusterRequest is the body for cluster registration. The password is
// accepted here once, sealed immediately, and never returned by any endpoint.
type CreateClusterRequest struct {
	Name        string `json:"name" binding:"required"`
	APIURL      string `json:"apiUrl" binding:"required,url"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

// UpdateClusterRequest is the body for cluster updates. An empty password
// keeps the stored credential.
type UpdateClusterRequest struct {
	Name        string `json:"name" binding:"required"`
	APIURL      string `json:"apiUrl" binding:"required,url"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

// ListClustersHandler lists registered clusters. Admins see the full
// registry; other users see only the clusters assigned to them.
// GET /api/v1/clusters
func (h *ClusterHandlers) ListClustersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize, ok := parsePagination(c, 50, 200)
		if !ok {
			return
		}

		if !c.GetBool(middleware.IsAdminKey) {
			clusters, err := h.clusterRepo.ListForUser(c.Request.Context(), c.GetString(middleware.UserIDKey))
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list clusters"})
				return
			}
			total := len(clusters)
			start := (page - 1) * pageSize
			if start > total {
				start = total
			}
			end := start + pageSize
			if end > total {
				end = total
			}
			c.JSON(http.StatusOK, gin.H{
				"items":      clusters[start:end],
				"page":       page,
				"pageSize":   pageSize,
				"totalItems": total,
			})
			return
		}

		clusters, total, err := h.clusterRepo.List(c.Request.Context(), pageSize, (page-1)*pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list clusters"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"items":      clusters,
			"page":       page,
			"pageSize":   pageSize,
			"totalItems": total,
		})
	}
}

// GetClusterHandler returns one cluster with its user assignments.
// GET /api/v1/clusters/:id
func (h *ClusterHandlers) GetClusterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, err := h.clusterRepo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cluster"})
			return
		}
		if cl == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}
		ids, err := h.clusterRepo.GetAssignedUserIDs(c.Request.Context(), cl.ID)
		if err == nil {
			cl.AssignedUserIDs = ids
		}
		c.JSON(http.StatusOK, cl)
	}
}

// CreateClusterHandler registers a cluster.
// POST /api/v1/clusters
func (h *ClusterHandlers) CreateClusterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateClusterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		existing, err := h.clusterRepo.GetByName(c.Request.Context(), req.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create cluster"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "a cluster with this name already exists"})
			return
		}

		sealed, err := h.cipher.Seal(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encrypt credentials"})
			return
		}

		cl := &models.Cluster{
			Name:              req.Name,
			APIURL:            req.APIURL,
			Username:          req.Username,
			PasswordEncrypted: sealed,
			Description:       req.Description,
			Active:            true,
		}
		if req.Active != nil {
			cl.Active = *req.Active
		}

		if err := h.clusterRepo.Create(c.Request.Context(), cl); err != nil {
			if repositories.IsUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "a cluster with this name already exists"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create cluster"})
			return
		}
		c.JSON(http.StatusCreated, cl)
	}
}

// UpdateClusterHandler updates a cluster's registration.
// PUT /api/v1/clusters/:id
func (h *ClusterHandlers) UpdateClusterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateClusterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		cl, err := h.clusterRepo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cluster"})
			return
		}
		if cl == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}

		cl.Name = req.Name
		cl.APIURL = req.APIURL
		cl.Username = req.Username
		cl.Description = req.Description
		if req.Active != nil {
			cl.Active = *req.Active
		}
		if req.Password != "" {
			sealed, err := h.cipher.Seal(req.Password)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encrypt credentials"})
				return
			}
			cl.PasswordEncrypted = sealed
		}

		if err := h.clusterRepo.Update(c.Request.Context(), cl); err != nil {
			if repositories.IsUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "a cluster with this name already exists"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update cluster"})
			return
		}
		c.JSON(http.StatusOK, cl)
	}
}

// DeleteClusterHandler removes a cluster. Removal is refused while audit
// records still reference the cluster; deactivate instead to keep the history.
// DELETE /api/v1/clusters/:id
func (h *ClusterHandlers) DeleteClusterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		cl, err := h.clusterRepo.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cluster"})
			return
		}
		if cl == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}

		hasRecords, err := h.clusterRepo.HasAuditRecords(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check audit history"})
			return
		}
		if hasRecords {
			c.JSON(http.StatusConflict, gin.H{
				"error": "cluster has audit history; deactivate it instead of deleting",
			})
			return
		}

		if err := h.clusterRepo.Delete(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete cluster"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "cluster deleted"})
	}
}

// SetActiveRequest is the body for toggling a cluster's active flag.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetClusterActiveHandler activates or deactivates a cluster without touching
// the rest of its registration. Deactivated clusters refuse proxied traffic
// but keep their audit history.
// POST /api/v1/clusters/:id/active
func (h *ClusterHandlers) SetClusterActiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		id := c.Param("id")
		cl, err := h.clusterRepo.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cluster"})
			return
		}
		if cl == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}

		if err := h.clusterRepo.SetActive(c.Request.Context(), id, *req.Active); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update cluster"})
			return
		}
		cl.Active = *req.Active
		c.JSON(http.StatusOK, cl)
	}
}

// AssignUsersRequest is the body for replacing a cluster's user assignments.
type AssignUsersRequest struct {
	UserIDs []string `json:"userIds" binding:"required"`
}

// AssignUsersHandler replaces the set of users allowed to act on a cluster.
// POST /api/v1/clusters/:id/users
func (h *ClusterHandlers) AssignUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AssignUsersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		id := c.Param("id")
		cl, err := h.clusterRepo.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cluster"})
			return
		}
		if cl == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
			return
		}

		for _, userID := range req.UserIDs {
			user, err := h.userRepo.GetByID(c.Request.Context(), userID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate users"})
				return
			}
			if user == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown user: " + userID})
				return
			}
		}

		if err := h.clusterRepo.AssignUsers(c.Request.Context(), id, req.UserIDs); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assign users"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "users assigned", "userIds": req.UserIDs})
	}
}
