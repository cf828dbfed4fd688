package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rabbit-console/rabbit-console/internal/db/models"
	"github.com/rabbit-console/rabbit-console/internal/db/repositories"
)

// UserHandlers handles console account endpoints. Authentication lives in the
// external identity layer; these endpoints maintain the rows that cluster
// assignment and audit attribution reference.
type UserHandlers struct {
	userRepo *repositories.UserRepository
}

// NewUserHandlers creates a UserHandlers instance.
func NewUserHandlers(userRepo *repositories.UserRepository) *UserHandlers {
	return &UserHandlers{userRepo: userRepo}
}

// CreateUserRequest is the body for registering a console account.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	IsAdmin  bool   `json:"isAdmin"`
}

// ListUsersHandler lists console accounts.
// GET /api/v1/users
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize, ok := parsePagination(c, 50, 200)
		if !ok {
			return
		}

		users, total, err := h.userRepo.List(c.Request.Context(), pageSize, (page-1)*pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"items":      users,
			"page":       page,
			"pageSize":   pageSize,
			"totalItems": total,
		})
	}
}

// CreateUserHandler registers a console account.
// POST /api/v1/users
func (h *UserHandlers) CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		existing, err := h.userRepo.GetByUsername(c.Request.Context(), req.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "a user with this username already exists"})
			return
		}

		user := &models.User{
			Username: req.Username,
			Email:    req.Email,
			IsAdmin:  req.IsAdmin,
		}
		if err := h.userRepo.Create(c.Request.Context(), user); err != nil {
			if repositories.IsUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "a user with this username already exists"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}
