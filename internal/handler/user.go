package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/web-casa/aiui/internal/service"
	"gorm.io/gorm"
)

// UserHandler handles user management
type UserHandler struct {
	users *service.UserService
	audit auditor
}

func NewUserHandler(users *service.UserService, db *gorm.DB) *UserHandler {
	return &UserHandler{users: users, audit: auditor{db: db, target: "user"}}
}

// List returns all users (without passwords)
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "error_key": "error.user_list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": len(users)})
}

// Create creates a new user
func (h *UserHandler) Create(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required,min=6"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.Create(req.Username, req.Password, req.Role)
	if err != nil {
		writeError(c, err, "error.user_create_failed")
		return
	}

	h.audit.record(c, "CREATE", fmt.Sprint(user.ID),
		fmt.Sprintf("Created user '%s' with role '%s'", user.Username, user.Role))
	c.JSON(http.StatusCreated, user)
}

// Update updates a user's role and/or password
func (h *UserHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		invalidID(c)
		return
	}

	var req struct {
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.Update(id, req.Password, req.Role)
	if err != nil {
		writeError(c, err, "error.user_update_failed")
		return
	}

	h.audit.record(c, "UPDATE", fmt.Sprint(id), fmt.Sprintf("Updated user '%s'", user.Username))
	c.JSON(http.StatusOK, user)
}

// Delete removes a user. Their conversations stay in place without an owner.
func (h *UserHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		invalidID(c)
		return
	}

	currentID, _ := currentUser(c)
	user, err := h.users.Delete(id, currentID)
	if err != nil {
		writeError(c, err, "error.user_delete_failed")
		return
	}

	h.audit.record(c, "DELETE", fmt.Sprint(id), fmt.Sprintf("Deleted user '%s'", user.Username))
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}
