package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/web-casa/aiui/internal/service"
	"gorm.io/gorm"
)

// ProfileHandler lets the caller manage their own account
type ProfileHandler struct {
	users *service.UserService
	audit auditor
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(users *service.UserService, db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{users: users, audit: auditor{db: db, target: "profile"}}
}

// Get returns the caller's profile
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, _ := currentUser(c)
	user, err := h.users.Get(userID)
	if err != nil {
		writeError(c, err, "error.profile_failed")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update changes name and email
func (h *ProfileHandler) Update(c *gin.Context) {
	var req struct {
		FirstName string `json:"first_name" binding:"max=150"`
		LastName  string `json:"last_name" binding:"max=150"`
		Email     string `json:"email" binding:"max=254"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := currentUser(c)
	user, err := h.users.UpdateProfile(userID, req.FirstName, req.LastName, req.Email)
	if err != nil {
		writeError(c, err, "error.profile_update_failed")
		return
	}
	h.audit.record(c, "UPDATE", fmt.Sprint(userID), "Updated profile")
	c.JSON(http.StatusOK, user)
}

// UpdateAddress replaces the four address lines
func (h *ProfileHandler) UpdateAddress(c *gin.Context) {
	var req struct {
		Address1 string `json:"address1" binding:"max=255"`
		Address2 string `json:"address2" binding:"max=255"`
		Address3 string `json:"address3" binding:"max=255"`
		Address4 string `json:"address4" binding:"max=255"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := currentUser(c)
	user, err := h.users.UpdateAddress(userID, [4]string{req.Address1, req.Address2, req.Address3, req.Address4})
	if err != nil {
		writeError(c, err, "error.profile_update_failed")
		return
	}
	h.audit.record(c, "UPDATE", fmt.Sprint(userID), "Updated address")
	c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the caller's password after checking the old one
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := currentUser(c)
	if err := h.users.ChangePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		writeError(c, err, "error.password_change_failed")
		return
	}
	h.audit.record(c, "UPDATE", fmt.Sprint(userID), "Changed password")
	c.JSON(http.StatusOK, gin.H{"message": "Password changed"})
}
