package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/web-casa/aiui/internal/auth"
	"github.com/web-casa/aiui/internal/model"
	"github.com/web-casa/aiui/internal/service"
	"gorm.io/gorm"
)

// AuthHandler manages authentication endpoints
type AuthHandler struct {
	users   *service.UserService
	secret  string
	limiter *auth.RateLimiter
	audit   auditor
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(users *service.UserService, db *gorm.DB, secret string, limiter *auth.RateLimiter) *AuthHandler {
	return &AuthHandler{users: users, secret: secret, limiter: limiter, audit: auditor{db: db, target: "user"}}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type setupRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=6"`
}

// Setup creates the initial admin user (only works when no users exist)
func (h *AuthHandler) Setup(c *gin.Context) {
	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.Setup(req.Username, req.Password)
	if err != nil {
		writeError(c, err, "error.setup_failed")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Username, user.Role, h.secret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Admin user created successfully",
		"token":   token,
		"user":    userInfo(user),
	})
}

// Login authenticates a user and returns a JWT token
func (h *AuthHandler) Login(c *gin.Context) {
	ip := c.ClientIP()

	allowed, waitSec := h.limiter.Check(ip)
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "Too many login attempts",
			"error_key":   "error.too_many_attempts",
			"retry_after": waitSec,
		})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		h.limiter.RecordFail(ip)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "error_key": "error.invalid_credentials"})
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Username, user.Role, h.secret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	h.limiter.RecordSuccess(ip)
	c.Set("user_id", user.ID)
	c.Set("username", user.Username)
	h.audit.record(c, "LOGIN", fmt.Sprint(user.ID), "Logged in")
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  userInfo(user),
	})
}

// Me returns the current authenticated user info
func (h *AuthHandler) Me(c *gin.Context) {
	userID, _ := currentUser(c)
	user, err := h.users.Get(userID)
	if err != nil {
		writeError(c, err, "error.user_lookup_failed")
		return
	}
	c.JSON(http.StatusOK, userInfo(user))
}

// NeedSetup checks if initial setup is required
func (h *AuthHandler) NeedSetup(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"need_setup": h.users.NeedSetup()})
}

func userInfo(u *model.User) gin.H {
	return gin.H{
		"id":       u.ID,
		"username": u.Username,
		"role":     u.Role,
	}
}
