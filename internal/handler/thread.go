package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/web-casa/aiui/internal/model"
	"github.com/web-casa/aiui/internal/pagination"
	"github.com/web-casa/aiui/internal/service"
	"gorm.io/gorm"
)

// ThreadHandler manages conversation thread endpoints
type ThreadHandler struct {
	svc   *service.ThreadService
	audit auditor
}

// NewThreadHandler creates a new ThreadHandler
func NewThreadHandler(svc *service.ThreadService, db *gorm.DB) *ThreadHandler {
	return &ThreadHandler{svc: svc, audit: auditor{db: db, target: "thread"}}
}

// List returns the caller's threads
func (h *ThreadHandler) List(c *gin.Context) {
	userID, _ := currentUser(c)
	threads, page, err := h.svc.List(userID, c.Query("chat_type"), pagination.FromContext(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "error_key": "error.thread_list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads, "pagination": page})
}

// AdminList returns threads of every owner
func (h *ThreadHandler) AdminList(c *gin.Context) {
	threads, page, err := h.svc.AdminList(c.Query("chat_type"), pagination.FromContext(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "error_key": "error.thread_list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads, "pagination": page})
}

// Get returns a thread with its ordered items
func (h *ThreadHandler) Get(c *gin.Context) {
	id, err := parseUUID(c)
	if err != nil {
		invalidID(c)
		return
	}
	userID, _ := currentUser(c)
	thread, err := h.svc.Get(userID, id)
	if err != nil {
		writeError(c, err, "error.thread_get_failed")
		return
	}
	c.JSON(http.StatusOK, thread)
}

// Create adds a thread, optionally with items
func (h *ThreadHandler) Create(c *gin.Context) {
	var in model.ThreadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := currentUser(c)
	thread, err := h.svc.Create(userID, in)
	if err != nil {
		writeError(c, err, "error.thread_create_failed")
		return
	}

	h.audit.record(c, "CREATE", thread.ID.String(), fmt.Sprintf("Created thread '%s'", thread.Name))
	c.JSON(http.StatusCreated, thread)
}

// Update edits a thread and applies the submitted item batch
func (h *ThreadHandler) Update(c *gin.Context) {
	id, err := parseUUID(c)
	if err != nil {
		invalidID(c)
		return
	}

	var in model.ThreadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := currentUser(c)
	thread, err := h.svc.Update(userID, id, in)
	if err != nil {
		writeError(c, err, "error.thread_update_failed")
		return
	}

	h.audit.record(c, "UPDATE", id.String(), fmt.Sprintf("Updated thread '%s' (%d items)", thread.Name, len(thread.Items)))
	c.JSON(http.StatusOK, thread)
}

// Delete removes a thread and its items
func (h *ThreadHandler) Delete(c *gin.Context) {
	id, err := parseUUID(c)
	if err != nil {
		invalidID(c)
		return
	}
	userID, _ := currentUser(c)
	if err := h.svc.Delete(userID, id); err != nil {
		writeError(c, err, "error.thread_delete_failed")
		return
	}

	h.audit.record(c, "DELETE", id.String(), "Deleted thread")
	c.JSON(http.StatusOK, gin.H{"message": "Thread deleted"})
}
