package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/web-casa/aiui/internal/llm"
	"github.com/web-casa/aiui/internal/model"
	"github.com/web-casa/aiui/internal/service"
	"gorm.io/gorm"
)

const connectionTestTimeout = 30 * time.Second

// ConnectionTester checks that an AI backend answers
type ConnectionTester interface {
	TestConnection(ctx context.Context, t llm.Target) error
}

// AIModelHandler manages AI model configuration endpoints
type AIModelHandler struct {
	svc    *service.AIModelService
	tester ConnectionTester
	audit  auditor
}

// NewAIModelHandler creates a new AIModelHandler
func NewAIModelHandler(svc *service.AIModelService, tester ConnectionTester, db *gorm.DB) *AIModelHandler {
	return &AIModelHandler{svc: svc, tester: tester, audit: auditor{db: db, target: "aimodel"}}
}

// List returns all models; ?active=true limits the list to active ones
func (h *AIModelHandler) List(c *gin.Context) {
	models, err := h.svc.List(c.Query("active") == "true")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "error_key": "error.aimodel_list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"aimodels": models, "total": len(models)})
}

// Get returns a single model
func (h *AIModelHandler) Get(c *gin.Context) {
	id, err := parseUUID(c)
	if err != nil {
		invalidID(c)
		return
	}
	m, err := h.svc.Get(id)
	if err != nil {
		writeError(c, err, "error.aimodel_get_failed")
		return
	}
	c.JSON(http.StatusOK, m)
}

// Create adds a new model
func (h *AIModelHandler) Create(c *gin.Context) {
	var req model.AIModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := currentUser(c)
	m, err := h.svc.Create(req, userID)
	if err != nil {
		writeError(c, err, "error.aimodel_create_failed")
		return
	}

	h.audit.record(c, "CREATE", m.ID.String(), fmt.Sprintf("Created AI model '%s'", m.Name))
	c.JSON(http.StatusCreated, m)
}

// Update modifies an existing model
func (h *AIModelHandler) Update(c *gin.Context) {
	id, err := parseUUID(c)
	if err != nil {
		invalidID(c)
		return
	}

	var req model.AIModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := currentUser(c)
	m, err := h.svc.Update(id, req, userID)
	if err != nil {
		writeError(c, err, "error.aimodel_update_failed")
		return
	}

	h.audit.record(c, "UPDATE", m.ID.String(), fmt.Sprintf("Updated AI model '%s'", m.Name))
	c.JSON(http.StatusOK, m)
}

// Delete removes a model
func (h *AIModelHandler) Delete(c *gin.Context) {
	id, err := parseUUID(c)
	if err != nil {
		invalidID(c)
		return
	}
	if err := h.svc.Delete(id); err != nil {
		writeError(c, err, "error.aimodel_delete_failed")
		return
	}

	h.audit.record(c, "DELETE", id.String(), "Deleted AI model")
	c.JSON(http.StatusOK, gin.H{"message": "AI model deleted"})
}

// Test sends a minimal prompt to the model's backend
func (h *AIModelHandler) Test(c *gin.Context) {
	id, err := parseUUID(c)
	if err != nil {
		invalidID(c)
		return
	}
	m, err := h.svc.Get(id)
	if err != nil {
		writeError(c, err, "error.aimodel_get_failed")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), connectionTestTimeout)
	defer cancel()

	start := time.Now()
	if err := h.tester.TestConnection(ctx, llm.TargetFor(m)); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error(), "error_key": "error.aimodel_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "latency_ms": time.Since(start).Milliseconds()})
}
