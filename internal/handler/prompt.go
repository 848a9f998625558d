package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/web-casa/aiui/internal/service"
	"gorm.io/gorm"
)

// PromptHandler sends prompts to AI models
type PromptHandler struct {
	svc   *service.PromptService
	audit auditor
}

// NewPromptHandler creates a new PromptHandler
func NewPromptHandler(svc *service.PromptService, db *gorm.DB) *PromptHandler {
	return &PromptHandler{svc: svc, audit: auditor{db: db, target: "thread"}}
}

type promptRequest struct {
	Prompt    string     `json:"prompt"`
	AIModelID *uuid.UUID `json:"aimodel_id"`
	ChatType  string     `json:"chat_type"`
}

// Send answers a prompt inside an existing thread
func (h *PromptHandler) Send(c *gin.Context) {
	id, err := parseUUID(c)
	if err != nil {
		invalidID(c)
		return
	}
	h.send(c, &id)
}

// Start answers a prompt in a new thread
func (h *PromptHandler) Start(c *gin.Context) {
	h.send(c, nil)
}

func (h *PromptHandler) send(c *gin.Context, threadID *uuid.UUID) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := currentUser(c)
	res, err := h.svc.Send(c.Request.Context(), service.SendRequest{
		UserID:    userID,
		ThreadID:  threadID,
		AIModelID: req.AIModelID,
		Prompt:    req.Prompt,
		ChatType:  req.ChatType,
	})
	if err != nil {
		writeError(c, err, "error.prompt_failed")
		return
	}

	h.audit.record(c, "PROMPT", res.Thread.ID.String(), fmt.Sprintf("Prompted '%s' (item %d)", res.Thread.Name, res.Item.Order))
	c.JSON(http.StatusCreated, gin.H{
		"thread_id": res.Thread.ID,
		"thread":    res.Thread,
		"item":      res.Item,
	})
}
