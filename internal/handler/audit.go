package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/web-casa/aiui/internal/model"
	"github.com/web-casa/aiui/internal/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditHandler handles audit log queries
type AuditHandler struct {
	db *gorm.DB
}

func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{db: db}
}

// List returns audit logs, newest first, with pagination
func (h *AuditHandler) List(c *gin.Context) {
	q := h.db.Model(&model.AuditLog{}).Order("created_at DESC")
	if action := c.Query("action"); action != "" {
		q = q.Where("action = ?", action)
	}
	if target := c.Query("target"); target != "" {
		q = q.Where("target = ?", target)
	}

	var logs []model.AuditLog
	page, err := pagination.Paginate(q, pagination.FromContext(c), &logs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "error_key": "error.audit_list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "pagination": page})
}

// WriteAuditLog is a helper to create an audit log entry
func WriteAuditLog(db *gorm.DB, userID uint, username, action, target, targetID, detail, ip string) {
	db.Create(&model.AuditLog{
		UserID:   userID,
		Username: username,
		Action:   action,
		Target:   target,
		TargetID: targetID,
		Detail:   detail,
		IP:       ip,
	})
}

// auditor writes audit entries for one target kind on behalf of the caller.
type auditor struct {
	db     *gorm.DB
	target string
	log    *zap.Logger
}

func (a auditor) record(c *gin.Context, action, targetID, detail string) {
	uid, ok := c.Get("user_id")
	if !ok {
		return
	}
	WriteAuditLog(a.db, uid.(uint), c.GetString("username"), action, a.target, targetID, detail, c.ClientIP())
	if a.log != nil {
		a.log.Info("audit", zap.String("action", action), zap.String("target", a.target), zap.String("target_id", targetID), zap.Any("user_id", uid))
	}
}
