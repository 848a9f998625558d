package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/web-casa/aiui/internal/service"
)

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	return uint(id), err
}

func parseUUID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

func currentUser(c *gin.Context) (uint, string) {
	return c.GetUint("user_id"), c.GetString("username")
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_key": "error.invalid_request"})
}

func invalidID(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID", "error_key": "error.invalid_id"})
}

// writeError maps service errors onto HTTP responses. failKey is used for
// unexpected failures.
func writeError(c *gin.Context, err error, failKey string) {
	if ve, ok := service.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "error_key": ve.Key, "fields": ve.Fields})
		return
	}
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "error_key": "error.not_found"})
		return
	}
	var upstream *service.UpstreamError
	if errors.As(err, &upstream) {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("Exception: %v", upstream.Err)})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "error_key": failKey})
}
