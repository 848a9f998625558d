package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/web-casa/aiui/internal/noa"
	"go.uber.org/zap"
)

// multipart parts beyond this size are spooled to disk
const noaMemoryLimit = 8 << 20

// NOAHandler serves the unauthenticated multimodal endpoint
type NOAHandler struct {
	proc     *noa.Processor
	maxBytes int64
	log      *zap.Logger
}

// NewNOAHandler creates a new NOAHandler. maxBytes limits the request body.
func NewNOAHandler(proc *noa.Processor, maxBytes int64, log *zap.Logger) *NOAHandler {
	return &NOAHandler{proc: proc, maxBytes: maxBytes, log: log.With(zap.String("module", "noa"))}
}

// Handle answers one multimodal submission
func (h *NOAHandler) Handle(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}
	if err := c.Request.ParseMultipartForm(noaMemoryLimit); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "Request body too large"})
			return
		}
		h.log.Warn("unreadable multimodal form", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"detail": noa.ErrInvalidData.Error()})
		return
	}
	if form := c.Request.MultipartForm; form != nil {
		defer form.RemoveAll()
	}

	audio := h.file("audio", c)
	image := h.file("image", c)

	req, err := noa.Extract(c.Request.PostForm, audio != nil)
	if err == nil {
		err = noa.Validate(req)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	in := noa.Input{Request: req}
	if audio != nil {
		f, err := audio.Open()
		if err != nil {
			h.exception(c, err)
			return
		}
		defer f.Close()
		in.Audio = f
		in.AudioName = audio.Filename
	}
	if image != nil {
		in.ImageName = image.Filename
	}

	resp, err := h.proc.Process(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, noa.ErrResponseFormat) {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		h.exception(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *NOAHandler) file(field string, c *gin.Context) *multipart.FileHeader {
	form := c.Request.MultipartForm
	if form == nil || len(form.File[field]) == 0 {
		return nil
	}
	return form.File[field][0]
}

func (h *NOAHandler) exception(c *gin.Context, err error) {
	h.log.Error("error processing multimodal request", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("Exception: %v", err)})
}
