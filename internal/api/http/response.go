package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chungindustries/cpm-registry/internal/domain/registry"
)

// Envelope statuses
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Envelope is the JSend body every API response uses.
type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// FailData is the data of a fail envelope.
type FailData struct {
	Message string `json:"message"`
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Status: StatusSuccess, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Status: StatusFail, Data: FailData{Message: message}})
}

func serverError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, Envelope{Status: StatusError, Message: message})
}

// writeError maps a registry error onto its envelope. Storage details are
// logged, never returned.
func (h *Handlers) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, registry.ErrValidation):
		fail(c, http.StatusBadRequest, registry.Message(err))
	case errors.Is(err, registry.ErrNotFound):
		fail(c, http.StatusNotFound, registry.Message(err))
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		if errors.Is(err, registry.ErrStorage) {
			serverError(c, "Registry storage is unavailable")
			return
		}
		serverError(c, "Internal server error")
	}
}
