package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"libraryhub/internal/microservices/http-api/dto"
	"libraryhub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

const requestTimeout = 5 * time.Second

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Success:    false,
		Code:       code,
		StatusCode: status,
		Message:    message,
		Path:       c.Request.URL.Path,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func badRequest(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// respondError maps a service error onto the API error body. Anything that
// is not a domain error is logged and hidden behind INTERNAL_ERROR.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	if e, ok := service.AsError(err); ok {
		status := http.StatusConflict
		if errors.Is(e, service.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(c, status, e.Code, e.Message)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(c, http.StatusGatewayTimeout, "TIMEOUT", "request timed out")
		return
	}

	logger.Error("request_failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
