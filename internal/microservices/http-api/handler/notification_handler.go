package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"libraryhub/internal/microservices/http-api/middleware"
	"libraryhub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

// Upgrader accepts a websocket for an authenticated user.
type Upgrader interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string) error
}

type NotificationHandler struct {
	svc    service.NotificationService
	ws     Upgrader
	logger *slog.Logger
}

func NewNotificationHandler(svc service.NotificationService, ws Upgrader, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, ws: ws, logger: logger}
}

func (h *NotificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/unread", h.GetUnread)
	rg.PUT("/:id/read", h.MarkAsRead)
	rg.PUT("/read-all", h.MarkAllAsRead)
}

// GetUnread returns all unread notifications for the authenticated user
func (h *NotificationHandler) GetUnread(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	notifications, err := h.svc.GetUnread(ctx, middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkAsRead marks a specific notification as read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid notification id")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.svc.MarkAsRead(ctx, middleware.UserID(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllAsRead marks all notifications as read for the user
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.svc.MarkAllAsRead(ctx, middleware.UserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream upgrades to a websocket that pushes the caller's notifications.
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.ws == nil {
		writeError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "live notifications disabled")
		return
	}
	if err := h.ws.ServeWS(c.Writer, c.Request, middleware.UserID(c)); err != nil {
		h.logger.Warn("websocket_upgrade_failed", "user_id", middleware.UserID(c), "error", err)
	}
}
