package notify

import (
	"context"
	"fmt"
	"log/slog"

	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/repository"
)

// Broadcaster stores targeted events in the user's inbox (so offline users
// see them later) and then pushes them to live connections.
type Broadcaster struct {
	hub              *Hub
	notificationRepo repository.NotificationRepository
	logger           *slog.Logger
}

func NewBroadcaster(hub *Hub, notificationRepo repository.NotificationRepository, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:              hub,
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

func (b *Broadcaster) Emit(ctx context.Context, event Event) error {
	if !event.Broadcast() && b.notificationRepo != nil {
		n := &models.Notification{
			UserID:   event.UserID,
			Type:     string(event.Type),
			Title:    event.Title,
			Message:  event.Message,
			Severity: string(event.Severity),
		}
		if err := b.notificationRepo.Create(ctx, n); err != nil {
			// still try the live push
			b.logger.Error("notification_store_failed", "user_id", event.UserID, "type", event.Type, "error", err)
		}
	}

	if b.hub == nil {
		return nil
	}
	if err := b.hub.Emit(ctx, event); err != nil {
		return fmt.Errorf("push %s: %w", event.Type, err)
	}
	return nil
}
