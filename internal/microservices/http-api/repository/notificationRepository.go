package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"libraryhub/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetUnreadByUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, userID string, notificationID int64) error
	MarkAllAsRead(ctx context.Context, userID string) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) GetUnreadByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND read = false", userID).
		Order("created_at DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("unread notifications: %w", err)
	}
	return notifications, nil
}

// MarkAsRead only touches the caller's own unread notification.
func (r *notificationRepository) MarkAsRead(ctx context.Context, userID string, notificationID int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read = false", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Update("read", true).Error
}

type memoryNotificationRepository struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]models.Notification
}

// NewMemoryNotificationRepository is the inbox used with the in-memory ledger.
func NewMemoryNotificationRepository() NotificationRepository {
	return &memoryNotificationRepository{items: map[int64]models.Notification{}}
}

func (r *memoryNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n.ID = r.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	r.items[n.ID] = *n
	return nil
}

func (r *memoryNotificationRepository) GetUnreadByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.items {
		if n.UserID == userID && !n.Read {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryNotificationRepository) MarkAsRead(ctx context.Context, userID string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.UserID != userID || n.Read {
		return ErrNotFound
	}
	n.Read = true
	r.items[id] = n
	return nil
}

func (r *memoryNotificationRepository) MarkAllAsRead(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.items {
		if n.UserID == userID {
			n.Read = true
			r.items[id] = n
		}
	}
	return nil
}
