package models

import "time"

type Notification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Type      string    `gorm:"not null" json:"type"` // loan-reminder, fine-notification, reservation-ready, ...
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `gorm:"default:'info'" json:"severity"`
	Read      bool      `gorm:"default:false" json:"read"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// All returns every table the service migrates.
func All() []any {
	return []any{&User{}, &Book{}, &Loan{}, &Fine{}, &Reservation{}, &Notification{}}
}
