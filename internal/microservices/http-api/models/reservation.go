package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationReady     ReservationStatus = "READY"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

var ReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationReady,
	ReservationCompleted,
	ReservationCancelled,
	ReservationExpired,
}

func (s ReservationStatus) Valid() bool {
	for _, v := range ReservationStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled || s == ReservationExpired
}

type Reservation struct {
	ID         string            `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string            `gorm:"type:uuid;not null;index" json:"user_id"`
	BookID     string            `gorm:"type:uuid;not null;index:idx_reservations_queue" json:"book_id"`
	Status     ReservationStatus `gorm:"type:varchar(16);not null;index:idx_reservations_queue" json:"status"`
	ExpiryDate *time.Time        `gorm:"index" json:"expiry_date,omitempty"`
	CreatedAt  time.Time         `gorm:"index:idx_reservations_queue" json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`

	// Associations
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

func (r *Reservation) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

func (Reservation) TableName() string {
	return "reservations"
}
