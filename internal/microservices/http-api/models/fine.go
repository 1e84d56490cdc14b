package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type FineStatus string

const (
	FinePending FineStatus = "PENDING"
	FinePaid    FineStatus = "PAID"
	FineWaived  FineStatus = "WAIVED"
)

func (s FineStatus) Valid() bool {
	switch s {
	case FinePending, FinePaid, FineWaived:
		return true
	}
	return false
}

// Fine is created by a late return. Only Status and PaidDate change afterwards.
type Fine struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string          `gorm:"type:uuid;not null;index" json:"user_id"`
	LoanID    string          `gorm:"type:uuid;not null;uniqueIndex" json:"loan_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Reason    string          `gorm:"not null" json:"reason"`
	Status    FineStatus      `gorm:"type:varchar(16);not null;index" json:"status"`
	PaidDate  *time.Time      `json:"paid_date,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (f *Fine) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return
}

func (Fine) TableName() string {
	return "fines"
}
