package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RoleReader    = "reader"
	RoleLibrarian = "librarian"
	RoleAdmin     = "admin"
)

// User is owned by the account system; lending only reads IsActive and
// moves Balance when fines are paid.
type User struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	Email     string          `gorm:"uniqueIndex;not null" json:"email"`
	Name      string          `json:"name"`
	Role      string          `gorm:"default:'reader';not null" json:"role"`
	IsActive  bool            `gorm:"not null" json:"is_active"`
	Balance   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BeforeCreate hook to set UUID before creating a User
func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	return
}

func (User) TableName() string {
	return "users"
}
