package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LoanStatus string

const (
	LoanActive   LoanStatus = "ACTIVE"
	LoanOverdue  LoanStatus = "OVERDUE"
	LoanReturned LoanStatus = "RETURNED"
)

// LoanStatuses lists every loan status in display order.
var LoanStatuses = []LoanStatus{LoanActive, LoanOverdue, LoanReturned}

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanActive, LoanOverdue, LoanReturned:
		return true
	}
	return false
}

type Loan struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string     `gorm:"type:uuid;not null;index:idx_loans_user_book" json:"user_id"`
	BookID     string     `gorm:"type:uuid;not null;index:idx_loans_user_book;index" json:"book_id"`
	BorrowDate time.Time  `gorm:"not null" json:"borrow_date"`
	DueDate    time.Time  `gorm:"not null;index" json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Status     LoanStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Associations
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

func (l *Loan) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return
}

func (Loan) TableName() string {
	return "loans"
}

// IsOpen reports whether the loan still holds a copy.
func (l *Loan) IsOpen() bool {
	return l.Status == LoanActive || l.Status == LoanOverdue
}
