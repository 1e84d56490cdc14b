package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookStatus string

const (
	BookAvailable BookStatus = "AVAILABLE"
	BookBorrowed  BookStatus = "BORROWED"
	BookReserved  BookStatus = "RESERVED"
)

var ErrNoCopies = errors.New("no copies available")

type Book struct {
	ID              string     `gorm:"primaryKey;type:uuid" json:"id"`
	ISBN            string     `gorm:"uniqueIndex;not null" json:"isbn"`
	Title           string     `gorm:"not null" json:"title"`
	Author          string     `gorm:"not null" json:"author"`
	TotalCopies     int        `gorm:"not null;check:total_copies >= 0" json:"total_copies"`
	AvailableCopies int        `gorm:"not null;check:available_copies >= 0" json:"available_copies"`
	Status          BookStatus `gorm:"type:varchar(16);not null;default:'AVAILABLE'" json:"status"`
	BorrowCount     int64      `gorm:"not null;default:0" json:"borrow_count"`
	AverageRating   float64    `gorm:"not null;default:0" json:"average_rating"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (b *Book) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return
}

func (Book) TableName() string {
	return "books"
}

// TakeCopies removes n copies from the shelf. When the shelf empties the
// book moves to the given status (BORROWED for loans, RESERVED for holds).
func (b *Book) TakeCopies(n int, exhausted BookStatus) error {
	if n <= 0 {
		return nil
	}
	if b.AvailableCopies < n {
		return ErrNoCopies
	}
	b.AvailableCopies -= n
	if b.AvailableCopies == 0 {
		b.Status = exhausted
	}
	return nil
}

// ReleaseCopy returns one copy to the shelf, never exceeding TotalCopies.
func (b *Book) ReleaseCopy() {
	if b.AvailableCopies < b.TotalCopies {
		b.AvailableCopies++
	}
	b.Status = BookAvailable
}
