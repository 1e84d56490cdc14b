package dto

import (
	"time"

	"libraryhub/internal/microservices/http-api/models"
)

// BorrowRequest: payload to borrow a book
type BorrowRequest struct {
	BookID string `json:"bookId" binding:"required"`
}

// ExtendLoanRequest: number of days to push the due date
type ExtendLoanRequest struct {
	Days int `json:"days" binding:"required,min=1,max=14"`
}

type LoanResponse struct {
	ID         string        `json:"id"`
	UserID     string        `json:"userId"`
	BookID     string        `json:"bookId"`
	BorrowDate time.Time     `json:"borrowDate"`
	DueDate    time.Time     `json:"dueDate"`
	ReturnDate *time.Time    `json:"returnDate,omitempty"`
	Status     string        `json:"status"`
	Book       *BookResponse `json:"book,omitempty"`
}

func FromLoan(l models.Loan) LoanResponse {
	resp := LoanResponse{
		ID:         l.ID,
		UserID:     l.UserID,
		BookID:     l.BookID,
		BorrowDate: l.BorrowDate,
		DueDate:    l.DueDate,
		ReturnDate: l.ReturnDate,
		Status:     string(l.Status),
	}
	if l.Book != nil {
		b := FromBook(*l.Book)
		resp.Book = &b
	}
	return resp
}

func FromLoans(loans []models.Loan) []LoanResponse {
	out := make([]LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, FromLoan(l))
	}
	return out
}

type LoanStatisticsResponse struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Overdue  int64 `json:"overdue"`
	Returned int64 `json:"returned"`
}

// CheckOverdueResponse reports a manual overdue sweep.
type CheckOverdueResponse struct {
	Processed int `json:"processed"`
}
