package dto

import (
	"time"

	"libraryhub/internal/microservices/http-api/models"
)

// FineResponse carries the amount as a decimal string so no precision is lost.
type FineResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	LoanID    string     `json:"loanId"`
	Amount    string     `json:"amount"`
	Reason    string     `json:"reason"`
	Status    string     `json:"status"`
	PaidDate  *time.Time `json:"paidDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func FromFine(f models.Fine) FineResponse {
	return FineResponse{
		ID:        f.ID,
		UserID:    f.UserID,
		LoanID:    f.LoanID,
		Amount:    f.Amount.StringFixed(2),
		Reason:    f.Reason,
		Status:    string(f.Status),
		PaidDate:  f.PaidDate,
		CreatedAt: f.CreatedAt,
	}
}

func FromFines(fines []models.Fine) []FineResponse {
	out := make([]FineResponse, 0, len(fines))
	for _, f := range fines {
		out = append(out, FromFine(f))
	}
	return out
}
