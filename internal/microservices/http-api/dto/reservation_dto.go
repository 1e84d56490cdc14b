package dto

import (
	"time"

	"libraryhub/internal/microservices/http-api/models"
)

type CreateReservationRequest struct {
	BookID string `json:"bookId" binding:"required"`
}

// UpdateReservationStatusRequest: admin override, status is validated by the service
type UpdateReservationStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDING READY COMPLETED CANCELLED EXPIRED"`
}

type ReservationResponse struct {
	ID         string        `json:"id"`
	UserID     string        `json:"userId"`
	BookID     string        `json:"bookId"`
	Status     string        `json:"status"`
	ExpiryDate *time.Time    `json:"expiryDate,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	Book       *BookResponse `json:"book,omitempty"`
}

func FromReservation(r models.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID:         r.ID,
		UserID:     r.UserID,
		BookID:     r.BookID,
		Status:     string(r.Status),
		ExpiryDate: r.ExpiryDate,
		CreatedAt:  r.CreatedAt,
	}
	if r.Book != nil {
		b := FromBook(*r.Book)
		resp.Book = &b
	}
	return resp
}

func FromReservations(list []models.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, FromReservation(r))
	}
	return out
}

type ActivateResponse struct {
	Activated []ReservationResponse `json:"activated"`
	Count     int                   `json:"count"`
}
