package dto

import "libraryhub/internal/microservices/http-api/models"

type CreateBookRequest struct {
	ISBN        string `json:"isbn" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Author      string `json:"author" binding:"required"`
	TotalCopies int    `json:"totalCopies" binding:"min=0"`
}

func (r CreateBookRequest) ToModel() *models.Book {
	return &models.Book{ISBN: r.ISBN, Title: r.Title, Author: r.Author, TotalCopies: r.TotalCopies}
}

type BookResponse struct {
	ID              string `json:"id"`
	ISBN            string `json:"isbn"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	TotalCopies     int    `json:"totalCopies"`
	AvailableCopies int    `json:"availableCopies"`
	Status          string `json:"status"`
	BorrowCount     int64  `json:"borrowCount"`
}

func FromBook(b models.Book) BookResponse {
	return BookResponse{
		ID:              b.ID,
		ISBN:            b.ISBN,
		Title:           b.Title,
		Author:          b.Author,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		Status:          string(b.Status),
		BorrowCount:     b.BorrowCount,
	}
}
