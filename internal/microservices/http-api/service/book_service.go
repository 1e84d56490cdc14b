package service

import (
	"context"

	"libraryhub/internal/cache"
	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/repository"
)

type BookService interface {
	CreateBook(ctx context.Context, book *models.Book) (*models.Book, error)
	GetBook(ctx context.Context, id string) (*models.Book, error)
}

type bookService struct {
	Deps
	policy Policy
}

func NewBookService(deps Deps, policy Policy) BookService {
	return &bookService{Deps: deps.withDefaults(), policy: policy}
}

// CreateBook shelves every copy of a new title.
func (s *bookService) CreateBook(ctx context.Context, book *models.Book) (*models.Book, error) {
	if book.TotalCopies < 0 {
		return nil, ErrInvalidBook
	}
	book.AvailableCopies = book.TotalCopies
	book.BorrowCount = 0
	book.Status = models.BookAvailable
	if book.TotalCopies == 0 {
		book.Status = models.BookBorrowed
	}

	err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		return tx.CreateBook(ctx, book)
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("book_created", "book_id", book.ID, "title", book.Title, "copies", book.TotalCopies)
	return book, nil
}

func (s *bookService) GetBook(ctx context.Context, id string) (*models.Book, error) {
	return readThrough(ctx, s.Deps, cache.BookKey(id), s.policy.BookTTL, func() (*models.Book, error) {
		var book *models.Book
		err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
			var err error
			book, err = tx.GetBook(ctx, id)
			return orNotFound(err, ErrBookNotFound)
		})
		return book, err
	})
}
