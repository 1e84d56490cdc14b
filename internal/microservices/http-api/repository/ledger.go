package repository

import (
	"context"
	"errors"
	"time"

	"libraryhub/internal/microservices/http-api/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrReadOnly = errors.New("write attempted in read-only unit of work")
)

type LoanFilter struct {
	UserID    string
	BookID    string
	Statuses  []models.LoanStatus
	DueBefore time.Time // zero means no bound
	Limit     int
	Offset    int
}

type FineFilter struct {
	UserID   string
	Statuses []models.FineStatus
	Limit    int
	Offset   int
}

type ReservationFilter struct {
	UserID        string
	BookID        string
	Statuses      []models.ReservationStatus
	ExpiresBefore time.Time // zero means no bound
	NewestFirst   bool
	Limit         int
	Offset        int
}

// LedgerTx is the handle every store call inside one unit of work goes
// through. Loans are listed newest first, fines newest first, reservations
// oldest first unless the filter asks for NewestFirst.
type LedgerTx interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error

	CreateBook(ctx context.Context, book *models.Book) error
	GetBook(ctx context.Context, id string) (*models.Book, error)
	// GetBookForUpdate locks the book row until the unit of work ends.
	GetBookForUpdate(ctx context.Context, id string) (*models.Book, error)
	SaveBook(ctx context.Context, book *models.Book) error

	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id string) (*models.Loan, error)
	GetLoanForUpdate(ctx context.Context, id string) (*models.Loan, error)
	SaveLoan(ctx context.Context, loan *models.Loan) error
	FindLoans(ctx context.Context, f LoanFilter) ([]models.Loan, error)
	CountLoans(ctx context.Context, f LoanFilter) (int64, error)

	CreateFine(ctx context.Context, fine *models.Fine) error
	GetFineForUpdate(ctx context.Context, id string) (*models.Fine, error)
	SaveFine(ctx context.Context, fine *models.Fine) error
	FindFines(ctx context.Context, f FineFilter) ([]models.Fine, error)
	CountFines(ctx context.Context, f FineFilter) (int64, error)

	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id string) (*models.Reservation, error)
	SaveReservation(ctx context.Context, r *models.Reservation) error
	FindReservations(ctx context.Context, f ReservationFilter) ([]models.Reservation, error)
	CountReservations(ctx context.Context, f ReservationFilter) (int64, error)
	// PendingBookIDs lists books that have at least one PENDING reservation.
	PendingBookIDs(ctx context.Context) ([]string, error)
}

// Ledger opens units of work. WithinTx commits when fn returns nil and
// rolls back otherwise. View runs fn without write access.
type Ledger interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
	View(ctx context.Context, fn func(tx LedgerTx) error) error
}
