package handler_test

import (
	"context"

	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

// --- MOCK SERVICES ---

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) BorrowBook(ctx context.Context, userID, bookID string) (*models.Loan, error) {
	args := m.Called(ctx, userID, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanService) ReturnBook(ctx context.Context, loanID string) (*models.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanService) ExtendLoan(ctx context.Context, loanID string, days int) (*models.Loan, error) {
	args := m.Called(ctx, loanID, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanService) CheckOverdueLoans(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockLoanService) DeliverDueReminders(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID string) (*models.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanService) GetUserLoans(ctx context.Context, userID string, status models.LoanStatus) ([]models.Loan, error) {
	args := m.Called(ctx, userID, status)
	return args.Get(0).([]models.Loan), args.Error(1)
}

func (m *MockLoanService) ListLoans(ctx context.Context, page, limit int, status models.LoanStatus) ([]models.Loan, int64, error) {
	args := m.Called(ctx, page, limit, status)
	return args.Get(0).([]models.Loan), args.Get(1).(int64), args.Error(2)
}

func (m *MockLoanService) GetStatistics(ctx context.Context) (*service.LoanStatistics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoanStatistics), args.Error(1)
}

type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) CreateReservation(ctx context.Context, userID, bookID string) (*models.Reservation, error) {
	args := m.Called(ctx, userID, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockReservationService) CancelReservation(ctx context.Context, id, userID string) (*models.Reservation, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockReservationService) ClaimReservation(ctx context.Context, id, userID string) (*models.Loan, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockReservationService) ActivateNextReservation(ctx context.Context, bookID string) ([]models.Reservation, error) {
	args := m.Called(ctx, bookID)
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *MockReservationService) ActivatePendingQueues(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationService) ExpireReadyReservations(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationService) ReleaseExpiredForBook(ctx context.Context, bookID string) (int, error) {
	args := m.Called(ctx, bookID)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationService) UpdateStatusByAdmin(ctx context.Context, id string, status models.ReservationStatus) (*models.Reservation, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockReservationService) GetUserReservations(ctx context.Context, userID string, status models.ReservationStatus) ([]models.Reservation, error) {
	args := m.Called(ctx, userID, status)
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *MockReservationService) ListReservations(ctx context.Context, page, limit int, status models.ReservationStatus) ([]models.Reservation, int64, error) {
	args := m.Called(ctx, page, limit, status)
	return args.Get(0).([]models.Reservation), args.Get(1).(int64), args.Error(2)
}

type MockFineService struct {
	mock.Mock
}

func (m *MockFineService) GetUserFines(ctx context.Context, userID string, status models.FineStatus) ([]models.Fine, error) {
	args := m.Called(ctx, userID, status)
	return args.Get(0).([]models.Fine), args.Error(1)
}

func (m *MockFineService) ListFines(ctx context.Context, page, limit int, status models.FineStatus) ([]models.Fine, int64, error) {
	args := m.Called(ctx, page, limit, status)
	return args.Get(0).([]models.Fine), args.Get(1).(int64), args.Error(2)
}

func (m *MockFineService) PayFine(ctx context.Context, fineID, userID string) (*models.Fine, error) {
	args := m.Called(ctx, fineID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Fine), args.Error(1)
}

func (m *MockFineService) WaiveFine(ctx context.Context, fineID string) (*models.Fine, error) {
	args := m.Called(ctx, fineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Fine), args.Error(1)
}

// --- SETUP ---

func mockAuthMiddleware(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("role", role)
		c.Next()
	}
}
