package service

import (
	"context"

	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/repository"
)

type FineService interface {
	GetUserFines(ctx context.Context, userID string, status models.FineStatus) ([]models.Fine, error)
	ListFines(ctx context.Context, page, limit int, status models.FineStatus) ([]models.Fine, int64, error)
	PayFine(ctx context.Context, fineID, userID string) (*models.Fine, error)
	WaiveFine(ctx context.Context, fineID string) (*models.Fine, error)
}

type fineService struct {
	Deps
}

func NewFineService(deps Deps) FineService {
	return &fineService{Deps: deps.withDefaults()}
}

func (s *fineService) GetUserFines(ctx context.Context, userID string, status models.FineStatus) ([]models.Fine, error) {
	f := repository.FineFilter{UserID: userID}
	if status != "" {
		f.Statuses = []models.FineStatus{status}
	}
	fines := []models.Fine{}
	err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
		found, err := tx.FindFines(ctx, f)
		if found != nil {
			fines = found
		}
		return err
	})
	return fines, err
}

func (s *fineService) ListFines(ctx context.Context, page, limit int, status models.FineStatus) ([]models.Fine, int64, error) {
	page, limit = normalizePage(page, limit)
	f := repository.FineFilter{Limit: limit, Offset: (page - 1) * limit}
	if status != "" {
		f.Statuses = []models.FineStatus{status}
	}

	var fines []models.Fine
	var total int64
	err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
		var err error
		if fines, err = tx.FindFines(ctx, f); err != nil {
			return err
		}
		total, err = tx.CountFines(ctx, f)
		return err
	})
	return fines, total, err
}

// PayFine settles a PENDING fine and debits the owner's balance.
func (s *fineService) PayFine(ctx context.Context, fineID, userID string) (*models.Fine, error) {
	now := s.Clock()
	var fine *models.Fine
	err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		f, err := tx.GetFineForUpdate(ctx, fineID)
		if err != nil {
			return orNotFound(err, ErrFineNotFound)
		}
		if f.UserID != userID {
			return ErrFineNotFound
		}
		if f.Status != models.FinePending {
			return ErrFineNotPending
		}

		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return orNotFound(err, ErrUserNotFound)
		}
		user.Balance = user.Balance.Sub(f.Amount)
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}

		f.Status = models.FinePaid
		f.PaidDate = &now
		if err := tx.SaveFine(ctx, f); err != nil {
			return err
		}
		fine = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("fine_paid", "fine_id", fineID, "user_id", userID, "amount", fine.Amount.String())
	return fine, nil
}

func (s *fineService) WaiveFine(ctx context.Context, fineID string) (*models.Fine, error) {
	var fine *models.Fine
	err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		f, err := tx.GetFineForUpdate(ctx, fineID)
		if err != nil {
			return orNotFound(err, ErrFineNotFound)
		}
		if f.Status != models.FinePending {
			return ErrFineNotPending
		}
		f.Status = models.FineWaived
		if err := tx.SaveFine(ctx, f); err != nil {
			return err
		}
		fine = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("fine_waived", "fine_id", fineID, "user_id", fine.UserID)
	return fine, nil
}
