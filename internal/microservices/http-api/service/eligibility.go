package service

import (
	"context"
	"fmt"
	"time"

	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/repository"
)

// checkBorrower applies the account rules shared by borrowing and claiming
// a hold, in order: active account, no overdue loans, no unpaid fines.
func checkBorrower(ctx context.Context, tx repository.LedgerTx, user *models.User) error {
	if !user.IsActive {
		return ErrAccountInactive
	}

	overdue, err := tx.CountLoans(ctx, repository.LoanFilter{
		UserID:   user.ID,
		Statuses: []models.LoanStatus{models.LoanOverdue},
	})
	if err != nil {
		return err
	}
	if overdue > 0 {
		return ErrOverdueOutstanding
	}

	pending, err := tx.CountFines(ctx, repository.FineFilter{
		UserID:   user.ID,
		Statuses: []models.FineStatus{models.FinePending},
	})
	if err != nil {
		return err
	}
	if pending > 0 {
		return ErrUnpaidFines
	}
	return nil
}

func checkNoActiveLoan(ctx context.Context, tx repository.LedgerTx, userID, bookID string) error {
	n, err := tx.CountLoans(ctx, repository.LoanFilter{
		UserID:   userID,
		BookID:   bookID,
		Statuses: []models.LoanStatus{models.LoanActive},
	})
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrAlreadyBorrowed
	}
	return nil
}

// daysOverdue rounds any part of a day up.
func daysOverdue(due, returned time.Time) int {
	late := returned.Sub(due)
	if late <= 0 {
		return 0
	}
	days := int(late / (24 * time.Hour))
	if late%(24*time.Hour) != 0 {
		days++
	}
	return days
}

func lateReason(days int) string {
	return fmt.Sprintf("Book returned %d day(s) late", days)
}

// reminderTime is when a loan-reminder fires: lead before due, but never
// in the past.
func reminderTime(now, due time.Time, lead time.Duration) time.Time {
	at := due.Add(-lead)
	if at.Before(now) {
		return now
	}
	return at
}

// exhaustedStatus picks the status of a book with no copies left: RESERVED
// while READY holds keep copies off the shelf, BORROWED otherwise.
func exhaustedStatus(ctx context.Context, tx repository.LedgerTx, bookID string) (models.BookStatus, error) {
	holds, err := tx.CountReservations(ctx, repository.ReservationFilter{
		BookID:   bookID,
		Statuses: []models.ReservationStatus{models.ReservationReady},
	})
	if err != nil {
		return "", err
	}
	if holds > 0 {
		return models.BookReserved, nil
	}
	return models.BookBorrowed, nil
}
