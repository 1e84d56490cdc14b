package service

import (
	"context"
	"time"

	"libraryhub/internal/cache"
	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/repository"
	"libraryhub/internal/notify"

	"github.com/shopspring/decimal"
)

type LoanStatistics struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Overdue  int64 `json:"overdue"`
	Returned int64 `json:"returned"`
}

type LoanService interface {
	BorrowBook(ctx context.Context, userID, bookID string) (*models.Loan, error)
	ReturnBook(ctx context.Context, loanID string) (*models.Loan, error)
	ExtendLoan(ctx context.Context, loanID string, days int) (*models.Loan, error)
	CheckOverdueLoans(ctx context.Context) (int, error)
	DeliverDueReminders(ctx context.Context) (int, error)
	GetLoan(ctx context.Context, loanID string) (*models.Loan, error)
	GetUserLoans(ctx context.Context, userID string, status models.LoanStatus) ([]models.Loan, error)
	ListLoans(ctx context.Context, page, limit int, status models.LoanStatus) ([]models.Loan, int64, error)
	GetStatistics(ctx context.Context) (*LoanStatistics, error)
}

// HoldReleaser reclaims copies held by READY reservations past their expiry.
type HoldReleaser interface {
	ReleaseExpiredForBook(ctx context.Context, bookID string) (int, error)
}

type loanService struct {
	Deps
	policy Policy
	holds  HoldReleaser
}

// NewLoanService wires the loan engine. holds may be nil.
func NewLoanService(deps Deps, policy Policy, holds HoldReleaser) LoanService {
	return &loanService{Deps: deps.withDefaults(), policy: policy, holds: holds}
}

// BorrowBook validates, in order: user and book exist, account active, no
// overdue loans, no unpaid fines, a copy on the shelf, no active loan of
// the same book. The first failure aborts with nothing written.
func (s *loanService) BorrowBook(ctx context.Context, userID, bookID string) (*models.Loan, error) {
	if s.holds != nil {
		if n, err := s.holds.ReleaseExpiredForBook(ctx, bookID); err != nil {
			s.Logger.Warn("release_expired_holds_failed", "book_id", bookID, "error", err)
		} else if n > 0 {
			s.Logger.Info("expired_holds_released", "book_id", bookID, "count", n)
		}
	}

	now := s.Clock()
	var loan *models.Loan
	var book *models.Book

	err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return orNotFound(err, ErrUserOrBookNotFound)
		}
		b, err := tx.GetBookForUpdate(ctx, bookID)
		if err != nil {
			return orNotFound(err, ErrUserOrBookNotFound)
		}

		if err := checkBorrower(ctx, tx, user); err != nil {
			return err
		}
		if b.AvailableCopies <= 0 {
			return ErrNotAvailable
		}
		if err := checkNoActiveLoan(ctx, tx, userID, bookID); err != nil {
			return err
		}

		loan = &models.Loan{
			UserID:     userID,
			BookID:     bookID,
			BorrowDate: now,
			DueDate:    now.Add(s.policy.LoanPeriod),
			Status:     models.LoanActive,
		}
		if err := tx.CreateLoan(ctx, loan); err != nil {
			return err
		}

		if err := b.TakeCopies(1, models.BookBorrowed); err != nil {
			return ErrNotAvailable
		}
		b.BorrowCount++
		if err := tx.SaveBook(ctx, b); err != nil {
			return err
		}
		book = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.LoanEvent("borrowed")
	s.Logger.Info("book_borrowed", "loan_id", loan.ID, "user_id", userID, "book_id", bookID, "due_date", loan.DueDate)

	fx := &sideEffects{}
	fx.remind(reminderTime(now, loan.DueDate, s.policy.ReminderLead),
		notify.NewLoanReminder(userID, loan.ID, book.Title, loan.DueDate))
	fx.invalidate(cache.BookKey(bookID))
	fx.invalidate(cache.LoanKeys(userID)...)
	s.apply(ctx, "borrow_book", fx)

	loan.Book = book
	return loan, nil
}

// ReturnBook closes the loan, assesses a fine for a late return and puts
// the copy back on the shelf. Waiting reservations are not activated here.
func (s *loanService) ReturnBook(ctx context.Context, loanID string) (*models.Loan, error) {
	now := s.Clock()
	var loan *models.Loan
	var book *models.Book
	var fine *models.Fine
	var days int

	err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		fine, days = nil, 0
		current, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return orNotFound(err, ErrLoanNotFound)
		}
		// book row first, then the loan row
		b, err := tx.GetBookForUpdate(ctx, current.BookID)
		if err != nil {
			return orNotFound(err, ErrBookNotFound)
		}
		l, err := tx.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return orNotFound(err, ErrLoanNotFound)
		}
		if l.Status == models.LoanReturned {
			return ErrAlreadyReturned
		}

		returned := now
		l.ReturnDate = &returned
		l.Status = models.LoanReturned
		if err := tx.SaveLoan(ctx, l); err != nil {
			return err
		}

		if days = daysOverdue(l.DueDate, now); days > 0 {
			fine = &models.Fine{
				UserID: l.UserID,
				LoanID: l.ID,
				Amount: s.policy.FinePerDay.Mul(decimal.NewFromInt(int64(days))),
				Reason: lateReason(days),
				Status: models.FinePending,
			}
			if err := tx.CreateFine(ctx, fine); err != nil {
				return err
			}
		}

		b.ReleaseCopy()
		if err := tx.SaveBook(ctx, b); err != nil {
			return err
		}
		loan, book = l, b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.LoanEvent("returned")
	s.Logger.Info("book_returned", "loan_id", loan.ID, "user_id", loan.UserID, "book_id", loan.BookID, "days_overdue", days)

	fx := &sideEffects{}
	if fine != nil {
		amount, _ := fine.Amount.Float64()
		s.Metrics.FineAssessed(amount)
		fx.notify(notify.NewFineNotification(loan.UserID, loan.ID, fine.ID, book.Title, fine.Amount, days))
	}
	fx.invalidate(cache.BookKey(loan.BookID))
	fx.invalidate(cache.LoanKeys(loan.UserID)...)
	s.apply(ctx, "return_book", fx)

	loan.Book = book
	return loan, nil
}

func (s *loanService) ExtendLoan(ctx context.Context, loanID string, days int) (*models.Loan, error) {
	if days < 1 || days > s.policy.MaxExtensionDays {
		return nil, ErrInvalidExtension
	}

	now := s.Clock()
	var loan *models.Loan
	var book *models.Book
	err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		l, err := tx.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return orNotFound(err, ErrLoanNotFound)
		}
		if l.Status != models.LoanActive {
			return ErrLoanNotExtendable
		}
		b, err := tx.GetBook(ctx, l.BookID)
		if err != nil {
			return orNotFound(err, ErrBookNotFound)
		}
		l.DueDate = l.DueDate.AddDate(0, 0, days)
		if err := tx.SaveLoan(ctx, l); err != nil {
			return err
		}
		loan, book = l, b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.LoanEvent("extended")

	fx := &sideEffects{}
	// the earlier reminder is skipped on delivery because its due date no longer matches
	fx.remind(reminderTime(now, loan.DueDate, s.policy.ReminderLead),
		notify.NewLoanReminder(loan.UserID, loan.ID, book.Title, loan.DueDate))
	fx.invalidate(cache.LoanKeys(loan.UserID)...)
	s.apply(ctx, "extend_loan", fx)

	loan.Book = book
	return loan, nil
}

// CheckOverdueLoans flips ACTIVE loans past due to OVERDUE, one unit of
// work per loan. Loans already OVERDUE or returned meanwhile are skipped.
func (s *loanService) CheckOverdueLoans(ctx context.Context) (int, error) {
	now := s.Clock()

	var candidates []models.Loan
	err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
		var err error
		candidates, err = tx.FindLoans(ctx, repository.LoanFilter{
			Statuses:  []models.LoanStatus{models.LoanActive},
			DueBefore: now,
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, c := range candidates {
		var flipped *models.Loan
		err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
			flipped = nil
			l, err := tx.GetLoanForUpdate(ctx, c.ID)
			if err != nil {
				return err
			}
			if l.Status != models.LoanActive || !l.DueDate.Before(now) {
				return nil
			}
			l.Status = models.LoanOverdue
			if err := tx.SaveLoan(ctx, l); err != nil {
				return err
			}
			flipped = l
			return nil
		})
		if err != nil {
			s.Logger.Error("overdue_flip_failed", "loan_id", c.ID, "error", err)
			continue
		}
		if flipped == nil {
			continue
		}
		count++
		s.Metrics.LoanEvent("overdue")

		title := ""
		if c.Book != nil {
			title = c.Book.Title
		}
		fx := &sideEffects{}
		fx.notify(notify.NewOverdueNotification(flipped.UserID, flipped.ID, title, flipped.DueDate))
		fx.invalidate(cache.LoanKeys(flipped.UserID)...)
		s.apply(ctx, "check_overdue", fx)
	}

	s.Logger.Info("overdue_check_completed", "candidates", len(candidates), "flipped", count)
	return count, nil
}

// DeliverDueReminders emits loan reminders whose time has come, dropping
// those for loans that were returned or extended since scheduling.
func (s *loanService) DeliverDueReminders(ctx context.Context) (int, error) {
	due, err := s.Reminders.Due(ctx, s.Clock())
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, ev := range due {
		if !s.reminderStillValid(ctx, ev) {
			continue
		}
		if err := s.Notifier.Emit(ctx, ev); err != nil {
			s.Logger.Warn("notification_emit_failed", "op", "loan_reminder", "user_id", ev.UserID, "error", err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (s *loanService) reminderStillValid(ctx context.Context, ev notify.Event) bool {
	loanID, _ := ev.Data[notify.LoanIDKey].(string)
	dueDate, _ := ev.Data[notify.DueDateKey].(string)
	if loanID == "" {
		return false
	}

	var loan *models.Loan
	err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
		var err error
		loan, err = tx.GetLoan(ctx, loanID)
		return err
	})
	if err != nil {
		return false
	}
	return loan.Status == models.LoanActive && loan.DueDate.UTC().Format(time.RFC3339) == dueDate
}

func (s *loanService) GetLoan(ctx context.Context, loanID string) (*models.Loan, error) {
	var loan *models.Loan
	err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
		var err error
		loan, err = tx.GetLoan(ctx, loanID)
		return orNotFound(err, ErrLoanNotFound)
	})
	return loan, err
}

func (s *loanService) GetUserLoans(ctx context.Context, userID string, status models.LoanStatus) ([]models.Loan, error) {
	return readThrough(ctx, s.Deps, cache.LoanListKey(userID, status), s.policy.ListTTL, func() ([]models.Loan, error) {
		f := repository.LoanFilter{UserID: userID}
		if status != "" {
			f.Statuses = []models.LoanStatus{status}
		}
		var loans []models.Loan
		err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
			var err error
			loans, err = tx.FindLoans(ctx, f)
			return err
		})
		if loans == nil {
			loans = []models.Loan{}
		}
		return loans, err
	})
}

func (s *loanService) ListLoans(ctx context.Context, page, limit int, status models.LoanStatus) ([]models.Loan, int64, error) {
	page, limit = normalizePage(page, limit)
	f := repository.LoanFilter{Limit: limit, Offset: (page - 1) * limit}
	if status != "" {
		f.Statuses = []models.LoanStatus{status}
	}

	var loans []models.Loan
	var total int64
	err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
		var err error
		if loans, err = tx.FindLoans(ctx, f); err != nil {
			return err
		}
		total, err = tx.CountLoans(ctx, f)
		return err
	})
	return loans, total, err
}

func (s *loanService) GetStatistics(ctx context.Context) (*LoanStatistics, error) {
	return readThrough(ctx, s.Deps, cache.LoanStatsKey, s.policy.StatisticsTTL, func() (*LoanStatistics, error) {
		stats := &LoanStatistics{}
		err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
			counts := []struct {
				dst    *int64
				filter repository.LoanFilter
			}{
				{&stats.Total, repository.LoanFilter{}},
				{&stats.Active, repository.LoanFilter{Statuses: []models.LoanStatus{models.LoanActive}}},
				{&stats.Overdue, repository.LoanFilter{Statuses: []models.LoanStatus{models.LoanOverdue}}},
				{&stats.Returned, repository.LoanFilter{Statuses: []models.LoanStatus{models.LoanReturned}}},
			}
			for _, c := range counts {
				n, err := tx.CountLoans(ctx, c.filter)
				if err != nil {
					return err
				}
				*c.dst = n
			}
			return nil
		})
		return stats, err
	})
}
