package service

import (
	"context"

	"libraryhub/internal/cache"
	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/repository"
	"libraryhub/internal/notify"
)

type ReservationService interface {
	CreateReservation(ctx context.Context, userID, bookID string) (*models.Reservation, error)
	CancelReservation(ctx context.Context, id, userID string) (*models.Reservation, error)
	ClaimReservation(ctx context.Context, id, userID string) (*models.Loan, error)
	ActivateNextReservation(ctx context.Context, bookID string) ([]models.Reservation, error)
	ActivatePendingQueues(ctx context.Context) (int, error)
	ExpireReadyReservations(ctx context.Context) (int, error)
	ReleaseExpiredForBook(ctx context.Context, bookID string) (int, error)
	UpdateStatusByAdmin(ctx context.Context, id string, status models.ReservationStatus) (*models.Reservation, error)
	GetUserReservations(ctx context.Context, userID string, status models.ReservationStatus) ([]models.Reservation, error)
	ListReservations(ctx context.Context, page, limit int, status models.ReservationStatus) ([]models.Reservation, int64, error)
}

type reservationService struct {
	Deps
	policy Policy
}

func NewReservationService(deps Deps, policy Policy) ReservationService {
	return &reservationService{Deps: deps.withDefaults(), policy: policy}
}

// lockReservation loads a reservation and its book under lock, book row
// first. A reservation owned by someone else reads as missing.
func lockReservation(ctx context.Context, tx repository.LedgerTx, id, userID string) (*models.Reservation, *models.Book, error) {
	current, err := tx.GetReservation(ctx, id)
	if err != nil {
		return nil, nil, orNotFound(err, ErrReservationNotFound)
	}
	if userID != "" && current.UserID != userID {
		return nil, nil, ErrReservationNotFound
	}
	book, err := tx.GetBookForUpdate(ctx, current.BookID)
	if err != nil {
		return nil, nil, orNotFound(err, ErrBookNotFound)
	}
	r, err := tx.GetReservationForUpdate(ctx, id)
	if err != nil {
		return nil, nil, orNotFound(err, ErrReservationNotFound)
	}
	return r, book, nil
}

func (s *reservationService) CreateReservation(ctx context.Context, userID, bookID string) (*models.Reservation, error) {
	now := s.Clock()
	var res *models.Reservation
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
		if !user.IsActive {
			return ErrAccountInactive
		}

		open, err := tx.CountReservations(ctx, repository.ReservationFilter{
			UserID:   userID,
			BookID:   bookID,
			Statuses: []models.ReservationStatus{models.ReservationPending, models.ReservationReady},
		})
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrDuplicateReservation
		}
		onLoan, err := tx.CountLoans(ctx, repository.LoanFilter{
			UserID:   userID,
			BookID:   bookID,
			Statuses: []models.LoanStatus{models.LoanActive, models.LoanOverdue},
		})
		if err != nil {
			return err
		}
		if onLoan > 0 {
			return ErrBookOnLoan
		}

		r := &models.Reservation{UserID: userID, BookID: bookID, Status: models.ReservationPending}
		if b.AvailableCopies > 0 {
			expiry := now.Add(s.policy.HoldPeriod)
			r.Status = models.ReservationReady
			r.ExpiryDate = &expiry
			if err := b.TakeCopies(1, models.BookReserved); err != nil {
				return err
			}
			if err := tx.SaveBook(ctx, b); err != nil {
				return err
			}
		}
		if err := tx.CreateReservation(ctx, r); err != nil {
			return err
		}
		res, book = r, b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.ReservationTransition(string(res.Status))
	s.Logger.Info("reservation_created", "reservation_id", res.ID, "user_id", userID, "book_id", bookID, "status", res.Status)

	fx := &sideEffects{}
	if res.Status == models.ReservationReady {
		fx.notify(notify.NewReservationReady(userID, res.ID, book.Title, *res.ExpiryDate))
	}
	fx.invalidate(cache.BookKey(bookID))
	fx.invalidate(cache.ReservationKeys(userID)...)
	s.apply(ctx, "create_reservation", fx)

	res.Book = book
	return res, nil
}

// CancelReservation closes an open reservation. A READY hold gives its
// copy back to the shelf in the same unit of work.
func (s *reservationService) CancelReservation(ctx context.Context, id, userID string) (*models.Reservation, error) {
	var res *models.Reservation
	err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		r, book, err := lockReservation(ctx, tx, id, userID)
		if err != nil {
			return err
		}
		if r.Status.Terminal() {
			return ErrReservationClosed
		}
		if r.Status == models.ReservationReady {
			book.ReleaseCopy()
			if err := tx.SaveBook(ctx, book); err != nil {
				return err
			}
		}
		r.Status = models.ReservationCancelled
		if err := tx.SaveReservation(ctx, r); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.ReservationTransition(string(models.ReservationCancelled))
	s.Logger.Info("reservation_cancelled", "reservation_id", id, "user_id", userID)

	fx := &sideEffects{}
	fx.invalidate(cache.BookKey(res.BookID))
	fx.invalidate(cache.ReservationKeys(res.UserID)...)
	s.apply(ctx, "cancel_reservation", fx)
	return res, nil
}

// ClaimReservation turns a READY hold into an ACTIVE loan. The held copy
// moves to the loan, so the shelf count does not change.
func (s *reservationService) ClaimReservation(ctx context.Context, id, userID string) (*models.Loan, error) {
	now := s.Clock()
	var loan *models.Loan
	var book *models.Book

	err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		r, b, err := lockReservation(ctx, tx, id, userID)
		if err != nil {
			return err
		}
		if r.Status != models.ReservationReady || r.ExpiryDate == nil || r.ExpiryDate.Before(now) {
			return ErrReservationNotReady
		}

		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return orNotFound(err, ErrUserNotFound)
		}
		if err := checkBorrower(ctx, tx, user); err != nil {
			return err
		}
		if err := checkNoActiveLoan(ctx, tx, userID, r.BookID); err != nil {
			return err
		}

		r.Status = models.ReservationCompleted
		if err := tx.SaveReservation(ctx, r); err != nil {
			return err
		}

		l := &models.Loan{
			UserID:     userID,
			BookID:     r.BookID,
			BorrowDate: now,
			DueDate:    now.Add(s.policy.LoanPeriod),
			Status:     models.LoanActive,
		}
		if err := tx.CreateLoan(ctx, l); err != nil {
			return err
		}

		b.BorrowCount++
		if b.AvailableCopies == 0 {
			status, err := exhaustedStatus(ctx, tx, b.ID)
			if err != nil {
				return err
			}
			b.Status = status
		}
		if err := tx.SaveBook(ctx, b); err != nil {
			return err
		}
		loan, book = l, b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.ReservationTransition(string(models.ReservationCompleted))
	s.Metrics.LoanEvent("claimed")
	s.Logger.Info("reservation_claimed", "reservation_id", id, "loan_id", loan.ID, "user_id", userID)

	fx := &sideEffects{}
	fx.remind(reminderTime(now, loan.DueDate, s.policy.ReminderLead),
		notify.NewLoanReminder(userID, loan.ID, book.Title, loan.DueDate))
	fx.invalidate(cache.BookKey(loan.BookID))
	fx.invalidate(cache.LoanKeys(userID)...)
	fx.invalidate(cache.ReservationKeys(userID)...)
	s.apply(ctx, "claim_reservation", fx)

	loan.Book = book
	return loan, nil
}

// ActivateNextReservation moves the oldest PENDING reservations of a book
// to READY, at most one per copy on the shelf.
func (s *reservationService) ActivateNextReservation(ctx context.Context, bookID string) ([]models.Reservation, error) {
	now := s.Clock()
	var activated []models.Reservation
	var book *models.Book

	err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		// The ledger may replay this closure after a serialization failure.
		activated, book = nil, nil

		b, err := tx.GetBookForUpdate(ctx, bookID)
		if err != nil {
			return orNotFound(err, ErrBookNotFound)
		}
		if b.AvailableCopies <= 0 {
			return nil
		}

		queue, err := tx.FindReservations(ctx, repository.ReservationFilter{
			BookID:   bookID,
			Statuses: []models.ReservationStatus{models.ReservationPending},
			Limit:    b.AvailableCopies,
		})
		if err != nil {
			return err
		}
		if len(queue) == 0 {
			return nil
		}

		expiry := now.Add(s.policy.HoldPeriod)
		for i := range queue {
			r := queue[i]
			r.Status = models.ReservationReady
			r.ExpiryDate = &expiry
			if err := tx.SaveReservation(ctx, &r); err != nil {
				return err
			}
			activated = append(activated, r)
		}

		if err := b.TakeCopies(len(activated), models.BookReserved); err != nil {
			return err
		}
		if err := tx.SaveBook(ctx, b); err != nil {
			return err
		}
		book = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(activated) == 0 {
		return []models.Reservation{}, nil
	}

	s.Logger.Info("reservations_activated", "book_id", bookID, "count", len(activated))

	fx := &sideEffects{}
	fx.invalidate(cache.BookKey(bookID))
	for i := range activated {
		r := &activated[i]
		r.Book = book
		s.Metrics.ReservationTransition(string(models.ReservationReady))
		fx.notify(notify.NewReservationReady(r.UserID, r.ID, book.Title, *r.ExpiryDate))
		fx.invalidate(cache.ReservationKeys(r.UserID)...)
	}
	s.apply(ctx, "activate_reservations", fx)
	return activated, nil
}

// ActivatePendingQueues runs activation for every book with a waiting
// queue. A failing book is logged and skipped.
func (s *reservationService) ActivatePendingQueues(ctx context.Context) (int, error) {
	var bookIDs []string
	err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
		var err error
		bookIDs, err = tx.PendingBookIDs(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	total := 0
	for _, bookID := range bookIDs {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		activated, err := s.ActivateNextReservation(ctx, bookID)
		if err != nil {
			s.Logger.Error("queue_activation_failed", "book_id", bookID, "error", err)
			continue
		}
		total += len(activated)
	}
	return total, nil
}

func (s *reservationService) ExpireReadyReservations(ctx context.Context) (int, error) {
	return s.expireHolds(ctx, "")
}

// ReleaseExpiredForBook expires stale holds on one book so their copies
// can be borrowed without waiting for the sweep.
func (s *reservationService) ReleaseExpiredForBook(ctx context.Context, bookID string) (int, error) {
	return s.expireHolds(ctx, bookID)
}

func (s *reservationService) expireHolds(ctx context.Context, bookID string) (int, error) {
	now := s.Clock()

	var candidates []models.Reservation
	err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
		var err error
		candidates, err = tx.FindReservations(ctx, repository.ReservationFilter{
			BookID:        bookID,
			Statuses:      []models.ReservationStatus{models.ReservationReady},
			ExpiresBefore: now,
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, c := range candidates {
		expired, book, err := s.expireOne(ctx, c.ID)
		if err != nil {
			s.Logger.Error("reservation_expiry_failed", "reservation_id", c.ID, "error", err)
			continue
		}
		if expired == nil {
			continue
		}
		count++
		s.Metrics.ReservationTransition(string(models.ReservationExpired))

		fx := &sideEffects{}
		fx.notify(notify.NewReservationExpired(expired.UserID, expired.ID, book.Title))
		fx.invalidate(cache.BookKey(expired.BookID))
		fx.invalidate(cache.ReservationKeys(expired.UserID)...)
		s.apply(ctx, "expire_reservation", fx)
	}

	if bookID == "" {
		s.Logger.Info("reservation_expiry_completed", "candidates", len(candidates), "expired", count)
	}
	return count, nil
}

// expireOne re-checks the hold under lock; a hold claimed or cancelled
// since it was listed yields nil.
func (s *reservationService) expireOne(ctx context.Context, id string) (*models.Reservation, *models.Book, error) {
	now := s.Clock()
	var res *models.Reservation
	var book *models.Book

	err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		res, book = nil, nil
		r, b, err := lockReservation(ctx, tx, id, "")
		if err != nil {
			return err
		}
		if r.Status != models.ReservationReady || r.ExpiryDate == nil || !r.ExpiryDate.Before(now) {
			return nil
		}
		r.Status = models.ReservationExpired
		if err := tx.SaveReservation(ctx, r); err != nil {
			return err
		}
		b.ReleaseCopy()
		if err := tx.SaveBook(ctx, b); err != nil {
			return err
		}
		res, book = r, b
		return nil
	})
	return res, book, err
}

// UpdateStatusByAdmin forces a reservation to READY, CANCELLED or EXPIRED,
// applying the same copy accounting as the regular paths.
func (s *reservationService) UpdateStatusByAdmin(ctx context.Context, id string, status models.ReservationStatus) (*models.Reservation, error) {
	now := s.Clock()
	var res *models.Reservation
	var book *models.Book
	var from models.ReservationStatus

	err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		r, b, err := lockReservation(ctx, tx, id, "")
		if err != nil {
			return err
		}
		from = r.Status
		res, book = r, b
		if r.Status == status {
			return nil
		}

		switch status {
		case models.ReservationReady, models.ReservationCancelled, models.ReservationExpired:
		default:
			return ErrUnsupportedTransition
		}
		if r.Status.Terminal() {
			return ErrReservationClosed
		}

		switch status {
		case models.ReservationReady:
			if b.AvailableCopies <= 0 {
				return ErrNoCopiesForReady
			}
			if err := b.TakeCopies(1, models.BookReserved); err != nil {
				return ErrNoCopiesForReady
			}
			expiry := now.Add(s.policy.HoldPeriod)
			r.ExpiryDate = &expiry
		case models.ReservationExpired:
			if r.Status != models.ReservationReady {
				return ErrUnsupportedTransition
			}
			b.ReleaseCopy()
		case models.ReservationCancelled:
			if r.Status == models.ReservationReady {
				b.ReleaseCopy()
			}
		}

		r.Status = status
		if err := tx.SaveReservation(ctx, r); err != nil {
			return err
		}
		return tx.SaveBook(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	if from == status {
		return res, nil
	}

	s.Metrics.ReservationTransition(string(status))
	s.Logger.Info("reservation_status_updated", "reservation_id", id, "from", from, "to", status)

	fx := &sideEffects{}
	switch status {
	case models.ReservationReady:
		fx.notify(notify.NewReservationReady(res.UserID, res.ID, book.Title, *res.ExpiryDate))
	case models.ReservationExpired:
		fx.notify(notify.NewReservationExpired(res.UserID, res.ID, book.Title))
	}
	fx.invalidate(cache.BookKey(res.BookID))
	fx.invalidate(cache.ReservationKeys(res.UserID)...)
	s.apply(ctx, "update_reservation_status", fx)

	res.Book = book
	return res, nil
}

func (s *reservationService) GetUserReservations(ctx context.Context, userID string, status models.ReservationStatus) ([]models.Reservation, error) {
	return readThrough(ctx, s.Deps, cache.ReservationListKey(userID, status), s.policy.ListTTL, func() ([]models.Reservation, error) {
		f := repository.ReservationFilter{UserID: userID, NewestFirst: true}
		if status != "" {
			f.Statuses = []models.ReservationStatus{status}
		}
		var list []models.Reservation
		err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
			var err error
			list, err = tx.FindReservations(ctx, f)
			return err
		})
		if list == nil {
			list = []models.Reservation{}
		}
		return list, err
	})
}

func (s *reservationService) ListReservations(ctx context.Context, page, limit int, status models.ReservationStatus) ([]models.Reservation, int64, error) {
	page, limit = normalizePage(page, limit)
	f := repository.ReservationFilter{Limit: limit, Offset: (page - 1) * limit, NewestFirst: true}
	if status != "" {
		f.Statuses = []models.ReservationStatus{status}
	}

	var list []models.Reservation
	var total int64
	err := s.Ledger.View(ctx, func(tx repository.LedgerTx) error {
		var err error
		if list, err = tx.FindReservations(ctx, f); err != nil {
			return err
		}
		total, err = tx.CountReservations(ctx, f)
		return err
	})
	return list, total, err
}
