package service

import (
	"context"
	"testing"
	"time"

	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/repository"
	"libraryhub/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("ReadyWhenCopyOnShelf", func(t *testing.T) {
		h := newHarness(t)
		u := h.user(t, "ana")
		b := h.book(t, 1)

		res, err := h.reservations.CreateReservation(ctx, u.ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReservationReady, res.Status)
		require.NotNil(t, res.ExpiryDate)
		assert.Equal(t, t0.Add(72*time.Hour), *res.ExpiryDate)

		stored := h.reload(t, b.ID)
		assert.Equal(t, 0, stored.AvailableCopies)
		assert.Equal(t, models.BookReserved, stored.Status)

		ready := h.events.OfType(notify.ReservationReady)
		require.Len(t, ready, 1)
		assert.Equal(t, u.ID, ready[0].UserID)
	})

	t.Run("PendingWhenShelfEmpty", func(t *testing.T) {
		h := newHarness(t)
		b := h.book(t, 1)
		_, err := h.loans.BorrowBook(ctx, h.user(t, "ana").ID, b.ID)
		require.NoError(t, err)

		res, err := h.reservations.CreateReservation(ctx, h.user(t, "ben").ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReservationPending, res.Status)
		assert.Nil(t, res.ExpiryDate)

		stored := h.reload(t, b.ID)
		assert.Equal(t, 0, stored.AvailableCopies)
		assert.Equal(t, models.BookBorrowed, stored.Status)
		assert.Empty(t, h.events.OfType(notify.ReservationReady))
	})

	t.Run("Rejections", func(t *testing.T) {
		h := newHarness(t)
		u := h.user(t, "ana")
		b := h.book(t, 2)

		_, err := h.reservations.CreateReservation(ctx, "ghost", b.ID)
		assert.ErrorIs(t, err, ErrUserOrBookNotFound)
		_, err = h.reservations.CreateReservation(ctx, u.ID, "missing")
		assert.ErrorIs(t, err, ErrUserOrBookNotFound)

		_, err = h.reservations.CreateReservation(ctx, u.ID, b.ID)
		require.NoError(t, err)
		_, err = h.reservations.CreateReservation(ctx, u.ID, b.ID)
		assert.ErrorIs(t, err, ErrDuplicateReservation)

		borrower := h.user(t, "ben")
		_, err = h.loans.BorrowBook(ctx, borrower.ID, b.ID)
		require.NoError(t, err)
		_, err = h.reservations.CreateReservation(ctx, borrower.ID, b.ID)
		assert.ErrorIs(t, err, ErrBookOnLoan)

		assert.Equal(t, 0, h.reload(t, b.ID).AvailableCopies)
	})
}

func TestReservationScenario_ReturnThenActivate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.user(t, "ana")
	b := h.user(t, "ben")
	book := h.book(t, 1)

	loan, err := h.loans.BorrowBook(ctx, a.ID, book.ID)
	require.NoError(t, err)
	stored := h.reload(t, book.ID)
	assert.Equal(t, 0, stored.AvailableCopies)
	assert.Equal(t, models.BookBorrowed, stored.Status)

	res, err := h.reservations.CreateReservation(ctx, b.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationPending, res.Status)
	assert.Equal(t, 0, h.reload(t, book.ID).AvailableCopies)

	h.advance(10 * 24 * time.Hour)
	_, err = h.loans.ReturnBook(ctx, loan.ID)
	require.NoError(t, err)
	stored = h.reload(t, book.ID)
	assert.Equal(t, 1, stored.AvailableCopies)
	assert.Equal(t, models.BookAvailable, stored.Status)
	fines, err := h.fines.GetUserFines(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Empty(t, fines)

	activated, err := h.reservations.ActivateNextReservation(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, activated, 1)
	assert.Equal(t, res.ID, activated[0].ID)
	assert.Equal(t, models.ReservationReady, activated[0].Status)
	assert.Equal(t, h.now.Add(72*time.Hour), *activated[0].ExpiryDate)

	stored = h.reload(t, book.ID)
	assert.Equal(t, 0, stored.AvailableCopies)
	assert.Equal(t, models.BookReserved, stored.Status)

	ready := h.events.OfType(notify.ReservationReady)
	require.Len(t, ready, 1)
	assert.Equal(t, b.ID, ready[0].UserID)
}

func TestActivateNextReservation_FIFOAndLimit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	book := h.book(t, 3)

	var loans []*models.Loan
	for _, name := range []string{"l1", "l2", "l3"} {
		l, err := h.loans.BorrowBook(ctx, h.user(t, name).ID, book.ID)
		require.NoError(t, err)
		loans = append(loans, l)
	}

	var queue []*models.Reservation
	for _, name := range []string{"r1", "r2", "r3", "r4"} {
		r, err := h.reservations.CreateReservation(ctx, h.user(t, name).ID, book.ID)
		require.NoError(t, err)
		require.Equal(t, models.ReservationPending, r.Status)
		queue = append(queue, r)
	}

	activated, err := h.reservations.ActivateNextReservation(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, activated)

	for _, l := range loans[:2] {
		_, err := h.loans.ReturnBook(ctx, l.ID)
		require.NoError(t, err)
	}
	require.Equal(t, 2, h.reload(t, book.ID).AvailableCopies)

	activated, err = h.reservations.ActivateNextReservation(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, activated, 2)
	assert.Equal(t, queue[0].ID, activated[0].ID)
	assert.Equal(t, queue[1].ID, activated[1].ID)

	assert.Equal(t, models.ReservationPending, h.reservation(t, queue[2].ID).Status)
	assert.Equal(t, models.ReservationPending, h.reservation(t, queue[3].ID).Status)
	assert.Equal(t, 0, h.reload(t, book.ID).AvailableCopies)

	_, err = h.reservations.ActivateNextReservation(ctx, "missing")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestCancelReservation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	book := h.book(t, 1)
	a := h.user(t, "ana")
	b := h.user(t, "ben")

	ready, err := h.reservations.CreateReservation(ctx, a.ID, book.ID)
	require.NoError(t, err)
	pending, err := h.reservations.CreateReservation(ctx, b.ID, book.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReservationPending, pending.Status)

	_, err = h.reservations.CancelReservation(ctx, ready.ID, b.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	_, err = h.reservations.CancelReservation(ctx, pending.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, h.reload(t, book.ID).AvailableCopies)

	cancelled, err := h.reservations.CancelReservation(ctx, ready.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, cancelled.Status)
	stored := h.reload(t, book.ID)
	assert.Equal(t, 1, stored.AvailableCopies)
	assert.Equal(t, models.BookAvailable, stored.Status)

	_, err = h.reservations.CancelReservation(ctx, ready.ID, a.ID)
	assert.ErrorIs(t, err, ErrReservationClosed)
	assert.Equal(t, 1, h.reload(t, book.ID).AvailableCopies)
}

func TestExpireReadyReservations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	book := h.book(t, 2)
	a := h.user(t, "ana")
	res, err := h.reservations.CreateReservation(ctx, a.ID, book.ID)
	require.NoError(t, err)

	n, err := h.reservations.ExpireReadyReservations(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.advance(72*time.Hour + time.Minute)
	n, err = h.reservations.ExpireReadyReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, models.ReservationExpired, h.reservation(t, res.ID).Status)
	stored := h.reload(t, book.ID)
	assert.Equal(t, 2, stored.AvailableCopies)
	assert.Equal(t, models.BookAvailable, stored.Status)

	expired := h.events.OfType(notify.ReservationExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, a.ID, expired[0].UserID)

	n, err = h.reservations.ExpireReadyReservations(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClaimReservation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	book := h.book(t, 1)
	a := h.user(t, "ana")
	b := h.user(t, "ben")

	held, err := h.reservations.CreateReservation(ctx, a.ID, book.ID)
	require.NoError(t, err)
	waiting, err := h.reservations.CreateReservation(ctx, b.ID, book.ID)
	require.NoError(t, err)

	_, err = h.reservations.ClaimReservation(ctx, waiting.ID, b.ID)
	assert.ErrorIs(t, err, ErrReservationNotReady)
	_, err = h.reservations.ClaimReservation(ctx, held.ID, b.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	loan, err := h.reservations.ClaimReservation(ctx, held.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, loan.Status)
	assert.Equal(t, a.ID, loan.UserID)
	assert.Equal(t, h.now.Add(14*24*time.Hour), loan.DueDate)

	assert.Equal(t, models.ReservationCompleted, h.reservation(t, held.ID).Status)
	stored := h.reload(t, book.ID)
	assert.Equal(t, 0, stored.AvailableCopies)
	assert.Equal(t, int64(1), stored.BorrowCount)
	assert.Equal(t, models.BookBorrowed, stored.Status)
	assert.Equal(t, 1, h.reminders.Len())

	_, err = h.reservations.ClaimReservation(ctx, held.ID, a.ID)
	assert.ErrorIs(t, err, ErrReservationNotReady)
}

func TestClaimReservation_BorrowerRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	book := h.book(t, 1)
	a := h.user(t, "ana")

	held, err := h.reservations.CreateReservation(ctx, a.ID, book.ID)
	require.NoError(t, err)
	h.seedFine(t, a.ID, 5)

	_, err = h.reservations.ClaimReservation(ctx, held.ID, a.ID)
	assert.ErrorIs(t, err, ErrUnpaidFines)
	assert.Equal(t, models.ReservationReady, h.reservation(t, held.ID).Status)

	h.advance(4 * 24 * time.Hour)
	_, err = h.reservations.ClaimReservation(ctx, held.ID, a.ID)
	assert.ErrorIs(t, err, ErrReservationNotReady)
}

func TestUpdateStatusByAdmin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	book := h.book(t, 1)
	_, err := h.loans.BorrowBook(ctx, h.user(t, "ana").ID, book.ID)
	require.NoError(t, err)

	pending, err := h.reservations.CreateReservation(ctx, h.user(t, "ben").ID, book.ID)
	require.NoError(t, err)

	_, err = h.reservations.UpdateStatusByAdmin(ctx, pending.ID, models.ReservationReady)
	assert.ErrorIs(t, err, ErrNoCopiesForReady)
	_, err = h.reservations.UpdateStatusByAdmin(ctx, pending.ID, models.ReservationCompleted)
	assert.ErrorIs(t, err, ErrUnsupportedTransition)
	_, err = h.reservations.UpdateStatusByAdmin(ctx, pending.ID, models.ReservationExpired)
	assert.ErrorIs(t, err, ErrUnsupportedTransition)
	_, err = h.reservations.UpdateStatusByAdmin(ctx, "missing", models.ReservationReady)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	same, err := h.reservations.UpdateStatusByAdmin(ctx, pending.ID, models.ReservationPending)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationPending, same.Status)

	// a second copy arrives
	require.NoError(t, h.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		b, err := tx.GetBookForUpdate(ctx, book.ID)
		if err != nil {
			return err
		}
		b.TotalCopies, b.AvailableCopies, b.Status = 2, 1, models.BookAvailable
		return tx.SaveBook(ctx, b)
	}))

	ready, err := h.reservations.UpdateStatusByAdmin(ctx, pending.ID, models.ReservationReady)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationReady, ready.Status)
	assert.Equal(t, 0, h.reload(t, book.ID).AvailableCopies)
	assert.Len(t, h.events.OfType(notify.ReservationReady), 1)

	expired, err := h.reservations.UpdateStatusByAdmin(ctx, pending.ID, models.ReservationExpired)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationExpired, expired.Status)
	assert.Equal(t, 1, h.reload(t, book.ID).AvailableCopies)
	assert.Len(t, h.events.OfType(notify.ReservationExpired), 1)

	_, err = h.reservations.UpdateStatusByAdmin(ctx, pending.ID, models.ReservationCancelled)
	assert.ErrorIs(t, err, ErrReservationClosed)
}

func TestActivatePendingQueues(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	first := h.book(t, 1)
	second := h.book(t, 1)

	var loans []*models.Loan
	for _, b := range []*models.Book{first, second} {
		l, err := h.loans.BorrowBook(ctx, h.user(t, "owner-"+b.ID).ID, b.ID)
		require.NoError(t, err)
		loans = append(loans, l)
		_, err = h.reservations.CreateReservation(ctx, h.user(t, "waiter-"+b.ID).ID, b.ID)
		require.NoError(t, err)
	}

	n, err := h.reservations.ActivatePendingQueues(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, l := range loans {
		_, err := h.loans.ReturnBook(ctx, l.ID)
		require.NoError(t, err)
	}

	n, err = h.reservations.ActivatePendingQueues(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, h.events.OfType(notify.ReservationReady), 2)
}

func TestReservationLists(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.user(t, "ana")
	books := []*models.Book{h.book(t, 1), h.book(t, 0), h.book(t, 0)}
	for _, b := range books {
		_, err := h.reservations.CreateReservation(ctx, a.ID, b.ID)
		require.NoError(t, err)
		h.advance(time.Second)
	}

	mine, err := h.reservations.GetUserReservations(ctx, a.ID, models.ReservationPending)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := h.reservations.GetUserReservations(ctx, a.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, b := range books {
		assert.Equal(t, b.ID, all[len(all)-1-i].BookID, "newest first")
	}

	_, err = h.reservations.CancelReservation(ctx, all[1].ID, a.ID)
	require.NoError(t, err)
	mine, err = h.reservations.GetUserReservations(ctx, a.ID, models.ReservationPending)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	page, total, err := h.reservations.ListReservations(ctx, 1, 2, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, books[2].ID, page[0].BookID)
	assert.Equal(t, books[1].ID, page[1].BookID)
}

func TestCopyBoundsHoldAcrossOperations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	book := h.book(t, 2)
	users := []*models.User{h.user(t, "a"), h.user(t, "b"), h.user(t, "c"), h.user(t, "d")}

	check := func() {
		b := h.reload(t, book.ID)
		assert.GreaterOrEqual(t, b.AvailableCopies, 0)
		assert.LessOrEqual(t, b.AvailableCopies, b.TotalCopies)
	}

	l0, err := h.loans.BorrowBook(ctx, users[0].ID, book.ID)
	require.NoError(t, err)
	check()
	r1, err := h.reservations.CreateReservation(ctx, users[1].ID, book.ID)
	require.NoError(t, err)
	check()
	_, err = h.reservations.CreateReservation(ctx, users[2].ID, book.ID)
	require.NoError(t, err)
	check()
	_, err = h.loans.BorrowBook(ctx, users[3].ID, book.ID)
	assert.ErrorIs(t, err, ErrNotAvailable)
	check()
	_, err = h.loans.ReturnBook(ctx, l0.ID)
	require.NoError(t, err)
	check()
	_, err = h.reservations.CancelReservation(ctx, r1.ID, users[1].ID)
	require.NoError(t, err)
	check()
	_, err = h.reservations.ActivateNextReservation(ctx, book.ID)
	require.NoError(t, err)
	check()
	h.advance(4 * 24 * time.Hour)
	_, err = h.reservations.ExpireReadyReservations(ctx)
	require.NoError(t, err)
	check()
	assert.Equal(t, 2, h.reload(t, book.ID).AvailableCopies)
}
