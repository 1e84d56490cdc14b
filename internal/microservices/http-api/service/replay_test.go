package service

import (
	"context"
	"testing"
	"time"

	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/repository"
	"libraryhub/internal/notify"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replayLedger behaves like the postgres ledger after a serialization
// failure: every unit of work runs once, is rolled back with 40001, and
// then runs again for real.
type replayLedger struct {
	*repository.MemoryLedger
	replays int
}

func (l *replayLedger) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	err := l.MemoryLedger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return &pgconn.PgError{Code: "40001"}
	})
	if !repository.IsRetryable(err) {
		return err
	}
	l.replays++
	return l.MemoryLedger.WithinTx(ctx, fn)
}

func newReplayHarness(t *testing.T) (*harness, *replayLedger) {
	t.Helper()
	h := newHarness(t)
	replay := &replayLedger{MemoryLedger: h.ledger}
	h.deps.Ledger = replay
	h.build()
	return h, replay
}

func TestReplay_BorrowBook(t *testing.T) {
	ctx := context.Background()
	h, replay := newReplayHarness(t)
	u := h.user(t, "ana")
	b := h.book(t, 2)

	loan, err := h.loans.BorrowBook(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.Positive(t, replay.replays)

	stored := h.reload(t, b.ID)
	assert.Equal(t, 1, stored.AvailableCopies)
	assert.Equal(t, int64(1), stored.BorrowCount)
	assert.Equal(t, int64(1), h.countLoans(t))
	assert.Equal(t, 1, h.reminders.Len())
	require.NotNil(t, loan.Book)
	assert.Equal(t, b.Title, loan.Book.Title)
}

func TestReplay_ReturnBookCreatesOneFine(t *testing.T) {
	ctx := context.Background()
	h, replay := newReplayHarness(t)
	a := h.user(t, "ana")
	other := h.user(t, "ben")
	b := h.book(t, 2)

	loan, err := h.loans.BorrowBook(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = h.loans.BorrowBook(ctx, other.ID, b.ID)
	require.NoError(t, err)
	require.Equal(t, 0, h.reload(t, b.ID).AvailableCopies)

	h.advance(17 * 24 * time.Hour)
	before := replay.replays
	_, err = h.loans.ReturnBook(ctx, loan.ID)
	require.NoError(t, err)
	assert.Greater(t, replay.replays, before)

	fines, err := h.fines.GetUserFines(ctx, a.ID, "")
	require.NoError(t, err)
	require.Len(t, fines, 1)
	assert.Equal(t, "15", fines[0].Amount.String())
	assert.Len(t, h.events.OfType(notify.FineNotification), 1)
	assert.Equal(t, 1, h.reload(t, b.ID).AvailableCopies)
}

func TestReplay_ActivateNextReservation(t *testing.T) {
	ctx := context.Background()
	h, _ := newReplayHarness(t)
	b := h.book(t, 2)

	var loans []*models.Loan
	for _, name := range []string{"ana", "ben"} {
		l, err := h.loans.BorrowBook(ctx, h.user(t, name).ID, b.ID)
		require.NoError(t, err)
		loans = append(loans, l)
	}
	hold, err := h.reservations.CreateReservation(ctx, h.user(t, "cy").ID, b.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReservationPending, hold.Status)

	for _, l := range loans {
		_, err := h.loans.ReturnBook(ctx, l.ID)
		require.NoError(t, err)
	}
	require.Equal(t, 2, h.reload(t, b.ID).AvailableCopies)

	activated, err := h.reservations.ActivateNextReservation(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, activated, 1)
	assert.Equal(t, hold.ID, activated[0].ID)

	stored := h.reload(t, b.ID)
	assert.Equal(t, 1, stored.AvailableCopies)
	assert.Equal(t, models.BookAvailable, stored.Status)
	assert.Equal(t, models.ReservationReady, h.reservation(t, hold.ID).Status)
	assert.Len(t, h.events.OfType(notify.ReservationReady), 1)
}

func TestReplay_ActivateSingleCopy(t *testing.T) {
	ctx := context.Background()
	h, _ := newReplayHarness(t)
	b := h.book(t, 1)

	loan, err := h.loans.BorrowBook(ctx, h.user(t, "ana").ID, b.ID)
	require.NoError(t, err)
	hold, err := h.reservations.CreateReservation(ctx, h.user(t, "ben").ID, b.ID)
	require.NoError(t, err)
	_, err = h.loans.ReturnBook(ctx, loan.ID)
	require.NoError(t, err)

	activated, err := h.reservations.ActivateNextReservation(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, activated, 1)
	assert.Equal(t, hold.ID, activated[0].ID)

	stored := h.reload(t, b.ID)
	assert.Equal(t, 0, stored.AvailableCopies)
	assert.Equal(t, models.BookReserved, stored.Status)
}

func TestReplay_CreateReservation(t *testing.T) {
	ctx := context.Background()
	h, _ := newReplayHarness(t)
	u := h.user(t, "ana")
	b := h.book(t, 1)

	res, err := h.reservations.CreateReservation(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationReady, res.Status)

	assert.Equal(t, 0, h.reload(t, b.ID).AvailableCopies)
	mine, err := h.reservations.GetUserReservations(ctx, u.ID, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, res.ID, mine[0].ID)
	assert.Len(t, h.events.OfType(notify.ReservationReady), 1)

	_, err = h.reservations.CreateReservation(ctx, u.ID, b.ID)
	assert.ErrorIs(t, err, ErrDuplicateReservation)
}

func TestReplay_UpdateStatusByAdmin(t *testing.T) {
	ctx := context.Background()
	h, _ := newReplayHarness(t)
	b := h.book(t, 2)

	_, err := h.loans.BorrowBook(ctx, h.user(t, "ana").ID, b.ID)
	require.NoError(t, err)
	_, err = h.loans.BorrowBook(ctx, h.user(t, "ben").ID, b.ID)
	require.NoError(t, err)
	pending, err := h.reservations.CreateReservation(ctx, h.user(t, "cy").ID, b.ID)
	require.NoError(t, err)

	// one copy comes back outside the lending flow
	require.NoError(t, h.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		book, err := tx.GetBookForUpdate(ctx, b.ID)
		if err != nil {
			return err
		}
		book.ReleaseCopy()
		return tx.SaveBook(ctx, book)
	}))

	ready, err := h.reservations.UpdateStatusByAdmin(ctx, pending.ID, models.ReservationReady)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationReady, ready.Status)
	assert.Equal(t, 0, h.reload(t, b.ID).AvailableCopies)
	assert.Len(t, h.events.OfType(notify.ReservationReady), 1)

	cancelled, err := h.reservations.UpdateStatusByAdmin(ctx, pending.ID, models.ReservationCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, cancelled.Status)
	assert.Equal(t, 1, h.reload(t, b.ID).AvailableCopies)
}
