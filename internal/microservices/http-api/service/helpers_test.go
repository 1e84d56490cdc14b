package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"libraryhub/internal/cache"
	"libraryhub/internal/logging"
	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/repository"
	"libraryhub/internal/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	now       time.Time
	ledger    *repository.MemoryLedger
	cache     *cache.MemoryCache
	events    *notify.Recorder
	reminders *notify.MemoryReminderQueue
	deps      Deps
	policy    Policy

	loans        LoanService
	reservations ReservationService
	fines        FineService
	books        BookService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{now: t0}
	clock := func() time.Time { return h.now }

	h.ledger = repository.NewMemoryLedger().WithClock(clock)
	h.cache = cache.NewMemoryCache()
	h.events = &notify.Recorder{}
	h.reminders = notify.NewMemoryReminderQueue()
	h.deps = Deps{
		Ledger:    h.ledger,
		Cache:     h.cache,
		Notifier:  h.events,
		Reminders: h.reminders,
		Logger:    logging.Discard(),
		Clock:     clock,
	}
	h.policy = DefaultPolicy()
	h.build()
	return h
}

func (h *harness) build() {
	h.reservations = NewReservationService(h.deps, h.policy)
	h.loans = NewLoanService(h.deps, h.policy, h.reservations)
	h.fines = NewFineService(h.deps)
	h.books = NewBookService(h.deps, h.policy)
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *harness) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Email: name + "@example.com", Name: name, Role: models.RoleReader, IsActive: true}
	require.NoError(t, h.ledger.WithinTx(context.Background(), func(tx repository.LedgerTx) error {
		return tx.CreateUser(context.Background(), u)
	}))
	return u
}

func (h *harness) book(t *testing.T, copies int) *models.Book {
	t.Helper()
	b, err := h.books.CreateBook(context.Background(), &models.Book{
		ISBN:        uuid.NewString(),
		Title:       "The Left Hand of Darkness",
		Author:      "Le Guin",
		TotalCopies: copies,
	})
	require.NoError(t, err)
	return b
}

func (h *harness) reload(t *testing.T, bookID string) *models.Book {
	t.Helper()
	var b *models.Book
	require.NoError(t, h.ledger.View(context.Background(), func(tx repository.LedgerTx) error {
		var err error
		b, err = tx.GetBook(context.Background(), bookID)
		return err
	}))
	return b
}

func (h *harness) reservation(t *testing.T, id string) *models.Reservation {
	t.Helper()
	var r *models.Reservation
	require.NoError(t, h.ledger.View(context.Background(), func(tx repository.LedgerTx) error {
		var err error
		r, err = tx.GetReservation(context.Background(), id)
		return err
	}))
	return r
}

func (h *harness) countLoans(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.ledger.View(context.Background(), func(tx repository.LedgerTx) error {
		var err error
		n, err = tx.CountLoans(context.Background(), repository.LoanFilter{})
		return err
	}))
	return n
}

func (h *harness) seedLoan(t *testing.T, userID, bookID string, status models.LoanStatus) *models.Loan {
	t.Helper()
	l := &models.Loan{UserID: userID, BookID: bookID, BorrowDate: h.now, DueDate: h.now.Add(-time.Hour), Status: status}
	require.NoError(t, h.ledger.WithinTx(context.Background(), func(tx repository.LedgerTx) error {
		return tx.CreateLoan(context.Background(), l)
	}))
	return l
}

func (h *harness) seedFine(t *testing.T, userID string, amount int64) *models.Fine {
	t.Helper()
	f := &models.Fine{UserID: userID, LoanID: "loan-" + userID, Amount: decimal.NewFromInt(amount), Reason: lateReason(1), Status: models.FinePending}
	require.NoError(t, h.ledger.WithinTx(context.Background(), func(tx repository.LedgerTx) error {
		return tx.CreateFine(context.Background(), f)
	}))
	return f
}

// brokenCache fails every call.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errCacheDown
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (brokenCache) Del(context.Context, ...string) error { return errCacheDown }
