package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"libraryhub/internal/microservices/http-api/models"

	"github.com/google/uuid"
)

type memoryState struct {
	users        map[string]models.User
	books        map[string]models.Book
	loans        map[string]models.Loan
	fines        map[string]models.Fine
	reservations map[string]models.Reservation
	// insertion order breaks createdAt ties
	seq   map[string]int64
	clock int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		users:        map[string]models.User{},
		books:        map[string]models.Book{},
		loans:        map[string]models.Loan{},
		fines:        map[string]models.Fine{},
		reservations: map[string]models.Reservation{},
		seq:          map[string]int64{},
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		users:        make(map[string]models.User, len(s.users)),
		books:        make(map[string]models.Book, len(s.books)),
		loans:        make(map[string]models.Loan, len(s.loans)),
		fines:        make(map[string]models.Fine, len(s.fines)),
		reservations: make(map[string]models.Reservation, len(s.reservations)),
		seq:          make(map[string]int64, len(s.seq)),
		clock:        s.clock,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	for k, v := range s.fines {
		c.fines[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

// MemoryLedger keeps the whole ledger in process. One unit of work runs at
// a time against a private copy that replaces the shared state on commit.
type MemoryLedger struct {
	mu    sync.RWMutex
	state *memoryState
	now   func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{state: newMemoryState(), now: time.Now}
}

// WithClock sets the time source used for CreatedAt/UpdatedAt stamps.
func (l *MemoryLedger) WithClock(now func() time.Time) *MemoryLedger {
	l.now = now
	return l
}

func (l *MemoryLedger) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	work := l.state.clone()
	if err := fn(&memoryTx{s: work, now: l.now}); err != nil {
		return err
	}
	l.state = work
	return nil
}

func (l *MemoryLedger) View(ctx context.Context, fn func(tx LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(&memoryTx{s: l.state, now: l.now, readOnly: true})
}

type memoryTx struct {
	s        *memoryState
	now      func() time.Time
	readOnly bool
}

func (t *memoryTx) write() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *memoryTx) stamp(id *string, created, updated *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	now := t.now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
	if _, ok := t.s.seq[*id]; !ok {
		t.s.clock++
		t.s.seq[*id] = t.s.clock
	}
}

// --- users ---

func (t *memoryTx) CreateUser(ctx context.Context, user *models.User) error {
	if err := t.write(); err != nil {
		return err
	}
	t.stamp(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	t.s.users[user.ID] = *user
	return nil
}

func (t *memoryTx) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (t *memoryTx) SaveUser(ctx context.Context, user *models.User) error {
	if err := t.write(); err != nil {
		return err
	}
	t.stamp(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	t.s.users[user.ID] = *user
	return nil
}

// --- books ---

func (t *memoryTx) CreateBook(ctx context.Context, book *models.Book) error {
	if err := t.write(); err != nil {
		return err
	}
	t.stamp(&book.ID, &book.CreatedAt, &book.UpdatedAt)
	t.s.books[book.ID] = *book
	return nil
}

func (t *memoryTx) GetBook(ctx context.Context, id string) (*models.Book, error) {
	b, ok := t.s.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

// GetBookForUpdate needs no extra lock: the unit of work already holds the
// ledger mutex.
func (t *memoryTx) GetBookForUpdate(ctx context.Context, id string) (*models.Book, error) {
	return t.GetBook(ctx, id)
}

func (t *memoryTx) SaveBook(ctx context.Context, book *models.Book) error {
	if err := t.write(); err != nil {
		return err
	}
	t.stamp(&book.ID, &book.CreatedAt, &book.UpdatedAt)
	t.s.books[book.ID] = *book
	return nil
}

// --- loans ---

func (t *memoryTx) withBook(l models.Loan) models.Loan {
	if b, ok := t.s.books[l.BookID]; ok {
		l.Book = &b
	}
	return l
}

func (t *memoryTx) CreateLoan(ctx context.Context, loan *models.Loan) error {
	if err := t.write(); err != nil {
		return err
	}
	t.stamp(&loan.ID, &loan.CreatedAt, &loan.UpdatedAt)
	stored := *loan
	stored.Book = nil
	t.s.loans[loan.ID] = stored
	return nil
}

func (t *memoryTx) GetLoan(ctx context.Context, id string) (*models.Loan, error) {
	l, ok := t.s.loans[id]
	if !ok {
		return nil, ErrNotFound
	}
	l = t.withBook(l)
	return &l, nil
}

func (t *memoryTx) GetLoanForUpdate(ctx context.Context, id string) (*models.Loan, error) {
	l, ok := t.s.loans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (t *memoryTx) SaveLoan(ctx context.Context, loan *models.Loan) error {
	if err := t.write(); err != nil {
		return err
	}
	t.stamp(&loan.ID, &loan.CreatedAt, &loan.UpdatedAt)
	stored := *loan
	stored.Book = nil
	t.s.loans[loan.ID] = stored
	return nil
}

func (f LoanFilter) matches(l models.Loan) bool {
	if f.UserID != "" && l.UserID != f.UserID {
		return false
	}
	if f.BookID != "" && l.BookID != f.BookID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, l.Status) {
		return false
	}
	if !f.DueBefore.IsZero() && !l.DueDate.Before(f.DueBefore) {
		return false
	}
	return true
}

func (t *memoryTx) FindLoans(ctx context.Context, f LoanFilter) ([]models.Loan, error) {
	var out []models.Loan
	for _, l := range t.s.loans {
		if f.matches(l) {
			out = append(out, t.withBook(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BorrowDate.Equal(out[j].BorrowDate) {
			return out[i].BorrowDate.After(out[j].BorrowDate)
		}
		return t.s.seq[out[i].ID] > t.s.seq[out[j].ID]
	})
	return window(out, f.Limit, f.Offset), nil
}

func (t *memoryTx) CountLoans(ctx context.Context, f LoanFilter) (int64, error) {
	var n int64
	for _, l := range t.s.loans {
		if f.matches(l) {
			n++
		}
	}
	return n, nil
}

// --- fines ---

func (t *memoryTx) CreateFine(ctx context.Context, fine *models.Fine) error {
	if err := t.write(); err != nil {
		return err
	}
	t.stamp(&fine.ID, &fine.CreatedAt, &fine.UpdatedAt)
	t.s.fines[fine.ID] = *fine
	return nil
}

func (t *memoryTx) GetFineForUpdate(ctx context.Context, id string) (*models.Fine, error) {
	f, ok := t.s.fines[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (t *memoryTx) SaveFine(ctx context.Context, fine *models.Fine) error {
	if err := t.write(); err != nil {
		return err
	}
	t.stamp(&fine.ID, &fine.CreatedAt, &fine.UpdatedAt)
	t.s.fines[fine.ID] = *fine
	return nil
}

func (f FineFilter) matches(fine models.Fine) bool {
	if f.UserID != "" && fine.UserID != f.UserID {
		return false
	}
	return len(f.Statuses) == 0 || containsStatus(f.Statuses, fine.Status)
}

func (t *memoryTx) FindFines(ctx context.Context, f FineFilter) ([]models.Fine, error) {
	var out []models.Fine
	for _, fine := range t.s.fines {
		if f.matches(fine) {
			out = append(out, fine)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return t.s.seq[out[i].ID] > t.s.seq[out[j].ID]
	})
	return window(out, f.Limit, f.Offset), nil
}

func (t *memoryTx) CountFines(ctx context.Context, f FineFilter) (int64, error) {
	var n int64
	for _, fine := range t.s.fines {
		if f.matches(fine) {
			n++
		}
	}
	return n, nil
}

// --- reservations ---

func (t *memoryTx) CreateReservation(ctx context.Context, r *models.Reservation) error {
	if err := t.write(); err != nil {
		return err
	}
	t.stamp(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	stored := *r
	stored.Book = nil
	t.s.reservations[r.ID] = stored
	return nil
}

func (t *memoryTx) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	r, ok := t.s.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b, ok := t.s.books[r.BookID]; ok {
		r.Book = &b
	}
	return &r, nil
}

func (t *memoryTx) GetReservationForUpdate(ctx context.Context, id string) (*models.Reservation, error) {
	r, ok := t.s.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (t *memoryTx) SaveReservation(ctx context.Context, r *models.Reservation) error {
	if err := t.write(); err != nil {
		return err
	}
	t.stamp(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	stored := *r
	stored.Book = nil
	t.s.reservations[r.ID] = stored
	return nil
}

func (f ReservationFilter) matches(r models.Reservation) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.BookID != "" && r.BookID != f.BookID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, r.Status) {
		return false
	}
	if !f.ExpiresBefore.IsZero() && (r.ExpiryDate == nil || !r.ExpiryDate.Before(f.ExpiresBefore)) {
		return false
	}
	return true
}

func (t *memoryTx) FindReservations(ctx context.Context, f ReservationFilter) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, r := range t.s.reservations {
		if f.matches(r) {
			if b, ok := t.s.books[r.BookID]; ok {
				r.Book = &b
			}
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if f.NewestFirst {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return t.s.seq[a.ID] < t.s.seq[b.ID]
	})
	return window(out, f.Limit, f.Offset), nil
}

func (t *memoryTx) CountReservations(ctx context.Context, f ReservationFilter) (int64, error) {
	var n int64
	for _, r := range t.s.reservations {
		if f.matches(r) {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) PendingBookIDs(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, r := range t.s.reservations {
		if r.Status == models.ReservationPending && !seen[r.BookID] {
			seen[r.BookID] = true
			ids = append(ids, r.BookID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func containsStatus[S ~string](list []S, s S) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func window[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
