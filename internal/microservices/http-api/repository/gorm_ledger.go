package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"libraryhub/internal/microservices/http-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormLedger struct {
	db     *gorm.DB
	logger *slog.Logger
	retry  retryPolicy
}

// NewGormLedger backs the ledger with a relational database. Units of work
// that hit a serialization conflict or deadlock are replayed.
func NewGormLedger(db *gorm.DB, logger *slog.Logger) Ledger {
	return &gormLedger{db: db, logger: logger, retry: defaultRetryPolicy()}
}

func (l *gormLedger) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	return retryWithBackoff(ctx, l.retry, l.logger, "within_tx", func(ctx context.Context) error {
		return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&gormTx{db: tx})
		})
	})
}

func (l *gormLedger) View(ctx context.Context, fn func(tx LedgerTx) error) error {
	return fn(&gormTx{db: l.db.WithContext(ctx), readOnly: true})
}

type gormTx struct {
	db       *gorm.DB
	readOnly bool
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (t *gormTx) write() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *gormTx) locked() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// --- users ---

func (t *gormTx) CreateUser(ctx context.Context, user *models.User) error {
	if err := t.write(); err != nil {
		return err
	}
	if err := t.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (t *gormTx) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := t.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (t *gormTx) SaveUser(ctx context.Context, user *models.User) error {
	if err := t.write(); err != nil {
		return err
	}
	if err := t.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// --- books ---

func (t *gormTx) CreateBook(ctx context.Context, book *models.Book) error {
	if err := t.write(); err != nil {
		return err
	}
	if err := t.db.WithContext(ctx).Create(book).Error; err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

func (t *gormTx) GetBook(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	if err := t.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &book, nil
}

func (t *gormTx) GetBookForUpdate(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	if err := t.locked().WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &book, nil
}

func (t *gormTx) SaveBook(ctx context.Context, book *models.Book) error {
	if err := t.write(); err != nil {
		return err
	}
	if err := t.db.WithContext(ctx).Save(book).Error; err != nil {
		return fmt.Errorf("save book: %w", err)
	}
	return nil
}

// --- loans ---

func (t *gormTx) CreateLoan(ctx context.Context, loan *models.Loan) error {
	if err := t.write(); err != nil {
		return err
	}
	if err := t.db.WithContext(ctx).Omit(clause.Associations).Create(loan).Error; err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	return nil
}

func (t *gormTx) GetLoan(ctx context.Context, id string) (*models.Loan, error) {
	var loan models.Loan
	if err := t.db.WithContext(ctx).Preload("Book").First(&loan, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &loan, nil
}

func (t *gormTx) GetLoanForUpdate(ctx context.Context, id string) (*models.Loan, error) {
	var loan models.Loan
	if err := t.locked().WithContext(ctx).First(&loan, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &loan, nil
}

func (t *gormTx) SaveLoan(ctx context.Context, loan *models.Loan) error {
	if err := t.write(); err != nil {
		return err
	}
	if err := t.db.WithContext(ctx).Omit(clause.Associations).Save(loan).Error; err != nil {
		return fmt.Errorf("save loan: %w", err)
	}
	return nil
}

func (t *gormTx) loanQuery(ctx context.Context, f LoanFilter) *gorm.DB {
	q := t.db.WithContext(ctx).Model(&models.Loan{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.BookID != "" {
		q = q.Where("book_id = ?", f.BookID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if !f.DueBefore.IsZero() {
		q = q.Where("due_date < ?", f.DueBefore)
	}
	return q
}

func (t *gormTx) FindLoans(ctx context.Context, f LoanFilter) ([]models.Loan, error) {
	var loans []models.Loan
	q := t.loanQuery(ctx, f).Preload("Book").Order("borrow_date DESC")
	q = paginate(q, f.Limit, f.Offset)
	if err := q.Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("find loans: %w", err)
	}
	return loans, nil
}

func (t *gormTx) CountLoans(ctx context.Context, f LoanFilter) (int64, error) {
	var count int64
	if err := t.loanQuery(ctx, f).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count loans: %w", err)
	}
	return count, nil
}

// --- fines ---

func (t *gormTx) CreateFine(ctx context.Context, fine *models.Fine) error {
	if err := t.write(); err != nil {
		return err
	}
	if err := t.db.WithContext(ctx).Create(fine).Error; err != nil {
		return fmt.Errorf("create fine: %w", err)
	}
	return nil
}

func (t *gormTx) GetFineForUpdate(ctx context.Context, id string) (*models.Fine, error) {
	var fine models.Fine
	if err := t.locked().WithContext(ctx).First(&fine, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &fine, nil
}

func (t *gormTx) SaveFine(ctx context.Context, fine *models.Fine) error {
	if err := t.write(); err != nil {
		return err
	}
	if err := t.db.WithContext(ctx).Save(fine).Error; err != nil {
		return fmt.Errorf("save fine: %w", err)
	}
	return nil
}

func (t *gormTx) fineQuery(ctx context.Context, f FineFilter) *gorm.DB {
	q := t.db.WithContext(ctx).Model(&models.Fine{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	return q
}

func (t *gormTx) FindFines(ctx context.Context, f FineFilter) ([]models.Fine, error) {
	var fines []models.Fine
	q := paginate(t.fineQuery(ctx, f).Order("created_at DESC"), f.Limit, f.Offset)
	if err := q.Find(&fines).Error; err != nil {
		return nil, fmt.Errorf("find fines: %w", err)
	}
	return fines, nil
}

func (t *gormTx) CountFines(ctx context.Context, f FineFilter) (int64, error) {
	var count int64
	if err := t.fineQuery(ctx, f).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count fines: %w", err)
	}
	return count, nil
}

// --- reservations ---

func (t *gormTx) CreateReservation(ctx context.Context, r *models.Reservation) error {
	if err := t.write(); err != nil {
		return err
	}
	if err := t.db.WithContext(ctx).Omit(clause.Associations).Create(r).Error; err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (t *gormTx) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	var r models.Reservation
	if err := t.db.WithContext(ctx).Preload("Book").First(&r, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (t *gormTx) GetReservationForUpdate(ctx context.Context, id string) (*models.Reservation, error) {
	var r models.Reservation
	if err := t.locked().WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (t *gormTx) SaveReservation(ctx context.Context, r *models.Reservation) error {
	if err := t.write(); err != nil {
		return err
	}
	if err := t.db.WithContext(ctx).Omit(clause.Associations).Save(r).Error; err != nil {
		return fmt.Errorf("save reservation: %w", err)
	}
	return nil
}

func (t *gormTx) reservationQuery(ctx context.Context, f ReservationFilter) *gorm.DB {
	q := t.db.WithContext(ctx).Model(&models.Reservation{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.BookID != "" {
		q = q.Where("book_id = ?", f.BookID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if !f.ExpiresBefore.IsZero() {
		q = q.Where("expiry_date < ?", f.ExpiresBefore)
	}
	return q
}

func (t *gormTx) FindReservations(ctx context.Context, f ReservationFilter) ([]models.Reservation, error) {
	var rs []models.Reservation
	q := t.reservationQuery(ctx, f).Preload("Book")
	if f.NewestFirst {
		q = q.Order("created_at DESC").Order("id DESC")
	} else {
		q = q.Order("created_at ASC").Order("id ASC")
	}
	q = paginate(q, f.Limit, f.Offset)
	if err := q.Find(&rs).Error; err != nil {
		return nil, fmt.Errorf("find reservations: %w", err)
	}
	return rs, nil
}

func (t *gormTx) CountReservations(ctx context.Context, f ReservationFilter) (int64, error) {
	var count int64
	if err := t.reservationQuery(ctx, f).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return count, nil
}

func (t *gormTx) PendingBookIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := t.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("status = ?", models.ReservationPending).
		Distinct().
		Pluck("book_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("pending book ids: %w", err)
	}
	return ids, nil
}

func paginate(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}
