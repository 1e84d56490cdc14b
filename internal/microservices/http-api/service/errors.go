package service

import (
	"errors"

	"libraryhub/internal/microservices/http-api/repository"
)

// Error kinds. Every domain error unwraps to exactly one of them.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
)

// Error is a caller-facing failure with a stable code.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func notFoundError(code, message string) *Error {
	return &Error{Kind: ErrNotFound, Code: code, Message: message}
}

func invalidStateError(code, message string) *Error {
	return &Error{Kind: ErrInvalidState, Code: code, Message: message}
}

var (
	ErrUserOrBookNotFound    = notFoundError("USER_OR_BOOK_NOT_FOUND", "user or book not found")
	ErrUserNotFound          = notFoundError("USER_NOT_FOUND", "user not found")
	ErrBookNotFound          = notFoundError("BOOK_NOT_FOUND", "book not found")
	ErrLoanNotFound          = notFoundError("LOAN_NOT_FOUND", "loan not found")
	ErrReservationNotFound   = notFoundError("RESERVATION_NOT_FOUND", "reservation not found")
	ErrFineNotFound          = notFoundError("FINE_NOT_FOUND", "fine not found")
	ErrNotificationNotFound  = notFoundError("NOTIFICATION_NOT_FOUND", "notification not found or already read")
	ErrAccountInactive       = invalidStateError("ACCOUNT_NOT_ACTIVE", "account not active")
	ErrOverdueOutstanding    = invalidStateError("OVERDUE_BOOKS_OUTSTANDING", "overdue books outstanding")
	ErrUnpaidFines           = invalidStateError("UNPAID_FINES", "unpaid fines")
	ErrNotAvailable          = invalidStateError("BOOK_NOT_AVAILABLE", "not available")
	ErrAlreadyBorrowed       = invalidStateError("ALREADY_BORROWED", "already borrowed")
	ErrAlreadyReturned       = invalidStateError("ALREADY_RETURNED", "already returned")
	ErrLoanNotExtendable     = invalidStateError("LOAN_NOT_EXTENDABLE", "only active loans extendable")
	ErrInvalidExtension      = invalidStateError("INVALID_EXTENSION", "extension days out of range")
	ErrDuplicateReservation  = invalidStateError("DUPLICATE_RESERVATION", "an active reservation for this book already exists")
	ErrBookOnLoan            = invalidStateError("BOOK_ALREADY_ON_LOAN", "book is currently on loan to this user")
	ErrReservationClosed     = invalidStateError("RESERVATION_CLOSED", "reservation is already closed")
	ErrReservationNotReady   = invalidStateError("RESERVATION_NOT_READY", "reservation is not ready for pickup")
	ErrUnsupportedTransition = invalidStateError("UNSUPPORTED_STATUS_CHANGE", "unsupported status change")
	ErrNoCopiesForReady      = invalidStateError("NO_AVAILABLE_COPIES", "no available copies to mark as ready")
	ErrFineNotPending        = invalidStateError("FINE_NOT_PENDING", "fine is not pending")
	ErrInvalidBook           = invalidStateError("INVALID_BOOK", "total copies must not be negative")
)

// orNotFound swaps a missing-row error for the domain error.
func orNotFound(err error, target *Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}

// AsError extracts the domain error, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
