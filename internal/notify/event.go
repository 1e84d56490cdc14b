package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventType defines the type of notification
type EventType string

const (
	LoanReminder        EventType = "loan-reminder"
	OverdueNotification EventType = "overdue-notification"
	FineNotification    EventType = "fine-notification"
	ReservationReady    EventType = "reservation-ready"
	ReservationExpired  EventType = "reservation-expired"
	SystemMessage       EventType = "system-message"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is what the lending engines emit. An empty UserID broadcasts.
type Event struct {
	Type      EventType      `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (e Event) Broadcast() bool {
	return e.UserID == ""
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// DueDateKey and LoanIDKey are the Data fields a loan-reminder carries.
const (
	LoanIDKey  = "loan_id"
	DueDateKey = "due_date"
)

func NewLoanReminder(userID, loanID, bookTitle string, dueDate time.Time) Event {
	return Event{
		Type:     LoanReminder,
		UserID:   userID,
		Title:    "Loan due soon",
		Message:  fmt.Sprintf("%q is due on %s", bookTitle, dueDate.Format("2006-01-02")),
		Severity: SeverityInfo,
		Data: map[string]any{
			"loan_id":  loanID,
			"due_date": dueDate.UTC().Format(time.RFC3339),
		},
		Timestamp: time.Now(),
	}
}

func NewOverdueNotification(userID, loanID, bookTitle string, dueDate time.Time) Event {
	return Event{
		Type:     OverdueNotification,
		UserID:   userID,
		Title:    "Loan overdue",
		Message:  fmt.Sprintf("%q was due on %s. Please return it as soon as possible", bookTitle, dueDate.Format("2006-01-02")),
		Severity: SeverityWarning,
		Data: map[string]any{
			"loan_id":  loanID,
			"due_date": dueDate.UTC().Format(time.RFC3339),
		},
		Timestamp: time.Now(),
	}
}

func NewFineNotification(userID, loanID, fineID, bookTitle string, amount decimal.Decimal, daysOverdue int) Event {
	return Event{
		Type:     FineNotification,
		UserID:   userID,
		Title:    "Fine issued",
		Message:  fmt.Sprintf("A fine of %s was issued for returning %q %d day(s) late", amount.StringFixed(2), bookTitle, daysOverdue),
		Severity: SeverityWarning,
		Data: map[string]any{
			"loan_id":      loanID,
			"fine_id":      fineID,
			"amount":       amount.String(),
			"days_overdue": daysOverdue,
		},
		Timestamp: time.Now(),
	}
}

func NewReservationReady(userID, reservationID, bookTitle string, expiry time.Time) Event {
	return Event{
		Type:     ReservationReady,
		UserID:   userID,
		Title:    "Reservation ready",
		Message:  fmt.Sprintf("%q is ready for pickup until %s", bookTitle, expiry.Format("2006-01-02 15:04")),
		Severity: SeverityInfo,
		Data: map[string]any{
			"reservation_id": reservationID,
			"expiry_date":    expiry.UTC().Format(time.RFC3339),
		},
		Timestamp: time.Now(),
	}
}

func NewReservationExpired(userID, reservationID, bookTitle string) Event {
	return Event{
		Type:     ReservationExpired,
		UserID:   userID,
		Title:    "Reservation expired",
		Message:  fmt.Sprintf("Your hold on %q has expired", bookTitle),
		Severity: SeverityInfo,
		Data: map[string]any{
			"reservation_id": reservationID,
		},
		Timestamp: time.Now(),
	}
}

// NewSystemMessage broadcasts to every connected user.
func NewSystemMessage(title, message string) Event {
	return Event{
		Type:      SystemMessage,
		Title:     title,
		Message:   message,
		Severity:  SeverityInfo,
		Timestamp: time.Now(),
	}
}
