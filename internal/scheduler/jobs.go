package scheduler

import (
	"context"
	"time"
)

const (
	JobOverdueLoans      = "overdue-loans"
	JobReservationExpiry = "reservation-expiry"
	JobLoanReminders     = "loan-reminders"
)

type LoanSweeper interface {
	CheckOverdueLoans(ctx context.Context) (int, error)
	DeliverDueReminders(ctx context.Context) (int, error)
}

type ReservationSweeper interface {
	ExpireReadyReservations(ctx context.Context) (int, error)
	ActivatePendingQueues(ctx context.Context) (int, error)
}

type Intervals struct {
	Overdue      time.Duration
	Reservations time.Duration
	Reminders    time.Duration
}

// RegisterLendingJobs adds the three lending sweepers. The reservation job
// hands freed copies to waiting queues right after expiring stale holds.
func RegisterLendingJobs(s *Scheduler, loans LoanSweeper, reservations ReservationSweeper, iv Intervals) error {
	if err := s.Add(JobOverdueLoans, iv.Overdue, true, loans.CheckOverdueLoans); err != nil {
		return err
	}
	err := s.Add(JobReservationExpiry, iv.Reservations, true, func(ctx context.Context) (int, error) {
		expired, err := reservations.ExpireReadyReservations(ctx)
		if err != nil {
			return expired, err
		}
		activated, err := reservations.ActivatePendingQueues(ctx)
		return expired + activated, err
	})
	if err != nil {
		return err
	}
	return s.Add(JobLoanReminders, iv.Reminders, false, loans.DeliverDueReminders)
}
