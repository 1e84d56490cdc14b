// Package metrics exposes lending counters without tying services to a
// particular backend.
package metrics

import "time"

// Recorder receives lending events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// LoanEvent counts loan actions: borrowed, returned, extended, overdue, claimed.
	LoanEvent(action string)
	FineAssessed(amount float64)
	ReservationTransition(to string)
	SweepCompleted(job string, processed int, took time.Duration, err error)
	NotificationDropped()
}

type nop struct{}

// Nop discards everything.
func Nop() Recorder { return nop{} }

func (nop) LoanEvent(string)                                 {}
func (nop) FineAssessed(float64)                             {}
func (nop) ReservationTransition(string)                     {}
func (nop) SweepCompleted(string, int, time.Duration, error) {}
func (nop) NotificationDropped()                             {}
