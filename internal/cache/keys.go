package cache

import (
	"fmt"

	"libraryhub/internal/microservices/http-api/models"
)

const (
	allStatuses  = "all"
	LoanStatsKey = "loans:statistics"
)

func BookKey(bookID string) string {
	return fmt.Sprintf("book:%s", bookID)
}

// LoanListKey addresses one user's loan list; empty status means all.
func LoanListKey(userID string, status models.LoanStatus) string {
	s := string(status)
	if s == "" {
		s = allStatuses
	}
	return fmt.Sprintf("loans:user:%s:%s", userID, s)
}

func ReservationListKey(userID string, status models.ReservationStatus) string {
	s := string(status)
	if s == "" {
		s = allStatuses
	}
	return fmt.Sprintf("reservations:user:%s:%s", userID, s)
}

// LoanKeys is every key a loan mutation for userID can make stale.
func LoanKeys(userID string) []string {
	keys := []string{LoanListKey(userID, ""), LoanStatsKey}
	for _, s := range models.LoanStatuses {
		keys = append(keys, LoanListKey(userID, s))
	}
	return keys
}

// ReservationKeys is every key a reservation mutation for userID can make stale.
func ReservationKeys(userID string) []string {
	keys := []string{ReservationListKey(userID, "")}
	for _, s := range models.ReservationStatuses {
		keys = append(keys, ReservationListKey(userID, s))
	}
	return keys
}

// KeySet collects keys without duplicates, keeping first-seen order.
type KeySet struct {
	seen map[string]struct{}
	keys []string
}

func (k *KeySet) Add(keys ...string) *KeySet {
	if k.seen == nil {
		k.seen = map[string]struct{}{}
	}
	for _, key := range keys {
		if _, ok := k.seen[key]; ok {
			continue
		}
		k.seen[key] = struct{}{}
		k.keys = append(k.keys, key)
	}
	return k
}

func (k *KeySet) Keys() []string {
	return k.keys
}
