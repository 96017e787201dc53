package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus represents the lifecycle state of a delivery task.
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "PENDING"
	DeliveryStatusSuccess DeliveryStatus = "SUCCESS"
	DeliveryStatusFailed  DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusSuccess, DeliveryStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether a delivery task has finished.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusSuccess || s == DeliveryStatusFailed
}

func ParseDeliveryStatusFromString(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}

// DeliveryRecord is the ledger row for one delivery task: one subscription,
// one event firing, 1..MaxAttempts HTTP tries. The row is created once before
// the first try and mutated in place after every try; it never turns into one
// row per attempt.
type DeliveryRecord struct {
	ID             string
	SubscriptionID string
	TenantID       string
	EventType      EventType
	Payload        string
	Status         DeliveryStatus
	ResponseCode   *int
	ResponseBody   *string
	LastError      *string
	Attempts       int
	CreatedAt      time.Time
	LastAttemptAt  *time.Time
}
