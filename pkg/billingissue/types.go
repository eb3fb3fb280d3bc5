package billingissue

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a tracked billing anomaly.
type Type string

const (
	// TypeCardExpiring flags a payment method expiring inside the lookahead window.
	TypeCardExpiring Type = "card_expiring"
	// TypeRenewalOverdue flags a failed renewal whose retry time has passed
	// without a successful recovery.
	TypeRenewalOverdue Type = "renewal_overdue"
)

// Status of an issue record. Resolved issues are retained, never deleted.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// ResolutionStep is one entry in an issue's resolution history.
type ResolutionStep struct {
	Note string    `json:"note"`
	At   time.Time `json:"at"`
}

// Issue is a tracked billing anomaly requiring follow-up. At most one open
// issue exists per (subscription, type) pair; the detector deduplicates by
// querying for an existing open record before creating a new one.
type Issue struct {
	ID              uuid.UUID        `json:"id"`
	SubscriptionID  uuid.UUID        `json:"subscription_id"`
	Type            Type             `json:"type"`
	Status          Status           `json:"status"`
	Message         string           `json:"message"`
	ResolutionSteps []ResolutionStep `json:"resolution_steps,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
}

// Open reports whether the issue still needs follow-up.
func (i *Issue) Open() bool {
	return i.Status == StatusOpen
}
