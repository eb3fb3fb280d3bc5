package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current lifecycle state of a subscription.
type Status string

const (
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusTrialing          Status = "trialing"
	StatusActive            Status = "active"
	StatusPastDue           Status = "past_due"
	StatusPaused            Status = "paused"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
)

// allowedTransitions is the single source of truth for lifecycle edges.
// Canceled and incomplete_expired are terminal.
var allowedTransitions = map[Status][]Status{
	StatusIncomplete: {StatusTrialing, StatusActive, StatusIncompleteExpired, StatusCanceled},
	StatusTrialing:   {StatusActive, StatusPastDue, StatusCanceled},
	StatusActive:     {StatusPastDue, StatusPaused, StatusCanceled},
	StatusPastDue:    {StatusActive, StatusCanceled, StatusUnpaid},
	StatusPaused:     {StatusActive, StatusCanceled},
	StatusUnpaid:     {StatusActive, StatusCanceled},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing edges.
func (s Status) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// ModificationType classifies an entry in the modifications audit trail.
type ModificationType string

const (
	ModificationUpgrade   ModificationType = "upgrade"
	ModificationDowngrade ModificationType = "downgrade"
	ModificationCancel    ModificationType = "cancel"
	ModificationPause     ModificationType = "pause"
	ModificationResume    ModificationType = "resume"
)

// PaymentStatus is the outcome of one renewal attempt.
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentSkipped   PaymentStatus = "skipped"
)

// CreditType classifies a balance adjustment.
type CreditType string

const (
	CreditManual      CreditType = "manual"
	CreditPromotional CreditType = "promotional"
	CreditProration   CreditType = "proration"
)

// PaymentMethod is a snapshot of the customer's charge instrument: enough to
// detect an approaching expiry without re-querying the gateway.
type PaymentMethod struct {
	Ref      string `json:"ref"` // gateway's payment method reference
	Type     string `json:"type"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

// ExpiresAt returns the instant the payment method expires: the start of the
// month following its expiry month.
func (pm PaymentMethod) ExpiresAt() time.Time {
	if pm.ExpYear == 0 {
		return time.Time{}
	}
	return time.Date(pm.ExpYear, time.Month(pm.ExpMonth), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// ExpiresWithin reports whether the payment method expires inside the window
// starting at asOf. Already-expired methods report true.
func (pm PaymentMethod) ExpiresWithin(asOf time.Time, window time.Duration) bool {
	expiry := pm.ExpiresAt()
	if expiry.IsZero() {
		return false
	}
	return expiry.Before(asOf.Add(window))
}

// BillingInfo holds the billing contact and address.
type BillingInfo struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Usage tracks consumption counters with an alert threshold percentage.
type Usage struct {
	ProjectsUsed int64 `json:"projects_used"`
	StorageUsed  int64 `json:"storage_used"` // GB
	APICallsUsed int64 `json:"api_calls_used"`
	AlertAtPct   int   `json:"alert_at_pct"` // 0 disables alerts
}

// TransactionType classifies a payment transaction.
type TransactionType string

const (
	TransactionRenewal TransactionType = "renewal"
	TransactionSetup   TransactionType = "setup"
	TransactionRefund  TransactionType = "refund"
)

// TransactionStatus is a payment transaction outcome.
type TransactionStatus string

const (
	TransactionSucceeded TransactionStatus = "succeeded"
	TransactionFailed    TransactionStatus = "failed"
	TransactionRefunded  TransactionStatus = "refunded"
)

// PaymentTransaction records one attempted charge. Immutable once ProcessedAt is set.
type PaymentTransaction struct {
	ID             uuid.UUID         `json:"id"`
	SubscriptionID uuid.UUID         `json:"subscription_id"`
	Type           TransactionType   `json:"type"`
	Status         TransactionStatus `json:"status"`
	Amount         int64             `json:"amount"`
	Fee            int64             `json:"fee"`
	Net            int64             `json:"net"`
	Currency       string            `json:"currency"`
	GatewayRef     string            `json:"gateway_ref,omitempty"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	ProcessedAt    time.Time         `json:"processed_at"`
	CreatedAt      time.Time         `json:"created_at"`
}
