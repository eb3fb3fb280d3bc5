package gateway

import (
	"context"

	"github.com/google/uuid"
)

// ChargeRequest describes one charge attempt against a stored payment method.
type ChargeRequest struct {
	SubscriptionID   uuid.UUID
	Amount           int64 // smallest currency unit
	Currency         string
	PaymentMethodRef string
}

// ChargeResult is the definitive outcome of a charge attempt. Declines are
// results, not errors: Succeeded false with a failure code. Errors are
// reserved for transport faults where no outcome is known.
type ChargeResult struct {
	Succeeded      bool
	TransactionRef string
	FailureCode    string
	FailureMessage string
}

// RefundRequest describes a full or partial refund of a prior transaction.
type RefundRequest struct {
	TransactionRef string
	Amount         int64
}

// RefundResult is the outcome of a refund attempt.
type RefundResult struct {
	Succeeded   bool
	RefundRef   string
	FailureCode string
}

// Gateway is the payment processor collaborator. The engine never talks a
// wire protocol directly; implementations live behind this interface and must
// return a definitive success/failure outcome for every call.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// Well-known failure codes surfaced in ChargeResult.FailureCode.
const (
	FailureCodeTimeout  = "timeout"
	FailureCodeDeclined = "declined"
)
