package gateway

import (
	"context"

	"github.com/google/uuid"
)

// Sandbox is a local Gateway implementation for development and tests. Every
// charge and refund succeeds with a generated reference, unless the payment
// method reference matches DeclineRef, which produces a decline result.
type Sandbox struct {
	// DeclineRef, when non-empty, makes charges against that payment method
	// reference fail with FailureCodeDeclined.
	DeclineRef string
}

// NewSandbox creates a Gateway that approves everything.
func NewSandbox() *Sandbox {
	return &Sandbox{}
}

func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.DeclineRef != "" && req.PaymentMethodRef == s.DeclineRef {
		return &ChargeResult{
			Succeeded:      false,
			FailureCode:    FailureCodeDeclined,
			FailureMessage: "card declined",
		}, nil
	}
	return &ChargeResult{
		Succeeded:      true,
		TransactionRef: "sandbox_" + uuid.NewString(),
	}, nil
}

func (s *Sandbox) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &RefundResult{
		Succeeded: true,
		RefundRef: "sandbox_refund_" + uuid.NewString(),
	}, nil
}
