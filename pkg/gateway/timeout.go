package gateway

import (
	"context"
	"errors"
	"time"
)

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

// WithTimeout wraps a gateway so every call carries an explicit deadline.
// A timed-out charge is reported as a failed result with FailureCodeTimeout,
// the same shape as a decline, so a charge is never left "in flight" from the
// engine's point of view and is never retried within the same tick.
func WithTimeout(next Gateway, timeout time.Duration) Gateway {
	if next == nil {
		panic("gateway: wrapped gateway is required")
	}
	if timeout <= 0 {
		return next
	}
	return &timeoutGateway{next: next, timeout: timeout}
}

func (g *timeoutGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.next.Charge(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &ChargeResult{
				Succeeded:      false,
				FailureCode:    FailureCodeTimeout,
				FailureMessage: "charge timed out",
			}, nil
		}
		return nil, err
	}
	return result, nil
}

func (g *timeoutGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.next.Refund(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &RefundResult{Succeeded: false, FailureCode: FailureCodeTimeout}, nil
		}
		return nil, err
	}
	return result, nil
}
