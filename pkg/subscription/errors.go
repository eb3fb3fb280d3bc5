package subscription

import "errors"

var (
	ErrNotFound               = errors.New("subscription not found")
	ErrAlreadyExists          = errors.New("subscription already exists")
	ErrInvalidStateTransition = errors.New("invalid subscription state transition")
	ErrAlreadyInState         = errors.New("subscription already in requested state")
	ErrVersionConflict        = errors.New("subscription modified concurrently")
	ErrInvalidPeriod          = errors.New("subscription period start must precede period end")
	ErrInvalidTier            = errors.New("unknown subscription tier")
	ErrSameTier               = errors.New("subscription already on requested tier")
	ErrInvalidCreditAmount    = errors.New("credit amount must be positive")
	ErrTransactionNotFound    = errors.New("payment transaction not found")
)
