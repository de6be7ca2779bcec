package domain

import "errors"

var (
	ErrNotFound                  = errors.New("transaction not found")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrPreconditionFailed        = errors.New("precondition failed")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrDuplicateClaim            = errors.New("bank transfer claim already pending")
	ErrNoPendingClaim            = errors.New("no pending bank transfer claim")
	ErrConfirmationTimeout       = errors.New("payment confirmation timed out")
	ErrInvalidAmounts            = errors.New("invalid deal amounts")
	ErrInvalidRole               = errors.New("invalid role")
	ErrInvalidPhase              = errors.New("invalid payment phase")
	ErrListingNotFound           = errors.New("listing not found")
)
