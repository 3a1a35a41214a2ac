package wallet

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInvalidAmount     = errors.New("amount must be positive")

	// ErrDuplicateReference signals that a transaction with the same
	// reference id was already applied. Callers treat it as a successful
	// no-op and use the prior transaction returned alongside it.
	ErrDuplicateReference = errors.New("reference already applied")
)
