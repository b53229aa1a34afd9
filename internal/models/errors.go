package models

import "errors"

// Sentinel errors shared by the engine, the stores and the transport layer.
// Callers match them with errors.Is; producers wrap them with context.
var (
	ErrValidation              = errors.New("validation failed")
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrDuplicateMobile         = errors.New("mobile number already registered")
	ErrCustomerHasTransactions = errors.New("customer has recorded transactions")
	ErrCommitFailure           = errors.New("ledger commit failed")
	ErrConflict                = errors.New("concurrent update conflict")
)
