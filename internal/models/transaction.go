package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money between owner and customer.
type TransactionType string

const (
	// TransactionGiven means the owner gave money (or goods on credit) to the customer.
	TransactionGiven TransactionType = "given"
	// TransactionReceived means the owner received money from the customer.
	TransactionReceived TransactionType = "received"
)

// ParseTransactionType accepts the two known directions, case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToLower(strings.TrimSpace(s))); t {
	case TransactionGiven, TransactionReceived:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown transaction type %q", ErrValidation, s)
	}
}

// Valid reports whether t is one of the known directions.
func (t TransactionType) Valid() bool {
	return t == TransactionGiven || t == TransactionReceived
}

const (
	// AmountScale is the most decimal places an amount may carry.
	AmountScale = 4
	// MaxAmountDigits bounds the digits before the decimal point.
	MaxAmountDigits = 15
)

// CheckAmount reports whether d is a positive amount within the precision
// every store can hold. It looks only at the coefficient and exponent, so
// oversized input is refused without rescaling it.
func CheckAmount(d decimal.Decimal) error {
	switch {
	case !d.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	case int64(d.Exponent()) < -AmountScale:
		return fmt.Errorf("%w: amount must have at most %d decimal places", ErrValidation, AmountScale)
	case int64(d.NumDigits())+int64(d.Exponent()) > MaxAmountDigits:
		return fmt.Errorf("%w: amount must have at most %d digits before the decimal point", ErrValidation, MaxAmountDigits)
	}
	return nil
}

// Transaction is an append-only record of money moving between an owner
// and one of their customers.
type Transaction struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"ownerId"`
	CustomerID     string          `json:"customerId"`
	Type           TransactionType `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
	Date           time.Time       `json:"date"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Validate checks a transaction before it is handed to a store.
func (t Transaction) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: transaction id is required", ErrValidation)
	case t.OwnerID == "":
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	case t.CustomerID == "":
		return fmt.Errorf("%w: customer id is required", ErrValidation)
	case !t.Type.Valid():
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, t.Type)
	}
	return CheckAmount(t.Amount)
}
