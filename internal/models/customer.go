package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a person the owner lends to or receives money from.
// DueAmount and AdvanceAmount are only changed by the ledger engine.
type Customer struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"ownerId"`
	Name          string          `json:"name"`
	Mobile        string          `json:"mobile"`
	Address       string          `json:"address,omitempty"`
	DueAmount     decimal.Decimal `json:"dueAmount"`     // customer owes owner
	AdvanceAmount decimal.Decimal `json:"advanceAmount"` // owner owes customer
	NetBalance    decimal.Decimal `json:"netBalance"`    // AdvanceAmount - DueAmount
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// NewCustomer builds a customer with zero balances after checking the
// required fields. The caller assigns the identifier.
func NewCustomer(id, ownerID, name, mobile, address string, now time.Time) (Customer, error) {
	c := Customer{
		ID:            strings.TrimSpace(id),
		OwnerID:       strings.TrimSpace(ownerID),
		Name:          strings.TrimSpace(name),
		Mobile:        strings.TrimSpace(mobile),
		Address:       strings.TrimSpace(address),
		DueAmount:     decimal.Zero,
		AdvanceAmount: decimal.Zero,
		NetBalance:    decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.Validate(); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// RecomputeNet derives NetBalance from the two buckets.
func (c *Customer) RecomputeNet() {
	c.NetBalance = c.AdvanceAmount.Sub(c.DueAmount)
}

// Validate checks required fields and the balance invariant.
func (c Customer) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: customer id is required", ErrValidation)
	case c.OwnerID == "":
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	case c.Name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case c.Mobile == "":
		return fmt.Errorf("%w: mobile is required", ErrValidation)
	}
	return c.CheckBalance()
}

// CheckBalance reports a broken balance invariant: both buckets non-negative,
// at most one of them non-zero and the net equal to their difference.
func (c Customer) CheckBalance() error {
	if c.DueAmount.IsNegative() || c.AdvanceAmount.IsNegative() {
		return fmt.Errorf("%w: negative balance bucket (due=%s advance=%s)", ErrValidation, c.DueAmount, c.AdvanceAmount)
	}
	if c.DueAmount.IsPositive() && c.AdvanceAmount.IsPositive() {
		return fmt.Errorf("%w: due and advance both positive (due=%s advance=%s)", ErrValidation, c.DueAmount, c.AdvanceAmount)
	}
	if !c.NetBalance.Equal(c.AdvanceAmount.Sub(c.DueAmount)) {
		return fmt.Errorf("%w: net balance %s does not match advance-due", ErrValidation, c.NetBalance)
	}
	return nil
}
