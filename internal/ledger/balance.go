package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

// reconcile returns c with amount applied by the priority-offset rule: money
// given first drains the customer's advance before adding to what they owe,
// money received first clears what they owe before building an advance.
// The result never has both buckets positive.
func reconcile(c models.Customer, typ models.TransactionType, amount decimal.Decimal) (models.Customer, error) {
	switch typ {
	case models.TransactionGiven:
		c.AdvanceAmount, c.DueAmount = offset(c.AdvanceAmount, c.DueAmount, amount)
	case models.TransactionReceived:
		c.DueAmount, c.AdvanceAmount = offset(c.DueAmount, c.AdvanceAmount, amount)
	default:
		return c, fmt.Errorf("%w: unknown transaction type %q", models.ErrValidation, typ)
	}
	c.RecomputeNet()

	if err := c.CheckBalance(); err != nil {
		return c, fmt.Errorf("customer %s: %w", c.ID, err)
	}
	return c, nil
}

// offset takes amount out of opposing first and carries the rest into own.
func offset(opposing, own, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if opposing.GreaterThanOrEqual(amount) {
		return opposing.Sub(amount), own
	}
	return decimal.Zero, own.Add(amount.Sub(opposing))
}
