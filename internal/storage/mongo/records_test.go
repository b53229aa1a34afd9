package mongo

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

func TestDecimal128RoundTrip(t *testing.T) {
	for _, s := range []string{"0", "100", "100.50", "0.01", "123456789.123456"} {
		d := decimal.RequireFromString(s)
		v, err := toDecimal128(d)
		require.NoError(t, err)

		back, err := fromDecimal128(v)
		require.NoError(t, err)
		assert.True(t, d.Equal(back), "%s came back as %s", s, back)
	}
}

func TestCustomerDoc(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	c, err := models.NewCustomer("c1", "owner-1", "Ravi", "9000000001", "Market Road", now)
	require.NoError(t, err)
	c.DueAmount = decimal.RequireFromString("30.25")
	c.RecomputeNet()

	doc, err := newCustomerDoc(c)
	require.NoError(t, err)
	assert.Equal(t, "c1", doc.ID)
	assert.Equal(t, "30.25", doc.DueAmount.String())

	back, err := doc.model()
	require.NoError(t, err)
	assert.Equal(t, c.Mobile, back.Mobile)
	assert.True(t, back.NetBalance.Equal(decimal.RequireFromString("-30.25")))
	assert.True(t, back.CreatedAt.Equal(now))
}

func TestTransactionDoc(t *testing.T) {
	tx := models.Transaction{
		ID:         "t1",
		OwnerID:    "owner-1",
		CustomerID: "c1",
		Type:       models.TransactionReceived,
		Amount:     decimal.NewFromInt(50),
		Date:       time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	}
	doc, err := newTransactionDoc(tx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), doc.Seq)
	assert.Equal(t, "received", doc.Type)
	assert.Empty(t, doc.IdempotencyKey)

	back, err := doc.model()
	require.NoError(t, err)
	assert.Equal(t, models.TransactionReceived, back.Type)
	assert.True(t, back.Amount.Equal(tx.Amount))

	doc.Type = "refund"
	_, err = doc.model()
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestIsWriteConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"write conflict code", mongo.CommandError{Code: writeConflict, Message: "WriteConflict"}, true},
		{"transient label", mongo.CommandError{Code: 251, Labels: []string{transientTxnLabel}}, true},
		{"wrapped", fmt.Errorf("insert transaction: %w", mongo.CommandError{Code: writeConflict}), true},
		{"other command error", mongo.CommandError{Code: 2, Message: "BadValue"}, false},
		{"not a server error", assert.AnError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isWriteConflict(tt.err))
		})
	}
}

func TestIsDuplicateMobile(t *testing.T) {
	dup := func(index string) error {
		return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
			Code:    11000,
			Message: "E11000 duplicate key error collection: khata.customers index: " + index + " dup key: { : \"9000000001\" }",
		}}}
	}

	assert.True(t, isDuplicateMobile(dup(mobileIndex)))
	assert.True(t, isDuplicateMobile(fmt.Errorf("insert customer: %w", dup(mobileIndex))))
	assert.False(t, isDuplicateMobile(dup("_id_")))
	assert.False(t, isDuplicateMobile(assert.AnError))
}
