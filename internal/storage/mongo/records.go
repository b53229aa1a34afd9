package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

// customerDoc is the stored shape of a customer. TxSeq numbers the
// customer's transactions in insertion order.
type customerDoc struct {
	ID            string               `bson:"_id"`
	OwnerID       string               `bson:"owner_id"`
	Name          string               `bson:"name"`
	Mobile        string               `bson:"mobile"`
	Address       string               `bson:"address"`
	DueAmount     primitive.Decimal128 `bson:"due_amount"`
	AdvanceAmount primitive.Decimal128 `bson:"advance_amount"`
	NetBalance    primitive.Decimal128 `bson:"net_balance"`
	TxSeq         int64                `bson:"tx_seq"`
	CreatedAt     time.Time            `bson:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at"`
}

type transactionDoc struct {
	ID             string               `bson:"_id"`
	Seq            int64                `bson:"seq"`
	OwnerID        string               `bson:"owner_id"`
	CustomerID     string               `bson:"customer_id"`
	Type           string               `bson:"type"`
	Amount         primitive.Decimal128 `bson:"amount"`
	Description    string               `bson:"description"`
	Date           time.Time            `bson:"date"`
	IdempotencyKey string               `bson:"idempotency_key,omitempty"`
	CreatedAt      time.Time            `bson:"created_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode amount %s: %w", v, err)
	}
	return d, nil
}

func newCustomerDoc(c models.Customer) (customerDoc, error) {
	doc := customerDoc{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Name:      c.Name,
		Mobile:    c.Mobile,
		Address:   c.Address,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
	var err error
	if doc.DueAmount, err = toDecimal128(c.DueAmount); err != nil {
		return customerDoc{}, err
	}
	if doc.AdvanceAmount, err = toDecimal128(c.AdvanceAmount); err != nil {
		return customerDoc{}, err
	}
	if doc.NetBalance, err = toDecimal128(c.NetBalance); err != nil {
		return customerDoc{}, err
	}
	return doc, nil
}

func (d customerDoc) model() (models.Customer, error) {
	c := models.Customer{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Name:      d.Name,
		Mobile:    d.Mobile,
		Address:   d.Address,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	var err error
	if c.DueAmount, err = fromDecimal128(d.DueAmount); err != nil {
		return models.Customer{}, err
	}
	if c.AdvanceAmount, err = fromDecimal128(d.AdvanceAmount); err != nil {
		return models.Customer{}, err
	}
	if c.NetBalance, err = fromDecimal128(d.NetBalance); err != nil {
		return models.Customer{}, err
	}
	return c, nil
}

func newTransactionDoc(t models.Transaction, seq int64) (transactionDoc, error) {
	amount, err := toDecimal128(t.Amount)
	if err != nil {
		return transactionDoc{}, err
	}
	return transactionDoc{
		ID:             t.ID,
		Seq:            seq,
		OwnerID:        t.OwnerID,
		CustomerID:     t.CustomerID,
		Type:           string(t.Type),
		Amount:         amount,
		Description:    t.Description,
		Date:           t.Date.UTC(),
		IdempotencyKey: t.IdempotencyKey,
		CreatedAt:      t.CreatedAt.UTC(),
	}, nil
}

func (d transactionDoc) model() (models.Transaction, error) {
	typ, err := models.ParseTransactionType(d.Type)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", d.ID, err)
	}
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return models.Transaction{}, err
	}
	return models.Transaction{
		ID:             d.ID,
		OwnerID:        d.OwnerID,
		CustomerID:     d.CustomerID,
		Type:           typ,
		Amount:         amount,
		Description:    d.Description,
		Date:           d.Date.UTC(),
		IdempotencyKey: d.IdempotencyKey,
		CreatedAt:      d.CreatedAt.UTC(),
	}, nil
}
