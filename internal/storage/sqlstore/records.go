package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

const customerColumns = `id, owner_id, name, mobile, address, due_amount, advance_amount, net_balance, created_at, updated_at`

const transactionColumns = `id, owner_id, customer_id, type, amount, description, date, idempotency_key, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// timestamp scans TIMESTAMPTZ values as well as text written by EncodeTime.
type timestamp struct{ time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

func (t *timestamp) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = x.UTC()
		return nil
	case []byte:
		return t.parse(string(x))
	case string:
		return t.parse(x)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", v)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func scanCustomer(row rowScanner) (models.Customer, error) {
	var (
		c                  models.Customer
		due, advance, net  decimal.Decimal
		createdAt, updated timestamp
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Mobile, &c.Address,
		&due, &advance, &net, &createdAt, &updated); err != nil {
		return models.Customer{}, err
	}
	c.DueAmount, c.AdvanceAmount, c.NetBalance = due, advance, net
	c.CreatedAt, c.UpdatedAt = createdAt.Time, updated.Time
	return c, nil
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var (
		t               models.Transaction
		typ             string
		date, createdAt timestamp
		key             sql.NullString
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.CustomerID, &typ, &t.Amount,
		&t.Description, &date, &key, &createdAt); err != nil {
		return models.Transaction{}, err
	}
	parsed, err := models.ParseTransactionType(typ)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	t.Type = parsed
	t.Date, t.CreatedAt = date.Time, createdAt.Time
	t.IdempotencyKey = key.String
	return t, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
