package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecordedTopic is the default topic for TransactionRecorded events.
const TransactionRecordedTopic = "khata.transaction_recorded"

// TransactionRecorded is emitted after a transaction and the customer's new
// balance have been committed together.
type TransactionRecorded struct {
	TransactionID string          `json:"transaction_id"`
	OwnerID       string          `json:"owner_id"`
	CustomerID    string          `json:"customer_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	DueAmount     decimal.Decimal `json:"due_amount"`
	AdvanceAmount decimal.Decimal `json:"advance_amount"`
	NetBalance    decimal.Decimal `json:"net_balance"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
