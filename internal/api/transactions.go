package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/khata-ledger/internal/ledger"
	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

type applyTransactionRequest struct {
	Type        string          `json:"type" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"positive_decimal"`
	Description string          `json:"description" validate:"max=500"`
	Date        *time.Time      `json:"date"`
}

type applyTransactionResponse struct {
	Transaction models.Transaction `json:"transaction"`
	Customer    models.Customer    `json:"customer"`
	Replayed    bool               `json:"replayed"`
}

func (s *Server) handleApplyTransaction(w http.ResponseWriter, r *http.Request) {
	c, ok := s.ownedCustomer(w, r)
	if !ok {
		return
	}

	var req applyTransactionRequest
	if err := s.decodeAndValidate(w, r, &req); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	typ, err := models.ParseTransactionType(req.Type)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	apply := ledger.ApplyRequest{
		CustomerID:     c.ID,
		Type:           typ,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
	}
	if req.Date != nil {
		apply.Date = *req.Date
	}

	res, err := s.ledger.ApplyTransaction(r.Context(), apply)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, applyTransactionResponse{
		Transaction: res.Transaction,
		Customer:    res.Customer,
		Replayed:    res.Replayed,
	})
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	c, ok := s.ownedCustomer(w, r)
	if !ok {
		return
	}

	stmt, err := s.ledger.GetTransactionsForCustomer(r.Context(), c.ID)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if stmt.NoTransactions() {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":      errorBody{Message: "no transactions found for this customer", Type: "not_found"},
			"netBalance": stmt.NetBalance,
		})
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}
