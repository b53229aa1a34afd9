package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

// statusFor maps ledger errors to HTTP status codes and error types.
// Conflicts are checked before commit failures: a lost race carries both.
// Commit failures are checked before context errors, so a lock wait that
// timed out is a 500 like any other failed unit.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, models.ErrCustomerNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrDuplicateMobile):
		return http.StatusConflict, "duplicate_mobile"
	case errors.Is(err, models.ErrCustomerHasTransactions):
		return http.StatusConflict, "customer_has_transactions"
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, models.ErrCommitFailure):
		return http.StatusInternalServerError, "internal_error"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeLedgerError writes err with its mapped status. Internal details of
// server-side failures are logged, not returned.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("ledger call failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("type", errType),
			zap.Error(err))
		msg = http.StatusText(status)
	}
	writeError(w, status, errType, msg)
}
