package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sheikh-saqib/khata-ledger/internal/ledger"
	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

type createCustomerRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Mobile  string `json:"mobile" validate:"required,numeric,min=6,max=15"`
	Address string `json:"address" validate:"max=250"`
}

type updateCustomerRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=100"`
	Mobile  *string `json:"mobile" validate:"omitempty,numeric,min=6,max=15"`
	Address *string `json:"address" validate:"omitempty,max=250"`
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := s.decodeAndValidate(w, r, &req); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	c, err := s.ledger.CreateCustomer(r.Context(), ledger.NewCustomerRequest{
		OwnerID: ownerFrom(r.Context()),
		Name:    req.Name,
		Mobile:  req.Mobile,
		Address: req.Address,
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.ledger.ListCustomers(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if customers == nil {
		customers = []models.Customer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, ok := s.ownedCustomer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	c, ok := s.ownedCustomer(w, r)
	if !ok {
		return
	}

	var req updateCustomerRequest
	if err := s.decodeAndValidate(w, r, &req); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	updated, err := s.ledger.UpdateCustomer(r.Context(), c.ID, ledger.CustomerUpdate{
		Name:    req.Name,
		Mobile:  req.Mobile,
		Address: req.Address,
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	c, ok := s.ownedCustomer(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteCustomer(r.Context(), c.ID); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedCustomer loads the {id} customer and answers 404 unless it belongs
// to the requesting owner.
func (s *Server) ownedCustomer(w http.ResponseWriter, r *http.Request) (models.Customer, bool) {
	id := chi.URLParam(r, "id")
	c, err := s.ledger.GetCustomer(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return models.Customer{}, false
	}
	if c.OwnerID != ownerFrom(r.Context()) {
		writeError(w, http.StatusNotFound, "not_found", "customer not found: "+id)
		return models.Customer{}, false
	}
	return c, true
}
