package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/walla-walla-travel/tourops/internal/app/domain/invoice"
	"github.com/walla-walla-travel/tourops/internal/app/domain/proposal"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
	"github.com/walla-walla-travel/tourops/internal/logging"
	"github.com/walla-walla-travel/tourops/internal/pricing"
)

func (h *handler) createProposal(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CustomerID string
		Quote      pricing.QuoteRequest
		Message    string
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.app.Proposals.CreateDraft(r.Context(), payload.CustomerID, payload.Quote, payload.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) listProposals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.app.Proposals.List(r.Context(), q.Get("customer_id"), proposal.Status(q.Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Proposals.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) updateProposal(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Quote   *pricing.QuoteRequest
		Message *string
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.app.Proposals.UpdateDraft(r.Context(), pathID(r), payload.Quote, payload.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) sendProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Proposals.Send(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) acceptProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Proposals.Accept(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) declineProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Proposals.Decline(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// proposalByToken is the public customer view; it marks the proposal viewed.
func (h *handler) proposalByToken(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Proposals.ViewByToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// createInvoice drafts from a booking when BookingID is set, otherwise
// from explicit line items.
func (h *handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		BookingID  string
		CustomerID string
		Items      []pricing.LineItem
		Memo       string
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	var (
		inv invoice.Invoice
		err error
	)
	switch {
	case payload.BookingID != "" && payload.CustomerID != "":
		err = apperrors.Validation("provide either BookingID or CustomerID with Items, not both")
	case payload.BookingID != "":
		inv, err = h.app.Invoices.CreateFromBooking(r.Context(), payload.BookingID, payload.Memo)
	default:
		inv, err = h.app.Invoices.CreateFromItems(r.Context(), payload.CustomerID, payload.Items, payload.Memo)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if number := q.Get("number"); number != "" {
		inv, err := h.app.Invoices.GetByNumber(r.Context(), number)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, []invoice.Invoice{inv})
		return
	}

	list, err := h.app.Invoices.List(r.Context(), q.Get("customer_id"), invoice.Status(q.Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.app.Invoices.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Memo  *string
		Items *[]pricing.LineItem
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	inv, err := h.app.Invoices.UpdateDraft(r.Context(), pathID(r), payload.Memo, payload.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *handler) sendInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.app.Invoices.Send(r.Context(), pathID(r), logging.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *handler) acceptInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.app.Invoices.Accept(r.Context(), pathID(r), logging.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// invoiceEvents returns the transition log; summaries by default, full
// snapshots with ?full=true.
func (h *handler) invoiceEvents(w http.ResponseWriter, r *http.Request) {
	if queryBool(r, "full") {
		evts, err := h.app.Invoices.History(r.Context(), pathID(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, evts)
		return
	}

	summaries, err := h.app.Invoices.HistorySummaries(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// invoiceByToken is the public customer view; it marks the invoice viewed.
func (h *handler) invoiceByToken(w http.ResponseWriter, r *http.Request) {
	inv, err := h.app.Invoices.ViewByToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
