package httpapi

import (
	"net/http"

	"github.com/walla-walla-travel/tourops/internal/app/domain/winery"
)

func (h *handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  string
		Email string
		Phone string
		Notes string
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.app.Customers.Create(r.Context(), payload.Name, payload.Email, payload.Phone, payload.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Customers.List(r.Context(), queryBool(r, "include_inactive"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Customers.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  *string
		Email *string
		Phone *string
		Notes *string
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.app.Customers.Update(r.Context(), pathID(r), payload.Name, payload.Email, payload.Phone, payload.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) deactivateCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Customers.Deactivate(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) reactivateCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Customers.Reactivate(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) createWinery(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name            string
		Region          string
		Address         string
		Phone           string
		TastingFeeCents int64
		MaxGroupSize    int
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.app.Wineries.Create(r.Context(), winery.Winery{
		Name:            payload.Name,
		Region:          payload.Region,
		Address:         payload.Address,
		Phone:           payload.Phone,
		TastingFeeCents: payload.TastingFeeCents,
		MaxGroupSize:    payload.MaxGroupSize,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listWineries(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Wineries.List(r.Context(), r.URL.Query().Get("region"), queryBool(r, "include_inactive"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getWinery(w http.ResponseWriter, r *http.Request) {
	wn, err := h.app.Wineries.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wn)
}

func (h *handler) updateWinery(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name            *string
		Region          *string
		Address         *string
		Phone           *string
		TastingFeeCents *int64
		MaxGroupSize    *int
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	wn, err := h.app.Wineries.Update(r.Context(), pathID(r),
		payload.Name, payload.Region, payload.Address, payload.Phone,
		payload.TastingFeeCents, payload.MaxGroupSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wn)
}

func (h *handler) deactivateWinery(w http.ResponseWriter, r *http.Request) {
	wn, err := h.app.Wineries.Deactivate(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wn)
}

func (h *handler) reactivateWinery(w http.ResponseWriter, r *http.Request) {
	wn, err := h.app.Wineries.Reactivate(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wn)
}
