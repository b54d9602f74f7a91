package httpapi

import (
	"net/http"
	"time"
)

func (h *handler) createVehicle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string
		Make     string
		Model    string
		Capacity int
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	v, err := h.app.Fleet.CreateVehicle(r.Context(), payload.Name, payload.Make, payload.Model, payload.Capacity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *handler) listVehicles(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Fleet.ListVehicles(r.Context(), queryBool(r, "include_inactive"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := h.app.Fleet.GetVehicle(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) updateVehicle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     *string
		Make     *string
		Model    *string
		Capacity *int
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	v, err := h.app.Fleet.UpdateVehicle(r.Context(), pathID(r), payload.Name, payload.Make, payload.Model, payload.Capacity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) deactivateVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := h.app.Fleet.DeactivateVehicle(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) reactivateVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := h.app.Fleet.ReactivateVehicle(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) createDriver(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  string
		Phone string
		Email string
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	d, err := h.app.Fleet.CreateDriver(r.Context(), payload.Name, payload.Phone, payload.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *handler) listDrivers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Fleet.ListDrivers(r.Context(), queryBool(r, "include_inactive"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getDriver(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Fleet.GetDriver(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) updateDriver(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  *string
		Phone *string
		Email *string
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	d, err := h.app.Fleet.UpdateDriver(r.Context(), pathID(r), payload.Name, payload.Phone, payload.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) deactivateDriver(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Fleet.DeactivateDriver(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) reactivateDriver(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Fleet.ReactivateDriver(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) listTimeCards(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, err)
		return
	}

	cards, err := h.app.Fleet.ListTimeCards(r.Context(), pathID(r), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *handler) clockIn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		At time.Time
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, err)
			return
		}
	}

	card, err := h.app.Fleet.ClockIn(r.Context(), pathID(r), payload.At)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (h *handler) clockOut(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		At           time.Time
		BreakMinutes int
		Notes        string
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, err)
			return
		}
	}

	card, err := h.app.Fleet.ClockOut(r.Context(), pathID(r), payload.At, payload.BreakMinutes, payload.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}
