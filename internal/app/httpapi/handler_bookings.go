package httpapi

import (
	"net/http"

	"github.com/walla-walla-travel/tourops/internal/app/domain/booking"
	"github.com/walla-walla-travel/tourops/internal/app/services/bookings"
)

func (h *handler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req bookings.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	b, err := h.app.Bookings.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *handler) listBookings(w http.ResponseWriter, r *http.Request) {
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

	q := r.URL.Query()
	list, err := h.app.Bookings.List(r.Context(), q.Get("customer_id"), booking.Status(q.Get("status")), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.app.Bookings.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handler) updateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookings.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	b, err := h.app.Bookings.Update(r.Context(), pathID(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handler) assignVehicle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		VehicleID string
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	b, err := h.app.Bookings.AssignVehicle(r.Context(), pathID(r), payload.VehicleID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handler) assignDriver(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DriverID string
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	b, err := h.app.Bookings.AssignDriver(r.Context(), pathID(r), payload.DriverID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handler) confirmBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.app.Bookings.Confirm(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handler) completeBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.app.Bookings.Complete(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason string
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, err)
			return
		}
	}

	b, err := h.app.Bookings.Cancel(r.Context(), pathID(r), payload.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handler) repriceBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.app.Bookings.Reprice(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
