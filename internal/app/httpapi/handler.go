// Package httpapi exposes the REST API, the public customer links, and
// the operational websocket stream.
package httpapi

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/walla-walla-travel/tourops/internal/app"
	"github.com/walla-walla-travel/tourops/internal/app/auth"
	appmetrics "github.com/walla-walla-travel/tourops/internal/app/metrics"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
	"github.com/walla-walla-travel/tourops/internal/httputil"
	"github.com/walla-walla-travel/tourops/internal/logging"
	"github.com/walla-walla-travel/tourops/internal/middleware"
	"github.com/walla-walla-travel/tourops/internal/pricing"
)

// Config carries the handler's dependencies beyond the application itself.
type Config struct {
	Auth        *auth.Manager
	Metrics     *appmetrics.Metrics
	DB          *sql.DB
	Log         *logging.Logger
	RateLimit   *middleware.RateLimiter
	CORSOrigins []string
	AuditPath   string
	AuditMax    int
	Version     string
}

// handler bundles the HTTP endpoints for the application services.
type handler struct {
	app     *app.Application
	auth    *auth.Manager
	db      *sql.DB
	log     *logging.Logger
	audit   *auditLog
	version string
	started time.Time
}

// NewHandler returns the routed and middleware-wrapped API surface.
func NewHandler(application *app.Application, cfg Config) (http.Handler, error) {
	if cfg.Auth == nil {
		return nil, fmt.Errorf("auth manager is required")
	}
	log := cfg.Log
	if log == nil {
		log = logging.New("httpapi", "info", "text")
	}

	fileSink, err := newFileAuditSink(cfg.AuditPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", cfg.AuditPath, err)
	}
	var sinks []auditSink
	if fileSink != nil {
		sinks = append(sinks, fileSink)
	}
	if cfg.DB != nil {
		sinks = append(sinks, &dbAuditSink{db: cfg.DB})
	}

	h := &handler{
		app:     application,
		auth:    cfg.Auth,
		db:      cfg.DB,
		log:     log,
		audit:   newAuditLog(cfg.AuditMax, sinks...),
		version: cfg.Version,
		started: time.Now().UTC(),
	}
	if h.version == "" {
		h.version = "dev"
	}

	r := mux.NewRouter()
	r.Use(middleware.TracingMiddleware(log))
	if cfg.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(cfg.Metrics))
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	}
	if cfg.RateLimit != nil {
		r.Use(cfg.RateLimit.Middleware())
	}

	// Public surface: health, metrics, login, and the customer links.
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.readyz).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/p/{token}", h.proposalByToken).Methods(http.MethodGet)
	r.HandleFunc("/i/{token}", h.invoiceByToken).Methods(http.MethodGet)

	// Staff surface: everything else requires a valid token and is audited.
	api := r.PathPrefix("/").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg.Auth, log))
	api.Use(h.audit.middleware)

	api.HandleFunc("/auth/me", h.me).Methods(http.MethodGet)
	api.HandleFunc("/quotes", h.computeQuote).Methods(http.MethodPost)
	api.HandleFunc("/rates", h.rates).Methods(http.MethodGet)

	api.HandleFunc("/customers", h.createCustomer).Methods(http.MethodPost)
	api.HandleFunc("/customers", h.listCustomers).Methods(http.MethodGet)
	api.HandleFunc("/customers/{id}", h.getCustomer).Methods(http.MethodGet)
	api.HandleFunc("/customers/{id}", h.updateCustomer).Methods(http.MethodPatch)
	api.HandleFunc("/customers/{id}/deactivate", h.deactivateCustomer).Methods(http.MethodPost)
	api.HandleFunc("/customers/{id}/reactivate", h.reactivateCustomer).Methods(http.MethodPost)

	api.HandleFunc("/wineries", h.createWinery).Methods(http.MethodPost)
	api.HandleFunc("/wineries", h.listWineries).Methods(http.MethodGet)
	api.HandleFunc("/wineries/{id}", h.getWinery).Methods(http.MethodGet)
	api.HandleFunc("/wineries/{id}", h.updateWinery).Methods(http.MethodPatch)
	api.HandleFunc("/wineries/{id}/deactivate", h.deactivateWinery).Methods(http.MethodPost)
	api.HandleFunc("/wineries/{id}/reactivate", h.reactivateWinery).Methods(http.MethodPost)

	api.HandleFunc("/vehicles", h.createVehicle).Methods(http.MethodPost)
	api.HandleFunc("/vehicles", h.listVehicles).Methods(http.MethodGet)
	api.HandleFunc("/vehicles/{id}", h.getVehicle).Methods(http.MethodGet)
	api.HandleFunc("/vehicles/{id}", h.updateVehicle).Methods(http.MethodPatch)
	api.HandleFunc("/vehicles/{id}/deactivate", h.deactivateVehicle).Methods(http.MethodPost)
	api.HandleFunc("/vehicles/{id}/reactivate", h.reactivateVehicle).Methods(http.MethodPost)

	api.HandleFunc("/drivers", h.createDriver).Methods(http.MethodPost)
	api.HandleFunc("/drivers", h.listDrivers).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{id}", h.getDriver).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{id}", h.updateDriver).Methods(http.MethodPatch)
	api.HandleFunc("/drivers/{id}/deactivate", h.deactivateDriver).Methods(http.MethodPost)
	api.HandleFunc("/drivers/{id}/reactivate", h.reactivateDriver).Methods(http.MethodPost)
	api.HandleFunc("/drivers/{id}/timecards", h.listTimeCards).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{id}/clock-in", h.clockIn).Methods(http.MethodPost)
	api.HandleFunc("/timecards/{id}/clock-out", h.clockOut).Methods(http.MethodPost)

	api.HandleFunc("/bookings", h.createBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings", h.listBookings).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", h.getBooking).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", h.updateBooking).Methods(http.MethodPatch)
	api.HandleFunc("/bookings/{id}/assign-vehicle", h.assignVehicle).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/assign-driver", h.assignDriver).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/confirm", h.confirmBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/complete", h.completeBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/cancel", h.cancelBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/reprice", h.repriceBooking).Methods(http.MethodPost)

	api.HandleFunc("/proposals", h.createProposal).Methods(http.MethodPost)
	api.HandleFunc("/proposals", h.listProposals).Methods(http.MethodGet)
	api.HandleFunc("/proposals/{id}", h.getProposal).Methods(http.MethodGet)
	api.HandleFunc("/proposals/{id}", h.updateProposal).Methods(http.MethodPatch)
	api.HandleFunc("/proposals/{id}/send", h.sendProposal).Methods(http.MethodPost)
	api.HandleFunc("/proposals/{id}/accept", h.acceptProposal).Methods(http.MethodPost)
	api.HandleFunc("/proposals/{id}/decline", h.declineProposal).Methods(http.MethodPost)

	api.HandleFunc("/invoices", h.createInvoice).Methods(http.MethodPost)
	api.HandleFunc("/invoices", h.listInvoices).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{id}", h.getInvoice).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{id}", h.updateInvoice).Methods(http.MethodPatch)
	api.HandleFunc("/invoices/{id}/send", h.sendInvoice).Methods(http.MethodPost)
	api.HandleFunc("/invoices/{id}/accept", h.acceptInvoice).Methods(http.MethodPost)
	api.HandleFunc("/invoices/{id}/events", h.invoiceEvents).Methods(http.MethodGet)

	// Admin surface.
	system := api.PathPrefix("/system").Subrouter()
	system.Use(middleware.RequireAdmin(log))
	system.HandleFunc("/status", h.systemStatus).Methods(http.MethodGet)
	system.HandleFunc("/audit", h.systemAudit).Methods(http.MethodGet)

	api.Handle("/ws/ops", middleware.RequireAdmin(log)(http.HandlerFunc(h.wsOps))).Methods(http.MethodGet)

	return r, nil
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "tourops",
		"version":   h.version,
		"timestamp": time.Now().UTC(),
	})
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "degraded",
				"database": "unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string
		Password string
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	token, ident, err := h.auth.Login(payload.Username, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"username": ident.Username,
		"role":     ident.Role,
	})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"username": logging.GetUserID(r.Context()),
		"role":     logging.GetRole(r.Context()),
	})
}

// computeQuote prices a request without persisting anything.
func (h *handler) computeQuote(w http.ResponseWriter, r *http.Request) {
	var req pricing.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	quote, err := h.app.Quotes.Compute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *handler) rates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Quotes.RateCard())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return httputil.DecodeJSON(r, dst)
}

// pathID extracts the {id} route variable.
func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// queryBool reads a boolean query parameter, treating absence as false.
func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// queryTime reads a timestamp query parameter as RFC3339 or YYYY-MM-DD.
// Absent parameters return the zero time.
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperrors.Validationf("%s must be RFC3339 or YYYY-MM-DD, got %q", name, raw)
	}
	return t, nil
}
