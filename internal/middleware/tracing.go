package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/walla-walla-travel/tourops/internal/logging"
)

// TraceIDHeader carries the request trace ID in and out of the server.
const TraceIDHeader = "X-Trace-ID"

// TracingMiddleware assigns each request a trace ID, honoring one supplied
// by the caller, and logs the request line with status and duration after
// the handler returns.
func TracingMiddleware(log *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceIDHeader)
			if traceID == "" {
				traceID = logging.NewTraceID()
			}

			ctx := logging.WithTraceID(r.Context(), traceID)
			w.Header().Set(TraceIDHeader, traceID)

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			log.LogRequest(ctx, r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		})
	}
}
