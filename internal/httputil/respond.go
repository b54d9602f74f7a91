// Package httputil provides the JSON request and response helpers shared by
// the API handlers and the HTTP middleware.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
)

// maxBodyBytes caps request bodies. Booking and invoice payloads are small;
// anything larger is a client mistake.
const maxBodyBytes = 1 << 20

// errorBody is the JSON envelope for every error response.
type errorBody struct {
	Error *apperrors.ServiceError `json:"error"`
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes err as a JSON error response. Service errors keep their
// code, message, details, and HTTP status; anything else becomes a generic
// 500 so internals never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil {
		svcErr = apperrors.Internal("internal server error", err)
	}
	WriteJSON(w, svcErr.HTTPStatus, errorBody{Error: svcErr})
}

// WriteServiceError writes a ServiceError directly.
func WriteServiceError(w http.ResponseWriter, svcErr *apperrors.ServiceError) {
	WriteJSON(w, svcErr.HTTPStatus, errorBody{Error: svcErr})
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields,
// trailing garbage, and bodies over one megabyte. Errors are validation
// service errors suitable for WriteError.
func DecodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Validation(decodeMessage(err))
	}
	if dec.More() {
		return apperrors.Validation("request body must be a single JSON object")
	}
	return nil
}

// decodeMessage turns json decode failures into messages a caller can act on.
func decodeMessage(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.Is(err, io.EOF):
		return "request body is empty"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %q expects %s", typeErr.Field, typeErr.Type)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return fmt.Sprintf("unknown field %s", field)
	default:
		return "invalid request body"
	}
}
