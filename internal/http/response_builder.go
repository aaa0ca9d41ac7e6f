package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"spendtrack/internal/core"
	"spendtrack/internal/ledger"
	applog "spendtrack/internal/log"
	"spendtrack/internal/services"
)

// JSONResponse is a fluent builder for JSON responses.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	payload    any
}

func NewJSONResponse() *JSONResponse {
	return &JSONResponse{statusCode: http.StatusOK, headers: make(map[string]string)}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

func (b *JSONResponse) JSON(v any) *JSONResponse {
	b.payload = v
	return b
}

// Write sends the response. A nil payload writes no body.
func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	body, err := json.Marshal(b.payload)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ErrorResponse builds the JSON error for err with the status from
// statusFor.
func ErrorResponse(err error) *JSONResponse {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return NewJSONResponse().Status(status).JSON(errorBody{Error: msg, Code: code})
}

// statusFor maps domain and ledger errors to HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case core.IsValidation(err),
		errors.Is(err, services.ErrEmptyUserID),
		errors.Is(err, services.ErrInvalidCurrency),
		errors.Is(err, services.ErrInvalidDate):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, core.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not_authenticated"
	case errors.Is(err, core.ErrCategoryNotFound), errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrRemoteUnavailable), errors.Is(err, ledger.ErrRemoteRejected):
		return http.StatusBadGateway, "remote"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	applog.FromContext(r.Context()).Log(r.Context(), level, "Request failed",
		applog.FieldPath, r.URL.Path,
		applog.FieldStatusCode, status,
		applog.FieldErrorType, code,
		applog.FieldError, err)
	ErrorResponse(err).Write(w)
}
