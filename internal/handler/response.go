package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"success": false, "message": "song not found with id abc123"}
//
// Validation errors add the offending field:
//   {"success": false, "message": "The name field is required.", "field": "name"}
//
// The one exception is a failed login, which answers with the bare
// {"message": "Invalid credentials"} clients of the login endpoint expect.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/service"
)

// internalErrorMessage is all a client learns about an unexpected failure.
const internalErrorMessage = "An internal error occurred"

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written. Once Encode
// calls w.Write the headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error to its HTTP status.
//
// The service layer returns apperror values and knows nothing about HTTP;
// this is the one place they are translated. errors.Is walks the whole
// Unwrap chain, so a service may wrap an AppError with fmt.Errorf("...: %w")
// and the mapping still holds.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case apperror.IsAuthFailure(err):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and sends the standard error body.
//
// NEVER expose internal error details to the client: the raw message of an
// unexpected error might contain SQL, file paths or bucket names. Those are
// logged and the client gets a generic 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)

	var appErr *apperror.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		logger.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: internalErrorMessage})
		return
	}

	writeJSON(w, status, ErrorResponse{Message: appErr.Message, Field: appErr.Field})
}

// badRequest sends a 400 for input that could not even be parsed.
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: message})
}

// =========================================================================
// PAGINATION
// =========================================================================

// PageMeta describes where a page sits in the full listing.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// Paginated is the envelope of every paginated listing.
type Paginated[R any] struct {
	Data []R      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// paginate converts each item of p with conv and wraps the result.
func paginate[T, R any](p service.Page[T], conv func(T) R) Paginated[R] {
	data := make([]R, 0, len(p.Items))
	for _, item := range p.Items {
		data = append(data, conv(item))
	}
	return Paginated[R]{
		Data: data,
		Meta: PageMeta{
			CurrentPage: p.CurrentPage,
			PerPage:     p.PerPage,
			Total:       p.Total,
			LastPage:    p.LastPage(),
		},
	}
}

// pageParam reads ?page=. Anything that is not a positive number is page 1.
func pageParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
