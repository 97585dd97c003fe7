// Package handler exposes the order and catalogue services over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent, nothing useful left to tell the client.
		return
	}
}

// writeError writes the standard error body for code.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeJSON(w, status, model.ErrorResponse{
		Error:         code,
		Message:       message,
		Details:       details,
		CorrelationID: middleware.RequestIDFrom(r.Context()),
	})
}

// respondError maps a service error onto its HTTP status.
func respondError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	var (
		notFound *model.NotFoundError
		business *model.BusinessError
		orderErr *model.OrderError
	)

	switch {
	case errors.As(err, &notFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, notFound.Error(), nil)
	case errors.As(err, &business):
		writeError(w, r, http.StatusBadRequest, business.Code, business.Message, business.Details)
	case errors.As(err, &orderErr):
		writeError(w, r, http.StatusConflict, orderErr.Code, orderErr.Message, map[string]model.OrderStatus{
			"from": orderErr.From,
			"to":   orderErr.To,
		})
	default:
		logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.RequestIDFrom(r.Context())).
			Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", nil)
	}
}

// decodeJSON reads a JSON body of at most maxBodyBytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", nil)
		return false
	}
	return true
}

// pathID parses the {id} URL parameter.
func pathID(w http.ResponseWriter, r *http.Request, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, fmt.Sprintf("invalid %s ID format", entity), nil)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return v, nil
}

// queryTime reads an optional RFC 3339 timestamp or YYYY-MM-DD date. A date is taken as
// midnight UTC.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	t, _, err := parseQueryTime(r, name)
	return t, err
}

// queryUntil reads the exclusive upper bound of a date range. A YYYY-MM-DD date includes
// that whole day, so the bound is the following midnight.
func queryUntil(r *http.Request, name string) (*time.Time, error) {
	t, dateOnly, err := parseQueryTime(r, name)
	if err != nil || t == nil || !dateOnly {
		return t, err
	}
	next := t.AddDate(0, 0, 1)
	return &next, nil
}

func parseQueryTime(r *http.Request, name string) (*time.Time, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, false, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, false, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, false, fmt.Errorf("invalid %s parameter, expected RFC 3339 or YYYY-MM-DD", name)
	}
	return &t, true, nil
}

// queryStatus reads the optional status filter.
func queryStatus(r *http.Request) *model.OrderStatus {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil
	}
	status := model.OrderStatus(raw)
	return &status
}

// pagination reads page and pageSize. Zero values are left for the service to default.
func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error(), nil)
		return 0, 0, false
	}
	pageSize, err := queryInt(r, "pageSize", 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error(), nil)
		return 0, 0, false
	}
	return page, pageSize, true
}

func identity(r *http.Request) model.Identity {
	id, _ := middleware.IdentityFrom(r.Context())
	return id
}
