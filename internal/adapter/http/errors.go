package http

import (
	"errors"
	"net/http"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

var errBadRequest = errors.New("invalid request")

type requestError struct {
	msg string
}

func (e *requestError) Error() string        { return e.msg }
func (e *requestError) Is(target error) bool { return target == errBadRequest }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorStatus maps a service error to its status code and kind.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnknownDistrict):
		return http.StatusNotFound, "unknown_district"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidSelection):
		return http.StatusBadRequest, "invalid_selection"
	case errors.Is(err, domain.ErrInvalidCoordinates):
		return http.StatusBadRequest, "invalid_coordinates"
	case errors.Is(err, domain.ErrInvalidWindow):
		return http.StatusBadRequest, "invalid_window"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := errorStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "kind", kind, "error", err)
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		}
	}
	writeJSON(w, status, errorBody{Error: kind, Message: msg})
}
