package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/couchcryptid/district-analytics-service/internal/analytics"
	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

const maxBodyBytes = 1 << 16

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

type districtView struct {
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	LocalizedName string        `json:"name_hi"`
	Region        domain.Region `json:"region"`
}

func newDistrictView(d domain.District) districtView {
	return districtView{Code: d.Code, Name: d.Name, LocalizedName: d.LocalizedName, Region: d.Region}
}

func (h *handlers) banner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "district-analytics",
		"message": "District performance analytics API",
	})
}

func (h *handlers) listDistricts(w http.ResponseWriter, _ *http.Request) {
	districts := h.deps.Districts.List()
	views := make([]districtView, 0, len(districts))
	for _, d := range districts {
		views = append(views, newDistrictView(d))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handlers) current(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.Analytics.Current(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handlers) trends(w http.ResponseWriter, r *http.Request) {
	months := analytics.DefaultTrendMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: months must be an integer", domain.ErrInvalidWindow))
			return
		}
		months = n
	}

	t, err := h.deps.Analytics.Trends(r.Context(), mux.Vars(r)["code"], months)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		District districtView       `json:"district"`
		Trends   []domain.TrendPoint `json:"trends"`
	}{newDistrictView(t.District), t.Trends})
}

func (h *handlers) compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var codes []string
	for _, c := range strings.Split(q.Get("codes"), ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}

	var month *domain.Month
	if raw := q.Get("month"); raw != "" {
		m, err := domain.ParseMonth(raw)
		if err != nil {
			h.writeError(w, r, badRequest("month must be YYYY-MM"))
			return
		}
		month = &m
	}

	res, err := h.deps.Analytics.Compare(r.Context(), codes, month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.deps.Overview.Overview(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type locationResponse struct {
	Success  bool          `json:"success"`
	District *districtView `json:"district,omitempty"`
	Message  string        `json:"message,omitempty"`
}

func (h *handlers) detectLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, r, badRequest("body must be JSON with latitude and longitude"))
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		h.writeError(w, r, badRequest("latitude and longitude are required"))
		return
	}

	d, err := h.deps.Locator.Resolve(r.Context(), *req.Latitude, *req.Longitude)
	switch {
	case err == nil:
		h.deps.Metrics.GeoResolutions.WithLabelValues("found").Inc()
		v := newDistrictView(d)
		writeJSON(w, http.StatusOK, locationResponse{Success: true, District: &v})
	case errors.Is(err, domain.ErrNotFound):
		h.deps.Metrics.GeoResolutions.WithLabelValues("not_found").Inc()
		writeJSON(w, http.StatusOK, locationResponse{Message: "could not determine district from location"})
	case errors.Is(err, domain.ErrInvalidCoordinates):
		h.deps.Metrics.GeoResolutions.WithLabelValues("invalid").Inc()
		h.writeError(w, r, err)
	case errors.Is(err, domain.ErrGeocoderUnavailable):
		h.deps.Metrics.GeoResolutions.WithLabelValues("unavailable").Inc()
		h.logger.Warn("location detection degraded", "error", err)
		writeJSON(w, http.StatusOK, locationResponse{Message: "geocoding service unavailable"})
	default:
		h.writeError(w, r, err)
	}
}
