package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDistrict reports a district code that is not in the registry.
	ErrUnknownDistrict = errors.New("unknown district")

	// ErrInvalidSelection reports a comparison set outside [2,5] codes or with duplicates.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrInvalidCoordinates reports a latitude or longitude outside its valid range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrInvalidWindow reports a trend window that is not a positive month count.
	ErrInvalidWindow = errors.New("invalid window")

	// ErrInvalidMetric reports an ingestion record that fails validation.
	ErrInvalidMetric = errors.New("invalid metric")

	// ErrNotFound marks a valid request with no matching data or boundary.
	// It is an absence marker, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrGeocoderUnavailable reports that the reverse geocoding fallback could
	// not be reached. Unlike ErrNotFound it says nothing about the location.
	ErrGeocoderUnavailable = errors.New("geocoder unavailable")

	// ErrStoreUnavailable wraps persistence failures. Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// UnknownDistrictError names the offending district code.
type UnknownDistrictError struct {
	Code string
}

func (e *UnknownDistrictError) Error() string {
	return fmt.Sprintf("unknown district %q", e.Code)
}

func (e *UnknownDistrictError) Is(target error) bool {
	return target == ErrUnknownDistrict
}

// UnknownDistrict returns an error matching ErrUnknownDistrict that carries code.
func UnknownDistrict(code string) error {
	return &UnknownDistrictError{Code: code}
}

// StoreUnavailable wraps a backend failure so it matches ErrStoreUnavailable
// while keeping the cause reachable through errors.Unwrap.
func StoreUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
