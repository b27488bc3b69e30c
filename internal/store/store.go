// Package store persists monthly district metrics. MetricsStore enforces the
// registry and error contract; a Backend does the actual I/O.
package store

import (
	"context"
	"errors"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

// Backend is a persistence engine for monthly metrics. Codes passed in are
// already normalized and known to the registry. Absence is reported as
// domain.ErrNotFound; any other error is treated as a backend failure.
type Backend interface {
	Get(ctx context.Context, code string, month domain.Month) (domain.MonthlyMetric, error)
	Latest(ctx context.Context, code string) (domain.MonthlyMetric, error)
	// Range returns records with from <= month <= to, oldest first.
	Range(ctx context.Context, code string, from, to domain.Month) ([]domain.MonthlyMetric, error)
	// Recent returns up to n most recent records, oldest first.
	Recent(ctx context.Context, code string, n int) ([]domain.MonthlyMetric, error)
	// Put upserts m unless the stored record has a newer IngestedAt.
	Put(ctx context.Context, m domain.MonthlyMetric) error
	Ping(ctx context.Context) error
	Close() error
}

// Registry is the subset of the district registry the store needs.
type Registry interface {
	Contains(code string) bool
}

// MetricsStore validates district codes against the registry before reaching
// the backend and wraps backend failures as domain.ErrStoreUnavailable.
type MetricsStore struct {
	backend  Backend
	registry Registry
}

// New creates a MetricsStore over backend.
func New(backend Backend, registry Registry) *MetricsStore {
	return &MetricsStore{backend: backend, registry: registry}
}

func (s *MetricsStore) known(code string) (string, error) {
	code = domain.NormalizeCode(code)
	if !s.registry.Contains(code) {
		return "", domain.UnknownDistrict(code)
	}
	return code, nil
}

// Get returns the record for (code, month).
func (s *MetricsStore) Get(ctx context.Context, code string, month domain.Month) (domain.MonthlyMetric, error) {
	code, err := s.known(code)
	if err != nil {
		return domain.MonthlyMetric{}, err
	}
	m, err := s.backend.Get(ctx, code, month)
	return m, classify("get", err)
}

// Latest returns the most recent record for code.
func (s *MetricsStore) Latest(ctx context.Context, code string) (domain.MonthlyMetric, error) {
	code, err := s.known(code)
	if err != nil {
		return domain.MonthlyMetric{}, err
	}
	m, err := s.backend.Latest(ctx, code)
	return m, classify("latest", err)
}

// Range returns records for code in [from, to], oldest first. An inverted
// range yields no records.
func (s *MetricsStore) Range(ctx context.Context, code string, from, to domain.Month) ([]domain.MonthlyMetric, error) {
	code, err := s.known(code)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, nil
	}
	ms, err := s.backend.Range(ctx, code, from, to)
	return ms, classify("range", err)
}

// Recent returns up to n most recent records for code, oldest first.
func (s *MetricsStore) Recent(ctx context.Context, code string, n int) ([]domain.MonthlyMetric, error) {
	code, err := s.known(code)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	ms, err := s.backend.Recent(ctx, code, n)
	return ms, classify("recent", err)
}

// Put validates and stores m. Used only by ingestion.
func (s *MetricsStore) Put(ctx context.Context, m domain.MonthlyMetric) error {
	if err := m.Validate(); err != nil {
		return err
	}
	code, err := s.known(m.DistrictCode)
	if err != nil {
		return err
	}
	m.DistrictCode = code
	m.IngestedAt = m.IngestedAt.UTC()
	return classify("put", s.backend.Put(ctx, m))
}

// CheckReadiness pings the backend.
func (s *MetricsStore) CheckReadiness(ctx context.Context) error {
	return classify("ping", s.backend.Ping(ctx))
}

// Close releases backend resources.
func (s *MetricsStore) Close() error {
	return s.backend.Close()
}

func classify(op string, err error) error {
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return domain.StoreUnavailable(op, err)
}
