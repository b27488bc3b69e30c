package store

import (
	"context"
	"slices"
	"sync"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

// MemoryBackend keeps records in process memory. Used for tests, demos and
// single-node deployments fed by the ingestion pipeline.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]map[domain.Month]domain.MonthlyMetric
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]map[domain.Month]domain.MonthlyMetric)}
}

func (b *MemoryBackend) Get(_ context.Context, code string, month domain.Month) (domain.MonthlyMetric, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	m, ok := b.records[code][month]
	if !ok {
		return domain.MonthlyMetric{}, domain.ErrNotFound
	}
	return m, nil
}

func (b *MemoryBackend) Latest(_ context.Context, code string) (domain.MonthlyMetric, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var latest domain.MonthlyMetric
	found := false
	for month, m := range b.records[code] {
		if !found || latest.Month.Before(month) {
			latest, found = m, true
		}
	}
	if !found {
		return domain.MonthlyMetric{}, domain.ErrNotFound
	}
	return latest, nil
}

func (b *MemoryBackend) Range(_ context.Context, code string, from, to domain.Month) ([]domain.MonthlyMetric, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []domain.MonthlyMetric
	for month, m := range b.records[code] {
		if !month.Before(from) && !to.Before(month) {
			out = append(out, m)
		}
	}
	sortByMonth(out)
	return out, nil
}

func (b *MemoryBackend) Recent(_ context.Context, code string, n int) ([]domain.MonthlyMetric, error) {
	b.mu.RLock()
	out := make([]domain.MonthlyMetric, 0, len(b.records[code]))
	for _, m := range b.records[code] {
		out = append(out, m)
	}
	b.mu.RUnlock()

	sortByMonth(out)
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (b *MemoryBackend) Put(_ context.Context, m domain.MonthlyMetric) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	byMonth, ok := b.records[m.DistrictCode]
	if !ok {
		byMonth = make(map[domain.Month]domain.MonthlyMetric)
		b.records[m.DistrictCode] = byMonth
	}
	if cur, ok := byMonth[m.Month]; ok && cur.IngestedAt.After(m.IngestedAt) {
		return nil
	}
	byMonth[m.Month] = m
	return nil
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }

func (b *MemoryBackend) Close() error { return nil }

func sortByMonth(ms []domain.MonthlyMetric) {
	slices.SortFunc(ms, func(a, b domain.MonthlyMetric) int {
		switch {
		case a.Month.Before(b.Month):
			return -1
		case b.Month.Before(a.Month):
			return 1
		default:
			return 0
		}
	})
}
