// Package analytics derives read-side views over the metrics store: the
// current scored record, trend windows, district comparisons and the state
// overview.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

// Trend window bounds, in months.
const (
	DefaultTrendMonths = 12
	MaxTrendMonths     = 120
)

// Comparison set bounds.
const (
	MinCompare = 2
	MaxCompare = 5
)

const topPerformers = 5

// MetricsReader is the read side of the metrics store.
type MetricsReader interface {
	Get(ctx context.Context, code string, month domain.Month) (domain.MonthlyMetric, error)
	Latest(ctx context.Context, code string) (domain.MonthlyMetric, error)
	Recent(ctx context.Context, code string, n int) ([]domain.MonthlyMetric, error)
}

// Registry is the subset of the district registry the service reads.
type Registry interface {
	Get(code string) (domain.District, bool)
	List() []domain.District
}

// Service answers analytics queries. It holds no mutable state.
type Service struct {
	store    MetricsReader
	registry Registry
	scorer   *domain.Scorer
	logger   *slog.Logger
}

// NewService wires a Service.
func NewService(store MetricsReader, registry Registry, scorer *domain.Scorer, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		registry: registry,
		scorer:   scorer,
		logger:   logger,
	}
}

// DistrictMetric is a scored record joined with its district's name.
type DistrictMetric struct {
	domain.ScoredMetric
	DistrictName string `json:"district_name"`
}

// Current returns the latest scored record for code.
func (s *Service) Current(ctx context.Context, code string) (DistrictMetric, error) {
	d, err := s.district(code)
	if err != nil {
		return DistrictMetric{}, err
	}
	m, err := s.store.Latest(ctx, d.Code)
	if err != nil {
		return DistrictMetric{}, err
	}
	return DistrictMetric{ScoredMetric: s.scorer.Apply(m), DistrictName: d.Name}, nil
}

// Trends is a district's most recent months, oldest first.
type Trends struct {
	District domain.District     `json:"district"`
	Trends   []domain.TrendPoint `json:"trends"`
}

// Trends returns up to months most recent records for code, oldest first.
// Missing months are not padded. Windows beyond MaxTrendMonths are clamped.
func (s *Service) Trends(ctx context.Context, code string, months int) (Trends, error) {
	if months < 1 {
		return Trends{}, fmt.Errorf("%w: months must be a positive integer, got %d", domain.ErrInvalidWindow, months)
	}
	months = min(months, MaxTrendMonths)
	d, err := s.district(code)
	if err != nil {
		return Trends{}, err
	}
	records, err := s.store.Recent(ctx, d.Code, months)
	if err != nil {
		return Trends{}, err
	}

	points := make([]domain.TrendPoint, 0, len(records))
	for _, m := range records {
		points = append(points, domain.NewTrendPoint(s.scorer.Apply(m)))
	}
	return Trends{District: d, Trends: points}, nil
}

// Compare scores 2 to 5 distinct districts side by side, preserving input
// order. With month nil each district contributes its own latest record, so
// entries may cover different months; each entry carries its month.
func (s *Service) Compare(ctx context.Context, codes []string, month *domain.Month) (domain.ComparisonResult, error) {
	districts, err := s.selection(codes)
	if err != nil {
		return domain.ComparisonResult{}, err
	}

	entries := make([]domain.ComparisonEntry, len(districts))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range districts {
		g.Go(func() error {
			entry, err := s.compareEntry(gctx, d, month)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ComparisonResult{}, err
	}

	rankEntries(entries)
	return domain.ComparisonResult{Comparisons: entries}, nil
}

func (s *Service) selection(codes []string) ([]domain.District, error) {
	if len(codes) < MinCompare || len(codes) > MaxCompare {
		return nil, fmt.Errorf("%w: compare needs %d to %d districts, got %d", domain.ErrInvalidSelection, MinCompare, MaxCompare, len(codes))
	}
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		c = domain.NormalizeCode(c)
		if seen[c] {
			return nil, fmt.Errorf("%w: duplicate district %s", domain.ErrInvalidSelection, c)
		}
		seen[c] = true
	}

	districts := make([]domain.District, 0, len(codes))
	for _, c := range codes {
		d, err := s.district(c)
		if err != nil {
			return nil, err
		}
		districts = append(districts, d)
	}
	return districts, nil
}

func (s *Service) compareEntry(ctx context.Context, d domain.District, month *domain.Month) (domain.ComparisonEntry, error) {
	entry := domain.ComparisonEntry{
		DistrictCode: d.Code,
		DistrictName: d.Name,
		Region:       d.Region,
	}

	var m domain.MonthlyMetric
	var err error
	if month != nil {
		m, err = s.store.Get(ctx, d.Code, *month)
	} else {
		m, err = s.store.Latest(ctx, d.Code)
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if month != nil {
			mo := *month
			entry.Month = &mo
		}
		return entry, nil
	case err != nil:
		return domain.ComparisonEntry{}, err
	}

	scored := s.scorer.Apply(m)
	entry.HasData = true
	entry.Month = &scored.Month
	entry.Metric = &scored
	return entry, nil
}

// rankEntries assigns rank 1 to the best score among entries with data.
// Equal scores keep input order. ScoreGap is the distance to the best score.
func rankEntries(entries []domain.ComparisonEntry) {
	var withData []int
	for i, e := range entries {
		if e.HasData {
			withData = append(withData, i)
		}
	}
	if len(withData) == 0 {
		return
	}

	slices.SortStableFunc(withData, func(a, b int) int {
		sa, sb := entries[a].Metric.PerformanceScore, entries[b].Metric.PerformanceScore
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		default:
			return 0
		}
	})

	best := entries[withData[0]].Metric.PerformanceScore
	for rank, i := range withData {
		entries[i].Rank = rank + 1
		entries[i].ScoreGap = round2(best - entries[i].Metric.PerformanceScore)
	}
}

// Overview aggregates every district's latest record. Districts without data
// are skipped; any store failure fails the whole overview.
func (s *Service) Overview(ctx context.Context) (domain.StateOverview, error) {
	districts := s.registry.List()
	ov := domain.StateOverview{
		TotalDistricts:    len(districts),
		GradeDistribution: make(domain.GradeDistribution, len(domain.Grades)),
		TopPerformers:     []domain.TopPerformer{},
	}
	for _, g := range domain.Grades {
		ov.GradeDistribution[g] = 0
	}

	var (
		scoreSum float64
		leaders  []domain.TopPerformer
	)
	for _, d := range districts {
		m, err := s.store.Latest(ctx, d.Code)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.StateOverview{}, fmt.Errorf("overview %s: %w", d.Code, err)
		}

		scored := s.scorer.Apply(m)
		ov.DistrictsReporting++
		ov.TotalActiveWorkers += m.ActiveWorkers
		ov.TotalPersonDays += m.PersonDaysGenerated
		ov.TotalExpenditureCrores += m.ExpenditureCrores
		ov.GradeDistribution[scored.PerformanceGrade]++
		scoreSum += scored.PerformanceScore
		if ov.LatestMonth == nil || ov.LatestMonth.Before(m.Month) {
			mo := m.Month
			ov.LatestMonth = &mo
		}
		leaders = append(leaders, domain.TopPerformer{
			DistrictCode:     d.Code,
			DistrictName:     d.Name,
			Month:            m.Month,
			PerformanceScore: scored.PerformanceScore,
			PerformanceGrade: scored.PerformanceGrade,
		})
	}

	if ov.DistrictsReporting > 0 {
		ov.AveragePerformanceScore = round2(scoreSum / float64(ov.DistrictsReporting))
	}

	slices.SortStableFunc(leaders, func(a, b domain.TopPerformer) int {
		switch {
		case a.PerformanceScore > b.PerformanceScore:
			return -1
		case a.PerformanceScore < b.PerformanceScore:
			return 1
		default:
			return 0
		}
	})
	if len(leaders) > topPerformers {
		leaders = leaders[:topPerformers]
	}
	if leaders != nil {
		ov.TopPerformers = leaders
	}

	s.logger.Debug("overview computed",
		"districts", ov.TotalDistricts,
		"reporting", ov.DistrictsReporting,
	)
	return ov, nil
}

func (s *Service) district(code string) (domain.District, error) {
	code = domain.NormalizeCode(code)
	d, ok := s.registry.Get(code)
	if !ok {
		return domain.District{}, domain.UnknownDistrict(code)
	}
	return d, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
