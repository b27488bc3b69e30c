package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
	"github.com/couchcryptid/district-analytics-service/internal/registry"
	"github.com/couchcryptid/district-analytics-service/internal/store"
)

var ingested = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T, n int) *registry.Registry {
	t.Helper()
	districts := make([]domain.District, 0, n)
	for i := 1; i <= n; i++ {
		districts = append(districts, domain.District{
			Code:   fmt.Sprintf("UP%03d", i),
			Name:   fmt.Sprintf("District %d", i),
			Region: domain.RegionCentral,
		})
	}
	reg, err := registry.New(districts)
	require.NoError(t, err)
	return reg
}

func testScorer(t *testing.T) *domain.Scorer {
	t.Helper()
	s, err := domain.NewScorer(domain.DefaultScoringConfig())
	require.NoError(t, err)
	return s
}

type fixture struct {
	reg   *registry.Registry
	store *store.MetricsStore
	svc   *Service
}

func newFixture(t *testing.T, districts int) *fixture {
	t.Helper()
	reg := testRegistry(t, districts)
	st := store.New(store.NewMemoryBackend(), reg)
	return &fixture{
		reg:   reg,
		store: st,
		svc:   NewService(st, reg, testScorer(t), discardLogger()),
	}
}

func (f *fixture) put(t *testing.T, code string, mo domain.Month, workers int64, avgDays float64) {
	t.Helper()
	require.NoError(t, f.store.Put(context.Background(), domain.MonthlyMetric{
		DistrictCode:              code,
		Month:                     mo,
		ActiveWorkers:             workers,
		PersonDaysGenerated:       workers * 20,
		AverageDaysPerHousehold:   avgDays,
		WorksCompleted:            5,
		WorksOngoing:              5,
		ExpenditureCrores:         1.5,
		WomenParticipationPercent: 40,
		IngestedAt:                ingested,
	}))
}

func m(y int, mo time.Month) domain.Month {
	return domain.Month{Year: y, Month: mo}
}

// --- Current ---

func TestCurrent(t *testing.T) {
	f := newFixture(t, 3)
	f.put(t, "UP001", m(2024, 1), 100, 20)
	f.put(t, "UP001", m(2024, 2), 200, 30)

	cur, err := f.svc.Current(context.Background(), "up001")
	require.NoError(t, err)
	assert.Equal(t, "District 1", cur.DistrictName)
	assert.Equal(t, m(2024, 2), cur.Month)
	assert.Equal(t, int64(200), cur.ActiveWorkers)
	assert.Equal(t, domain.GradeFor(cur.PerformanceScore), cur.PerformanceGrade)

	_, err = f.svc.Current(context.Background(), "UP002")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Current(context.Background(), "UP404")
	assert.ErrorIs(t, err, domain.ErrUnknownDistrict)
}

// --- Trends ---

func TestTrends_Window(t *testing.T) {
	f := newFixture(t, 2)
	start := m(2023, 9)
	for i := range 5 {
		f.put(t, "UP001", start.AddMonths(i), int64(100+i), 25)
	}

	tr, err := f.svc.Trends(context.Background(), "UP001", 3)
	require.NoError(t, err)
	assert.Equal(t, "UP001", tr.District.Code)
	require.Len(t, tr.Trends, 3)
	assert.Equal(t, m(2023, 11), tr.Trends[0].Month)
	assert.Equal(t, m(2024, 1), tr.Trends[2].Month)
	assert.Equal(t, 2024, tr.Trends[2].Year)
	assert.Equal(t, int64(104), tr.Trends[2].ActiveWorkers)

	tr, err = f.svc.Trends(context.Background(), "UP001", DefaultTrendMonths)
	require.NoError(t, err)
	assert.Len(t, tr.Trends, 5, "fewer records than requested are not padded")
	for i := 1; i < len(tr.Trends); i++ {
		assert.True(t, tr.Trends[i-1].Month.Before(tr.Trends[i].Month))
	}
}

func TestTrends_WindowClampedToMax(t *testing.T) {
	f := newFixture(t, 2)
	f.put(t, "UP001", m(2024, 1), 100, 25)

	tr, err := f.svc.Trends(context.Background(), "UP001", 200)
	require.NoError(t, err)
	assert.Len(t, tr.Trends, 1, "oversized window returns what exists")

	start := m(2010, 1)
	for i := range MaxTrendMonths + 5 {
		f.put(t, "UP002", start.AddMonths(i), int64(100+i), 25)
	}
	tr, err = f.svc.Trends(context.Background(), "UP002", MaxTrendMonths+1)
	require.NoError(t, err)
	require.Len(t, tr.Trends, MaxTrendMonths)
	assert.Equal(t, start.AddMonths(MaxTrendMonths+4), tr.Trends[MaxTrendMonths-1].Month)
}

func TestTrends_Empty(t *testing.T) {
	f := newFixture(t, 2)
	tr, err := f.svc.Trends(context.Background(), "UP002", 6)
	require.NoError(t, err)
	assert.Empty(t, tr.Trends)
}

func TestTrends_Errors(t *testing.T) {
	f := newFixture(t, 2)

	for _, months := range []int{0, -1} {
		_, err := f.svc.Trends(context.Background(), "UP001", months)
		assert.ErrorIs(t, err, domain.ErrInvalidWindow, "months=%d", months)
	}

	_, err := f.svc.Trends(context.Background(), "UP999", 12)
	assert.ErrorIs(t, err, domain.ErrUnknownDistrict, "unknown regardless of data")
}

// --- Compare ---

func TestCompare_SelectionSize(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	_, err := f.svc.Compare(ctx, []string{"UP001"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidSelection)

	_, err = f.svc.Compare(ctx, []string{"UP001", "UP002", "UP003", "UP004", "UP005", "UP006"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidSelection)

	_, err = f.svc.Compare(ctx, []string{"UP001", "up001"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidSelection, "duplicates after normalization")
}

func TestCompare_FirstUnknownCode(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.svc.Compare(context.Background(), []string{"UP001", "XX001", "YY002"}, nil)
	var unknown *domain.UnknownDistrictError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "XX001", unknown.Code)
}

func TestCompare_OrderRankAndGaps(t *testing.T) {
	f := newFixture(t, 5)
	f.put(t, "UP001", m(2024, 3), 100, 10)
	f.put(t, "UP002", m(2024, 3), 100, 50)
	f.put(t, "UP003", m(2024, 3), 100, 10)
	f.put(t, "UP004", m(2024, 1), 100, 30)

	codes := []string{"UP003", "UP005", "UP002", "UP001", "UP004"}
	res, err := f.svc.Compare(context.Background(), codes, nil)
	require.NoError(t, err)
	require.Len(t, res.Comparisons, len(codes))

	for i, code := range codes {
		assert.Equal(t, code, res.Comparisons[i].DistrictCode)
	}

	byCode := map[string]domain.ComparisonEntry{}
	for _, e := range res.Comparisons {
		byCode[e.DistrictCode] = e
	}

	assert.Equal(t, 1, byCode["UP002"].Rank)
	assert.Equal(t, 0.0, byCode["UP002"].ScoreGap)
	assert.Equal(t, 2, byCode["UP004"].Rank)
	assert.Equal(t, 3, byCode["UP003"].Rank, "tie broken by input order")
	assert.Equal(t, 4, byCode["UP001"].Rank)
	assert.Greater(t, byCode["UP001"].ScoreGap, 0.0)

	missing := byCode["UP005"]
	assert.False(t, missing.HasData)
	assert.Zero(t, missing.Rank)
	assert.Nil(t, missing.Metric)

	assert.Equal(t, m(2024, 1), *byCode["UP004"].Month, "each district uses its own latest month")
	assert.Equal(t, m(2024, 3), *byCode["UP002"].Month)
}

func TestCompare_FixedMonth(t *testing.T) {
	f := newFixture(t, 3)
	f.put(t, "UP001", m(2024, 1), 100, 10)
	f.put(t, "UP001", m(2024, 2), 100, 40)
	f.put(t, "UP002", m(2024, 2), 100, 20)

	month := m(2024, 1)
	res, err := f.svc.Compare(context.Background(), []string{"UP001", "UP002"}, &month)
	require.NoError(t, err)

	assert.True(t, res.Comparisons[0].HasData)
	assert.Equal(t, month, res.Comparisons[0].Metric.Month)
	assert.False(t, res.Comparisons[1].HasData)
	assert.Equal(t, month, *res.Comparisons[1].Month)
}

func TestCompare_OrderIndependentScores(t *testing.T) {
	f := newFixture(t, 2)
	f.put(t, "UP001", m(2024, 3), 100, 15)
	f.put(t, "UP002", m(2024, 3), 100, 45)

	ctx := context.Background()
	forward, err := f.svc.Compare(ctx, []string{"UP001", "UP002"}, nil)
	require.NoError(t, err)
	reversed, err := f.svc.Compare(ctx, []string{"UP002", "UP001"}, nil)
	require.NoError(t, err)

	scores := func(res domain.ComparisonResult) map[string]float64 {
		out := map[string]float64{}
		for _, e := range res.Comparisons {
			require.NotNil(t, e.Metric, e.DistrictCode)
			out[e.DistrictCode] = e.Metric.PerformanceScore
		}
		return out
	}
	assert.Equal(t, scores(forward), scores(reversed))
	assert.Equal(t, []string{"UP002", "UP001"},
		[]string{reversed.Comparisons[0].DistrictCode, reversed.Comparisons[1].DistrictCode})
}

// --- Overview ---

func TestOverview_Totals(t *testing.T) {
	f := newFixture(t, 12)
	for i := 1; i <= 10; i++ {
		f.put(t, fmt.Sprintf("UP%03d", i), m(2024, 4), 1000, float64(i*5))
	}
	f.put(t, "UP001", m(2024, 3), 999999, 1)

	ov, err := f.svc.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, ov.TotalDistricts)
	assert.Equal(t, 10, ov.DistrictsReporting)
	assert.Equal(t, int64(10000), ov.TotalActiveWorkers)
	assert.Equal(t, int64(200000), ov.TotalPersonDays)
	assert.InDelta(t, 15.0, ov.TotalExpenditureCrores, 1e-9)
	require.NotNil(t, ov.LatestMonth)
	assert.Equal(t, m(2024, 4), *ov.LatestMonth)

	total := 0
	for _, n := range ov.GradeDistribution {
		total += n
	}
	assert.Equal(t, 10, total)
	assert.Len(t, ov.GradeDistribution, 5)

	require.Len(t, ov.TopPerformers, 5)
	assert.Equal(t, "UP010", ov.TopPerformers[0].DistrictCode)
	for i := 1; i < len(ov.TopPerformers); i++ {
		assert.GreaterOrEqual(t, ov.TopPerformers[i-1].PerformanceScore, ov.TopPerformers[i].PerformanceScore)
	}
}

func TestOverview_NoData(t *testing.T) {
	f := newFixture(t, 3)
	ov, err := f.svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ov.TotalDistricts)
	assert.Zero(t, ov.DistrictsReporting)
	assert.Nil(t, ov.LatestMonth)
	assert.Empty(t, ov.TopPerformers)
	assert.NotNil(t, ov.TopPerformers)
}

// --- mocks ---

type brokenStore struct{}

func (brokenStore) Get(context.Context, string, domain.Month) (domain.MonthlyMetric, error) {
	return domain.MonthlyMetric{}, domain.StoreUnavailable("get", errors.New("down"))
}

func (brokenStore) Latest(context.Context, string) (domain.MonthlyMetric, error) {
	return domain.MonthlyMetric{}, domain.StoreUnavailable("latest", errors.New("down"))
}

func (brokenStore) Recent(context.Context, string, int) ([]domain.MonthlyMetric, error) {
	return nil, domain.StoreUnavailable("recent", errors.New("down"))
}

func TestStoreUnavailablePropagates(t *testing.T) {
	reg := testRegistry(t, 3)
	svc := NewService(brokenStore{}, reg, testScorer(t), discardLogger())
	ctx := context.Background()

	_, err := svc.Overview(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = svc.Compare(ctx, []string{"UP001", "UP002"}, nil)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = svc.Trends(ctx, "UP001", 3)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = svc.Current(ctx, "UP001")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
