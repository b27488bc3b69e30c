package mockdata

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

var july = domain.Month{Year: 2024, Month: time.July}

func TestMetric_IsValidAndInRange(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	g := NewGenerator(7, clock)

	for range 200 {
		m := g.Metric(" up001 ", july)
		require.NoError(t, m.Validate())
		assert.Equal(t, "UP001", m.DistrictCode)
		assert.Equal(t, july, m.Month)
		assert.True(t, m.IngestedAt.Equal(clock.Now()))

		assert.GreaterOrEqual(t, m.JobCardsIssued, int64(50_000))
		assert.LessOrEqual(t, m.JobCardsIssued, int64(200_000))
		assert.LessOrEqual(t, m.ActiveWorkers, m.JobCardsIssued)
		assert.GreaterOrEqual(t, m.AverageDaysPerHousehold, 30.0)
		assert.LessOrEqual(t, m.AverageDaysPerHousehold, 90.0)
		assert.GreaterOrEqual(t, m.WomenParticipationPercent, 48.0)
		assert.LessOrEqual(t, m.WomenParticipationPercent, 62.0)
		assert.GreaterOrEqual(t, m.WorksCompleted, int64(100))
		assert.GreaterOrEqual(t, m.WorksOngoing, int64(50))
	}
}

func TestGenerator_DeterministicForSeed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a := NewGenerator(42, clock).Metric("UP001", july)
	b := NewGenerator(42, clock).Metric("UP001", july)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("same seed produced different records (-a +b):\n%s", diff)
	}

	c := NewGenerator(43, clock).Metric("UP001", july)
	assert.NotEqual(t, a.JobCardsIssued, c.JobCardsIssued)
}

func TestSeries(t *testing.T) {
	g := NewGenerator(1, clockwork.NewFakeClock())
	districts := []domain.District{{Code: "UP001"}, {Code: "UP002"}}

	out := g.Series(districts, domain.Month{Year: 2023, Month: time.November}, 3)

	require.Len(t, out, 6)
	got := make([]string, len(out))
	for i, m := range out {
		got[i] = m.DistrictCode + "/" + m.Month.String()
	}
	want := []string{
		"UP001/2023-11", "UP001/2023-12", "UP001/2024-01",
		"UP002/2023-11", "UP002/2023-12", "UP002/2024-01",
	}
	assert.Equal(t, want, got)
	assert.Empty(t, g.Series(districts, july, 0))
}
