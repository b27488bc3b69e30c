// Package mockdata synthesizes plausible monthly scheme metrics for demos,
// load tests and fixtures.
package mockdata

import (
	"math"
	"math/rand/v2"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

// Generator produces deterministic records for a given seed.
type Generator struct {
	rng   *rand.Rand
	clock clockwork.Clock
}

// NewGenerator seeds a generator. IngestedAt on every record comes from clock.
func NewGenerator(seed uint64, clock clockwork.Clock) *Generator {
	return &Generator{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		clock: clock,
	}
}

// Metric returns one record for code and month. Values follow the ranges the
// dashboard was first demoed with: 50k-200k job cards, 40-70% of them active,
// 30-90 days each, and Rs 200-300 per person-day.
func (g *Generator) Metric(code string, month domain.Month) domain.MonthlyMetric {
	jobCards := g.intBetween(50_000, 200_000)
	active := int64(float64(jobCards) * g.floatBetween(0.4, 0.7))
	personDays := active * g.intBetween(30, 90)
	avgDays := float64(personDays) / float64(max(active, 1))
	expenditure := float64(personDays) * g.floatBetween(200, 300) / 1e7

	return domain.MonthlyMetric{
		DistrictCode:              domain.NormalizeCode(code),
		Month:                     month,
		JobCardsIssued:            jobCards,
		ActiveWorkers:             active,
		PersonDaysGenerated:       personDays,
		AverageDaysPerHousehold:   round2(avgDays),
		WorksCompleted:            g.intBetween(100, 500),
		WorksOngoing:              g.intBetween(50, 300),
		ExpenditureCrores:         round2(expenditure),
		WomenParticipationPercent: round2(g.floatBetween(48, 62)),
		ScStParticipationPercent:  round2(g.floatBetween(25, 45)),
		IngestedAt:                g.clock.Now().UTC(),
	}
}

// Series returns months consecutive records per district, starting at from,
// grouped by district in registry order.
func (g *Generator) Series(districts []domain.District, from domain.Month, months int) []domain.MonthlyMetric {
	out := make([]domain.MonthlyMetric, 0, len(districts)*max(months, 0))
	for _, d := range districts {
		for i := range months {
			out = append(out, g.Metric(d.Code, from.AddMonths(i)))
		}
	}
	return out
}

func (g *Generator) intBetween(lo, hi int64) int64 {
	return lo + g.rng.Int64N(hi-lo+1)
}

func (g *Generator) floatBetween(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
