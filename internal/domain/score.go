package domain

import (
	"errors"
	"fmt"
	"math"
)

// Grade is the letter band for a performance score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
)

// Grades lists every grade from best to worst.
var Grades = []Grade{GradeA, GradeB, GradeC, GradeD, GradeE}

// GradeFor maps a score to its band. Lower bounds are inclusive.
func GradeFor(score float64) Grade {
	switch {
	case score >= 85:
		return GradeA
	case score >= 70:
		return GradeB
	case score >= 55:
		return GradeC
	case score >= 40:
		return GradeD
	default:
		return GradeE
	}
}

// ScoringWeights are the component weights. They must sum to 1.
type ScoringWeights struct {
	PersonDays         float64 `toml:"person_days" json:"person_days"`
	AverageDays        float64 `toml:"average_days" json:"average_days"`
	WomenParticipation float64 `toml:"women_participation" json:"women_participation"`
	WorkCompletion     float64 `toml:"work_completion" json:"work_completion"`
	ScStParticipation  float64 `toml:"sc_st_participation" json:"sc_st_participation"`
}

func (w ScoringWeights) sum() float64 {
	return w.PersonDays + w.AverageDays + w.WomenParticipation + w.WorkCompletion + w.ScStParticipation
}

// ScoringTargets are the reference values at which a component saturates at 100.
// Work completion is a ratio and always saturates at 1.
type ScoringTargets struct {
	PersonDays         float64 `toml:"person_days" json:"person_days"`
	AverageDays        float64 `toml:"average_days" json:"average_days"`
	WomenParticipation float64 `toml:"women_participation" json:"women_participation"`
	ScStParticipation  float64 `toml:"sc_st_participation" json:"sc_st_participation"`
}

// ScoringConfig is the named configuration table behind the score.
type ScoringConfig struct {
	Weights ScoringWeights `toml:"weights" json:"weights"`
	Targets ScoringTargets `toml:"targets" json:"targets"`
}

// DefaultScoringConfig mirrors the thresholds the dashboard has always used:
// 50 days per household, 50% women participation and 3M person-days count as
// full marks, with works completion making up the last quarter.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights: ScoringWeights{
			PersonDays:         0.25,
			AverageDays:        0.30,
			WomenParticipation: 0.20,
			WorkCompletion:     0.25,
			ScStParticipation:  0,
		},
		Targets: ScoringTargets{
			PersonDays:         3_000_000,
			AverageDays:        50,
			WomenParticipation: 50,
			ScStParticipation:  40,
		},
	}
}

const weightTolerance = 1e-6

// Validate rejects negative weights, weights not summing to 1, and non-positive targets.
func (c ScoringConfig) Validate() error {
	w := c.Weights
	for _, v := range []float64{w.PersonDays, w.AverageDays, w.WomenParticipation, w.WorkCompletion, w.ScStParticipation} {
		if v < 0 || math.IsNaN(v) {
			return errors.New("scoring weights must be non-negative")
		}
	}
	if sum := w.sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("scoring weights must sum to 1, got %.6f", sum)
	}
	t := c.Targets
	for _, v := range []float64{t.PersonDays, t.AverageDays, t.WomenParticipation, t.ScStParticipation} {
		if !(v > 0) {
			return errors.New("scoring targets must be positive")
		}
	}
	return nil
}

// Scorer derives scores and grades from monthly metrics. It holds no mutable
// state and is safe for concurrent use.
type Scorer struct {
	cfg ScoringConfig
}

// NewScorer validates cfg and returns a Scorer.
func NewScorer(cfg ScoringConfig) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// Config returns the scoring table in use.
func (s *Scorer) Config() ScoringConfig {
	return s.cfg
}

// Score returns the composite score in [0,100], rounded to two decimals, and
// the grade of that rounded score. An all-zero metric scores 0 (grade E).
func (s *Scorer) Score(m MonthlyMetric) (float64, Grade) {
	w, t := s.cfg.Weights, s.cfg.Targets

	composite := w.PersonDays*normalize(float64(m.PersonDaysGenerated), t.PersonDays) +
		w.AverageDays*normalize(m.AverageDaysPerHousehold, t.AverageDays) +
		w.WomenParticipation*normalize(m.WomenParticipationPercent, t.WomenParticipation) +
		w.WorkCompletion*normalize(completionRate(m), 1) +
		w.ScStParticipation*normalize(m.ScStParticipationPercent, t.ScStParticipation)

	score := math.Round(clamp(composite, 0, 100)*100) / 100
	return score, GradeFor(score)
}

// Apply attaches the score and grade to m.
func (s *Scorer) Apply(m MonthlyMetric) ScoredMetric {
	score, grade := s.Score(m)
	return ScoredMetric{MonthlyMetric: m, PerformanceScore: score, PerformanceGrade: grade}
}

// normalize maps value onto [0,100] relative to target.
func normalize(value, target float64) float64 {
	if target <= 0 || value <= 0 || math.IsNaN(value) {
		return 0
	}
	return clamp(value/target, 0, 1) * 100
}

func completionRate(m MonthlyMetric) float64 {
	total := m.WorksCompleted + m.WorksOngoing
	if total <= 0 {
		return 0
	}
	return float64(m.WorksCompleted) / float64(total)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
