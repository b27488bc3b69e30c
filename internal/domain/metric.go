package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MonthlyMetric is the raw performance record for one district in one month.
// (DistrictCode, Month) is the natural key.
type MonthlyMetric struct {
	DistrictCode string `json:"district_code"`
	Month        Month  `json:"month"`

	JobCardsIssued            int64   `json:"job_cards_issued"`
	ActiveWorkers             int64   `json:"active_workers"`
	PersonDaysGenerated       int64   `json:"person_days_generated"`
	AverageDaysPerHousehold   float64 `json:"average_days_per_household"`
	WorksCompleted            int64   `json:"works_completed"`
	WorksOngoing              int64   `json:"works_ongoing"`
	ExpenditureCrores         float64 `json:"expenditure_crores"`
	WomenParticipationPercent float64 `json:"women_participation_percent"`
	ScStParticipationPercent  float64 `json:"sc_st_participation_percent"`

	// IngestedAt orders competing writes for the same key; the newest wins.
	IngestedAt time.Time `json:"ingested_at"`
}

// Validate checks field ranges. It does not check the district code against
// the registry; the store does that.
func (m MonthlyMetric) Validate() error {
	var errs []error
	if NormalizeCode(m.DistrictCode) == "" {
		errs = append(errs, errors.New("district_code is required"))
	}
	if m.Month.IsZero() || m.Month.Month < time.January || m.Month.Month > time.December {
		errs = append(errs, errors.New("month is required"))
	}

	counts := []struct {
		name  string
		value int64
	}{
		{"job_cards_issued", m.JobCardsIssued},
		{"active_workers", m.ActiveWorkers},
		{"person_days_generated", m.PersonDaysGenerated},
		{"works_completed", m.WorksCompleted},
		{"works_ongoing", m.WorksOngoing},
	}
	for _, c := range counts {
		if c.value < 0 {
			errs = append(errs, fmt.Errorf("%s must be non-negative", c.name))
		}
	}

	if !validNonNegative(m.AverageDaysPerHousehold) {
		errs = append(errs, errors.New("average_days_per_household must be non-negative"))
	}
	if !validNonNegative(m.ExpenditureCrores) {
		errs = append(errs, errors.New("expenditure_crores must be non-negative"))
	}
	if !validPercent(m.WomenParticipationPercent) {
		errs = append(errs, errors.New("women_participation_percent must be within [0,100]"))
	}
	if !validPercent(m.ScStParticipationPercent) {
		errs = append(errs, errors.New("sc_st_participation_percent must be within [0,100]"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidMetric, errors.Join(errs...))
	}
	return nil
}

func validNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func validPercent(v float64) bool {
	return validNonNegative(v) && v <= 100
}

// ScoredMetric is a MonthlyMetric with its derived score and grade. Never persisted.
type ScoredMetric struct {
	MonthlyMetric
	PerformanceScore float64 `json:"performance_score"`
	PerformanceGrade Grade   `json:"performance_grade"`
}
