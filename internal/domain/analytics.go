package domain

// TrendPoint is one month of a district's trend window.
type TrendPoint struct {
	Month            Month   `json:"month"`
	Year             int     `json:"year"`
	PersonDays       int64   `json:"person_days"`
	Expenditure      float64 `json:"expenditure"`
	ActiveWorkers    int64   `json:"active_workers"`
	PerformanceScore float64 `json:"performance_score"`
	PerformanceGrade Grade   `json:"performance_grade"`
}

// NewTrendPoint projects a scored metric onto the trend shape.
func NewTrendPoint(s ScoredMetric) TrendPoint {
	return TrendPoint{
		Month:            s.Month,
		Year:             s.Month.Year,
		PersonDays:       s.PersonDaysGenerated,
		Expenditure:      s.ExpenditureCrores,
		ActiveWorkers:    s.ActiveWorkers,
		PerformanceScore: s.PerformanceScore,
		PerformanceGrade: s.PerformanceGrade,
	}
}

// ComparisonEntry is one district's row in a comparison. Metric is nil when
// the district has no record for the compared month.
type ComparisonEntry struct {
	DistrictCode string        `json:"district_code"`
	DistrictName string        `json:"district_name"`
	Region       Region        `json:"region"`
	Month        *Month        `json:"month,omitempty"`
	HasData      bool          `json:"has_data"`
	Rank         int           `json:"rank,omitempty"`
	ScoreGap     float64       `json:"score_gap"`
	Metric       *ScoredMetric `json:"metric,omitempty"`
}

// ComparisonResult preserves the caller's code order.
type ComparisonResult struct {
	Comparisons []ComparisonEntry `json:"comparisons"`
}

// GradeDistribution counts reporting districts per grade.
type GradeDistribution map[Grade]int

// TopPerformer is a district in the overview leaderboard.
type TopPerformer struct {
	DistrictCode     string  `json:"district_code"`
	DistrictName     string  `json:"district_name"`
	Month            Month   `json:"month"`
	PerformanceScore float64 `json:"performance_score"`
	PerformanceGrade Grade   `json:"performance_grade"`
}

// StateOverview aggregates the latest record of every reporting district.
type StateOverview struct {
	TotalDistricts          int               `json:"total_districts"`
	DistrictsReporting      int               `json:"districts_reporting"`
	TotalActiveWorkers      int64             `json:"total_active_workers"`
	TotalPersonDays         int64             `json:"total_person_days"`
	TotalExpenditureCrores  float64           `json:"total_expenditure_crores"`
	AveragePerformanceScore float64           `json:"average_performance_score"`
	GradeDistribution       GradeDistribution `json:"grade_distribution"`
	TopPerformers           []TopPerformer    `json:"top_performers"`
	LatestMonth             *Month            `json:"latest_month,omitempty"`
}
