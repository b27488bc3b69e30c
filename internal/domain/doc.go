// Package domain models district-level MGNREGA (rural employment guarantee)
// performance data.
//
// # Data Source
//
// Monthly figures originate from the state MIS exports. An upstream collector
// normalizes each export row into a flat JSON [MonthlyMetric] and publishes it
// to the ingestion Kafka topic. The Kafka message timestamp is treated as the
// ingestion timestamp and decides which of two records for the same
// (district, month) key wins.
//
// # Conventions
//
// District codes:
//
//	Short upper-case identifiers, e.g. "UP050" (Lucknow). Codes are trimmed
//	and upper-cased before lookup, so "up050" resolves to the same district.
//
// Months:
//
//	"YYYY-MM", e.g. "2024-03". Months order chronologically and
//	lexicographically alike.
//
// Units:
//
//	Expenditure is in crores of rupees (1 crore = 10,000,000 INR).
//	Participation fields are percentages in [0, 100].
//
// Coordinates:
//
//	WGS-84. Boundary rings follow GeoJSON: [lon, lat] pairs, first ring is the
//	outer shell, remaining rings are holes.
//
// # Performance Score
//
// A district's monthly score is a weighted composite of normalized
// components (see [ScoringConfig]). Each component is value/target clamped to
// [0, 1] and scaled to 100, so the composite always lies in [0, 100]:
//
//	person_days          person-days generated vs. target (default 3,000,000)
//	average_days         average days per household vs. target (default 50)
//	women_participation  women participation % vs. target (default 50)
//	work_completion      completed / (completed + ongoing) works
//	sc_st_participation  SC/ST participation % vs. target (default 40)
//
// Grades use inclusive lower bounds:
//
//	>=85 A | >=70 B | >=55 C | >=40 D | otherwise E
package domain
