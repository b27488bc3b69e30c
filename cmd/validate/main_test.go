package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
	"github.com/couchcryptid/district-analytics-service/internal/registry"
)

const input = `{"district_code":"UP001","month":"2024-01","active_workers":10}
{"district_code":"up001","month":"2024-03","active_workers":10}

{"district_code":"UP001","month":"2024-03","active_workers":12}
{"district_code":"XX999","month":"2024-01"}
not json
{"district_code":"UP002","month":"2024-01","women_participation_percent":140}
`

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]domain.District{
		{Code: "UP001", Name: "Agra", Region: domain.RegionWest},
		{Code: "UP002", Name: "Aligarh", Region: domain.RegionWest},
	})
	require.NoError(t, err)
	return reg
}

func TestValidationPhases(t *testing.T) {
	lines, parsePhase, total, err := parseLines(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	require.Len(t, lines, 4)
	require.Len(t, parsePhase.errors, 2)
	assert.Contains(t, parsePhase.errors[0], "line 6")
	assert.Contains(t, parsePhase.errors[1], "women_participation_percent")

	reg := testRegistry(t)

	known := validateRegistry(lines, reg)
	require.Len(t, known.errors, 1)
	assert.Contains(t, known.errors[0], "XX999")

	dups := validateDuplicates(lines)
	require.Len(t, dups.errors, 1)
	assert.Equal(t, "UP001/2024-03: lines 2 and 4", dups.errors[0])

	gaps := validateContinuity(lines, true)
	assert.True(t, gaps.advisory)
	assert.Equal(t, []string{"UP001: gap between 2024-01 and 2024-03"}, gaps.errors)

	coverage := validateCoverage(lines, reg, false)
	assert.False(t, coverage.advisory)
	require.Len(t, coverage.errors, 1)
	assert.Contains(t, coverage.errors[0], "UP002")
}
