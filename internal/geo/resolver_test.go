package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
	"github.com/couchcryptid/district-analytics-service/internal/registry"
)

func box(minLon, minLat, maxLon, maxLat float64) domain.Boundary {
	return domain.NewBoundary([]domain.Polygon{{Rings: [][]domain.Point{{
		{Lat: minLat, Lon: minLon},
		{Lat: minLat, Lon: maxLon},
		{Lat: maxLat, Lon: maxLon},
		{Lat: maxLat, Lon: minLon},
	}}}})
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]domain.District{
		{Code: "UP050", Name: "Lucknow", Region: domain.RegionCentral, Boundary: box(80.5, 26.5, 81.5, 27.2)},
		{Code: "UP044", Name: "Kanpur Nagar", Region: domain.RegionCentral, Boundary: box(79.8, 26.2, 80.5, 26.7)},
		// Encloses a slice of Lucknow; the smaller box must win there.
		{Code: "UP014", Name: "Barabanki", Region: domain.RegionCentral, Boundary: box(81.0, 26.6, 81.2, 26.9)},
		{Code: "UP001", Name: "Agra", Region: domain.RegionWest},
	})
	require.NoError(t, err)
	return reg
}

func TestLinearResolver_Inside(t *testing.T) {
	r := NewLinearResolver(testRegistry(t))
	assert.Equal(t, 3, r.Len(), "districts without boundary are not indexed")

	d, err := r.Resolve(context.Background(), 26.85, 80.95)
	require.NoError(t, err)
	assert.Equal(t, "UP050", d.Code)

	d, err = r.Resolve(context.Background(), 26.45, 80.3)
	require.NoError(t, err)
	assert.Equal(t, "UP044", d.Code)
}

func TestLinearResolver_OverlapPrefersSmallest(t *testing.T) {
	r := NewLinearResolver(testRegistry(t))

	d, err := r.Resolve(context.Background(), 26.75, 81.1)
	require.NoError(t, err)
	assert.Equal(t, "UP014", d.Code)
}

func TestLinearResolver_NotFound(t *testing.T) {
	r := NewLinearResolver(testRegistry(t))

	_, err := r.Resolve(context.Background(), 0, -30)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLinearResolver_InvalidCoordinates(t *testing.T) {
	r := NewLinearResolver(testRegistry(t))

	for _, c := range [][2]float64{{91, 0}, {-91, 0}, {0, 181}, {0, -180.01}} {
		_, err := r.Resolve(context.Background(), c[0], c[1])
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidCoordinates), "%v", c)
	}
}

func TestLinearResolver_CancelledContext(t *testing.T) {
	r := NewLinearResolver(testRegistry(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, 26.85, 80.95)
	require.ErrorIs(t, err, context.Canceled)
}
