//go:build nominatim

package nominatim

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/district-analytics-service/internal/geo"
	"github.com/couchcryptid/district-analytics-service/internal/observability"
	"github.com/couchcryptid/district-analytics-service/internal/registry"
)

// These tests hit the public Nominatim API. Keep them rare: the usage policy
// allows one request per second.
// Run with: go test -tags=nominatim ./internal/adapter/nominatim/ -v -count=1

func smokeClient() *Client {
	return NewClient("https://nominatim.openstreetmap.org", "district-analytics-service/smoke-test",
		10*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	// Hazratganj, Lucknow.
	place, err := smokeClient().ReverseGeocode(context.Background(), 26.8467, 80.9462)
	require.NoError(t, err)

	assert.NotEmpty(t, place.Names)
	assert.Contains(t, place.DisplayName, "Lucknow")
}

func TestSmoke_FallbackMatchesCatalog(t *testing.T) {
	reg, err := registry.Load(registry.Options{})
	require.NoError(t, err)

	// No boundaries loaded, so every lookup goes to the geocoder.
	time.Sleep(time.Second)
	r := geo.NewFallbackResolver(geo.NewLinearResolver(reg), smokeClient(), reg,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	d, err := r.Resolve(context.Background(), 27.1751, 78.0421)
	require.NoError(t, err)
	assert.Equal(t, "UP001", d.Code)
}
