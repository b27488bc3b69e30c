package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

// Place is what a reverse geocoder knows about a coordinate. Names run from
// the most to the least district-like administrative level.
type Place struct {
	Names       []string
	DisplayName string
}

// ReverseGeocoder looks up the administrative names around a coordinate.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error)
}

// NameMatcher maps a free-text place name to a registered district.
type NameMatcher interface {
	FindByName(name string) (domain.District, bool)
}

// FallbackResolver answers from boundaries first and asks a reverse geocoder
// only for points no loaded boundary contains.
type FallbackResolver struct {
	primary  Resolver
	geocoder ReverseGeocoder
	matcher  NameMatcher
	logger   *slog.Logger
}

// NewFallbackResolver wires the boundary resolver to a reverse geocoder.
func NewFallbackResolver(primary Resolver, geocoder ReverseGeocoder, matcher NameMatcher, logger *slog.Logger) *FallbackResolver {
	return &FallbackResolver{primary: primary, geocoder: geocoder, matcher: matcher, logger: logger}
}

func (f *FallbackResolver) Resolve(ctx context.Context, lat, lon float64) (domain.District, error) {
	d, err := f.primary.Resolve(ctx, lat, lon)
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return d, err
	}

	place, gerr := f.geocoder.ReverseGeocode(ctx, lat, lon)
	if gerr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.District{}, ctxErr
		}
		return domain.District{}, fmt.Errorf("%w: %w", domain.ErrGeocoderUnavailable, gerr)
	}

	for _, name := range place.Names {
		if d, ok := f.matcher.FindByName(name); ok {
			f.logger.Debug("location resolved by reverse geocoding",
				"lat", lat, "lon", lon, "name", name, "district", d.Code)
			return d, nil
		}
	}
	f.logger.Debug("reverse geocoding matched no district",
		"lat", lat, "lon", lon, "names", place.Names, "place", place.DisplayName)
	return domain.District{}, err
}
