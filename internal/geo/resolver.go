// Package geo maps a coordinate to the district whose boundary contains it.
package geo

import (
	"context"
	"fmt"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

// Resolver finds the district containing a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) (domain.District, error)
}

// DistrictLister supplies districts in registry order.
type DistrictLister interface {
	List() []domain.District
}

// LinearResolver tests every bounded district in turn. With district counts
// in the hundreds a bounding-box prefilter keeps this well under a millisecond.
type LinearResolver struct {
	districts []domain.District
}

// NewLinearResolver indexes the districts of src that carry a boundary.
func NewLinearResolver(src DistrictLister) *LinearResolver {
	var bounded []domain.District
	for _, d := range src.List() {
		if !d.Boundary.IsEmpty() {
			bounded = append(bounded, d)
		}
	}
	return &LinearResolver{districts: bounded}
}

// Len returns the number of districts with a boundary.
func (r *LinearResolver) Len() int {
	return len(r.districts)
}

// Resolve returns the containing district. When boundaries overlap the
// smallest one wins, then the earliest in registry order.
func (r *LinearResolver) Resolve(ctx context.Context, lat, lon float64) (domain.District, error) {
	if !domain.ValidCoordinates(lat, lon) {
		return domain.District{}, fmt.Errorf("%w: lat=%v lon=%v", domain.ErrInvalidCoordinates, lat, lon)
	}
	if err := ctx.Err(); err != nil {
		return domain.District{}, err
	}

	pt := domain.Point{Lat: lat, Lon: lon}
	best := -1
	for i, d := range r.districts {
		if !d.Boundary.Contains(pt) {
			continue
		}
		if best < 0 || d.Boundary.Area < r.districts[best].Boundary.Area {
			best = i
		}
	}
	if best < 0 {
		return domain.District{}, fmt.Errorf("no district contains %.5f,%.5f: %w", lat, lon, domain.ErrNotFound)
	}
	return r.districts[best], nil
}
