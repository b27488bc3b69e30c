// Package registry holds the immutable district catalog: codes, names,
// regions and boundaries. It is loaded once at start-up and shared by every
// reader without locking.
package registry

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

// Registry is the canonical set of districts, in catalog order.
type Registry struct {
	districts []domain.District
	byCode    map[string]int
	names     nameIndex
}

// New builds a Registry. Codes are normalized and must be unique.
func New(districts []domain.District) (*Registry, error) {
	if len(districts) == 0 {
		return nil, errors.New("registry: empty district catalog")
	}

	r := &Registry{
		districts: make([]domain.District, 0, len(districts)),
		byCode:    make(map[string]int, len(districts)),
	}
	for _, d := range districts {
		d.Code = domain.NormalizeCode(d.Code)
		if d.Code == "" {
			return nil, fmt.Errorf("registry: district %q has no code", d.Name)
		}
		if _, dup := r.byCode[d.Code]; dup {
			return nil, fmt.Errorf("registry: duplicate district code %s", d.Code)
		}
		r.byCode[d.Code] = len(r.districts)
		r.districts = append(r.districts, d)
	}
	r.names = newNameIndex(r.districts)
	return r, nil
}

// Get looks up a district by code. The code is normalized first.
func (r *Registry) Get(code string) (domain.District, bool) {
	i, ok := r.byCode[domain.NormalizeCode(code)]
	if !ok {
		return domain.District{}, false
	}
	return r.districts[i], true
}

// Contains reports whether code names a registered district.
func (r *Registry) Contains(code string) bool {
	_, ok := r.byCode[domain.NormalizeCode(code)]
	return ok
}

// List returns every district in catalog order. The slice is a copy.
func (r *Registry) List() []domain.District {
	out := make([]domain.District, len(r.districts))
	copy(out, r.districts)
	return out
}

// Len returns the number of districts.
func (r *Registry) Len() int {
	return len(r.districts)
}

// FindByName matches a free-text place name such as "Lucknow District" from a
// reverse geocoder. Names that fit no district, or fit several equally well,
// report false.
func (r *Registry) FindByName(name string) (domain.District, bool) {
	i, kind := r.names.match(name)
	if kind == matchNone {
		return domain.District{}, false
	}
	return r.districts[i], true
}
