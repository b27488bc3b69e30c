package domain

import (
	"fmt"
	"strings"
)

// Region is one of the fixed administrative regions.
type Region string

const (
	RegionNorth   Region = "North"
	RegionSouth   Region = "South"
	RegionEast    Region = "East"
	RegionWest    Region = "West"
	RegionCentral Region = "Central"
)

// ParseRegion accepts a region name case-insensitively.
func ParseRegion(s string) (Region, error) {
	for _, r := range []Region{RegionNorth, RegionSouth, RegionEast, RegionWest, RegionCentral} {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown region %q", s)
}

// District is an immutable reference entity owned by the registry.
type District struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	LocalizedName string   `json:"name_hi"`
	Region        Region   `json:"region"`
	Boundary      Boundary `json:"-"`
}

// NormalizeCode canonicalizes a caller-supplied district code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
