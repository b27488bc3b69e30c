package registry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

//go:embed districts.json
var defaultCatalog []byte

// Options selects the catalog and boundary sources. Empty paths use the
// embedded catalog and no boundaries respectively.
type Options struct {
	CatalogFile    string
	BoundariesFile string
	Logger         *slog.Logger
}

// Load reads the catalog, attaches boundaries and builds the Registry.
func Load(opts Options) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var districts []domain.District
	var err error
	if opts.CatalogFile == "" {
		districts, err = ParseCatalog(bytes.NewReader(defaultCatalog))
	} else {
		districts, err = parseFile(opts.CatalogFile, ParseCatalog)
	}
	if err != nil {
		return nil, err
	}

	if opts.BoundariesFile != "" {
		features, err := parseFile(opts.BoundariesFile, ParseBoundaries)
		if err != nil {
			return nil, err
		}
		matched := AttachBoundaries(districts, features, logger)
		logger.Info("district boundaries loaded",
			"features", len(features),
			"matched", matched,
			"districts", len(districts),
		)
	}

	return New(districts)
}

func parseFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

type catalogEntry struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	NameHi string `json:"name_hi"`
	Region string `json:"region"`
}

// ParseCatalog decodes a JSON array of {code, name, name_hi, region}.
func ParseCatalog(r io.Reader) ([]domain.District, error) {
	var entries []catalogEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode district catalog: %w", err)
	}

	districts := make([]domain.District, 0, len(entries))
	for _, e := range entries {
		region, err := domain.ParseRegion(e.Region)
		if err != nil {
			return nil, fmt.Errorf("district %s: %w", e.Code, err)
		}
		districts = append(districts, domain.District{
			Code:          domain.NormalizeCode(e.Code),
			Name:          strings.TrimSpace(e.Name),
			LocalizedName: strings.TrimSpace(e.NameHi),
			Region:        region,
		})
	}
	return districts, nil
}

// Feature is one boundary read from a GeoJSON file.
type Feature struct {
	Code     string
	Name     string
	Boundary domain.Boundary
}

type geoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

type geoJSONFeature struct {
	Properties map[string]any   `json:"properties"`
	Geometry   *geoJSONGeometry `json:"geometry"`
}

type geoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ParseBoundaries decodes a GeoJSON FeatureCollection of Polygon and
// MultiPolygon features. Features with other geometry types are dropped.
func ParseBoundaries(r io.Reader) ([]Feature, error) {
	var fc geoJSONFeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode boundaries: %w", err)
	}
	if !strings.EqualFold(fc.Type, "FeatureCollection") {
		return nil, fmt.Errorf("decode boundaries: expected FeatureCollection, got %q", fc.Type)
	}

	features := make([]Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		polys, err := decodeGeometry(*f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		if polys == nil {
			continue
		}
		features = append(features, Feature{
			Code:     domain.NormalizeCode(firstProperty(f.Properties, "code", "district_code")),
			Name:     strings.TrimSpace(firstProperty(f.Properties, "name", "district", "DISTRICT", "dtname")),
			Boundary: domain.NewBoundary(polys),
		})
	}
	return features, nil
}

func decodeGeometry(g geoJSONGeometry) ([]domain.Polygon, error) {
	switch strings.ToLower(g.Type) {
	case "polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("decode polygon: %w", err)
		}
		return []domain.Polygon{toPolygon(rings)}, nil
	case "multipolygon":
		var parts [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &parts); err != nil {
			return nil, fmt.Errorf("decode multipolygon: %w", err)
		}
		polys := make([]domain.Polygon, 0, len(parts))
		for _, rings := range parts {
			polys = append(polys, toPolygon(rings))
		}
		return polys, nil
	default:
		return nil, nil
	}
}

// toPolygon converts GeoJSON [lon, lat] positions.
func toPolygon(rings [][][]float64) domain.Polygon {
	var p domain.Polygon
	for _, ring := range rings {
		pts := make([]domain.Point, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				continue
			}
			pts = append(pts, domain.Point{Lat: pos[1], Lon: pos[0]})
		}
		p.Rings = append(p.Rings, pts)
	}
	return p
}

func firstProperty(props map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := props[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%g", v)
		}
	}
	return ""
}

// AttachBoundaries assigns each feature's boundary to its district, matching
// by code, then by name (see nameIndex.match). A loosely matched feature never
// replaces a boundary that is already attached, and an exact match replaces
// only a loose one. It returns the number of districts given a boundary.
func AttachBoundaries(districts []domain.District, features []Feature, logger *slog.Logger) int {
	byCode := make(map[string]int, len(districts))
	for i, d := range districts {
		byCode[d.Code] = i
	}
	names := newNameIndex(districts)
	attached := make([]matchKind, len(districts))

	for _, f := range features {
		i, kind := -1, matchNone
		if j, ok := byCode[domain.NormalizeCode(f.Code)]; ok && f.Code != "" {
			i, kind = j, matchExact
		} else if f.Name != "" {
			i, kind = names.match(f.Name)
		}
		if kind == matchNone {
			logger.Warn("boundary feature matches no single district, skipping", "code", f.Code, "name", f.Name)
			continue
		}
		if f.Boundary.IsEmpty() {
			logger.Warn("boundary feature has no usable polygon, skipping", "district", districts[i].Code)
			continue
		}
		if attached[i] >= kind {
			logger.Warn("district already has a boundary, skipping feature",
				"district", districts[i].Code, "code", f.Code, "name", f.Name)
			continue
		}
		if kind == matchLoose {
			logger.Debug("boundary matched by name similarity", "feature", f.Name, "district", districts[i].Name)
		}
		districts[i].Boundary = f.Boundary
		attached[i] = kind
	}

	matched := 0
	for _, k := range attached {
		if k != matchNone {
			matched++
		}
	}
	return matched
}
