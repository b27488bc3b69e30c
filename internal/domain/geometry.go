package domain

import "math"

// Point is a WGS-84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Polygon is a GeoJSON-style ring set: Rings[0] is the outer shell, the rest are holes.
type Polygon struct {
	Rings [][]Point
	BBox  [4]float64 // minLon, minLat, maxLon, maxLat
}

// Boundary is a district's geometry: one or more polygons.
type Boundary struct {
	Polygons []Polygon
	BBox     [4]float64
	Area     float64 // planar area in square degrees, used only for tie-breaks
}

// NewBoundary builds a Boundary from polygons, computing bounding boxes and area.
func NewBoundary(polys []Polygon) Boundary {
	b := Boundary{BBox: emptyBBox()}
	for _, p := range polys {
		if len(p.Rings) == 0 || len(p.Rings[0]) < 3 {
			continue
		}
		p.BBox = ringsBBox(p.Rings)
		b.BBox = mergeBBox(b.BBox, p.BBox)
		b.Area += polygonArea(p)
		b.Polygons = append(b.Polygons, p)
	}
	return b
}

// IsEmpty reports whether the boundary has no usable polygon.
func (b Boundary) IsEmpty() bool {
	return len(b.Polygons) == 0
}

// Contains reports whether pt lies inside any polygon (outside its holes).
func (b Boundary) Contains(pt Point) bool {
	if b.IsEmpty() || !inBBox(pt, b.BBox) {
		return false
	}
	for _, p := range b.Polygons {
		if inBBox(pt, p.BBox) && pointInPolygon(pt, p) {
			return true
		}
	}
	return false
}

func pointInPolygon(pt Point, p Polygon) bool {
	if !pointInRing(pt, p.Rings[0]) {
		return false
	}
	for _, hole := range p.Rings[1:] {
		if pointInRing(pt, hole) {
			return false
		}
	}
	return true
}

// pointInRing is the even-odd ray cast. Points exactly on an edge may fall either way.
func pointInRing(pt Point, ring []Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := pt.Lon, pt.Lat
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// polygonArea is the shoelace area of the shell minus its holes.
func polygonArea(p Polygon) float64 {
	area := ringArea(p.Rings[0])
	for _, hole := range p.Rings[1:] {
		area -= ringArea(hole)
	}
	return math.Max(area, 0)
}

func ringArea(ring []Point) float64 {
	var sum float64
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		sum += ring[j].Lon*ring[i].Lat - ring[i].Lon*ring[j].Lat
	}
	return math.Abs(sum) / 2
}

func emptyBBox() [4]float64 {
	return [4]float64{180, 90, -180, -90}
}

func ringsBBox(rings [][]Point) [4]float64 {
	b := emptyBBox()
	for _, r := range rings {
		for _, pt := range r {
			b[0] = math.Min(b[0], pt.Lon)
			b[1] = math.Min(b[1], pt.Lat)
			b[2] = math.Max(b[2], pt.Lon)
			b[3] = math.Max(b[3], pt.Lat)
		}
	}
	return b
}

func mergeBBox(a, b [4]float64) [4]float64 {
	return [4]float64{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Max(a[2], b[2]), math.Max(a[3], b[3])}
}

func inBBox(pt Point, b [4]float64) bool {
	return pt.Lon >= b[0] && pt.Lon <= b[2] && pt.Lat >= b[1] && pt.Lat <= b[3]
}

// ValidCoordinates reports whether lat is in [-90,90] and lon in [-180,180].
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
