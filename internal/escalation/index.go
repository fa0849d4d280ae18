package escalation

import (
	"math"
	"sort"

	"civicfix_backend/internal/reports/domain"
	"civicfix_backend/platform/geo"
)

// Index proposes neighbour candidates for the report at position seed.
// Results may be a superset of the true neighbours but must contain every
// report within radius of the seed, in ascending position order.
type Index interface {
	Near(seed int, radiusMeters float64) []int
}

// IndexFunc builds an Index over one pass's reports.
type IndexFunc func(reports []domain.Report) Index

type linearIndex struct {
	all []int
}

// LinearIndex proposes every report, giving the O(n²) all-pairs scan.
func LinearIndex(reports []domain.Report) Index {
	all := make([]int, len(reports))
	for i := range all {
		all[i] = i
	}
	return linearIndex{all: all}
}

func (l linearIndex) Near(int, float64) []int { return l.all }

// metersPerDegreeLat is the meridional arc length of one degree.
const metersPerDegreeLat = geo.EarthRadiusMeters * math.Pi / 180

type cellKey struct{ lat, lon int }

type gridIndex struct {
	reports   []domain.Report
	cells     map[cellKey][]int
	latCell   float64
	lonCell   float64
	fallback  Index
	buildFrom float64
}

// GridIndex returns an IndexFunc bucketing located reports into cells at
// least radiusMeters wide, so neighbours are found in the 3x3 block around
// the seed's cell. It falls back to the linear scan near the poles and the
// antimeridian, where fixed-size degree cells stop bounding distance.
func GridIndex(radiusMeters float64) IndexFunc {
	return func(reports []domain.Report) Index {
		linear := LinearIndex(reports)
		if !(radiusMeters > 0) {
			return linear
		}

		maxAbsLat := 0.0
		for i := range reports {
			if loc := reports[i].Location; usable(loc) {
				if math.Abs(loc.Longitude) > 170 {
					return linear
				}
				maxAbsLat = math.Max(maxAbsLat, math.Abs(loc.Latitude))
			}
		}

		latCell := radiusMeters / metersPerDegreeLat
		edge := maxAbsLat + latCell
		if edge >= 80 {
			return linear
		}
		// doubled to stay conservative across the cell's latitude span
		lonCell := 2 * latCell / math.Cos(edge*math.Pi/180)

		g := &gridIndex{
			reports:   reports,
			cells:     make(map[cellKey][]int),
			latCell:   latCell,
			lonCell:   lonCell,
			fallback:  linear,
			buildFrom: radiusMeters,
		}
		for i := range reports {
			if loc := reports[i].Location; usable(loc) {
				k := g.key(loc)
				g.cells[k] = append(g.cells[k], i)
			}
		}
		return g
	}
}

func (g *gridIndex) key(loc *domain.Location) cellKey {
	return cellKey{
		lat: int(math.Floor(loc.Latitude / g.latCell)),
		lon: int(math.Floor(loc.Longitude / g.lonCell)),
	}
}

func (g *gridIndex) Near(seed int, radiusMeters float64) []int {
	if radiusMeters > g.buildFrom {
		return g.fallback.Near(seed, radiusMeters)
	}
	loc := g.reports[seed].Location
	if !usable(loc) {
		return nil
	}

	center := g.key(loc)
	var out []int
	for dLat := -1; dLat <= 1; dLat++ {
		for dLon := -1; dLon <= 1; dLon++ {
			out = append(out, g.cells[cellKey{lat: center.lat + dLat, lon: center.lon + dLon}]...)
		}
	}
	sort.Ints(out)
	return out
}

// usable reports whether loc can be bucketed. Anything else is at infinite
// distance from every report and needs no neighbours.
func usable(loc *domain.Location) bool {
	if loc == nil || math.IsNaN(loc.Latitude) || math.IsNaN(loc.Longitude) {
		return false
	}
	return math.Abs(loc.Latitude) <= 90 && math.Abs(loc.Longitude) <= 180
}
