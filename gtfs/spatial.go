package gtfs

import (
	"math"
	"sort"
)

// gridEntry is one stop or shape point bucketed into the grid, carrying the
// route set it resolves to.
type gridEntry struct {
	lat, lng float64
	routes   []string
}

// Grid buckets stops and shape points into uniform cells so that a proximity
// query only inspects the 3×3 neighborhood around the query point instead of
// every point in the feed. Read-only after BuildGrid.
type Grid struct {
	cells   map[[2]int][]gridEntry
	latStep float64
	lngStep float64
}

const metersPerDegreeLat = 111320.0

// BuildGrid indexes every stop and shape point of the feed at the given cell
// size in meters. The longitude step is scaled by the cosine of the feed's
// mean latitude, good enough at metro scale.
func BuildGrid(g *Index, cellSizeM float64) *Grid {
	if cellSizeM <= 0 {
		cellSizeM = 500
	}
	meanLat := 0.0
	if minLat, _, maxLat, _, ok := g.Bounds(); ok {
		meanLat = (minLat + maxLat) / 2
	}
	latStep := cellSizeM / metersPerDegreeLat
	lngStep := latStep
	if cosLat := math.Cos(meanLat * math.Pi / 180); cosLat > 0.1 {
		lngStep = latStep / cosLat
	}
	grid := &Grid{cells: map[[2]int][]gridEntry{}, latStep: latStep, lngStep: lngStep}
	for _, s := range g.Stops {
		routes := g.StopToRoutes[s.ID]
		if len(routes) == 0 {
			continue
		}
		grid.insert(s.Lat, s.Lng, routes)
	}
	for shapeID, pts := range g.ShapePoints {
		routes := g.ShapeToRoutes[shapeID]
		if len(routes) == 0 {
			continue
		}
		for _, p := range pts {
			grid.insert(p[0], p[1], routes)
		}
	}
	return grid
}

func (gr *Grid) insert(lat, lng float64, routes []string) {
	key := gr.key(lat, lng)
	gr.cells[key] = append(gr.cells[key], gridEntry{lat: lat, lng: lng, routes: routes})
}

func (gr *Grid) key(lat, lng float64) [2]int {
	return [2]int{int(math.Floor(lat / gr.latStep)), int(math.Floor(lng / gr.lngStep))}
}

// RoutesNear returns the sorted union of route ids whose stops or shape
// points lie within radiusM meters of the query point. Empty when nothing is
// in range.
func (gr *Grid) RoutesNear(lat, lng, radiusM float64) []string {
	center := gr.key(lat, lng)
	found := map[string]struct{}{}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			for _, e := range gr.cells[[2]int{center[0] + dy, center[1] + dx}] {
				if HaversineM(lat, lng, e.lat, e.lng) > radiusM {
					continue
				}
				for _, r := range e.routes {
					found[r] = struct{}{}
				}
			}
		}
	}
	if len(found) == 0 {
		return nil
	}
	out := make([]string, 0, len(found))
	for r := range found {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
