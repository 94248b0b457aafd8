package gtfs

import "math"

// Index stores GTFS static data in memory for fast lookups.
// Exported fields are gob-serialized by the cache helpers; the index is
// never mutated after loading.
type Index struct {
	Stops           map[string]Stop         // stop_id -> stop
	RouteShortNames map[string]string       // route_id -> short_name
	TripToRoute     map[string]string       // trip_id -> route_id
	TripShapeID     map[string]string       // trip_id -> shape_id
	ShapePoints     map[string][][2]float64 // shape_id -> ordered points [lat,lng]
	ShapeToRoutes   map[string][]string     // shape_id -> sorted route_ids
	StopToRoutes    map[string][]string     // stop_id -> sorted route_ids (needs stop_times.txt)
}

// NewIndex creates a new empty GTFS index
func NewIndex() *Index {
	return &Index{
		Stops:           map[string]Stop{},
		RouteShortNames: map[string]string{},
		TripToRoute:     map[string]string{},
		TripShapeID:     map[string]string{},
		ShapePoints:     map[string][][2]float64{},
		ShapeToRoutes:   map[string][]string{},
		StopToRoutes:    map[string][]string{},
	}
}

// GetRouteShortName returns the display name for a route, falling back to
// the raw route_id when routes.txt had no short name for it.
func (g *Index) GetRouteShortName(routeID string) string {
	if sn, ok := g.RouteShortNames[routeID]; ok && sn != "" {
		return sn
	}
	return routeID
}

// GetStopName returns the stop name, or "" for an unknown stop.
func (g *Index) GetStopName(stopID string) string { return g.Stops[stopID].Name }

// RoutesForShape returns the route ids served by a shape.
func (g *Index) RoutesForShape(shapeID string) []string { return g.ShapeToRoutes[shapeID] }

// RoutesForStop returns the route ids calling at a stop.
func (g *Index) RoutesForStop(stopID string) []string { return g.StopToRoutes[stopID] }

// Bounds returns the bounding box covered by the loaded stops. The second
// return is false when no stops are loaded.
func (g *Index) Bounds() (minLat, minLng, maxLat, maxLng float64, ok bool) {
	if len(g.Stops) == 0 {
		return 0, 0, 0, 0, false
	}
	minLat, minLng = math.MaxFloat64, math.MaxFloat64
	maxLat, maxLng = -math.MaxFloat64, -math.MaxFloat64
	for _, s := range g.Stops {
		minLat = math.Min(minLat, s.Lat)
		maxLat = math.Max(maxLat, s.Lat)
		minLng = math.Min(minLng, s.Lng)
		maxLng = math.Max(maxLng, s.Lng)
	}
	return minLat, minLng, maxLat, maxLng, true
}

// HaversineM returns the great-circle distance between two points in meters,
// over a spherical-Earth approximation.
func HaversineM(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	la1 := lat1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(la1)*math.Cos(la2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
