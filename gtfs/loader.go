package gtfs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// LoadDir parses the standard GTFS text tables from a local data directory
// and builds the index, including the shape→routes and stop→routes sets.
// stops.txt, routes.txt, trips.txt, and shapes.txt are required;
// stop_times.txt is optional (without it stop→route sets stay empty and
// matching relies on shape points alone).
func LoadDir(dir string) (*Index, error) {
	g := NewIndex()
	required := []string{"stops.txt", "routes.txt", "trips.txt", "shapes.txt"}
	for _, name := range required {
		if err := g.consumeFile(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
	}
	if err := g.consumeFile(filepath.Join(dir, "stop_times.txt")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load stop_times.txt: %w", err)
	}
	g.buildRouteSets()
	return g, nil
}

func (g *Index) consumeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return g.consumeCSV(filepath.Base(path), f)
}

func (g *Index) consumeCSV(name string, r io.Reader) error {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	rec, err := csvr.ReadAll()
	if err != nil {
		return err
	}
	if len(rec) == 0 {
		return nil
	}
	head := rec[0]
	// stray BOM on the first header cell is common in published feeds
	if len(head) > 0 {
		head[0] = strings.TrimPrefix(head[0], "\uFEFF")
	}
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(h, col) {
				return i
			}
		}
		return -1
	}
	cell := func(row []string, i int) string {
		if i >= 0 && i < len(row) {
			return row[i]
		}
		return ""
	}
	switch strings.ToLower(name) {
	case "routes.txt":
		rID := idx("route_id")
		rSN := idx("route_short_name")
		if rID < 0 {
			return nil
		}
		for _, row := range rec[1:] {
			g.RouteShortNames[cell(row, rID)] = cell(row, rSN)
		}
	case "trips.txt":
		rID := idx("route_id")
		tID := idx("trip_id")
		sh := idx("shape_id")
		if tID < 0 || rID < 0 {
			return nil
		}
		for _, row := range rec[1:] {
			trip := cell(row, tID)
			g.TripToRoute[trip] = cell(row, rID)
			if sh >= 0 {
				g.TripShapeID[trip] = cell(row, sh)
			}
		}
	case "stops.txt":
		sID := idx("stop_id")
		sN := idx("stop_name")
		sLat := idx("stop_lat")
		sLon := idx("stop_lon")
		if sID < 0 || sLat < 0 || sLon < 0 {
			return nil
		}
		for _, row := range rec[1:] {
			lat, err1 := strconv.ParseFloat(cell(row, sLat), 64)
			lng, err2 := strconv.ParseFloat(cell(row, sLon), 64)
			if err1 != nil || err2 != nil {
				continue
			}
			id := cell(row, sID)
			g.Stops[id] = Stop{ID: id, Name: cell(row, sN), Lat: lat, Lng: lng}
		}
	case "stop_times.txt":
		tID := idx("trip_id")
		sID := idx("stop_id")
		if tID < 0 || sID < 0 {
			return nil
		}
		// only the trip→stop relation matters here; sequence order does not
		seen := map[string]map[string]struct{}{}
		for _, row := range rec[1:] {
			route := g.TripToRoute[cell(row, tID)]
			stop := cell(row, sID)
			if route == "" || stop == "" {
				continue
			}
			if seen[stop] == nil {
				seen[stop] = map[string]struct{}{}
			}
			seen[stop][route] = struct{}{}
		}
		for stop, routes := range seen {
			for r := range routes {
				g.StopToRoutes[stop] = append(g.StopToRoutes[stop], r)
			}
		}
	case "shapes.txt":
		sh := idx("shape_id")
		latIdx := idx("shape_pt_lat")
		lonIdx := idx("shape_pt_lon")
		seqIdx := idx("shape_pt_sequence")
		if sh < 0 || latIdx < 0 || lonIdx < 0 || seqIdx < 0 {
			return nil
		}
		tmp := map[string][]struct {
			lat, lng float64
			seq      int
		}{}
		for _, row := range rec[1:] {
			shapeID := cell(row, sh)
			lat, _ := strconv.ParseFloat(cell(row, latIdx), 64)
			lng, _ := strconv.ParseFloat(cell(row, lonIdx), 64)
			seq, _ := strconv.Atoi(cell(row, seqIdx))
			tmp[shapeID] = append(tmp[shapeID], struct {
				lat, lng float64
				seq      int
			}{lat, lng, seq})
		}
		for shapeID, arr := range tmp {
			sort.Slice(arr, func(i, j int) bool { return arr[i].seq < arr[j].seq })
			pts := make([][2]float64, len(arr))
			for i, p := range arr {
				pts[i] = [2]float64{p.lat, p.lng}
			}
			g.ShapePoints[shapeID] = pts
		}
	}
	return nil
}

// buildRouteSets derives the shape→routes sets from trips and sorts every
// route set for deterministic output.
func (g *Index) buildRouteSets() {
	shapeRoutes := map[string]map[string]struct{}{}
	for trip, route := range g.TripToRoute {
		shapeID := g.TripShapeID[trip]
		if shapeID == "" || route == "" {
			continue
		}
		if shapeRoutes[shapeID] == nil {
			shapeRoutes[shapeID] = map[string]struct{}{}
		}
		shapeRoutes[shapeID][route] = struct{}{}
	}
	for shapeID, routes := range shapeRoutes {
		out := make([]string, 0, len(routes))
		for r := range routes {
			out = append(out, r)
		}
		sort.Strings(out)
		g.ShapeToRoutes[shapeID] = out
	}
	for stop := range g.StopToRoutes {
		sort.Strings(g.StopToRoutes[stop])
	}
}
