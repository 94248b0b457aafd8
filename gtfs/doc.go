/*
Package gtfs provides GTFS static data loading and spatial indexing.

The index is built once at process start from a directory of standard GTFS
text tables (stops.txt, routes.txt, trips.txt, shapes.txt, optionally
stop_times.txt) and is read-only afterwards, so it is safe to share across
concurrent adapter invocations without locking.

# Basic Usage

	index, err := gtfs.LoadDir("data/gtfs")
	if err != nil {
	    log.Fatal(err)
	}
	grid := gtfs.BuildGrid(index, 500)

# Data Structure

The index provides fast lookups for:

  - Routes (route_id → route_short_name)
  - Stops (stop_id → stop_name, lat/lng, route set)
  - Shapes (shape_id → ordered polyline, route set)

Route sets are precomputed from trips.txt (shape_id → routes) and, when
stop_times.txt is present, trip stop sequences (stop_id → routes).

# Caching

Parsing a large feed can take seconds; SaveCache/LoadCache gob-serialize the
parsed index to skip re-parsing on restarts.
*/
package gtfs
