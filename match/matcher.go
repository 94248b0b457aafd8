package match

import (
	"strings"

	"github.com/transitops/trafficwatch/gtfs"
	"github.com/transitops/trafficwatch/model"
)

// Matcher resolves locations to affected route short names. Read-only after
// construction; safe for concurrent use.
type Matcher struct {
	index   *gtfs.Index
	grid    *gtfs.Grid
	radiusM float64
	table   PatternTable
}

// New builds a matcher over a loaded GTFS index. radiusM is the spatial
// acceptance radius in meters.
func New(index *gtfs.Index, grid *gtfs.Grid, radiusM float64, table PatternTable) *Matcher {
	if radiusM <= 0 {
		radiusM = 250
	}
	return &Matcher{index: index, grid: grid, radiusM: radiusM, table: table}
}

// Match returns the sorted route short names affected by a disruption at
// the given location, plus the provenance of the match. The coordinate path
// wins whenever it yields routes; the text path is the fallback. Callers
// get an empty slice and MatchNone when neither path matches; routes are
// never fabricated.
func (m *Matcher) Match(location string, coords *model.Coordinates, freeText string) ([]string, model.MatchMethod) {
	if coords != nil && m.grid != nil {
		if ids := m.grid.RoutesNear(coords.Lat, coords.Lng, m.radiusM); len(ids) > 0 {
			return m.shortNames(ids), model.MatchCoordinateGrid
		}
	}
	if routes := m.matchText(location, freeText); len(routes) > 0 {
		return routes, model.MatchTextPattern
	}
	return nil, model.MatchNone
}

func (m *Matcher) matchText(location, freeText string) []string {
	haystack := strings.ToLower(location + " " + freeText)
	if strings.TrimSpace(haystack) == "" {
		return nil
	}
	var found []string
	for _, rule := range m.table.Rules {
		for _, token := range rule.Tokens {
			if token != "" && strings.Contains(haystack, strings.ToLower(token)) {
				found = append(found, rule.Routes...)
				break
			}
		}
	}
	if len(found) == 0 {
		return nil
	}
	return model.SortedUnique(found)
}

// shortNames maps GTFS route ids to their display short names, deduplicated
// and sorted. Unknown ids pass through unchanged.
func (m *Matcher) shortNames(routeIDs []string) []string {
	out := make([]string, 0, len(routeIDs))
	for _, id := range routeIDs {
		out = append(out, m.index.GetRouteShortName(id))
	}
	return model.SortedUnique(out)
}
