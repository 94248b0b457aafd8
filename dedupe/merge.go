package dedupe

import (
	"math"
	"sort"
	"strings"

	"github.com/transitops/trafficwatch/gtfs"
	"github.com/transitops/trafficwatch/model"
)

// DistanceThresholdM is the proximity under which two located alerts are
// treated as the same event.
const DistanceThresholdM = 150.0

// Engine merges duplicate alerts. authority ranks source ids; higher wins
// the anchor role. Unknown sources rank zero.
type Engine struct {
	authority map[string]int
}

// NewEngine builds a merge engine with the given source-authority ranking.
func NewEngine(authority map[string]int) *Engine {
	if authority == nil {
		authority = map[string]int{}
	}
	return &Engine{authority: authority}
}

// Merge collapses alerts describing the same event and returns the merged
// list sorted by id. Grouping is transitive: if A matches B and B matches
// C, all three merge. Runtime is O(n log n) in practice; candidate pairs
// are only compared inside coarse spatial buckets and token groups, never
// across the whole set.
func (e *Engine) Merge(alerts []model.Alert) []model.Alert {
	n := len(alerts)
	if n <= 1 {
		out := append([]model.Alert(nil), alerts...)
		return out
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	// Spatial pass: bucket located alerts into cells roughly the size of
	// the distance threshold and compare within the 3x3 neighborhood.
	const cellDeg = DistanceThresholdM / 111320.0
	cells := map[[2]int][]int{}
	for i, a := range alerts {
		if a.Coordinates == nil {
			continue
		}
		key := [2]int{
			int(math.Floor(a.Coordinates.Lat / cellDeg)),
			int(math.Floor(a.Coordinates.Lng / (cellDeg * 2))),
		}
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				for _, j := range cells[[2]int{key[0] + dy, key[1] + dx}] {
					b := alerts[j]
					d := gtfs.HaversineM(a.Coordinates.Lat, a.Coordinates.Lng, b.Coordinates.Lat, b.Coordinates.Lng)
					if d <= DistanceThresholdM {
						union(i, j)
					}
				}
			}
		}
		cells[key] = append(cells[key], i)
	}

	// Text pass: token-prefix grouping applies only when at least one side
	// lacks coordinates. Coordinate evidence always wins over text.
	byToken := map[string][]int{}
	for i, a := range alerts {
		key := tokenPrefix(a.Location)
		if key == "" {
			continue
		}
		for _, j := range byToken[key] {
			if a.Coordinates != nil && alerts[j].Coordinates != nil {
				continue
			}
			union(i, j)
		}
		byToken[key] = append(byToken[key], i)
	}

	groups := map[int][]int{}
	for i := range alerts {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	out := make([]model.Alert, 0, len(groups))
	for _, members := range groups {
		out = append(out, e.mergeGroup(alerts, members))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mergeGroup collapses one candidate group around its anchor.
func (e *Engine) mergeGroup(alerts []model.Alert, members []int) model.Alert {
	anchor := members[0]
	for _, i := range members[1:] {
		if e.moreAuthoritative(alerts[i], alerts[anchor]) {
			anchor = i
		}
	}

	merged := alerts[anchor]
	sources := []string{}
	routes := []string{}
	latest := merged.LastUpdated
	severity := merged.Severity
	status := merged.Status
	method := merged.RouteMatchMethod
	located := -1
	for _, i := range members {
		a := alerts[i]
		if len(a.Sources) > 0 {
			sources = append(sources, a.Sources...)
		} else {
			sources = append(sources, a.Source)
		}
		routes = append(routes, a.AffectsRoutes...)
		if a.LastUpdated.After(latest) {
			latest = a.LastUpdated
		}
		if a.Severity.Rank() > severity.Rank() {
			severity = a.Severity
		}
		if statusRank(a.Status) > statusRank(status) {
			status = a.Status
		}
		if methodRank(a.RouteMatchMethod) > methodRank(method) {
			method = a.RouteMatchMethod
		}
		if a.Coordinates != nil && (located < 0 || e.moreAuthoritative(a, alerts[located])) {
			located = i
		}
	}
	// anchor without coordinates borrows from the highest-ranked located
	// member, so the backfill does not depend on input order
	if merged.Coordinates == nil && located >= 0 {
		merged.Coordinates = alerts[located].Coordinates
	}
	merged.Sources = model.SortedUnique(sources)
	merged.AffectsRoutes = model.SortedUnique(routes)
	merged.LastUpdated = latest
	merged.Severity = severity
	merged.Status = status
	merged.RouteMatchMethod = method
	return merged
}

// moreAuthoritative reports whether a should anchor the group over b.
// Higher source authority wins; ties go to the earliest update, then to the
// smaller id, so anchor choice is independent of input order.
func (e *Engine) moreAuthoritative(a, b model.Alert) bool {
	ra, rb := e.authority[a.Source], e.authority[b.Source]
	if ra != rb {
		return ra > rb
	}
	if !a.LastUpdated.Equal(b.LastUpdated) {
		return a.LastUpdated.Before(b.LastUpdated)
	}
	return a.ID < b.ID
}

func statusRank(s model.Status) int {
	switch s {
	case model.StatusRed:
		return 3
	case model.StatusAmber:
		return 2
	case model.StatusGreen:
		return 1
	}
	return 0
}

func methodRank(m model.MatchMethod) int {
	switch m {
	case model.MatchCoordinateGrid:
		return 2
	case model.MatchTextPattern:
		return 1
	}
	return 0
}

// stopwords excluded from the token-prefix key; they carry no location
// signal on their own.
var stopwords = map[string]struct{}{
	"the": {}, "at": {}, "on": {}, "near": {}, "in": {}, "of": {},
	"road": {}, "street": {}, "rd": {}, "st": {}, "and": {},
}

// tokenPrefix normalizes a location string to its first two meaningful
// words. Empty when fewer than two remain, so vague locations never group.
func tokenPrefix(location string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ', r == '\'':
			return r
		}
		return ' '
	}, strings.ToLower(location))
	words := make([]string, 0, 2)
	for _, w := range strings.Fields(cleaned) {
		if _, skip := stopwords[w]; skip || len(w) < 2 {
			continue
		}
		words = append(words, w)
		if len(words) == 2 {
			break
		}
	}
	if len(words) < 2 {
		return ""
	}
	return words[0] + " " + words[1]
}
