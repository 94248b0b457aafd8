package match

import (
	"reflect"
	"testing"

	"github.com/transitops/trafficwatch/gtfs"
	"github.com/transitops/trafficwatch/model"
)

// testIndex builds a tiny network: two stops on O'Connell Street served by
// routes r1 ("46A") and r2 ("C1"), and one shape along the M50 for r3 ("X25").
func testIndex() (*gtfs.Index, *gtfs.Grid) {
	idx := gtfs.NewIndex()
	idx.Stops["s1"] = gtfs.Stop{ID: "s1", Name: "O'Connell Upper", Lat: 53.3522, Lng: -6.2605}
	idx.Stops["s2"] = gtfs.Stop{ID: "s2", Name: "O'Connell Lower", Lat: 53.3498, Lng: -6.2603}
	idx.RouteShortNames["r1"] = "46A"
	idx.RouteShortNames["r2"] = "C1"
	idx.RouteShortNames["r3"] = "X25"
	idx.StopToRoutes["s1"] = []string{"r1", "r2"}
	idx.StopToRoutes["s2"] = []string{"r1"}
	idx.ShapePoints["sh3"] = [][2]float64{
		{53.3050, -6.4420},
		{53.3065, -6.4418},
		{53.3080, -6.4415},
	}
	idx.ShapeToRoutes["sh3"] = []string{"r3"}
	return idx, gtfs.BuildGrid(idx, 500)
}

func testTable() PatternTable {
	return PatternTable{
		Version: 1,
		Rules: []PatternRule{
			{Tokens: []string{"o'connell"}, Routes: []string{"46A", "C1"}},
			{Tokens: []string{"m50", "western parkway"}, Routes: []string{"X25"}},
		},
	}
}

func TestMatchCoordinateGrid(t *testing.T) {
	idx, grid := testIndex()
	m := New(idx, grid, 250, testTable())

	tests := []struct {
		name       string
		coords     *model.Coordinates
		wantRoutes []string
	}{
		{"near both stops", &model.Coordinates{Lat: 53.3510, Lng: -6.2604}, []string{"46A", "C1"}},
		{"on the shape", &model.Coordinates{Lat: 53.3066, Lng: -6.4419}, []string{"X25"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routes, method := m.Match("", tt.coords, "")
			if method != model.MatchCoordinateGrid {
				t.Errorf("method = %q, want %q", method, model.MatchCoordinateGrid)
			}
			if !reflect.DeepEqual(routes, tt.wantRoutes) {
				t.Errorf("routes = %v, want %v", routes, tt.wantRoutes)
			}
		})
	}
}

func TestMatchTextFallback(t *testing.T) {
	idx, grid := testIndex()
	m := New(idx, grid, 250, testTable())

	// no coordinates at all
	routes, method := m.Match("Lane closed on O'Connell Street", nil, "")
	if method != model.MatchTextPattern {
		t.Fatalf("method = %q, want %q", method, model.MatchTextPattern)
	}
	if !reflect.DeepEqual(routes, []string{"46A", "C1"}) {
		t.Fatalf("routes = %v", routes)
	}

	// coordinates far from the network fall through to text
	far := &model.Coordinates{Lat: 53.5000, Lng: -6.1000}
	routes, method = m.Match("Western Parkway southbound", far, "collision before J9")
	if method != model.MatchTextPattern {
		t.Fatalf("method = %q, want %q", method, model.MatchTextPattern)
	}
	if !reflect.DeepEqual(routes, []string{"X25"}) {
		t.Fatalf("routes = %v", routes)
	}
}

func TestCoordinatePathWinsOverText(t *testing.T) {
	idx, grid := testIndex()
	m := New(idx, grid, 250, testTable())

	// location text says M50 but the point sits on O'Connell Street;
	// the spatial evidence decides.
	coords := &model.Coordinates{Lat: 53.3521, Lng: -6.2606}
	routes, method := m.Match("M50 incident", coords, "")
	if method != model.MatchCoordinateGrid {
		t.Fatalf("method = %q, want %q", method, model.MatchCoordinateGrid)
	}
	if !reflect.DeepEqual(routes, []string{"46A", "C1"}) {
		t.Fatalf("routes = %v", routes)
	}
}

func TestMatchNothing(t *testing.T) {
	idx, grid := testIndex()
	m := New(idx, grid, 250, testTable())

	routes, method := m.Match("somewhere in Wicklow", &model.Coordinates{Lat: 52.98, Lng: -6.04}, "")
	if method != model.MatchNone {
		t.Fatalf("method = %q, want %q", method, model.MatchNone)
	}
	if len(routes) != 0 {
		t.Fatalf("routes = %v, want none", routes)
	}
}

func TestLoadEmbeddedPatterns(t *testing.T) {
	table, err := LoadPatterns("")
	if err != nil {
		t.Fatalf("LoadPatterns: %v", err)
	}
	if len(table.Rules) == 0 {
		t.Fatal("embedded pattern table is empty")
	}
	for i, rule := range table.Rules {
		if len(rule.Tokens) == 0 || len(rule.Routes) == 0 {
			t.Errorf("rule %d missing tokens or routes: %+v", i, rule)
		}
	}
}
