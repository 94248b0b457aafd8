package aggregator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/transitops/trafficwatch/config"
	"github.com/transitops/trafficwatch/dedupe"
	"github.com/transitops/trafficwatch/gtfs"
	"github.com/transitops/trafficwatch/match"
	"github.com/transitops/trafficwatch/model"
	"github.com/transitops/trafficwatch/scheduler"
	"github.com/transitops/trafficwatch/sources"
)

func adapterList(ads ...sources.Adapter) []sources.Adapter { return ads }

type stubAdapter struct {
	id     string
	alerts []model.Alert
	result model.SourceResult
	delay  time.Duration
}

func (s *stubAdapter) ID() string { return s.id }

func (s *stubAdapter) Fetch(ctx context.Context) ([]model.Alert, model.SourceResult) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, model.SourceResult{Success: false, Error: "timeout"}
		}
	}
	return s.alerts, s.result
}

type memFeedStore struct {
	mu    sync.Mutex
	saved []model.Feed
}

func (m *memFeedStore) SaveFeed(feed model.Feed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, feed)
	return nil
}

func openSchedule(t *testing.T, ids ...string) *scheduler.Scheduler {
	t.Helper()
	var srcs []config.SourceConfig
	for _, id := range ids {
		srcs = append(srcs, config.SourceConfig{
			ID:    id,
			Quota: config.QuotaConfig{DailyQuota: 100},
		})
	}
	return scheduler.New(srcs, time.UTC, nil, zaptest.NewLogger(t))
}

var testAuthority = map[string]int{"tomtom": 1, "here": 1, "manual": 4}

func feedAlert(id, source string, lat, lng float64, sev model.Severity) model.Alert {
	return model.Alert{
		ID:          id,
		Type:        model.TypeIncident,
		Title:       "incident " + id,
		Location:    "Dame Street, Dublin",
		Coordinates: &model.Coordinates{Lat: lat, Lng: lng},
		Severity:    sev,
		Status:      model.StatusRed,
		Source:      source,
		Sources:     []string{source},
		LastUpdated: time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC),
	}
}

func TestCycleMergesAcrossSources(t *testing.T) {
	// two sources report the same incident about 50m apart
	tom := &stubAdapter{
		id:     "tomtom",
		alerts: []model.Alert{feedAlert("tomtom-1", "tomtom", 53.3441, -6.2675, model.SeverityMedium)},
		result: model.SourceResult{Success: true, Count: 1, Method: "bbox"},
	}
	her := &stubAdapter{
		id:     "here",
		alerts: []model.Alert{feedAlert("here-9", "here", 53.3445, -6.2673, model.SeverityHigh)},
		result: model.SourceResult{Success: true, Count: 1, Method: "circle"},
	}

	store := &memFeedStore{}
	agg := New(config.AggregatorConfig{CycleTimeoutSeconds: 10, AdapterTimeoutSeconds: 5},
		openSchedule(t, "tomtom", "here"), adapterList(tom, her),
		dedupe.NewEngine(testAuthority), store, zaptest.NewLogger(t))

	feed := agg.RunCycle(context.Background())

	require.True(t, feed.Success)
	require.Len(t, feed.Alerts, 1)
	assert.ElementsMatch(t, []string{"here", "tomtom"}, feed.Alerts[0].Sources)
	assert.Equal(t, model.SeverityHigh, feed.Alerts[0].Severity)
	assert.Equal(t, 1, feed.Metadata.TotalAlerts)
	assert.True(t, feed.Metadata.Sources["tomtom"].Success)
	assert.True(t, feed.Metadata.Sources["here"].Success)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.saved, 1)
}

func TestCycleSurvivesSlowSource(t *testing.T) {
	fast := &stubAdapter{
		id:     "tomtom",
		alerts: []model.Alert{feedAlert("tomtom-1", "tomtom", 53.3441, -6.2675, model.SeverityMedium)},
		result: model.SourceResult{Success: true, Count: 1, Method: "bbox"},
	}
	slow := &stubAdapter{
		id:    "here",
		delay: 5 * time.Second,
	}

	agg := New(config.AggregatorConfig{CycleTimeoutSeconds: 2, AdapterTimeoutSeconds: 1},
		openSchedule(t, "tomtom", "here"), adapterList(fast, slow),
		dedupe.NewEngine(testAuthority), nil, zaptest.NewLogger(t))

	feed := agg.RunCycle(context.Background())

	require.True(t, feed.Success)
	require.Len(t, feed.Alerts, 1)
	assert.Equal(t, "tomtom-1", feed.Alerts[0].ID)
	assert.True(t, feed.Metadata.Sources["tomtom"].Success)
	assert.False(t, feed.Metadata.Sources["here"].Success)
	assert.Equal(t, "timeout", feed.Metadata.Sources["here"].Error)
}

func TestRefusedSourceReportedInDiagnostics(t *testing.T) {
	ad := &stubAdapter{
		id:     "tomtom",
		alerts: []model.Alert{feedAlert("tomtom-1", "tomtom", 53.3441, -6.2675, model.SeverityLow)},
		result: model.SourceResult{Success: true, Count: 1, Method: "bbox"},
	}
	sched := scheduler.New([]config.SourceConfig{
		{ID: "tomtom", Quota: config.QuotaConfig{DailyQuota: 1}},
	}, time.UTC, nil, zaptest.NewLogger(t))

	agg := New(config.AggregatorConfig{CycleTimeoutSeconds: 10, AdapterTimeoutSeconds: 5},
		sched, adapterList(ad), dedupe.NewEngine(testAuthority), nil, zaptest.NewLogger(t))

	first := agg.RunCycle(context.Background())
	require.Len(t, first.Alerts, 1)

	second := agg.RunCycle(context.Background())
	assert.True(t, second.Success)
	assert.Empty(t, second.Alerts)
	res := second.Metadata.Sources["tomtom"]
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "quota exhausted")
}

func TestAlertIDsStableAcrossCycles(t *testing.T) {
	tom := feedAlert("tomtom-1", "tomtom", 53.3441, -6.2675, model.SeverityMedium)
	both := &stubAdapter{
		id:     "tomtom",
		alerts: []model.Alert{tom},
		result: model.SourceResult{Success: true, Count: 1, Method: "bbox"},
	}
	agg := New(config.AggregatorConfig{CycleTimeoutSeconds: 10, AdapterTimeoutSeconds: 5},
		openSchedule(t, "tomtom"), adapterList(both),
		dedupe.NewEngine(testAuthority), nil, zaptest.NewLogger(t))

	first := agg.RunCycle(context.Background())
	require.Len(t, first.Alerts, 1)
	firstID := first.Alerts[0].ID

	// next cycle the source re-reports the incident under a new raw id,
	// a few meters along the road
	moved := tom
	moved.ID = "tomtom-17"
	moved.Coordinates = &model.Coordinates{Lat: 53.3442, Lng: -6.2674}
	both.alerts = []model.Alert{moved}

	second := agg.RunCycle(context.Background())
	require.Len(t, second.Alerts, 1)
	assert.Equal(t, firstID, second.Alerts[0].ID)
}

func TestStabilizedIDsStayUnique(t *testing.T) {
	// one incident last cycle; this cycle the source reports two distinct
	// incidents on opposite carriageways, each within the stability
	// threshold of the old one but too far apart to merge with each other
	prev := feedAlert("tomtom-1", "tomtom", 53.3441, -6.2675, model.SeverityMedium)
	north := feedAlert("tomtom-8", "tomtom", 53.3451, -6.2675, model.SeverityMedium)
	south := feedAlert("tomtom-9", "tomtom", 53.3431, -6.2675, model.SeverityMedium)
	north.Location = "N11 northbound"
	south.Location = "N11 southbound"

	alerts := []model.Alert{north, south}
	stabilizeIDs(alerts, []model.Alert{prev})

	require.NotEqual(t, alerts[0].ID, alerts[1].ID, "one previous-cycle id claimed twice")
	assert.Equal(t, "tomtom-1", alerts[0].ID)
	assert.Equal(t, "tomtom-9", alerts[1].ID)
}

// enrichingAdapter runs its raw incident through the real enrichment chain,
// unlike the canned stubs above.
type enrichingAdapter struct {
	id       string
	enricher *sources.Enricher
	raw      sources.RawIncident
}

func (a *enrichingAdapter) ID() string { return a.id }

func (a *enrichingAdapter) Fetch(ctx context.Context) ([]model.Alert, model.SourceResult) {
	return []model.Alert{a.enricher.Enrich(ctx, a.id, a.raw)},
		model.SourceResult{Success: true, Count: 1, Method: "bbox"}
}

type hintResolver struct{}

func (hintResolver) Resolve(_ context.Context, _ *model.Coordinates, hint string) string {
	if hint != "" {
		return hint
	}
	return "Greater Dublin"
}

func TestCycleCoordinateMatchBeatsText(t *testing.T) {
	// the incident sits on a stop served by the 46A while its text names
	// the M50; the published alert must carry the spatial result
	idx := gtfs.NewIndex()
	idx.Stops["s1"] = gtfs.Stop{ID: "s1", Name: "Donnybrook Church", Lat: 53.3522, Lng: -6.2605}
	idx.RouteShortNames["r1"] = "46A"
	idx.StopToRoutes["s1"] = []string{"r1"}
	matcher := match.New(idx, gtfs.BuildGrid(idx, 500), 250, match.PatternTable{
		Version: 1,
		Rules:   []match.PatternRule{{Tokens: []string{"m50"}, Routes: []string{"X25"}}},
	})

	ad := &enrichingAdapter{
		id:       "tomtom",
		enricher: &sources.Enricher{Resolver: hintResolver{}, Matcher: matcher},
		raw: sources.RawIncident{
			ID:        "1",
			Type:      model.TypeIncident,
			Title:     "Collision before the M50 merge",
			Lat:       53.3523,
			Lng:       -6.2605,
			HasCoords: true,
			RoadName:  "M50 northbound approach",
			Severity:  model.SeverityHigh,
			Status:    model.StatusRed,
		},
	}
	agg := New(config.AggregatorConfig{CycleTimeoutSeconds: 10, AdapterTimeoutSeconds: 5},
		openSchedule(t, "tomtom"), adapterList(ad),
		dedupe.NewEngine(testAuthority), nil, zaptest.NewLogger(t))

	feed := agg.RunCycle(context.Background())
	require.Len(t, feed.Alerts, 1)
	a := feed.Alerts[0]
	assert.Equal(t, []string{"46A"}, a.AffectsRoutes)
	assert.Equal(t, model.MatchCoordinateGrid, a.RouteMatchMethod)
	assert.Equal(t, "M50 northbound approach", a.Location)
}

func TestPublishedOrderDeterministic(t *testing.T) {
	base := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	a := feedAlert("tomtom-a", "tomtom", 53.30, -6.40, model.SeverityLow)
	b := feedAlert("tomtom-b", "tomtom", 53.40, -6.20, model.SeverityHigh)
	c := feedAlert("tomtom-c", "tomtom", 53.35, -6.10, model.SeverityHigh)
	b.LastUpdated = base.Add(time.Minute)
	c.LastUpdated = base

	ad := &stubAdapter{
		id:     "tomtom",
		alerts: []model.Alert{a, b, c},
		result: model.SourceResult{Success: true, Count: 3, Method: "bbox"},
	}
	agg := New(config.AggregatorConfig{CycleTimeoutSeconds: 10, AdapterTimeoutSeconds: 5},
		openSchedule(t, "tomtom"), adapterList(ad),
		dedupe.NewEngine(testAuthority), nil, zaptest.NewLogger(t))

	feed := agg.RunCycle(context.Background())
	require.Len(t, feed.Alerts, 3)
	assert.Equal(t, "tomtom-b", feed.Alerts[0].ID) // high severity, newest
	assert.Equal(t, "tomtom-c", feed.Alerts[1].ID) // high severity, older
	assert.Equal(t, "tomtom-a", feed.Alerts[2].ID) // low severity
}

func TestEmptyCycleStillPublishes(t *testing.T) {
	failing := &stubAdapter{
		id:     "tomtom",
		result: model.SourceResult{Success: false, Error: "HTTP 503"},
	}
	agg := New(config.AggregatorConfig{CycleTimeoutSeconds: 10, AdapterTimeoutSeconds: 5},
		openSchedule(t, "tomtom"), adapterList(failing),
		dedupe.NewEngine(testAuthority), nil, zaptest.NewLogger(t))

	feed := agg.RunCycle(context.Background())
	assert.True(t, feed.Success)
	assert.NotNil(t, feed.Alerts)
	assert.Empty(t, feed.Alerts)
	assert.Equal(t, "HTTP 503", feed.Metadata.Sources["tomtom"].Error)
	assert.Equal(t, PhaseIdle, agg.Phase())
	assert.NotEmpty(t, feed.Metadata.LastUpdated)
}
