package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitops/trafficwatch/model"
	"github.com/transitops/trafficwatch/scheduler"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestQuotaSnapshotRoundtrip(t *testing.T) {
	s := openTestStore(t)

	last := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)
	require.NoError(t, s.SaveQuota("tomtom", scheduler.Snapshot{
		CallsToday: 7, WindowDate: "2025-06-10", LastCallAt: last,
	}))
	require.NoError(t, s.SaveQuota("here", scheduler.Snapshot{
		CallsToday: 2, WindowDate: "2025-06-10", LastCallAt: last.Add(time.Minute),
	}))

	snaps, err := s.LoadQuotas()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 7, snaps["tomtom"].CallsToday)
	assert.Equal(t, "2025-06-10", snaps["tomtom"].WindowDate)
	assert.True(t, snaps["tomtom"].LastCallAt.Equal(last))

	// upsert replaces the existing row
	require.NoError(t, s.SaveQuota("tomtom", scheduler.Snapshot{
		CallsToday: 8, WindowDate: "2025-06-10", LastCallAt: last.Add(2 * time.Minute),
	}))
	snaps, err = s.LoadQuotas()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 8, snaps["tomtom"].CallsToday)
}

func TestFeedRoundtrip(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.LoadFeed()
	require.NoError(t, err)
	assert.False(t, ok, "empty store should report no feed")

	feed := model.Feed{
		Success: true,
		Alerts: []model.Alert{{
			ID:            "tomtom-1",
			Type:          model.TypeIncident,
			Title:         "Collision on the quays",
			Location:      "Bachelors Walk, Dublin 1",
			Coordinates:   &model.Coordinates{Lat: 53.3472, Lng: -6.2621},
			Severity:      model.SeverityHigh,
			Status:        model.StatusRed,
			Source:        "tomtom",
			Sources:       []string{"tomtom"},
			AffectsRoutes: []string{"39A", "70"},
			LastUpdated:   time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		}},
		Metadata: model.FeedMetadata{
			TotalAlerts: 1,
			Sources:     map[string]model.SourceResult{"tomtom": {Success: true, Count: 1, Method: "bbox"}},
			LastUpdated: "2025-06-10T09:00:00Z",
		},
	}
	require.NoError(t, s.SaveFeed(feed))

	loaded, ok, err := s.LoadFeed()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, loaded.Alerts, 1)
	assert.Equal(t, "tomtom-1", loaded.Alerts[0].ID)
	assert.Equal(t, []string{"39A", "70"}, loaded.Alerts[0].AffectsRoutes)
	require.NotNil(t, loaded.Alerts[0].Coordinates)
	assert.InDelta(t, 53.3472, loaded.Alerts[0].Coordinates.Lat, 1e-9)
	assert.Equal(t, 1, loaded.Metadata.TotalAlerts)

	// overwrite keeps a single feed row
	feed.Alerts = nil
	feed.Metadata.TotalAlerts = 0
	require.NoError(t, s.SaveFeed(feed))
	loaded, ok, err = s.LoadFeed()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, loaded.Alerts)
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveQuota("roadworks", scheduler.Snapshot{
		CallsToday: 3, WindowDate: "2025-06-10", LastCallAt: time.Now().UTC(),
	}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	snaps, err := s2.LoadQuotas()
	require.NoError(t, err)
	assert.Equal(t, 3, snaps["roadworks"].CallsToday)
}
