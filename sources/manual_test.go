package sources

import (
	"context"
	"reflect"
	"testing"

	"github.com/transitops/trafficwatch/model"
)

func TestManualStoreLifecycle(t *testing.T) {
	enricher := &Enricher{
		Resolver: stubResolver{location: "Dublin City Centre"},
		Matcher:  stubMatcher{routes: []string{"16"}, method: model.MatchTextPattern},
	}
	store := NewManualStore("manual", enricher)

	alert := store.Add(context.Background(), ManualIncident{
		Title:       "Garda checkpoint",
		Description: "Outbound lane closed",
		Location:    "Drumcondra Road Lower",
		Coordinates: &model.Coordinates{Lat: 53.3672, Lng: -6.2561},
		Routes:      []string{"11", "13", "11"},
	})

	if alert.ID == "manual-" || alert.ID == "" {
		t.Fatalf("id = %q", alert.ID)
	}
	if alert.Source != "manual" {
		t.Errorf("source = %q", alert.Source)
	}
	if alert.Type != model.TypeIncident {
		t.Errorf("default type = %q", alert.Type)
	}
	if alert.Severity != model.SeverityMedium {
		t.Errorf("default severity = %q", alert.Severity)
	}
	if alert.Location != "Drumcondra Road Lower" {
		t.Errorf("location = %q", alert.Location)
	}
	// operator-named routes pass through deduplicated, not matched
	if !reflect.DeepEqual(alert.AffectsRoutes, []string{"11", "13"}) {
		t.Errorf("routes = %v", alert.AffectsRoutes)
	}

	active := store.ListActive()
	if len(active) != 1 || active[0].ID != alert.ID {
		t.Fatalf("active = %v", active)
	}

	if store.Resolve("no-such-id") {
		t.Error("resolving unknown id should fail")
	}
	if !store.Resolve(alert.ID) {
		t.Error("resolving known id should succeed")
	}
	if got := store.ListActive(); len(got) != 0 {
		t.Errorf("active after resolve = %v", got)
	}
}

func TestManualSourceNeverFails(t *testing.T) {
	enricher := &Enricher{Resolver: stubResolver{location: "Dublin"}}
	store := NewManualStore("manual", enricher)
	src := NewManualSource("manual", store)

	alerts, result := src.Fetch(context.Background())
	if !result.Success || result.Method != "manual" || result.Count != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(alerts) != 0 {
		t.Fatalf("alerts = %v", alerts)
	}

	store.Add(context.Background(), ManualIncident{Title: "Burst water main", Location: "Thomas Street Dublin"})
	alerts, result = src.Fetch(context.Background())
	if !result.Success || result.Count != 1 || len(alerts) != 1 {
		t.Fatalf("result = %+v alerts = %d", result, len(alerts))
	}
}
