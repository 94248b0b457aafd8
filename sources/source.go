package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/transitops/trafficwatch/model"
)

// Adapter is the common contract every feed adapter implements. Fetch must
// run to completion within ctx and never panic; failures are reported in
// the SourceResult with an empty alert slice.
type Adapter interface {
	ID() string
	Fetch(ctx context.Context) ([]model.Alert, model.SourceResult)
}

// RawIncident is a source-native record, carrying whatever fields the
// provider supplied before enrichment.
type RawIncident struct {
	ID          string
	Type        model.AlertType
	Title       string
	Description string
	Lat, Lng    float64
	HasCoords   bool
	RoadName    string // native street/road hint, may be empty
	Severity    model.Severity
	Status      model.Status
	Updated     time.Time

	// Pre-resolved routes, set only by feeds that name routes natively
	// (GTFS-RT informed entities, manual incidents).
	Routes []string
}

// LocationResolver is satisfied by geocode.Resolver.
type LocationResolver interface {
	Resolve(ctx context.Context, coords *model.Coordinates, hint string) string
}

// RouteMatcher is satisfied by match.Matcher.
type RouteMatcher interface {
	Match(location string, coords *model.Coordinates, freeText string) ([]string, model.MatchMethod)
}

// Enricher turns raw incidents into canonical alerts. Enrichment failures
// degrade the alert rather than dropping the incident.
type Enricher struct {
	Resolver LocationResolver
	Matcher  RouteMatcher
}

// Enrich resolves the incident's location and affected routes and builds
// the alert, id-prefixed with the source.
func (e *Enricher) Enrich(ctx context.Context, sourceID string, raw RawIncident) model.Alert {
	var coords *model.Coordinates
	if raw.HasCoords {
		coords = &model.Coordinates{Lat: raw.Lat, Lng: raw.Lng}
	}
	location := e.Resolver.Resolve(ctx, coords, raw.RoadName)

	routes := raw.Routes
	method := model.MatchNone
	if len(routes) > 0 {
		// natively named routes are at least as trustworthy as a spatial
		// match, so they report the high-confidence bucket
		method = model.MatchCoordinateGrid
	} else if e.Matcher != nil {
		routes, method = e.Matcher.Match(location, coords, raw.Title+" "+raw.Description)
	}

	updated := raw.Updated
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	alert := model.Alert{
		ID:               sourceID + "-" + raw.ID,
		Type:             raw.Type,
		Title:            raw.Title,
		Description:      raw.Description,
		Location:         location,
		Coordinates:      coords,
		Severity:         raw.Severity,
		Status:           raw.Status,
		Source:           sourceID,
		Sources:          []string{sourceID},
		AffectsRoutes:    routes,
		RouteMatchMethod: method,
		LastUpdated:      updated,
	}
	alert.NormalizeRoutes()
	return alert
}

// fetchBody issues a GET bounded by ctx and returns the response body.
// header may be nil.
func fetchBody(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// failure builds the diagnostic for an adapter-local error. ctx timeouts
// surface as a plain "timeout" reason for the cycle metadata.
func failure(ctx context.Context, err error) model.SourceResult {
	msg := err.Error()
	if ctx.Err() == context.DeadlineExceeded {
		msg = "timeout"
	}
	return model.SourceResult{Success: false, Count: 0, Error: msg}
}
