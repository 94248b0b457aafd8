package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/transitops/trafficwatch/config"
	"github.com/transitops/trafficwatch/model"
)

// HereSource fetches the HERE traffic incidents API for a circle around the
// region centre.
type HereSource struct {
	id       string
	baseURL  string
	apiKey   string
	bbox     config.BBox
	radiusM  int
	client   *http.Client
	enricher *Enricher
}

// NewHereSource builds the adapter from its source config. The circle
// centre is the bbox centre; radiusM defaults to covering the box.
func NewHereSource(cfg config.SourceConfig, enricher *Enricher) *HereSource {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = "https://data.traffic.hereapi.com/v7/incidents"
	}
	radius := cfg.RadiusM
	if radius == 0 {
		radius = 25000
	}
	return &HereSource{
		id:       cfg.ID,
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		bbox:     cfg.BBox,
		radiusM:  radius,
		client:   &http.Client{},
		enricher: enricher,
	}
}

func (s *HereSource) ID() string { return s.id }

type hereResponse struct {
	Results []struct {
		Location struct {
			Shape struct {
				Links []struct {
					Points []struct {
						Lat float64 `json:"lat"`
						Lng float64 `json:"lng"`
					} `json:"points"`
				} `json:"links"`
			} `json:"shape"`
		} `json:"location"`
		IncidentDetails struct {
			ID          string `json:"id"`
			Type        string `json:"type"`
			Criticality string `json:"criticality"`
			RoadClosed  bool   `json:"roadClosed"`
			StartTime   string `json:"startTime"`
			EndTime     string `json:"endTime"`
			Description struct {
				Value string `json:"value"`
			} `json:"description"`
			Summary struct {
				Value string `json:"value"`
			} `json:"summary"`
		} `json:"incidentDetails"`
	} `json:"results"`
}

// Fetch pulls incidents inside the configured circle.
func (s *HereSource) Fetch(ctx context.Context) ([]model.Alert, model.SourceResult) {
	centerLat := (s.bbox.MinLat + s.bbox.MaxLat) / 2
	centerLng := (s.bbox.MinLng + s.bbox.MaxLng) / 2
	q := url.Values{}
	q.Set("apiKey", s.apiKey)
	q.Set("in", fmt.Sprintf("circle:%f,%f;r=%d", centerLat, centerLng, s.radiusM))
	q.Set("locationReferencing", "shape")

	body, err := fetchBody(ctx, s.client, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, failure(ctx, err)
	}
	var resp hereResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, failure(ctx, fmt.Errorf("parse here payload: %w", err))
	}

	alerts := make([]model.Alert, 0, len(resp.Results))
	for _, res := range resp.Results {
		d := res.IncidentDetails
		raw := RawIncident{
			ID:          d.ID,
			Type:        hereType(d.Type),
			Title:       firstNonEmptyStr(d.Summary.Value, "Traffic incident"),
			Description: d.Description.Value,
			Severity:    hereSeverity(d.Criticality, d.RoadClosed),
			Status:      hereStatus(d.StartTime),
		}
		if len(res.Location.Shape.Links) > 0 && len(res.Location.Shape.Links[0].Points) > 0 {
			p := res.Location.Shape.Links[0].Points[0]
			raw.Lat, raw.Lng, raw.HasCoords = p.Lat, p.Lng, true
		}
		if t, err := time.Parse(time.RFC3339, d.StartTime); err == nil {
			raw.Updated = t
		}
		alerts = append(alerts, s.enricher.Enrich(ctx, s.id, raw))
	}
	return alerts, model.SourceResult{Success: true, Count: len(alerts), Method: "circle"}
}

func hereType(t string) model.AlertType {
	switch strings.ToLower(t) {
	case "construction", "roadworks":
		return model.TypeRoadwork
	case "congestion", "flow":
		return model.TypeCongestion
	default:
		return model.TypeIncident
	}
}

func hereSeverity(criticality string, roadClosed bool) model.Severity {
	if roadClosed {
		return model.SeverityHigh
	}
	switch strings.ToLower(criticality) {
	case "critical", "major":
		return model.SeverityHigh
	case "minor":
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// hereStatus marks incidents that have not started yet as upcoming.
func hereStatus(startTime string) model.Status {
	if t, err := time.Parse(time.RFC3339, startTime); err == nil && t.After(time.Now()) {
		return model.StatusAmber
	}
	return model.StatusRed
}

func firstNonEmptyStr(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
