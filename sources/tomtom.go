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

// TomTomSource fetches the TomTom incident details API for a bounding box.
type TomTomSource struct {
	id       string
	baseURL  string
	apiKey   string
	bbox     config.BBox
	client   *http.Client
	enricher *Enricher
}

// NewTomTomSource builds the adapter from its source config.
func NewTomTomSource(cfg config.SourceConfig, enricher *Enricher) *TomTomSource {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = "https://api.tomtom.com/traffic/services/5/incidentDetails"
	}
	return &TomTomSource{
		id:       cfg.ID,
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		bbox:     cfg.BBox,
		client:   &http.Client{},
		enricher: enricher,
	}
}

func (s *TomTomSource) ID() string { return s.id }

type tomtomResponse struct {
	Incidents []struct {
		Properties struct {
			ID                string `json:"id"`
			IconCategory      int    `json:"iconCategory"`
			MagnitudeOfDelay  int    `json:"magnitudeOfDelay"`
			From              string `json:"from"`
			To                string `json:"to"`
			RoadNumbers       []string `json:"roadNumbers"`
			StartTime         string `json:"startTime"`
			LastReportTime    string `json:"lastReportTime"`
			Events            []struct {
				Description string `json:"description"`
			} `json:"events"`
		} `json:"properties"`
		Geometry struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
	} `json:"incidents"`
}

// Fetch pulls incidents inside the configured bounding box.
func (s *TomTomSource) Fetch(ctx context.Context) ([]model.Alert, model.SourceResult) {
	q := url.Values{}
	q.Set("key", s.apiKey)
	// TomTom bbox order is minLon,minLat,maxLon,maxLat
	q.Set("bbox", fmt.Sprintf("%f,%f,%f,%f", s.bbox.MinLng, s.bbox.MinLat, s.bbox.MaxLng, s.bbox.MaxLat))
	q.Set("fields", "{incidents{properties{id,iconCategory,magnitudeOfDelay,from,to,roadNumbers,startTime,lastReportTime,events{description}},geometry{type,coordinates}}}")

	body, err := fetchBody(ctx, s.client, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, failure(ctx, err)
	}
	var resp tomtomResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, failure(ctx, fmt.Errorf("parse tomtom payload: %w", err))
	}

	alerts := make([]model.Alert, 0, len(resp.Incidents))
	for _, inc := range resp.Incidents {
		p := inc.Properties
		raw := RawIncident{
			ID:       p.ID,
			Type:     tomtomType(p.IconCategory),
			Severity: tomtomSeverity(p.MagnitudeOfDelay),
			Status:   model.StatusRed,
		}
		if lat, lng, ok := firstPoint(inc.Geometry.Type, inc.Geometry.Coordinates); ok {
			raw.Lat, raw.Lng, raw.HasCoords = lat, lng, true
		}
		if len(p.Events) > 0 {
			raw.Title = p.Events[0].Description
		}
		if raw.Title == "" {
			raw.Title = "Traffic incident"
		}
		raw.Description = describeSegment(p.From, p.To)
		if len(p.RoadNumbers) > 0 {
			raw.RoadName = p.RoadNumbers[0]
			if raw.Description != "" {
				raw.Description = p.RoadNumbers[0] + ": " + raw.Description
			}
		}
		if t, err := time.Parse(time.RFC3339, p.LastReportTime); err == nil {
			raw.Updated = t
		} else if t, err := time.Parse(time.RFC3339, p.StartTime); err == nil {
			raw.Updated = t
		}
		alerts = append(alerts, s.enricher.Enrich(ctx, s.id, raw))
	}
	return alerts, model.SourceResult{Success: true, Count: len(alerts), Method: "bbox"}
}

// firstPoint extracts the first coordinate of a GeoJSON Point or LineString
// geometry, returned as TomTom emits it: [lng, lat].
func firstPoint(geomType string, coords json.RawMessage) (lat, lng float64, ok bool) {
	switch strings.ToLower(geomType) {
	case "point":
		var pt [2]float64
		if json.Unmarshal(coords, &pt) == nil {
			return pt[1], pt[0], true
		}
	case "linestring":
		var line [][2]float64
		if json.Unmarshal(coords, &line) == nil && len(line) > 0 {
			return line[0][1], line[0][0], true
		}
	}
	return 0, 0, false
}

func describeSegment(from, to string) string {
	switch {
	case from != "" && to != "":
		return from + " to " + to
	case from != "":
		return from
	default:
		return to
	}
}

// tomtomType maps TomTom icon categories to the coarse alert buckets.
// 6 = jam, 8 = road closed, 9 = road works.
func tomtomType(iconCategory int) model.AlertType {
	switch iconCategory {
	case 6:
		return model.TypeCongestion
	case 9:
		return model.TypeRoadwork
	default:
		return model.TypeIncident
	}
}

func tomtomSeverity(magnitude int) model.Severity {
	switch {
	case magnitude >= 3:
		return model.SeverityHigh
	case magnitude == 2:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
