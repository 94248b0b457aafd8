package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/transitops/trafficwatch/config"
	"github.com/transitops/trafficwatch/model"
)

// MapQuestSource fetches the MapQuest traffic incidents API for a bounding
// box.
type MapQuestSource struct {
	id       string
	baseURL  string
	apiKey   string
	bbox     config.BBox
	client   *http.Client
	enricher *Enricher
}

// NewMapQuestSource builds the adapter from its source config.
func NewMapQuestSource(cfg config.SourceConfig, enricher *Enricher) *MapQuestSource {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = "https://www.mapquestapi.com/traffic/v2/incidents"
	}
	return &MapQuestSource{
		id:       cfg.ID,
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		bbox:     cfg.BBox,
		client:   &http.Client{},
		enricher: enricher,
	}
}

func (s *MapQuestSource) ID() string { return s.id }

type mapquestResponse struct {
	Incidents []struct {
		ID        string  `json:"id"`
		Type      int     `json:"type"`
		Severity  int     `json:"severity"`
		Lat       float64 `json:"lat"`
		Lng       float64 `json:"lng"`
		ShortDesc string  `json:"shortDesc"`
		FullDesc  string  `json:"fullDesc"`
		Street    string  `json:"street"`
		StartTime string  `json:"startTime"`
		EndTime   string  `json:"endTime"`
	} `json:"incidents"`
}

// Fetch pulls construction and incident records inside the bounding box.
func (s *MapQuestSource) Fetch(ctx context.Context) ([]model.Alert, model.SourceResult) {
	q := url.Values{}
	q.Set("key", s.apiKey)
	// MapQuest bounding box order is upper-left lat,lng, lower-right lat,lng
	q.Set("boundingBox", fmt.Sprintf("%f,%f,%f,%f", s.bbox.MaxLat, s.bbox.MinLng, s.bbox.MinLat, s.bbox.MaxLng))
	q.Set("filters", "construction,incidents,congestion")

	body, err := fetchBody(ctx, s.client, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, failure(ctx, err)
	}
	var resp mapquestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, failure(ctx, fmt.Errorf("parse mapquest payload: %w", err))
	}

	alerts := make([]model.Alert, 0, len(resp.Incidents))
	for _, inc := range resp.Incidents {
		raw := RawIncident{
			ID:          inc.ID,
			Type:        mapquestType(inc.Type),
			Title:       firstNonEmptyStr(inc.ShortDesc, "Traffic incident"),
			Description: inc.FullDesc,
			RoadName:    inc.Street,
			Severity:    mapquestSeverity(inc.Severity),
			Status:      model.StatusRed,
		}
		if inc.Lat != 0 || inc.Lng != 0 {
			raw.Lat, raw.Lng, raw.HasCoords = inc.Lat, inc.Lng, true
		}
		if t, err := time.Parse("2006-01-02T15:04:05", inc.StartTime); err == nil {
			raw.Updated = t
		}
		alerts = append(alerts, s.enricher.Enrich(ctx, s.id, raw))
	}
	return alerts, model.SourceResult{Success: true, Count: len(alerts), Method: "bbox"}
}

// mapquestType: 1 = construction, 3 = congestion/flow, everything else an
// incident.
func mapquestType(t int) model.AlertType {
	switch t {
	case 1:
		return model.TypeRoadwork
	case 3:
		return model.TypeCongestion
	default:
		return model.TypeIncident
	}
}

func mapquestSeverity(sev int) model.Severity {
	switch {
	case sev >= 3:
		return model.SeverityHigh
	case sev == 2:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
