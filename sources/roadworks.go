package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/transitops/trafficwatch/config"
	"github.com/transitops/trafficwatch/model"
)

// RoadworksSource fetches the council roadworks notification feed. Auth is
// an API key header rather than a query parameter.
type RoadworksSource struct {
	id       string
	url      string
	apiKey   string
	bbox     config.BBox
	client   *http.Client
	enricher *Enricher
}

// NewRoadworksSource builds the adapter from its source config.
func NewRoadworksSource(cfg config.SourceConfig, enricher *Enricher) *RoadworksSource {
	return &RoadworksSource{
		id:       cfg.ID,
		url:      cfg.URL,
		apiKey:   cfg.APIKey,
		bbox:     cfg.BBox,
		client:   &http.Client{},
		enricher: enricher,
	}
}

func (s *RoadworksSource) ID() string { return s.id }

type roadworksResponse struct {
	Works []struct {
		ID          string  `json:"id"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Road        string  `json:"road"`
		Lat         float64 `json:"lat"`
		Lng         float64 `json:"lng"`
		Starts      string  `json:"starts"`
		Ends        string  `json:"ends"`
		Status      string  `json:"status"` // planned | upcoming | active
	} `json:"works"`
}

// Fetch pulls the full notification list and keeps entries inside the
// service bounding box.
func (s *RoadworksSource) Fetch(ctx context.Context) ([]model.Alert, model.SourceResult) {
	header := http.Header{}
	if s.apiKey != "" {
		header.Set("X-API-Key", s.apiKey)
	}
	body, err := fetchBody(ctx, s.client, s.url, header)
	if err != nil {
		return nil, failure(ctx, err)
	}
	var resp roadworksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, failure(ctx, fmt.Errorf("parse roadworks payload: %w", err))
	}

	alerts := make([]model.Alert, 0, len(resp.Works))
	for _, w := range resp.Works {
		hasCoords := w.Lat != 0 || w.Lng != 0
		if hasCoords && !s.bbox.Contains(w.Lat, w.Lng) {
			continue
		}
		raw := RawIncident{
			ID:          w.ID,
			Type:        model.TypeRoadwork,
			Title:       firstNonEmptyStr(w.Title, "Roadworks"),
			Description: w.Description,
			RoadName:    w.Road,
			Severity:    roadworksSeverity(w.Starts),
			Status:      roadworksStatus(w.Status),
		}
		if hasCoords {
			raw.Lat, raw.Lng, raw.HasCoords = w.Lat, w.Lng, true
		}
		if t, err := time.Parse(time.RFC3339, w.Starts); err == nil {
			raw.Updated = t
		}
		alerts = append(alerts, s.enricher.Enrich(ctx, s.id, raw))
	}
	return alerts, model.SourceResult{Success: true, Count: len(alerts), Method: "list"}
}

// roadworksSeverity grades by imminence: works already underway or starting
// within a day matter more than ones weeks out.
func roadworksSeverity(starts string) model.Severity {
	t, err := time.Parse(time.RFC3339, starts)
	if err != nil {
		return model.SeverityLow
	}
	if time.Until(t) <= 24*time.Hour {
		return model.SeverityMedium
	}
	return model.SeverityLow
}

func roadworksStatus(status string) model.Status {
	switch status {
	case "active":
		return model.StatusRed
	case "upcoming":
		return model.StatusAmber
	default:
		return model.StatusGreen
	}
}
