package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/transitops/trafficwatch/config"
	"github.com/transitops/trafficwatch/gtfs"
	"github.com/transitops/trafficwatch/model"
)

// RTAlertsSource fetches the transit agency's GTFS-RT Service Alerts
// protobuf feed. Informed entities that name routes skip route matching;
// the rest go through the normal enrichment chain.
type RTAlertsSource struct {
	id       string
	url      string
	index    *gtfs.Index
	client   *http.Client
	enricher *Enricher
}

// NewRTAlertsSource builds the adapter. index maps informed route ids to
// their display short names.
func NewRTAlertsSource(cfg config.SourceConfig, index *gtfs.Index, enricher *Enricher) *RTAlertsSource {
	return &RTAlertsSource{
		id:       cfg.ID,
		url:      cfg.URL,
		index:    index,
		client:   &http.Client{},
		enricher: enricher,
	}
}

func (s *RTAlertsSource) ID() string { return s.id }

// Fetch pulls and decodes the FeedMessage, keeping only entities that carry
// an Alert.
func (s *RTAlertsSource) Fetch(ctx context.Context) ([]model.Alert, model.SourceResult) {
	body, err := fetchBody(ctx, s.client, s.url, nil)
	if err != nil {
		return nil, failure(ctx, err)
	}
	fm := &gtfsrtpb.FeedMessage{}
	if err := proto.Unmarshal(body, fm); err != nil {
		return nil, failure(ctx, fmt.Errorf("parse gtfs-rt feed: %w", err))
	}

	var alerts []model.Alert
	for _, e := range fm.Entity {
		if e.Alert == nil {
			continue
		}
		a := e.Alert
		raw := RawIncident{
			Type:     rtAlertType(a.Effect),
			Severity: rtAlertSeverity(a.SeverityLevel),
			Status:   rtAlertStatus(a.ActivePeriod),
		}
		if e.Id != nil {
			raw.ID = *e.Id
		}
		if a.HeaderText != nil {
			raw.Title = translatedText(a.HeaderText)
		}
		if raw.Title == "" {
			raw.Title = "Service alert"
		}
		if a.DescriptionText != nil {
			raw.Description = translatedText(a.DescriptionText)
		}
		for _, ie := range a.InformedEntity {
			if ie.RouteId != nil && *ie.RouteId != "" {
				raw.Routes = append(raw.Routes, s.index.GetRouteShortName(*ie.RouteId))
			}
			if ie.StopId != nil && !raw.HasCoords {
				if stop, ok := s.index.Stops[*ie.StopId]; ok {
					raw.Lat, raw.Lng, raw.HasCoords = stop.Lat, stop.Lng, true
				}
			}
		}
		if fm.Header != nil && fm.Header.Timestamp != nil {
			raw.Updated = time.Unix(int64(*fm.Header.Timestamp), 0).UTC()
		}
		alerts = append(alerts, s.enricher.Enrich(ctx, s.id, raw))
	}
	return alerts, model.SourceResult{Success: true, Count: len(alerts), Method: "protobuf"}
}

// translatedText picks the first translation of a TranslatedString; feeds
// in this region publish a single language.
func translatedText(ts *gtfsrtpb.TranslatedString) string {
	if ts == nil {
		return ""
	}
	for _, tr := range ts.Translation {
		if tr.Text != nil && *tr.Text != "" {
			return *tr.Text
		}
	}
	return ""
}

func rtAlertType(effect *gtfsrtpb.Alert_Effect) model.AlertType {
	if effect == nil {
		return model.TypeIncident
	}
	switch *effect {
	case gtfsrtpb.Alert_DETOUR, gtfsrtpb.Alert_MODIFIED_SERVICE:
		return model.TypeRoadwork
	case gtfsrtpb.Alert_SIGNIFICANT_DELAYS:
		return model.TypeCongestion
	default:
		return model.TypeIncident
	}
}

func rtAlertSeverity(level *gtfsrtpb.Alert_SeverityLevel) model.Severity {
	if level == nil {
		return model.SeverityMedium
	}
	switch *level {
	case gtfsrtpb.Alert_SEVERE:
		return model.SeverityHigh
	case gtfsrtpb.Alert_WARNING:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// rtAlertStatus inspects the first active period: already started means
// active, a future start means upcoming.
func rtAlertStatus(periods []*gtfsrtpb.TimeRange) model.Status {
	if len(periods) == 0 {
		return model.StatusRed
	}
	p := periods[0]
	if p.Start != nil && time.Unix(int64(*p.Start), 0).After(time.Now()) {
		return model.StatusAmber
	}
	return model.StatusRed
}
