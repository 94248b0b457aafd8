package sources

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/transitops/trafficwatch/model"
)

// ManualLister is the control-room collaborator: it hands back
// already-normalized alerts for every active manually entered incident.
type ManualLister interface {
	ListActive() []model.Alert
}

// ManualSource folds manually entered incidents into a cycle as a
// pseudo-source with its own diagnostic. It never fails: an empty list is a
// successful fetch of zero incidents.
type ManualSource struct {
	id     string
	lister ManualLister
}

// NewManualSource builds the pseudo-source over the collaborator.
func NewManualSource(id string, lister ManualLister) *ManualSource {
	return &ManualSource{id: id, lister: lister}
}

func (s *ManualSource) ID() string { return s.id }

// Fetch lists the active manual incidents. No network, no enrichment; the
// store normalized them on entry.
func (s *ManualSource) Fetch(ctx context.Context) ([]model.Alert, model.SourceResult) {
	alerts := s.lister.ListActive()
	return alerts, model.SourceResult{Success: true, Count: len(alerts), Method: "manual"}
}

// ManualIncident is the operator's input for one control-room incident.
type ManualIncident struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	Coordinates *model.Coordinates `json:"coordinates"`
	Type        model.AlertType   `json:"type"`
	Severity    model.Severity    `json:"severity"`
	Routes      []string          `json:"routes"`
}

// ManualStore holds control-room incidents in memory. Incidents get uuid
// ids and stay active until resolved.
type ManualStore struct {
	mu       sync.Mutex
	sourceID string
	enricher *Enricher
	active   map[string]model.Alert
}

// NewManualStore builds an empty store. enricher fills in location and
// routes when the operator left them blank.
func NewManualStore(sourceID string, enricher *Enricher) *ManualStore {
	return &ManualStore{sourceID: sourceID, enricher: enricher, active: map[string]model.Alert{}}
}

// Add normalizes and activates a new manual incident, returning the stored
// alert.
func (m *ManualStore) Add(ctx context.Context, in ManualIncident) model.Alert {
	raw := RawIncident{
		ID:          uuid.New().String(),
		Type:        in.Type,
		Title:       in.Title,
		Description: in.Description,
		RoadName:    in.Location,
		Severity:    in.Severity,
		Status:      model.StatusRed,
		Updated:     time.Now().UTC(),
		Routes:      in.Routes,
	}
	if in.Type == "" {
		raw.Type = model.TypeIncident
	}
	if in.Severity == "" {
		raw.Severity = model.SeverityMedium
	}
	if in.Coordinates != nil {
		raw.Lat, raw.Lng, raw.HasCoords = in.Coordinates.Lat, in.Coordinates.Lng, true
	}
	alert := m.enricher.Enrich(ctx, m.sourceID, raw)
	m.mu.Lock()
	m.active[alert.ID] = alert
	m.mu.Unlock()
	return alert
}

// Resolve removes an incident. Returns false for an unknown id.
func (m *ManualStore) Resolve(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[id]; !ok {
		return false
	}
	delete(m.active, id)
	return true
}

// ListActive returns a copy of every active incident.
func (m *ManualStore) ListActive() []model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Alert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, a)
	}
	return out
}
