package model

import (
	"encoding/json"
	"sort"
	"time"
)

// AlertType classifies a disruption into a coarse bucket.
type AlertType string

const (
	TypeIncident   AlertType = "incident"
	TypeRoadwork   AlertType = "roadwork"
	TypeCongestion AlertType = "congestion"
)

// Severity is the coarse impact level of an alert.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Rank orders severities so merge logic can take the highest of a group.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Status denotes whether a disruption is active, upcoming, or planned.
type Status string

const (
	StatusRed   Status = "red"
	StatusAmber Status = "amber"
	StatusGreen Status = "green"
)

// MatchMethod records the provenance of a route match.
type MatchMethod string

const (
	MatchCoordinateGrid MatchMethod = "coordinate_grid"
	MatchTextPattern    MatchMethod = "text_pattern"
	MatchNone           MatchMethod = "none"
)

// Coordinates is a WGS84 point. Serialized as [lat, lng].
type Coordinates struct {
	Lat float64
	Lng float64
}

// MarshalJSON renders the point as a two-element [lat, lng] array.
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lat, c.Lng})
}

// UnmarshalJSON accepts the [lat, lng] array form.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	c.Lat = pair[0]
	c.Lng = pair[1]
	return nil
}

// Alert is the canonical disruption record produced by every adapter and
// consumed by the dedup engine and the aggregator. Once published, alerts
// are immutable value objects.
type Alert struct {
	ID               string       `json:"id"`
	Type             AlertType    `json:"type"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Location         string       `json:"location"`
	Coordinates      *Coordinates `json:"coordinates"`
	Severity         Severity     `json:"severity"`
	Status           Status       `json:"status"`
	Source           string       `json:"source"`
	Sources          []string     `json:"sources,omitempty"`
	AffectsRoutes    []string     `json:"affectsRoutes"`
	RouteMatchMethod MatchMethod  `json:"routeMatchMethod"`
	LastUpdated      time.Time    `json:"lastUpdated"`
}

// NormalizeRoutes sorts AffectsRoutes and removes duplicates in place,
// keeping the published ordering deterministic.
func (a *Alert) NormalizeRoutes() {
	a.AffectsRoutes = SortedUnique(a.AffectsRoutes)
}

// SortedUnique returns a lexicographically sorted copy of ss with
// duplicates removed. A nil or empty input yields an empty slice, never nil,
// so the JSON form is always an array.
func SortedUnique(ss []string) []string {
	out := make([]string, 0, len(ss))
	seen := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// SourceResult is the per-source diagnostic reported for every polling
// attempt, successful or not.
type SourceResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Method  string `json:"method"`
	Error   string `json:"error,omitempty"`
}

// FeedMetadata describes one published cycle.
type FeedMetadata struct {
	TotalAlerts int                     `json:"totalAlerts"`
	Sources     map[string]SourceResult `json:"sources"`
	LastUpdated string                  `json:"lastUpdated"`
}

// Feed is the complete payload served to clients. A cycle always publishes
// one of these, even when every source failed.
type Feed struct {
	Success  bool         `json:"success"`
	Alerts   []Alert      `json:"alerts"`
	Metadata FeedMetadata `json:"metadata"`
}
