package geocode

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/transitops/trafficwatch/model"
)

// ReverseGeocoder is the slow, network-bound step of the chain. Client
// implements it; tests substitute a stub.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// Resolver produces a display-quality location string for an alert. The
// strategy order is fixed: hint, reverse geocode, named region, annotated
// coordinates, regional fallback.
type Resolver struct {
	geocoder   ReverseGeocoder
	regions    []Region
	corridors  []Corridor
	regionName string
	logger     *zap.Logger
}

// NewResolver builds a resolver. geocoder may be nil, which skips the
// reverse-geocoding step entirely.
func NewResolver(geocoder ReverseGeocoder, regions []Region, corridors []Corridor, regionName string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if regionName == "" {
		regionName = "service region"
	}
	return &Resolver{
		geocoder:   geocoder,
		regions:    regions,
		corridors:  corridors,
		regionName: regionName,
		logger:     logger.Named("geocode"),
	}
}

// Resolve returns a non-empty location string for the given coordinate and
// raw source hint. It never errors; each failing strategy falls through to
// the next.
func (r *Resolver) Resolve(ctx context.Context, coords *model.Coordinates, hint string) string {
	if s := usableHint(hint); s != "" {
		return s
	}
	if coords == nil {
		return r.regionName + " - location being determined"
	}
	if r.geocoder != nil {
		if s, err := r.geocoder.Reverse(ctx, coords.Lat, coords.Lng); err == nil && usableHint(s) != "" {
			return s
		} else if err != nil {
			r.logger.Debug("reverse geocode failed", zap.Error(err))
		}
	}
	for _, region := range r.regions {
		if region.Box.Contains(coords.Lat, coords.Lng) {
			return region.Name
		}
	}
	coordStr := fmt.Sprintf("%.3f, %.3f", coords.Lat, coords.Lng)
	for _, c := range r.corridors {
		if c.Box.Contains(coords.Lat, coords.Lng) {
			return fmt.Sprintf("%s (near %s)", coordStr, c.Name)
		}
	}
	return coordStr
}

// usableHint returns the trimmed hint when it is worth showing verbatim:
// long enough to mean something, not the literal "undefined" some upstreams
// emit, not unresolved template syntax, and not a bare coordinate pair.
func usableHint(hint string) string {
	s := strings.TrimSpace(hint)
	if len(s) <= 5 {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "undefined") || strings.Contains(s, "{{") || strings.Contains(s, "${") {
		return ""
	}
	if isBareCoordinate(s) {
		return ""
	}
	return s
}

func isBareCoordinate(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' || r == ',' || r == '-' || r == '+' || r == ' ':
		default:
			return false
		}
	}
	return true
}
