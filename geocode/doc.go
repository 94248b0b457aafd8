// Package geocode turns a coordinate and optional free-text hint into a
// display-quality location string.
//
// Resolution is an ordered list of strategies, tried until one succeeds:
// the source's own hint, a reverse-geocode against Nominatim with a short
// timeout, a nested named-region bounding-box lookup, a coordinate string
// annotated with a known road corridor, and finally a fixed regional
// fallback. Resolve never returns an empty string and never errors.
package geocode
