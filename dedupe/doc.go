// Package dedupe collapses alerts from independent sources that describe
// the same real-world event.
//
// Candidates are grouped by coordinate proximity when both sides carry
// coordinates, and by a normalized location-token prefix when at least one
// side does not. Groups merge under an explicit source-authority ranking;
// the most authoritative alert anchors the merged result and supplies its
// id, title, and description. Merging is idempotent and independent of
// input order.
package dedupe
