// Package match resolves a disruption's location to the set of bus routes
// it affects.
//
// The preferred path is spatial: a uniform grid over the GTFS stops and
// shape points is queried around the disruption coordinate, and every
// stop or shape point within the acceptance radius contributes its route
// set. When no coordinate is available, or the spatial path finds nothing,
// a versioned keyword table maps named roads, places, and interchanges to
// known route sets. Match reports which path produced the result so
// consumers can tell high- from low-confidence matches.
package match
