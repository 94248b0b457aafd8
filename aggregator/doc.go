// Package aggregator orchestrates one polling cycle: ask the scheduler
// which sources may run, fetch them concurrently with bounded parallelism,
// merge duplicates, and publish the alert list with per-source diagnostics.
//
// A cycle always publishes something. Refused, failed, and timed-out
// sources are reported in the metadata; they never abort the cycle.
package aggregator
