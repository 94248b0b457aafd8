// Package model defines the canonical alert shape shared by all source
// adapters, the dedup engine, and the aggregator, plus the JSON payload
// served to clients.
package model
