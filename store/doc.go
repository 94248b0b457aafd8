// Package store persists the small amount of state that must survive a
// process restart: per-source quota counters for the scheduler and the most
// recently published feed, used to keep merged alert ids stable.
//
// Backed by a single SQLite file (modernc.org/sqlite, pure Go driver) in WAL
// mode with one serialized writer.
package store
