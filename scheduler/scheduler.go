package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/transitops/trafficwatch/config"
)

// Snapshot is the persisted quota state for one source, enough to resume
// counters across process restarts.
type Snapshot struct {
	CallsToday int
	WindowDate string // YYYY-MM-DD the counter belongs to
	LastCallAt time.Time
}

// SnapshotStore persists per-source quota snapshots. Implementations must be
// safe for concurrent use.
type SnapshotStore interface {
	LoadQuotas() (map[string]Snapshot, error)
	SaveQuota(sourceID string, snap Snapshot) error
}

type sourceState struct {
	quota      config.QuotaConfig
	lastCallAt time.Time
	callsToday int
	windowDate string
}

// Scheduler decides, per source, whether a call is currently permitted.
// All state lives behind one mutex; CanPoll followed by RecordAttempt is not
// atomic on its own, so concurrent callers should use Acquire.
type Scheduler struct {
	mu       sync.Mutex
	loc      *time.Location
	states   map[string]*sourceState
	override bool
	store    SnapshotStore
	logger   *zap.Logger
}

// New builds a scheduler for the configured sources. A nil store disables
// persistence; otherwise previously saved counters for the current day are
// restored.
func New(sources []config.SourceConfig, loc *time.Location, store SnapshotStore, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		loc:    loc,
		states: map[string]*sourceState{},
		store:  store,
		logger: logger.Named("scheduler"),
	}
	for _, src := range sources {
		s.states[src.ID] = &sourceState{quota: src.Quota}
	}
	if store != nil {
		snaps, err := store.LoadQuotas()
		if err != nil {
			s.logger.Warn("could not restore quota snapshots", zap.Error(err))
		} else {
			today := time.Now().In(loc).Format("2006-01-02")
			for id, snap := range snaps {
				st, ok := s.states[id]
				if !ok || snap.WindowDate != today {
					continue
				}
				st.callsToday = snap.CallsToday
				st.windowDate = snap.WindowDate
				st.lastCallAt = snap.LastCallAt
			}
		}
	}
	return s
}

// SetOverride toggles the emergency override. While set, window and quota
// checks are bypassed; the minimum interval still applies.
func (s *Scheduler) SetOverride(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = on
}

// CanPoll reports whether a call to the source is permitted at now, with a
// diagnostic reason when refused.
func (s *Scheduler) CanPoll(sourceID string, now time.Time) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canPollLocked(sourceID, now)
}

// RecordAttempt charges the source's quota. Called after every attempted
// call regardless of outcome.
func (s *Scheduler) RecordAttempt(sourceID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordAttemptLocked(sourceID, now)
}

// Acquire runs CanPoll and, when allowed, RecordAttempt as one critical
// section. Concurrent refresh triggers therefore cannot double-spend a quota
// slot between the check and the charge.
func (s *Scheduler) Acquire(sourceID string, now time.Time) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	allowed, reason := s.canPollLocked(sourceID, now)
	if allowed {
		s.recordAttemptLocked(sourceID, now)
	}
	return allowed, reason
}

func (s *Scheduler) canPollLocked(sourceID string, now time.Time) (bool, string) {
	st, ok := s.states[sourceID]
	if !ok {
		return false, fmt.Sprintf("unknown source %q", sourceID)
	}
	local := now.In(s.loc)
	s.rolloverLocked(st, local)

	// min interval protects the upstream even under emergency override
	if !st.lastCallAt.IsZero() && st.quota.MinIntervalSeconds > 0 {
		elapsed := now.Sub(st.lastCallAt)
		if min := time.Duration(st.quota.MinIntervalSeconds) * time.Second; elapsed < min {
			return false, fmt.Sprintf("min interval not elapsed (%.0fs of %ds)", elapsed.Seconds(), st.quota.MinIntervalSeconds)
		}
	}
	if s.override {
		return true, ""
	}
	if !withinWindow(st.quota.WindowStart, st.quota.WindowEnd, local) {
		return false, "outside polling window"
	}
	if st.quota.DailyQuota > 0 && st.callsToday >= st.quota.DailyQuota {
		return false, fmt.Sprintf("daily quota exhausted (%d/%d)", st.callsToday, st.quota.DailyQuota)
	}
	return true, ""
}

func (s *Scheduler) recordAttemptLocked(sourceID string, now time.Time) {
	st, ok := s.states[sourceID]
	if !ok {
		return
	}
	local := now.In(s.loc)
	s.rolloverLocked(st, local)
	st.callsToday++
	st.lastCallAt = now
	if s.store != nil {
		snap := Snapshot{CallsToday: st.callsToday, WindowDate: st.windowDate, LastCallAt: st.lastCallAt}
		if err := s.store.SaveQuota(sourceID, snap); err != nil {
			s.logger.Warn("persist quota snapshot failed", zap.String("source", sourceID), zap.Error(err))
		}
	}
}

// rolloverLocked lazily resets the daily counter when the local calendar day
// has changed since it was last charged.
func (s *Scheduler) rolloverLocked(st *sourceState, local time.Time) {
	today := local.Format("2006-01-02")
	if st.windowDate != today {
		st.windowDate = today
		st.callsToday = 0
	}
}

// ResetDay forces the daily counters of every source to re-evaluate against
// now's calendar day. The cron midnight tick calls this; the lazy check in
// CanPoll makes it belt and braces.
func (s *Scheduler) ResetDay(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	local := now.In(s.loc)
	for _, st := range s.states {
		s.rolloverLocked(st, local)
	}
}

// withinWindow reports whether the local time falls inside the HH:MM window.
// A window whose end precedes its start wraps past midnight, e.g.
// 05:15–00:15. Empty or unparsable bounds leave the source always in window.
func withinWindow(start, end string, local time.Time) bool {
	startMin, okS := parseHHMM(start)
	endMin, okE := parseHHMM(end)
	if !okS || !okE {
		return true
	}
	m := local.Hour()*60 + local.Minute()
	if startMin <= endMin {
		return m >= startMin && m <= endMin
	}
	return m >= startMin || m <= endMin
}

func parseHHMM(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
