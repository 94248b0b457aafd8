package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/transitops/trafficwatch/config"
	"github.com/transitops/trafficwatch/dedupe"
	"github.com/transitops/trafficwatch/gtfs"
	"github.com/transitops/trafficwatch/model"
	"github.com/transitops/trafficwatch/scheduler"
	"github.com/transitops/trafficwatch/sources"
)

// Phase names the aggregator's position in its cycle state machine.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhasePolling       Phase = "polling"
	PhaseDeduplicating Phase = "deduplicating"
	PhasePublished     Phase = "published"
)

// FeedStore persists the published feed; *store.Store implements it.
type FeedStore interface {
	SaveFeed(feed model.Feed) error
}

// maxWorkers bounds adapter parallelism within a cycle. Sources are few;
// one worker per source up to this cap.
const maxWorkers = 8

// Aggregator owns the polling cycle and the most recently published feed.
type Aggregator struct {
	cfg      config.AggregatorConfig
	sched    *scheduler.Scheduler
	adapters []sources.Adapter
	engine   *dedupe.Engine
	persist  FeedStore
	logger   *zap.Logger

	mu      sync.RWMutex
	phase   Phase
	latest  model.Feed
	history []model.Alert // previous cycle's alerts, kept for id stability
}

// New builds the aggregator. persist may be nil.
func New(cfg config.AggregatorConfig, sched *scheduler.Scheduler, adapters []sources.Adapter, engine *dedupe.Engine, persist FeedStore, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		cfg:      cfg,
		sched:    sched,
		adapters: adapters,
		engine:   engine,
		persist:  persist,
		logger:   logger.Named("aggregator"),
		phase:    PhaseIdle,
	}
}

// Latest returns the most recently published feed.
func (a *Aggregator) Latest() model.Feed {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// Phase returns the current cycle phase.
func (a *Aggregator) Phase() Phase {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.phase
}

// Seed installs a previously persisted feed as the rolling history, so
// alert ids stay stable across a restart.
func (a *Aggregator) Seed(feed model.Feed) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latest = feed
	a.history = feed.Alerts
}

func (a *Aggregator) setPhase(p Phase) {
	a.mu.Lock()
	a.phase = p
	a.mu.Unlock()
}

type adapterOutcome struct {
	id     string
	alerts []model.Alert
	result model.SourceResult
}

// RunCycle executes one polling cycle and publishes the result. It never
// returns an error: even when every source fails the feed carries an empty
// alert list and full diagnostics.
func (a *Aggregator) RunCycle(ctx context.Context) model.Feed {
	started := time.Now()
	timeout := time.Duration(a.cfg.CycleTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	cycleCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.setPhase(PhasePolling)
	sourceResults := map[string]model.SourceResult{}
	var allowed []sources.Adapter
	now := time.Now()
	for _, ad := range a.adapters {
		// check and charge as one critical section per source
		ok, reason := a.sched.Acquire(ad.ID(), now)
		if !ok {
			a.logger.Debug("source refused", zap.String("source", ad.ID()), zap.String("reason", reason))
			sourceResults[ad.ID()] = model.SourceResult{Success: false, Error: reason}
			continue
		}
		allowed = append(allowed, ad)
	}

	outcomes := make(chan adapterOutcome, len(allowed))
	sem := make(chan struct{}, maxWorkers)
	for _, ad := range allowed {
		go func(ad sources.Adapter) {
			sem <- struct{}{}
			defer func() { <-sem }()
			adapterTimeout := time.Duration(a.cfg.AdapterTimeoutSeconds) * time.Second
			if adapterTimeout <= 0 {
				adapterTimeout = 15 * time.Second
			}
			adCtx, adCancel := context.WithTimeout(cycleCtx, adapterTimeout)
			defer adCancel()
			alerts, result := ad.Fetch(adCtx)
			outcomes <- adapterOutcome{id: ad.ID(), alerts: alerts, result: result}
		}(ad)
	}

	var all []model.Alert
	pending := len(allowed)
collect:
	for pending > 0 {
		select {
		case out := <-outcomes:
			pending--
			sourceResults[out.id] = out.result
			if out.result.Success {
				all = append(all, out.alerts...)
			} else {
				a.logger.Warn("source failed",
					zap.String("source", out.id),
					zap.String("error", out.result.Error))
			}
		case <-cycleCtx.Done():
			// abandon in-flight adapters; their results are discarded
			break collect
		}
	}
	for _, ad := range allowed {
		if _, ok := sourceResults[ad.ID()]; !ok {
			sourceResults[ad.ID()] = model.SourceResult{Success: false, Error: "timeout"}
		}
	}

	a.setPhase(PhaseDeduplicating)
	merged := a.engine.Merge(all)
	a.mu.RLock()
	history := a.history
	a.mu.RUnlock()
	stabilizeIDs(merged, history)
	sortAlerts(merged)

	feed := model.Feed{
		Success: true,
		Alerts:  merged,
		Metadata: model.FeedMetadata{
			TotalAlerts: len(merged),
			Sources:     sourceResults,
			LastUpdated: time.Now().UTC().Format(time.RFC3339),
		},
	}
	if feed.Alerts == nil {
		feed.Alerts = []model.Alert{}
	}

	a.mu.Lock()
	a.latest = feed
	a.history = merged
	a.phase = PhasePublished
	a.mu.Unlock()

	if a.persist != nil {
		if err := a.persist.SaveFeed(feed); err != nil {
			a.logger.Warn("persist feed failed", zap.Error(err))
		}
	}
	a.logger.Info("cycle published",
		zap.Int("alerts", len(merged)),
		zap.Int("sources", len(sourceResults)),
		zap.Duration("took", time.Since(started)))
	a.setPhase(PhaseIdle)
	return feed
}

// stabilizeIDs re-applies ids from the previous cycle to alerts that
// describe the same incident, so ids do not churn when the merge anchor
// flips between cycles. Each id is handed out at most once per cycle: two
// nearby alerts that both sit within the threshold of one historical alert
// stay distinct.
func stabilizeIDs(alerts, history []model.Alert) {
	if len(history) == 0 {
		return
	}
	known := make(map[string]struct{}, len(history))
	for _, h := range history {
		known[h.ID] = struct{}{}
	}
	used := make(map[string]struct{}, len(alerts))
	for _, a := range alerts {
		if _, ok := known[a.ID]; ok {
			used[a.ID] = struct{}{}
		}
	}
	for i := range alerts {
		if _, ok := known[alerts[i].ID]; ok {
			continue
		}
		for _, h := range history {
			if _, taken := used[h.ID]; taken {
				continue
			}
			if h.Source != alerts[i].Source || h.Type != alerts[i].Type {
				continue
			}
			if alerts[i].Coordinates == nil || h.Coordinates == nil {
				continue
			}
			d := gtfs.HaversineM(alerts[i].Coordinates.Lat, alerts[i].Coordinates.Lng, h.Coordinates.Lat, h.Coordinates.Lng)
			if d <= dedupe.DistanceThresholdM {
				alerts[i].ID = h.ID
				used[h.ID] = struct{}{}
				break
			}
		}
	}
}

// sortAlerts orders the published list: severity desc, then last update
// desc, then id for full determinism.
func sortAlerts(alerts []model.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
		}
		if !alerts[i].LastUpdated.Equal(alerts[j].LastUpdated) {
			return alerts[i].LastUpdated.After(alerts[j].LastUpdated)
		}
		return alerts[i].ID < alerts[j].ID
	})
}
