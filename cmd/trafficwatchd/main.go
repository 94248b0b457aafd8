package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/transitops/trafficwatch/aggregator"
	"github.com/transitops/trafficwatch/config"
	"github.com/transitops/trafficwatch/dedupe"
	"github.com/transitops/trafficwatch/geocode"
	"github.com/transitops/trafficwatch/gtfs"
	"github.com/transitops/trafficwatch/internal"
	"github.com/transitops/trafficwatch/match"
	"github.com/transitops/trafficwatch/scheduler"
	"github.com/transitops/trafficwatch/sources"
	"github.com/transitops/trafficwatch/store"
)

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

func main() {
	configPath := flag.String("config", "config.yml", "path to configuration file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	// API keys commonly live in a .env next to the binary
	_ = godotenv.Load()

	logger, err := internal.NewLogger(*verbose)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	index := loadGTFS(cfg.GTFS, logger)
	grid := gtfs.BuildGrid(index, cfg.Matcher.CellSizeM)
	logger.Info("gtfs loaded",
		zap.Int("stops", len(index.Stops)),
		zap.Int("routes", len(index.RouteShortNames)),
		zap.Int("shapes", len(index.ShapePoints)))

	patterns, err := match.LoadPatterns(cfg.Matcher.PatternsPath)
	if err != nil {
		logger.Fatal("load pattern table", zap.Error(err))
	}
	matcher := match.New(index, grid, cfg.Matcher.RadiusM, patterns)

	geocoder := geocode.NewClient(cfg.Geocode.URL, cfg.Geocode.UserAgent, time.Duration(cfg.Geocode.TimeoutMS)*time.Millisecond)
	resolver := geocode.NewResolver(geocoder, geocode.DublinRegions(), geocode.DublinCorridors(), cfg.Region.Name, logger)
	enricher := &sources.Enricher{Resolver: resolver, Matcher: matcher}

	var st *store.Store
	var snapStore scheduler.SnapshotStore
	var feedStore aggregator.FeedStore
	if cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			logger.Fatal("open state store", zap.Error(err))
		}
		defer func() { _ = st.Close() }()
		snapStore = st
		feedStore = st
	}

	loc, err := time.LoadLocation(cfg.Region.Timezone)
	if err != nil {
		logger.Fatal("load timezone", zap.String("tz", cfg.Region.Timezone), zap.Error(err))
	}
	sched := scheduler.New(cfg.Sources, loc, snapStore, logger)

	manualStore := sources.NewManualStore(manualSourceID(cfg.Sources), enricher)
	adapters, authority := buildAdapters(cfg.Sources, index, enricher, manualStore, logger)

	engine := dedupe.NewEngine(authority)
	agg := aggregator.New(cfg.Aggregator, sched, adapters, engine, feedStore, logger)
	if st != nil {
		if feed, ok, err := st.LoadFeed(); err != nil {
			logger.Warn("restore previous feed failed", zap.Error(err))
		} else if ok {
			agg.Seed(feed)
		}
	}

	c := cron.New(cron.WithChain(cron.Recover(&cronLogger{logger: logger.Named("cron")})))
	interval := time.Duration(cfg.Aggregator.CycleIntervalSeconds) * time.Second
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		agg.RunCycle(context.Background())
	}); err != nil {
		logger.Fatal("schedule polling cycle", zap.Error(err))
	}
	// lazy rollover in the scheduler handles day changes already; the tick
	// keeps persisted snapshots from going stale overnight
	if _, err := c.AddFunc("1 0 * * *", func() {
		sched.ResetDay(time.Now())
	}); err != nil {
		logger.Fatal("schedule quota reset", zap.Error(err))
	}
	c.Start()
	defer c.Stop()

	// first cycle without waiting for the tick
	go agg.RunCycle(context.Background())

	srv := newServer(cfg.Server, agg, sched, manualStore, logger)
	srv.start()
	srv.waitForShutdown()
}

// loadGTFS loads the static reference data, via the gob cache when one is
// configured and valid. This is the only fatal startup dependency.
func loadGTFS(cfg config.GTFSConfig, logger *zap.Logger) *gtfs.Index {
	if cfg.CachePath != "" {
		if index, err := gtfs.LoadCache(cfg.CachePath); err == nil {
			logger.Info("gtfs index restored from cache", zap.String("path", cfg.CachePath))
			return index
		}
	}
	index, err := gtfs.LoadDir(cfg.DataDir)
	if err != nil {
		logger.Fatal("load gtfs reference data", zap.String("dir", cfg.DataDir), zap.Error(err))
	}
	if cfg.CachePath != "" {
		if err := gtfs.SaveCache(index, cfg.CachePath); err != nil {
			logger.Warn("write gtfs cache failed", zap.Error(err))
		}
	}
	return index
}

// buildAdapters instantiates one adapter per configured source and derives
// the dedup authority ranking from the source kinds.
func buildAdapters(cfgs []config.SourceConfig, index *gtfs.Index, enricher *sources.Enricher, manualStore *sources.ManualStore, logger *zap.Logger) ([]sources.Adapter, map[string]int) {
	var adapters []sources.Adapter
	authority := map[string]int{}
	for _, sc := range cfgs {
		switch sc.Kind {
		case "tomtom":
			adapters = append(adapters, sources.NewTomTomSource(sc, enricher))
			authority[sc.ID] = 1
		case "here":
			adapters = append(adapters, sources.NewHereSource(sc, enricher))
			authority[sc.ID] = 1
		case "mapquest":
			adapters = append(adapters, sources.NewMapQuestSource(sc, enricher))
			authority[sc.ID] = 1
		case "roadworks":
			adapters = append(adapters, sources.NewRoadworksSource(sc, enricher))
			authority[sc.ID] = 3
		case "rtalerts":
			adapters = append(adapters, sources.NewRTAlertsSource(sc, index, enricher))
			authority[sc.ID] = 2
		case "manual":
			adapters = append(adapters, sources.NewManualSource(sc.ID, manualStore))
			authority[sc.ID] = 4
		default:
			logger.Warn("unknown source kind skipped", zap.String("id", sc.ID), zap.String("kind", sc.Kind))
		}
	}
	return adapters, authority
}

func manualSourceID(cfgs []config.SourceConfig) string {
	for _, sc := range cfgs {
		if sc.Kind == "manual" {
			return sc.ID
		}
	}
	return "manual"
}
