package config

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0"`
}

// GTFSConfig locates the static GTFS reference data
type GTFSConfig struct {
	DataDir   string `yaml:"dataDir" validate:"required"`
	CachePath string `yaml:"cachePath"` // optional gob cache of the parsed index
}

// BBox is a rectangular geographic filter (minLat,minLng)-(maxLat,maxLng)
type BBox struct {
	MinLat float64 `yaml:"minLat"`
	MinLng float64 `yaml:"minLng"`
	MaxLat float64 `yaml:"maxLat"`
	MaxLng float64 `yaml:"maxLng"`
}

// Contains reports whether the point lies inside the box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// QuotaConfig is the per-source polling budget enforced by the scheduler.
type QuotaConfig struct {
	DailyQuota         int    `yaml:"dailyQuota" validate:"gte=0"`
	MinIntervalSeconds int    `yaml:"minIntervalSeconds" validate:"gte=0"`
	WindowStart        string `yaml:"windowStart"` // "HH:MM" local, e.g. "05:15"
	WindowEnd          string `yaml:"windowEnd"`   // "HH:MM" local; may wrap past midnight
}

// SourceConfig describes one upstream disruption feed.
type SourceConfig struct {
	ID      string      `yaml:"id" validate:"required"`
	Kind    string      `yaml:"kind" validate:"required,oneof=tomtom here mapquest roadworks rtalerts manual"`
	URL     string      `yaml:"url" validate:"omitempty,url"`
	APIKey  string      `yaml:"apiKey"`
	EnvKey  string      `yaml:"envKey"` // env var to read the API key from, overrides apiKey
	BBox    BBox        `yaml:"bbox"`
	RadiusM int         `yaml:"radiusM"` // circle filter radius for providers that use one
	Quota   QuotaConfig `yaml:"quota"`
}

// GeocodeConfig controls the reverse-geocoding step of the location resolver.
type GeocodeConfig struct {
	URL       string `yaml:"url" validate:"omitempty,url"`
	TimeoutMS int    `yaml:"timeoutMS" validate:"gte=0"`
	UserAgent string `yaml:"userAgent"`
}

// MatcherConfig tunes the GTFS route matcher.
type MatcherConfig struct {
	RadiusM      float64 `yaml:"radiusM" validate:"gte=0"`   // stop/shape acceptance radius
	CellSizeM    float64 `yaml:"cellSizeM" validate:"gte=0"` // spatial grid cell size
	PatternsPath string  `yaml:"patternsPath"`               // versioned text-pattern table
}

// RegionConfig names the service region and its timezone.
type RegionConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Timezone string `yaml:"timezone" validate:"required"`
}

// AggregatorConfig bounds one polling cycle.
type AggregatorConfig struct {
	CycleTimeoutSeconds   int `yaml:"cycleTimeoutSeconds" validate:"gte=0"`
	AdapterTimeoutSeconds int `yaml:"adapterTimeoutSeconds" validate:"gte=0"`
	CycleIntervalSeconds  int `yaml:"cycleIntervalSeconds" validate:"gte=0"`
}

// StoreConfig locates the SQLite state database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `yaml:"server" validate:"required"`
	Region     RegionConfig     `yaml:"region" validate:"required"`
	GTFS       GTFSConfig       `yaml:"gtfs" validate:"required"`
	Geocode    GeocodeConfig    `yaml:"geocode"`
	Matcher    MatcherConfig    `yaml:"matcher"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Store      StoreConfig      `yaml:"store"`
	Sources    []SourceConfig   `yaml:"sources" validate:"min=1,dive"`
}
