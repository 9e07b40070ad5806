package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/aggregate"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Storage backends objects can be published to.
const (
	BackendS3     = "s3"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir      string
	StoreVersion string

	Years      []int
	TimeRanges []domain.TimeRange
	Months     []int
	Variables  []domain.Variable
	Bounds     domain.Bounds

	Workers       int
	UploadWorkers int

	RainScheme         aggregate.RainScheme
	PrecipAccumulation time.Duration

	StorageBackend string
	S3Endpoint     string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool
	RedisAddr      string

	// Run reports are published only when brokers are configured.
	KafkaBrokers     []string
	KafkaReportTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	QueryMaxCells  int
	QueryCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	years, err := parseYears()
	if err != nil {
		return nil, err
	}
	months, err := parseIntList("MONTHS", sharedcfg.EnvOrDefault("MONTHS", "1-12"), 1, 12)
	if err != nil {
		return nil, err
	}
	variables, err := parseVariables()
	if err != nil {
		return nil, err
	}
	bounds, err := parseBounds()
	if err != nil {
		return nil, err
	}

	rainScheme, err := aggregate.ParseRainScheme(sharedcfg.EnvOrDefault("RAIN_SCHEME", string(aggregate.RainDaily)))
	if err != nil {
		return nil, fmt.Errorf("invalid RAIN_SCHEME: %w", err)
	}
	accumulation, err := time.ParseDuration(sharedcfg.EnvOrDefault("PRECIP_ACCUMULATION", "1h"))
	if err != nil || accumulation <= 0 {
		return nil, errors.New("invalid PRECIP_ACCUMULATION")
	}

	workers, err := parsePositiveInt("WORKERS", 4)
	if err != nil {
		return nil, err
	}
	uploadWorkers, err := parsePositiveInt("UPLOAD_WORKERS", 200)
	if err != nil {
		return nil, err
	}
	maxCells, err := parsePositiveInt("QUERY_MAX_CELLS", 100)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("QUERY_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		DataDir:      sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		StoreVersion: sharedcfg.EnvOrDefault("STORE_VERSION", "v1"),

		Years:      years,
		TimeRanges: domain.DefaultTimeRanges(years),
		Months:     months,
		Variables:  variables,
		Bounds:     bounds,

		Workers:       workers,
		UploadWorkers: uploadWorkers,

		RainScheme:         rainScheme,
		PrecipAccumulation: accumulation,

		StorageBackend: strings.ToLower(sharedcfg.EnvOrDefault("STORAGE_BACKEND", BackendS3)),
		S3Endpoint:     sharedcfg.EnvOrDefault("S3_ENDPOINT", "localhost:9000"),
		S3Bucket:       sharedcfg.EnvOrDefault("S3_BUCKET", "reanalysis-climate"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:       os.Getenv("S3_USE_SSL") == "true",
		RedisAddr:      sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),

		KafkaBrokers:     brokers,
		KafkaReportTopic: sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "climate-etl-runs"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		QueryMaxCells:  maxCells,
		QueryCacheSize: cacheSize,
	}

	if cfg.StoreVersion == "" || strings.Contains(cfg.StoreVersion, "/") {
		return nil, errors.New("invalid STORE_VERSION")
	}
	switch cfg.StorageBackend {
	case BackendS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required")
		}
	case BackendRedis, BackendMemory:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaReportTopic == "" {
		return nil, errors.New("KAFKA_REPORT_TOPIC is required")
	}

	return cfg, nil
}

// ReportsEnabled reports whether run reports are published.
func (c *Config) ReportsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// TimeRangeLabels returns the labels of the configured time ranges.
func (c *Config) TimeRangeLabels() []string {
	out := make([]string, len(c.TimeRanges))
	for i, tr := range c.TimeRanges {
		out[i] = tr.Label
	}
	return out
}

// parseYears defaults to the five complete years before the current one.
func parseYears() ([]int, error) {
	raw := os.Getenv("YEARS")
	if raw == "" {
		last := domain.Now().Year() - 1
		raw = fmt.Sprintf("%d-%d", last-4, last)
	}
	return parseIntList("YEARS", raw, 1940, 9999)
}

// parseIntList accepts comma-separated values and inclusive spans such as
// "2016-2018,2020".
func parseIntList(name, raw string, lo, hi int) ([]int, error) {
	seen := map[int]bool{}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		first, last, span := strings.Cut(part, "-")
		a, err := strconv.Atoi(first)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", name, part)
		}
		b := a
		if span {
			if b, err = strconv.Atoi(last); err != nil || b < a {
				return nil, fmt.Errorf("invalid %s %q", name, part)
			}
		}
		if a < lo || b > hi {
			return nil, fmt.Errorf("invalid %s %q: values must lie in [%d, %d]", name, part, lo, hi)
		}
		for v := a; v <= b; v++ {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s is empty", name)
	}
	return out, nil
}

func parseVariables() ([]domain.Variable, error) {
	raw := os.Getenv("VARIABLES")
	if raw == "" {
		return append([]domain.Variable(nil), domain.AllVariables...), nil
	}
	var out []domain.Variable
	for _, part := range strings.Split(raw, ",") {
		v, err := domain.ParseVariable(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid VARIABLES: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseBounds() (domain.Bounds, error) {
	var b domain.Bounds
	fields := []struct {
		name string
		def  float64
		dst  *float64
	}{
		{"LAT_MIN", domain.WorldBounds.MinLat, &b.MinLat},
		{"LAT_MAX", domain.WorldBounds.MaxLat, &b.MaxLat},
		{"LON_MIN", domain.WorldBounds.MinLon, &b.MinLon},
		{"LON_MAX", domain.WorldBounds.MaxLon, &b.MaxLon},
	}
	for _, f := range fields {
		*f.dst = f.def
		if s := os.Getenv(f.name); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return b, fmt.Errorf("invalid %s", f.name)
			}
			*f.dst = v
		}
	}
	if err := b.Validate(); err != nil {
		return b, fmt.Errorf("invalid LAT_MIN/LAT_MAX/LON_MIN/LON_MAX: %w", err)
	}
	return b, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}
