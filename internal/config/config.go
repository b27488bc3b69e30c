package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// Metrics store.
	StoreBackend string
	DatabaseURL  string
	MongoURI     string
	MongoDB      string

	// Reference data and scoring.
	DistrictsFile     string
	BoundariesFile    string
	ScoringConfigFile string

	// Caches. An empty RedisAddr disables the shared overview tier.
	OverviewCacheTTL time.Duration
	GeoCacheTTL      time.Duration
	GeoCacheSize     int
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	// Reverse geocoding fallback for points outside every loaded boundary.
	ReverseGeocoderEnabled   bool
	ReverseGeocoderURL       string
	ReverseGeocoderTimeout   time.Duration
	ReverseGeocoderUserAgent string

	// Kafka ingestion.
	IngestEnabled      bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaDLQTopic      string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	overviewTTL, err := parseDuration("OVERVIEW_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	geoTTL, err := parseDuration("GEO_CACHE_TTL", "10m")
	if err != nil {
		return nil, err
	}
	geoSize, err := parsePositiveInt("GEO_CACHE_SIZE", 4096)
	if err != nil {
		return nil, err
	}
	redisDB, err := parseNonNegativeInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	ingest, err := parseBool("INGEST_ENABLED", false)
	if err != nil {
		return nil, err
	}
	geocoderEnabled, err := parseBool("REVERSE_GEOCODER_ENABLED", false)
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parseDuration("REVERSE_GEOCODER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     splitList(sharedcfg.EnvOrDefault("CORS_ORIGINS", "*")),

		StoreBackend: strings.ToLower(sharedcfg.EnvOrDefault("STORE_BACKEND", BackendMemory)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      sharedcfg.EnvOrDefault("MONGO_DB", "district_analytics"),

		DistrictsFile:     os.Getenv("DISTRICTS_FILE"),
		BoundariesFile:    os.Getenv("BOUNDARIES_FILE"),
		ScoringConfigFile: os.Getenv("SCORING_CONFIG_FILE"),

		OverviewCacheTTL: overviewTTL,
		GeoCacheTTL:      geoTTL,
		GeoCacheSize:     geoSize,
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          redisDB,

		ReverseGeocoderEnabled:   geocoderEnabled,
		ReverseGeocoderURL:       sharedcfg.EnvOrDefault("REVERSE_GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		ReverseGeocoderTimeout:   geocoderTimeout,
		ReverseGeocoderUserAgent: sharedcfg.EnvOrDefault("REVERSE_GEOCODER_USER_AGENT", "district-analytics-service/1.0"),

		IngestEnabled:      ingest,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "district-monthly-metrics"),
		KafkaDLQTopic:      sharedcfg.EnvOrDefault("KAFKA_DLQ_TOPIC", "district-monthly-metrics-rejected"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "district-analytics"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	case BackendSQLite:
		if c.DatabaseURL == "" {
			c.DatabaseURL = "district-analytics.db"
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required when STORE_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}

	if c.IngestEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaSourceTopic == "" {
			return errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if c.KafkaDLQTopic == "" {
			return errors.New("KAFKA_DLQ_TOPIC is required")
		}
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
