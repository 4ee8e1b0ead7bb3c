// Package config provides configuration management for the trip planner.
//
// Values come from environment variables. A .env file, when present, is read
// first; variables already set in the environment take precedence over it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the complete application configuration.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Cache      CacheConfig
	Auth       AuthConfig
	Database   DatabaseConfig
	Planner    PlannerConfig
	Estimator  EstimatorConfig
	Events     EventsConfig
	Reconciler ReconcilerConfig
	Tracing    TracingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	RateLimit      int
	RateWindow     time.Duration
	RequestTimeout time.Duration
	CORSOrigins    []string
	SwaggerUser    string
	SwaggerPass    string
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string
	Pretty bool
}

// CacheConfig holds cache configuration for lookup tables.
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// AuthConfig holds authentication configuration. Tokens are issued by an
// external identity provider; the service only verifies them.
type AuthConfig struct {
	Enabled      bool
	APIKeys      map[string]bool
	JWTSecretKey string
	JWTIssuer    string
	// WriteRoles gates mutating routes for JWT callers. Empty allows any
	// authenticated caller.
	WriteRoles []string
}

// DatabaseConfig holds MongoDB configuration.
type DatabaseConfig struct {
	URI          string
	DatabaseName string
	EventsTTL    time.Duration
	Enabled      bool
	// MaxPoolSize and ConnectTimeout override the driver pool defaults when
	// positive.
	MaxPoolSize    int
	ConnectTimeout time.Duration
	// CircuitBreaker configuration
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration
}

// PlannerConfig holds optimizer and planning configuration.
type PlannerConfig struct {
	// MinLoadUtilization is the fraction of a truck's capacity a pallet must
	// fill on its own for the truck to be scored as a new bin.
	MinLoadUtilization float64
	BaseDistanceKm     float64
	LockTimeout        time.Duration
	HistoryTimeout     time.Duration
	EnrichmentTimeout  time.Duration
}

// EstimatorConfig holds fuel and duration estimation configuration.
type EstimatorConfig struct {
	DefaultDistanceKm  float64
	DefaultTimeH       float64
	DefaultConsumption float64
	BufferFraction     float64
	RandomBuffer       bool
	BufferSeed         int64
	LookupTimeout      time.Duration
	ProfilesFile       string
}

// EventsConfig holds allocation event delivery configuration.
type EventsConfig struct {
	Enabled      bool
	BufferSize   int
	Workers      int
	KafkaBrokers []string
	KafkaTopic   string
}

// ReconcilerConfig holds the periodic order reconciliation job configuration.
type ReconcilerConfig struct {
	Enabled  bool
	Schedule string
	Timeout  time.Duration
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

// LoadWithDotEnv reads the given .env files (".env" when none is given) into
// the environment, ignoring missing files, and then calls Load.
func LoadWithDotEnv(paths ...string) Config {
	_ = godotenv.Load(paths...)
	return Load()
}

// Load creates a Config from environment variables.
func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			RateLimit:      getEnvInt("RATE_LIMIT", 100),
			RateWindow:     getEnvDuration("RATE_WINDOW", time.Minute),
			RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
			CORSOrigins:    parseCORSOrigins(os.Getenv("CORS_ORIGINS")),
			SwaggerUser:    getEnv("SWAGGER_USER", ""),
			SwaggerPass:    getEnv("SWAGGER_PASS", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", false),
		},
		Cache: CacheConfig{
			Size: getEnvInt("CACHE_SIZE", 1000),
			TTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			Enabled:      getEnvBool("AUTH_ENABLED", false),
			APIKeys:      parseAPIKeys(os.Getenv("API_KEYS")),
			JWTSecretKey: getEnv("JWT_SECRET_KEY", ""),
			JWTIssuer:    getEnv("JWT_ISSUER", ""),
			WriteRoles:   parseList(os.Getenv("AUTH_WRITE_ROLES")),
		},
		Database: DatabaseConfig{
			URI:                            getEnv("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
			DatabaseName:                   getEnv("MONGODB_DATABASE", "trip_planner"),
			EventsTTL:                      getEnvDuration("MONGODB_EVENTS_TTL", 90*24*time.Hour),
			Enabled:                        getEnvBool("MONGODB_ENABLED", false),
			MaxPoolSize:                    getEnvInt("MONGODB_MAX_POOL_SIZE", 50),
			ConnectTimeout:                 getEnvDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
			CircuitBreakerFailureThreshold: getEnvInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5),
			CircuitBreakerSuccessThreshold: getEnvInt("CIRCUIT_BREAKER_SUCCESS_THRESHOLD", 2),
			CircuitBreakerTimeout:          getEnvDuration("CIRCUIT_BREAKER_TIMEOUT", 30*time.Second),
		},
		Planner: PlannerConfig{
			MinLoadUtilization: getEnvFloat("PLANNER_MIN_LOAD_UTILIZATION", 0.3),
			BaseDistanceKm:     getEnvFloat("PLANNER_BASE_DISTANCE_KM", 50),
			LockTimeout:        getEnvDuration("PLANNER_LOCK_TIMEOUT", 5*time.Second),
			HistoryTimeout:     getEnvDuration("PLANNER_HISTORY_TIMEOUT", 10*time.Second),
			EnrichmentTimeout:  getEnvDuration("PLANNER_ENRICHMENT_TIMEOUT", 45*time.Second),
		},
		Estimator: EstimatorConfig{
			DefaultDistanceKm:  getEnvFloat("ESTIMATOR_DEFAULT_DISTANCE_KM", 250),
			DefaultTimeH:       getEnvFloat("ESTIMATOR_DEFAULT_TIME_H", 4),
			DefaultConsumption: getEnvFloat("ESTIMATOR_DEFAULT_CONSUMPTION", 25),
			BufferFraction:     getEnvFloat("ESTIMATOR_BUFFER_FRACTION", 0.10),
			RandomBuffer:       getEnvBool("ESTIMATOR_RANDOM_BUFFER", false),
			BufferSeed:         int64(getEnvInt("ESTIMATOR_BUFFER_SEED", 1)),
			LookupTimeout:      getEnvDuration("ESTIMATOR_LOOKUP_TIMEOUT", 500*time.Millisecond),
			ProfilesFile:       getEnv("ESTIMATOR_PROFILES_FILE", ""),
		},
		Events: EventsConfig{
			Enabled:      getEnvBool("EVENTS_ENABLED", true),
			BufferSize:   getEnvInt("EVENTS_BUFFER_SIZE", 1000),
			Workers:      getEnvInt("EVENTS_WORKERS", 2),
			KafkaBrokers: parseList(os.Getenv("KAFKA_BROKERS")),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "allocation-events"),
		},
		Reconciler: ReconcilerConfig{
			Enabled:  getEnvBool("RECONCILER_ENABLED", false),
			Schedule: getEnv("RECONCILER_SCHEDULE", "@every 15m"),
			Timeout:  getEnvDuration("RECONCILER_TIMEOUT", 5*time.Minute),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "trip-planner"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:  getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			result = append(result, v)
		}
	}
	return result
}

func parseAPIKeys(s string) map[string]bool {
	keys := parseList(s)
	if len(keys) == 0 {
		return nil
	}
	result := make(map[string]bool, len(keys))
	for _, k := range keys {
		result[k] = true
	}
	return result
}

func parseCORSOrigins(s string) []string {
	// Default origins for local development
	defaults := []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	}
	return append(defaults, parseList(s)...)
}
