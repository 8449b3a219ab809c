// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Event sink choices for EVENT_SINK.
const (
	SinkNone     = "none"
	SinkRedis    = "redis"
	SinkPostgres = "postgres"
)

// Config holds everything the server and historian read from the environment.
type Config struct {
	Port           string
	LogLevel       logrus.Level
	AllowedOrigins []string

	TargetScore       int
	TurnTimer         time.Duration
	LobbyGrace        time.Duration
	MatchGrace        time.Duration
	ReconnectTokenTTL time.Duration
	TokenExpire       string
	// Both paths set means the bearer key pair is read from disk instead of generated.
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string

	EventSink string

	RedisAddr   string
	RedisDB     int
	QueueName   string
	PostgresDSN string

	NatsURL string

	HistorianBatchSize int
	HistorianFlush     time.Duration
}

// Load reads the configuration. godotenv/autoload in the binaries has already merged .env
// into the environment by the time this runs.
func Load() (Config, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		AllowedOrigins:    splitList(os.Getenv("ALLOWED_ORIGINS")),
		LogLevel:          level,
		TargetScore:       getEnvInt("TARGET_SCORE", 101),
		TurnTimer:         getEnvDuration("TURN_TIMER", 15*time.Second),
		LobbyGrace:        getEnvDuration("LOBBY_GRACE", 120*time.Second),
		MatchGrace:        getEnvDuration("MATCH_GRACE", 30*time.Minute),
		ReconnectTokenTTL: getEnvDuration("RECONNECT_TOKEN_TTL", 30*time.Minute),
		TokenExpire:       getEnv("TOKEN_EXPIRE_TIME", "never"),
		JWTPrivateKeyPath: os.Getenv("JWT_PRIVATE_KEY_PATH"),
		JWTPublicKeyPath:  os.Getenv("JWT_PUBLIC_KEY_PATH"),

		EventSink: strings.ToLower(getEnv("EVENT_SINK", SinkNone)),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		QueueName: getEnv("HISTORIAN_QUEUE_NAME", "zing_events"),
		PostgresDSN: fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("POSTGRES_USER"),
			os.Getenv("POSTGRES_PASSWORD"),
			getEnv("PG_HOST", "localhost"),
			getEnv("PG_PORT", "5432"),
			os.Getenv("PG_DATABASE"),
		),

		NatsURL: os.Getenv("NATS_URL"),

		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
	}

	switch cfg.EventSink {
	case SinkNone, SinkRedis, SinkPostgres:
	default:
		return Config{}, fmt.Errorf("EVENT_SINK must be one of none, redis, postgres; got %q", cfg.EventSink)
	}
	if cfg.TargetScore <= 0 {
		return Config{}, fmt.Errorf("TARGET_SCORE must be positive, got %d", cfg.TargetScore)
	}
	if (cfg.JWTPrivateKeyPath == "") != (cfg.JWTPublicKeyPath == "") {
		return Config{}, fmt.Errorf("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	}
	if cfg.HistorianBatchSize <= 0 {
		cfg.HistorianBatchSize = 20
	}
	return cfg, nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// getEnvDuration accepts Go durations ("15s") or bare seconds ("15").
func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// splitList reads a comma-separated list, dropping blanks. An empty input yields nil.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
