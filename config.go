package main

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type config struct {
	connStr     string
	todosTable  string
	usersTable  string
	eventsQueue string

	redisConn      string
	cacheTTL       time.Duration
	idempotencyTTL time.Duration

	jwtSecret    string
	jwtExpiry    time.Duration
	jwtIssuer    string
	jwtAudience  string
	jwksURL      string
	jwksCacheTTL time.Duration

	eventWorkers      int
	eventBuffer       int
	eventRetryInitial time.Duration
	eventRetryMax     time.Duration
	eventMaxAttempts  int

	port        string
	sampleRatio float64
}

func loadConfig() config {
	cfg := config{
		connStr:     os.Getenv("STORAGE_CONNECTION_STRING"),
		todosTable:  envString("TODOS_TABLE", "todos"),
		usersTable:  envString("USERS_TABLE", "users"),
		eventsQueue: os.Getenv("TODO_EVENTS_QUEUE"),

		redisConn:      os.Getenv("REDIS_CONNECTION_STRING"),
		cacheTTL:       envDur("CACHE_TTL", 10*time.Minute),
		idempotencyTTL: envDur("IDEMPOTENCY_TTL", 24*time.Hour),

		jwtSecret:    os.Getenv("JWT_SECRET"),
		jwtExpiry:    envDur("JWT_EXPIRE", 7*24*time.Hour),
		jwtIssuer:    os.Getenv("JWT_ISSUER"),
		jwtAudience:  os.Getenv("JWT_AUDIENCE"),
		jwksURL:      os.Getenv("AUTH_JWKS_URL"),
		jwksCacheTTL: envDur("JWKS_CACHE_TTL", 15*time.Minute),

		eventWorkers:      envInt("EVENT_WORKERS", 4),
		eventBuffer:       envInt("EVENT_BUFFER", 1024),
		eventRetryInitial: envDur("EVENT_RETRY_INITIAL", 250*time.Millisecond),
		eventRetryMax:     envDur("EVENT_RETRY_MAX", 10*time.Second),
		eventMaxAttempts:  envInt("EVENT_MAX_ATTEMPTS", 5),

		port:        envString("PORT", "8080"),
		sampleRatio: envFloat("OTEL_SAMPLE_RATIO", 1.0),
	}
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		cfg.port = val
	}

	if cfg.connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}
	if cfg.jwtSecret == "" && cfg.jwksURL == "" {
		log.Fatal("missing auth config: set JWT_SECRET or AUTH_JWKS_URL")
	}
	if cfg.sampleRatio < 0 || cfg.sampleRatio > 1 {
		log.Fatalf("invalid OTEL_SAMPLE_RATIO: %v", cfg.sampleRatio)
	}
	return cfg
}

func configureLogging() {
	if envBool("DEBUG", false) {
		log.SetLevel(log.DebugLevel)
	}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

func envString(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: must be a positive integer", name)
	}
	return n
}

func envDur(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return d
}

func envFloat(name string, def float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return f
}

func envBool(name string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(name))
	if err != nil {
		return def
	}
	return v
}

// redisOptions accepts a redis:// URL or an Azure style
// "host:port,password=...,ssl=true" connection string.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}
