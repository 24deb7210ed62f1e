package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppHost  string
	HTTPPort string
	LogLevel string

	Elasticsearch struct {
		URL           string
		Username      string
		Password      string
		SkipTLSVerify bool
		Index         string
		Timeout       time.Duration
	}

	CORSOrigins []string

	// ImportMaxBytes caps the multipart body of POST /api/import.
	ImportMaxBytes int64
	// ImportRatePerMin is the token bucket refill for imports; 0 disables limiting.
	ImportRatePerMin int
	// ImportTimeout bounds a whole import request; HTTP server timeouts are sized from it.
	ImportTimeout    time.Duration
	BulkBatchSize    int
	CSVPath          string

	KafkaBrokers []string
	KafkaTopics  []string
	KafkaGroupID string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppHost:          getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:         firstEnv("APP_PORT", "HTTP_PORT", "5000"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
		ImportMaxBytes:   int64(getEnvAsInt("IMPORT_MAX_BYTES", 32<<20)),
		ImportRatePerMin: getEnvAsInt("IMPORT_RATE_PER_MIN", 10),
		BulkBatchSize:    getEnvAsInt("BULK_BATCH_SIZE", 500),
		CSVPath:          getEnv("CSV_PATH", "data/trump_posts.csv"),
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopics:      splitList(getEnv("KAFKA_TOPICS", "")),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "post-search"),
	}
	cfg.Elasticsearch.URL = getEnv("ELASTICSEARCH_URL", "http://localhost:9200")
	cfg.Elasticsearch.Username = getEnv("ELASTICSEARCH_USERNAME", "")
	cfg.Elasticsearch.Password = getEnv("ELASTICSEARCH_PASSWORD", "")
	cfg.Elasticsearch.SkipTLSVerify = getEnvAsBool("ELASTICSEARCH_SKIP_TLS_VERIFY", false)
	cfg.Elasticsearch.Index = getEnv("ELASTICSEARCH_INDEX", "trash_posts")

	timeout, err := time.ParseDuration(getEnv("ELASTICSEARCH_TIMEOUT", "30s"))
	if err != nil {
		return nil, errors.New("config: ELASTICSEARCH_TIMEOUT must be a duration such as 30s")
	}
	cfg.Elasticsearch.Timeout = timeout

	importTimeout, err := time.ParseDuration(getEnv("IMPORT_TIMEOUT", "10m"))
	if err != nil {
		return nil, errors.New("config: IMPORT_TIMEOUT must be a duration such as 10m")
	}
	cfg.ImportTimeout = importTimeout
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Elasticsearch.URL == "" {
		return errors.New("config: ELASTICSEARCH_URL is required")
	}
	if c.Elasticsearch.Index == "" {
		return errors.New("config: ELASTICSEARCH_INDEX is required")
	}
	if c.Elasticsearch.Timeout <= 0 {
		return errors.New("config: ELASTICSEARCH_TIMEOUT must be positive")
	}
	if c.BulkBatchSize < 1 || c.BulkBatchSize > 10000 {
		return errors.New("config: BULK_BATCH_SIZE must be between 1 and 10000")
	}
	if c.ImportMaxBytes <= 0 {
		return errors.New("config: IMPORT_MAX_BYTES must be positive")
	}
	if c.ImportTimeout <= 0 {
		return errors.New("config: IMPORT_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) AppEnv() string {
	return getEnv("APP_ENV", "development")
}

func (c *Config) IsProduction() bool {
	return c.AppEnv() == "production"
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	keys := keysAndDef[:len(keysAndDef)-1]
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return def
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
