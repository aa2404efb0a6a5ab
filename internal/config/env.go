package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	AIAPIKey     string
	EmbedModel   string
	GenModel     string
	Port         string

	// Boundary detection window (pages).
	WindowSize    int
	WindowOverlap int

	// Chunking (tokens); independent from the page window above.
	ChunkTargetTokens  int
	ChunkOverlapTokens int
	EmbedBatchSize     int

	// Pipeline knobs.
	MaxSegmentConcurrency int
	OracleMaxAttempts     int
	OracleBackoffMs       int
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "discovera-productions"),
		AIAPIKey:     getEnv("GEMINI_API_KEY", ""),
		EmbedModel:   getEnv("EMBED_MODEL", "text-embedding-004"),
		GenModel:     getEnv("GEN_MODEL", "gemini-1.5-flash"),
		Port:         getEnv("PORT", "8080"),

		WindowSize:    getEnvInt("WINDOW_SIZE", 10),
		WindowOverlap: getEnvInt("WINDOW_OVERLAP", 2),

		ChunkTargetTokens:  getEnvInt("CHUNK_TARGET_TOKENS", 500),
		ChunkOverlapTokens: getEnvInt("CHUNK_OVERLAP_TOKENS", 50),
		EmbedBatchSize:     getEnvInt("EMBED_BATCH_SIZE", 16),

		MaxSegmentConcurrency: getEnvInt("MAX_SEGMENT_CONCURRENCY", 4),
		OracleMaxAttempts:     getEnvInt("ORACLE_MAX_ATTEMPTS", 3),
		OracleBackoffMs:       getEnvInt("ORACLE_BACKOFF_MS", 1000),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
