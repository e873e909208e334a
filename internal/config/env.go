package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	S3Endpoint   string
	BucketName   string
	AIAPIKey     string
	EmbedModel   string
	EmbedDim     int
	DataDir      string
	Port         string

	OCRServiceURL   string
	OCRPollInterval time.Duration
	OCRTimeout      time.Duration
	OCRBatchSize    int

	ChunkSize            int
	ChunkOverlap         int
	VectorStoreBatchSize int
	MaxConcurrent        int
	ResultTTL            time.Duration
}

// LoadConfig loads the environment variables and returns the config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""), // set for MinIO, empty for AWS
		BucketName:   getEnv("BUCKET_NAME", "file-uploads"),
		AIAPIKey:     getEnv("GEMINI_API_KEY", ""),
		EmbedModel:   getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:     getEnvInt("EMBED_DIM", 768),
		DataDir:      getEnv("DATA_DIR", "./data"),
		Port:         getEnv("PORT", "8080"),

		OCRServiceURL:   getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRPollInterval: getEnvDuration("OCR_POLL_INTERVAL", 2*time.Second),
		OCRTimeout:      getEnvDuration("OCR_TIMEOUT", 600*time.Second),
		OCRBatchSize:    getEnvInt("OCR_BATCH_SIZE", 20),

		ChunkSize:            getEnvInt("CHUNK_SIZE", 800),
		ChunkOverlap:         getEnvInt("CHUNK_OVERLAP", 100),
		VectorStoreBatchSize: getEnvInt("VECTOR_STORE_BATCH_SIZE", 64),
		MaxConcurrent:        getEnvInt("MAX_CONCURRENT_PROCESSES", 5),
		ResultTTL:            getEnvDuration("RESULT_TTL", 300*time.Second),
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

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	// Accept both "2s" and a bare number of seconds.
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
	return def
}
