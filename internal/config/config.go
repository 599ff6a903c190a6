package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// FactWeights holds the blend weights for the fact recall scoring formula.
// The four signals are combined linearly; weights do not need to sum to 1.
type FactWeights struct {
	Importance float64
	Confidence float64
	Recency    float64
	Frequency  float64
}

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	DBPath             string
	QdrantURL          string
	QdrantCollection   string
	QdrantVectorSize   int
	APIPort            string
	LogLevel           slog.Level
	LogFormat          string

	// Query rewriting (anaphora resolution).
	RewriteEnabled         bool
	RewriteHistoryTurns    int
	RewriteMaxMessageChars int
	RewriteMinLength       int

	// Query expansion (paraphrase variants).
	ExpandEnabled   bool
	ExpandVariants  int
	ExpandMinLength int

	// Retrieval and reranking.
	RetrieveTopK       int
	RerankEnabled      bool
	RerankModelName    string

	// Fact memory.
	FactRecallBudget         int
	FactWeights              FactWeights
	FactRecencyHalfLifeHours float64
	FactTurnDecay            float64

	// Insight generation.
	InsightBatchChunks int
	InsightMaxTopics   int
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		DBPath:             getEnv("DB_PATH", "./data/vidsage-ai.db"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "transcript_chunks"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),

		RewriteEnabled:         getEnvBool("REWRITE_ENABLED", true),
		RewriteHistoryTurns:    getEnvInt("REWRITE_HISTORY_TURNS", 6),
		RewriteMaxMessageChars: getEnvInt("REWRITE_MAX_MESSAGE_CHARS", 500),
		RewriteMinLength:       getEnvInt("REWRITE_MIN_LENGTH", 10),

		ExpandEnabled:   getEnvBool("EXPAND_ENABLED", true),
		ExpandVariants:  getEnvInt("EXPAND_VARIANTS", 3),
		ExpandMinLength: getEnvInt("EXPAND_MIN_LENGTH", 8),

		RetrieveTopK:    getEnvInt("RETRIEVE_TOP_K", 10),
		RerankEnabled:   getEnvBool("RERANK_ENABLED", true),
		RerankModelName: getEnv("RERANK_MODEL", "bge-reranker-v2-m3"),

		FactRecallBudget: getEnvInt("FACT_RECALL_BUDGET", 10),
		FactWeights: FactWeights{
			Importance: getEnvFloat("FACT_WEIGHT_IMPORTANCE", 0.35),
			Confidence: getEnvFloat("FACT_WEIGHT_CONFIDENCE", 0.2),
			Recency:    getEnvFloat("FACT_WEIGHT_RECENCY", 0.25),
			Frequency:  getEnvFloat("FACT_WEIGHT_FREQUENCY", 0.2),
		},
		FactRecencyHalfLifeHours: getEnvFloat("FACT_RECENCY_HALF_LIFE_HOURS", 24),
		FactTurnDecay:            getEnvFloat("FACT_TURN_DECAY", 10),

		InsightBatchChunks: getEnvInt("INSIGHT_BATCH_CHUNKS", 40),
		InsightMaxTopics:   getEnvInt("INSIGHT_MAX_TOPICS", 12),
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", cfg.LogFormat)
	}

	// Parse QDRANT_VECTOR_SIZE
	// Note: This must match the output vector size of the embeddings model.
	// If the vector size changes, the Qdrant collection must be recreated.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	if cfg.RetrieveTopK <= 0 {
		return nil, fmt.Errorf("RETRIEVE_TOP_K must be greater than 0")
	}
	if cfg.ExpandVariants < 0 {
		return nil, fmt.Errorf("EXPAND_VARIANTS must not be negative")
	}
	if cfg.FactRecallBudget <= 0 {
		return nil, fmt.Errorf("FACT_RECALL_BUDGET must be greater than 0")
	}
	if cfg.InsightBatchChunks <= 0 {
		return nil, fmt.Errorf("INSIGHT_BATCH_CHUNKS must be greater than 0")
	}

	// Create ./data directory if it doesn't exist (for the DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q (expected debug, info, warn, or error)", value)
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
// Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvFloat gets a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvBool gets a boolean environment variable or returns a default value.
// Accepts the forms understood by strconv.ParseBool.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
