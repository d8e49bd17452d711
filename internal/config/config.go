package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Supabase  SupabaseConfig
	Ai        AIConfig
	Upload    UploadConfig
	Retry     RetryConfig
	Retrieval RetrievalConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	CompletionTopic    string
}

type DatabaseConfig struct {
	// Backend picks the persistence implementation once per process:
	// "postgres" (dev, native transactions) or "supabase" (prod, REST only).
	Backend    string
	Connection string
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
}

type AIConfig struct {
	EmbeddingProvider  string // "gemini" or "ollama"
	EmbeddingDimension int
	GeminiAPIKey       string
	OllamaBaseURL      string
	OllamaModel        string
	LLMProvider        string // "gemini" or "ollama"
	LLMModel           string
}

type UploadConfig struct {
	MaxSizeBytes int64
	ChunkSize    int
	ChunkOverlap int
}

type RetryConfig struct {
	MaxAttempts int
	// Heavy calls (create document, store chunks, similarity search) back
	// off from BaseDelay; bookkeeping calls (status update/read, chunk
	// delete) from FastBaseDelay.
	BaseDelay     time.Duration
	FastBaseDelay time.Duration
	Backoff       float64
}

type RetrievalConfig struct {
	MaxConcurrency    int
	BatchMaxItems     int
	MaxDocIdsPerQuery int
	DefaultMatchCount int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	maxUploadMb := getEnvAsInt("MAX_UPLOAD_SIZE_MB", 10)

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			CompletionTopic:    getEnv("DOCUMENT_EVENTS_TOPIC_NAME", "DOCUMENT_EVENTS"),
		},
		Database: DatabaseConfig{
			Backend:    getEnv("DB_BACKEND", "postgres"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Supabase: SupabaseConfig{
			URL:        getEnv("SUPABASE_URL", ""),
			ServiceKey: getEnv("SUPABASE_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "gemini"),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 3072),
			GeminiAPIKey:       getEnv("GOOGLE_GEMINI_API_KEY", ""),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:        getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:        getEnv("LLM_PROVIDER", "gemini"),
			LLMModel:           getEnv("LLM_MODEL", "gemini-2.0-flash"),
		},
		Upload: UploadConfig{
			MaxSizeBytes: int64(maxUploadMb) * 1024 * 1024,
			ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),
		},
		Retry: RetryConfig{
			MaxAttempts:   getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:     getEnvAsDuration("RETRY_BASE_DELAY", time.Second),
			FastBaseDelay: getEnvAsDuration("RETRY_FAST_BASE_DELAY", 500*time.Millisecond),
			Backoff:       getEnvAsFloat("RETRY_BACKOFF", 2.0),
		},
		Retrieval: RetrievalConfig{
			MaxConcurrency:    getEnvAsInt("RETRIEVAL_MAX_CONCURRENCY", 8),
			BatchMaxItems:     getEnvAsInt("CHAT_BATCH_MAX_ITEMS", 10),
			MaxDocIdsPerQuery: getEnvAsInt("CHAT_MAX_DOC_IDS_PER_QUERY", 5),
			DefaultMatchCount: getEnvAsInt("CHAT_DEFAULT_MATCH_COUNT", 5),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
