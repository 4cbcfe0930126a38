package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	AI       AIConfig
	Adapter  AdapterConfig
	RAG      RAGConfig
	Stream   StreamConfig
	Session  SessionConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	EventLogFilePath   string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	OtelEnabled        bool
	OtelEndpoint       string
	ServiceName        string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	LLMProvider     string // "ollama" or "openai"
	LLMModel        string // e.g. "llama3", "qwen2.5"
	LLMBaseURL      string
	LLMAPIKey       string
	RequestTimeout  time.Duration
	VisionBaseURL   string
	VisionElaborate bool
	OllamaBaseURL   string
	EmbeddingModel  string
}

type AdapterConfig struct {
	Root        string
	ServerURL   string // OpenAI compatible server with LoRA hot-loading
	APIKey      string
	LoadTimeout time.Duration
}

type RAGConfig struct {
	Enabled          bool
	Keywords         []string
	MinQuestionWords int
	TopK             int
}

type StreamConfig struct {
	Pacing time.Duration
}

type SessionConfig struct {
	Store      string // "memory" or "redis"
	HistoryCap int    // turns retained per session
	WindowCap  int    // history turns sent to a backend per request
	TTL        time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	ollamaURL := getEnv("OLLAMA_BASE_URL", "http://localhost:11434")

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			EventLogFilePath:   getEnv("EVENT_LOG_FILE_PATH", "logs/adapter_events.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:        getEnv("OTEL_SERVICE_NAME", "nexus-ai-gateway"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		AI: AIConfig{
			LLMProvider:     getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:        getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:      getEnv("LLM_BASE_URL", ollamaURL),
			LLMAPIKey:       getEnv("LLM_API_KEY", ""),
			RequestTimeout:  getEnvAsDuration("LLM_REQUEST_TIMEOUT", 120*time.Second),
			VisionBaseURL:   getEnv("VISION_BASE_URL", "http://localhost:5000"),
			VisionElaborate: getEnvAsBool("VISION_ELABORATE", false),
			OllamaBaseURL:   ollamaURL,
			EmbeddingModel:  getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		},
		Adapter: AdapterConfig{
			Root:        getEnv("ADAPTER_ROOT", "./models/adapters"),
			ServerURL:   getEnv("ADAPTER_SERVER_URL", "http://localhost:8001"),
			APIKey:      getEnv("ADAPTER_API_KEY", ""),
			LoadTimeout: getEnvAsDuration("ADAPTER_LOAD_TIMEOUT", 5*time.Minute),
		},
		RAG: RAGConfig{
			Enabled:          getEnvAsBool("RAG_ENABLED", true),
			Keywords:         getEnvAsList("RAG_KEYWORDS", nil),
			MinQuestionWords: getEnvAsInt("RAG_MIN_QUESTION_WORDS", 6),
			TopK:             getEnvAsInt("RAG_TOP_K", 4),
		},
		Stream: StreamConfig{
			Pacing: getEnvAsDuration("STREAM_PACING", 20*time.Millisecond),
		},
		Session: SessionConfig{
			Store:      getEnv("SESSION_STORE", "memory"),
			HistoryCap: getEnvAsInt("SESSION_HISTORY_CAP", 20),
			WindowCap:  getEnvAsInt("CONTEXT_WINDOW_CAP", 10),
			TTL:        getEnvAsDuration("SESSION_TTL", time.Hour),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("30s") or bare seconds ("30").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, fallback []string) []string {
	strValue := getEnv(key, "")
	if strings.TrimSpace(strValue) == "" {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(strValue, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
