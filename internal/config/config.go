package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort  string
	LogLevel string

	GoogleAPIKey   string
	GeminiBaseURL  string
	GeminiModel    string
	GeminiTimeoutS int
	AnalyzerMode   string

	UploadDir             string
	UnsupportedTypeStatus int
	MaxUploadMB           int
	RoutingRulesFile      string

	OCRDPI       int
	OCRLanguages string

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIQueueWaitMS    int

	NATSURL              string
	RoutingSubjectPrefix string

	IngestSourceDir string
	IngestTextMode  string
	VectorStoreDir  string
	VectorBackend   string
	LedgerDSN       string

	QdrantURL        string
	QdrantCollection string

	OllamaURL        string
	OllamaEmbedModel string

	ChunkSize    int
	ChunkOverlap int
}

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "5000"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		GoogleAPIKey:   strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
		GeminiBaseURL:  mustEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiModel:    mustEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiTimeoutS: mustEnvInt("GEMINI_TIMEOUT_SECONDS", 120),
		AnalyzerMode:   strings.ToLower(mustEnv("ANALYZER_MODE", "ocr")),

		UploadDir:             mustEnv("UPLOAD_DIR", "uploads"),
		UnsupportedTypeStatus: mustEnvInt("UNSUPPORTED_TYPE_STATUS", http.StatusOK),
		MaxUploadMB:           mustEnvInt("MAX_UPLOAD_MB", 32),
		RoutingRulesFile:      mustEnv("ROUTING_RULES_FILE", ""),

		OCRDPI:       mustEnvInt("OCR_DPI", 300),
		OCRLanguages: mustEnv("OCR_LANGUAGES", "eng"),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 10),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 0),
		APIQueueWaitMS:    mustEnvInt("API_QUEUE_WAIT_MS", 250),

		NATSURL:              mustEnv("NATS_URL", ""),
		RoutingSubjectPrefix: mustEnv("ROUTING_SUBJECT_PREFIX", "intake.routed"),

		IngestSourceDir: mustEnv("INGEST_SOURCE_DIR", "data"),
		IngestTextMode:  strings.ToLower(mustEnv("INGEST_TEXT_MODE", "ocr")),
		VectorStoreDir:  mustEnv("VECTOR_STORE_DIR", "chroma_db"),
		VectorBackend:   strings.ToLower(mustEnv("VECTOR_BACKEND", "sqlite")),
		LedgerDSN:       mustEnv("LEDGER_DSN", ""),

		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "document_chunks"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbedModel: mustEnv("EMBED_MODEL", "all-minilm"),

		ChunkSize:    mustEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: mustEnvInt("CHUNK_OVERLAP", 200),
	}
}

// ValidateAPI checks what the intake service needs before it starts serving.
func (c Config) ValidateAPI() error {
	var problems []string
	if c.GoogleAPIKey == "" {
		problems = append(problems, "GOOGLE_API_KEY is not set")
	}
	if c.AnalyzerMode != "ocr" && c.AnalyzerMode != "unified" {
		problems = append(problems, fmt.Sprintf("ANALYZER_MODE must be ocr or unified, got %q", c.AnalyzerMode))
	}
	if c.UnsupportedTypeStatus < 200 || c.UnsupportedTypeStatus > 599 {
		problems = append(problems, fmt.Sprintf("UNSUPPORTED_TYPE_STATUS must be an HTTP status, got %d", c.UnsupportedTypeStatus))
	}
	if c.MaxUploadMB <= 0 {
		problems = append(problems, "MAX_UPLOAD_MB must be positive")
	}
	if c.APIRateLimitRPS < 0 || c.APIMaxInFlight < 0 {
		problems = append(problems, "API_RATE_LIMIT_RPS and API_MAX_IN_FLIGHT must not be negative")
	}
	return joinProblems(problems)
}

// ValidateIngest checks what the batch job needs.
func (c Config) ValidateIngest() error {
	var problems []string
	if c.ChunkSize <= 0 {
		problems = append(problems, "CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		problems = append(problems, fmt.Sprintf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap))
	}
	if c.VectorBackend != "sqlite" && c.VectorBackend != "qdrant" {
		problems = append(problems, fmt.Sprintf("VECTOR_BACKEND must be sqlite or qdrant, got %q", c.VectorBackend))
	}
	if c.IngestTextMode != "ocr" && c.IngestTextMode != "textlayer" {
		problems = append(problems, fmt.Sprintf("INGEST_TEXT_MODE must be ocr or textlayer, got %q", c.IngestTextMode))
	}
	return joinProblems(problems)
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
