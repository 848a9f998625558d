package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port        string // HTTP listen port
	DataDir     string // Data directory root
	DatabaseURL string // sqlite path, postgres:// or mysql:// URL
	JWTSecret   string // JWT signing secret

	OpenAIAPIKey      string        // Key for openai_api backends and transcription
	TranscribeBaseURL string        // Speech-to-text endpoint
	TranscribeModel   string        // Speech-to-text model
	NOAModel          string        // AI model name used by the multimodal endpoint
	NOAPersist        bool          // Store multimodal exchanges as noa threads
	AITimeout         time.Duration // Deadline for a single AI or transcription call
	MaxUploadMB       int64         // Multipart body limit

	RedisURL       string   // Enables the model cache when set
	LogLevel       string   // zap level
	LogFormat      string   // json or console
	AllowedOrigins []string // CORS origins, empty allows all
}

// Load reads configuration from the environment (and an optional .env file)
// with sensible defaults
func Load() *Config {
	// A missing .env is the normal case in production.
	_ = godotenv.Load()

	dataDir := envOrDefault("AIUI_DATA_DIR", "./data")

	cfg := &Config{
		Port:        envOrDefault("AIUI_PORT", "8000"),
		DataDir:     dataDir,
		DatabaseURL: envOrDefault("AIUI_DATABASE_URL", filepath.Join(dataDir, "aiui.db")),
		JWTSecret:   envOrDefault("AIUI_JWT_SECRET", "aiui-change-me-in-production"),

		OpenAIAPIKey:      os.Getenv("AIUI_OPENAI_API_KEY"),
		TranscribeBaseURL: envOrDefault("AIUI_TRANSCRIBE_BASE_URL", "https://api.openai.com/v1"),
		TranscribeModel:   envOrDefault("AIUI_TRANSCRIBE_MODEL", "whisper-1"),
		NOAModel:          envOrDefault("AIUI_NOA_MODEL", "openai/gpt-oss-20b:free"),
		NOAPersist:        envBool("AIUI_NOA_PERSIST", false),
		AITimeout:         envDuration("AIUI_AI_TIMEOUT", 2*time.Minute),
		MaxUploadMB:       int64(envInt("AIUI_MAX_UPLOAD_MB", 25)),

		RedisURL:       os.Getenv("AIUI_REDIS_URL"),
		LogLevel:       envOrDefault("AIUI_LOG_LEVEL", "info"),
		LogFormat:      envOrDefault("AIUI_LOG_FORMAT", "json"),
		AllowedOrigins: splitList(os.Getenv("AIUI_ALLOWED_ORIGINS")),
	}

	os.MkdirAll(dataDir, 0755)

	return cfg
}

// MaxUploadBytes returns the multipart body limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
