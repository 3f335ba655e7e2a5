package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App    AppConfig
	Viewer ViewerConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	BridgeLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string
	OtlpEndpoint       string
}

type ViewerConfig struct {
	// IdleAfter is the quiet window without qualifying interaction after
	// which the tracker flips to idle.
	IdleAfter time.Duration
	// PollInterval drives the annotation capture diff and re-anchoring
	// retries for notes still unmatched.
	PollInterval time.Duration
	// AnchorRetryDelay is the wait before re-anchoring retries a page whose
	// text layer was not ready.
	AnchorRetryDelay time.Duration
	// TooltipDelay is the hover delay before the note detail is shown.
	TooltipDelay time.Duration
	// LoadAttempts and LoadRetryDelay bound the wait for the viewer to
	// become ready after a load command.
	LoadAttempts   int
	LoadRetryDelay time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "surface.log"),
			BridgeLogFilePath:  getEnv("BRIDGE_LOG_FILE_PATH", "bridge.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			OtlpEndpoint:       getEnv("OTLP_ENDPOINT", ""),
		},
		Viewer: ViewerConfig{
			IdleAfter:        getEnvAsDuration("IDLE_AFTER", 10*time.Second),
			PollInterval:     getEnvAsDuration("ANNOTATION_POLL_INTERVAL", 2*time.Second),
			AnchorRetryDelay: getEnvAsDuration("ANCHOR_RETRY_DELAY", 500*time.Millisecond),
			TooltipDelay:     getEnvAsDuration("TOOLTIP_DELAY", 500*time.Millisecond),
			LoadAttempts:     getEnvAsInt("LOAD_ATTEMPTS", 10),
			LoadRetryDelay:   getEnvAsDuration("LOAD_RETRY_DELAY", time.Second),
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
