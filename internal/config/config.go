package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by ARETE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("ARETE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// Namespace is the store root under which this caller's documents live.
func Namespace() string {
	ns := os.Getenv("ARETE_NAMESPACE")
	if ns == "" {
		return "default"
	}
	return ns
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// ClassifierProvider returns the configured classifier provider.
// Defaults to "anthropic" if not set.
// Valid values: anthropic, openai, mock
func ClassifierProvider() string {
	p := os.Getenv("CLASSIFIER_PROVIDER")
	if p == "" {
		return "anthropic"
	}
	return p
}

// ClassifierAPIKey returns the API key for the configured provider.
func ClassifierAPIKey() string {
	switch ClassifierProvider() {
	case "openai":
		return OpenAIAPIKey()
	case "mock":
		return ""
	default:
		return AnthropicAPIKey()
	}
}

// ClassifierTimeout bounds a single external classifier call.
// Defaults to 30 seconds.
func ClassifierTimeout() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("CLASSIFIER_TIMEOUT_SECONDS"))
	if err != nil || secs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(secs) * time.Second
}

// HalfLifeDays returns the confidence decay half-life.
// Defaults to 60 days.
func HalfLifeDays() float64 {
	days, err := strconv.ParseFloat(os.Getenv("HALF_LIFE_DAYS"), 64)
	if err != nil || days <= 0 {
		return 60
	}
	return days
}

// CandidateTTL returns how long registered candidates stay returnable.
// Defaults to 24 hours.
func CandidateTTL() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("CANDIDATE_TTL_HOURS"))
	if err != nil || hours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(hours) * time.Hour
}

// ArchiveThreshold returns the effective-confidence floor for sweeps.
// Defaults to 0.1.
func ArchiveThreshold() float64 {
	t, err := strconv.ParseFloat(os.Getenv("ARCHIVE_THRESHOLD"), 64)
	if err != nil || t <= 0 || t >= 1 {
		return 0.1
	}
	return t
}

// SweepInterval returns how often the background sweeper runs.
// Defaults to 24 hours.
func SweepInterval() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("SWEEP_INTERVAL_HOURS"))
	if err != nil || hours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(hours) * time.Hour
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
