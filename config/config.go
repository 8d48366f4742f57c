package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Server        ServerConfig
	Log           LogConfig
	DBPath        string
	Acquisition   AcquisitionConfig
	Transcription TranscriptionConfig
	Generation    GenerationConfig
	OpenAI        ProviderConfig
	Gemini        ProviderConfig
	Archive       ArchiveConfig
}

type ServerConfig struct {
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestTimeout    time.Duration
	RateLimit         int
	RateLimitInterval time.Duration
	AllowedOrigins    []string
}

type LogConfig struct {
	Dir   string
	Level string
	JSON  bool
}

type AcquisitionConfig struct {
	YtDlpPath      string
	TempDir        string
	AttemptTimeout time.Duration
	Delay          time.Duration
}

type TranscriptionConfig struct {
	Backend string
	Model   string
	Timeout time.Duration
}

type GenerationConfig struct {
	Backend         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
	Temperature     float64
	Parallel        bool
}

type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

type ArchiveConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// Enabled reports whether results should be archived to object storage.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
)

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              "8080",
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      20 * time.Minute,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			RequestTimeout:    15 * time.Minute,
			RateLimit:         5,
			RateLimitInterval: 1 * time.Second,
			AllowedOrigins:    []string{"*"},
		},
		Log: LogConfig{
			Dir:   "./logs",
			Level: "info",
		},
		DBPath: "./data/transcripts.db",
		Acquisition: AcquisitionConfig{
			YtDlpPath:      "yt-dlp",
			TempDir:        os.TempDir(),
			AttemptTimeout: 5 * time.Minute,
			Delay:          1 * time.Second,
		},
		Transcription: TranscriptionConfig{
			Backend: BackendGemini,
			Timeout: 10 * time.Minute,
		},
		Generation: GenerationConfig{
			Backend:         BackendGemini,
			Timeout:         2 * time.Minute,
			MaxOutputTokens: 2000,
			Temperature:     0.7,
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file and the
// environment, in that order. An empty path falls back to CONFIG_FILE.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = GetEnv("CONFIG_FILE", "")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = GetEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvAsDuration("READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvAsDuration("WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvAsDuration("IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.RequestTimeout = getEnvAsDuration("REQUEST_TIMEOUT", cfg.Server.RequestTimeout)
	cfg.Server.RateLimit = getEnvAsInt("RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.RateLimitInterval = getEnvAsDuration("RATE_LIMIT_INTERVAL", cfg.Server.RateLimitInterval)
	cfg.Server.AllowedOrigins = getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)

	cfg.Log.Dir = GetEnv("LOG_DIR", cfg.Log.Dir)
	cfg.Log.Level = GetEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.JSON = getEnvAsBool("LOG_JSON", cfg.Log.JSON)

	cfg.DBPath = GetEnv("DB_PATH", cfg.DBPath)

	cfg.Acquisition.YtDlpPath = GetEnv("YTDLP_PATH", cfg.Acquisition.YtDlpPath)
	cfg.Acquisition.TempDir = GetEnv("TEMP_DIR", cfg.Acquisition.TempDir)
	cfg.Acquisition.AttemptTimeout = getEnvAsDuration("ACQUIRE_TIMEOUT", cfg.Acquisition.AttemptTimeout)
	cfg.Acquisition.Delay = getEnvAsDuration("ACQUIRE_DELAY", cfg.Acquisition.Delay)

	cfg.Transcription.Backend = strings.ToLower(GetEnv("TRANSCRIBE_BACKEND", cfg.Transcription.Backend))
	cfg.Transcription.Model = GetEnv("TRANSCRIBE_MODEL", cfg.Transcription.Model)
	cfg.Transcription.Timeout = getEnvAsDuration("TRANSCRIBE_TIMEOUT", cfg.Transcription.Timeout)

	cfg.Generation.Backend = strings.ToLower(GetEnv("GENERATE_BACKEND", cfg.Generation.Backend))
	cfg.Generation.Model = GetEnv("GENERATE_MODEL", cfg.Generation.Model)
	cfg.Generation.Timeout = getEnvAsDuration("GENERATE_TIMEOUT", cfg.Generation.Timeout)
	cfg.Generation.MaxOutputTokens = getEnvAsInt("GENERATE_MAX_TOKENS", cfg.Generation.MaxOutputTokens)
	cfg.Generation.Temperature = getEnvAsFloat("GENERATE_TEMPERATURE", cfg.Generation.Temperature)
	cfg.Generation.Parallel = getEnvAsBool("GENERATE_PARALLEL", cfg.Generation.Parallel)

	cfg.OpenAI.APIKey = GetEnv("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.BaseURL = GetEnv("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.Gemini.APIKey = GetEnv("GEMINI_API_KEY", cfg.Gemini.APIKey)
	cfg.Gemini.BaseURL = GetEnv("GEMINI_BASE_URL", cfg.Gemini.BaseURL)

	cfg.Archive.Bucket = GetEnv("ARCHIVE_BUCKET", cfg.Archive.Bucket)
	cfg.Archive.Endpoint = GetEnv("ARCHIVE_ENDPOINT", cfg.Archive.Endpoint)
	cfg.Archive.Region = GetEnv("ARCHIVE_REGION", cfg.Archive.Region)
	cfg.Archive.AccessKey = GetEnv("ARCHIVE_ACCESS_KEY", cfg.Archive.AccessKey)
	cfg.Archive.SecretKey = GetEnv("ARCHIVE_SECRET_KEY", cfg.Archive.SecretKey)
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		warnInvalid(key, value, defaultValue, "Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		warnInvalid(key, value, defaultValue, "Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		warnInvalid(key, value, defaultValue, "Invalid number, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		warnInvalid(key, value, defaultValue, "Invalid boolean, using default")
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

func warnInvalid(key, value string, defaultValue interface{}, msg string) {
	logrus.WithFields(logrus.Fields{
		"key":          key,
		"value":        value,
		"defaultValue": defaultValue,
	}).Warn(msg)
}

func ValidateConfig(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server port is required")
	}
	if cfg.DBPath == "" {
		return errors.New("database path is required")
	}
	if cfg.Server.ReadTimeout <= 0 {
		return errors.New("read timeout must be greater than 0")
	}
	if cfg.Server.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}
	if cfg.Server.IdleTimeout <= 0 {
		return errors.New("idle timeout must be greater than 0")
	}
	if cfg.Server.RequestTimeout <= 0 {
		return errors.New("request timeout must be greater than 0")
	}
	if cfg.Server.RateLimit <= 0 || cfg.Server.RateLimitInterval <= 0 {
		return errors.New("rate limit and interval must be greater than 0")
	}
	if cfg.Acquisition.Delay < 0 || cfg.Acquisition.Delay > 2*time.Second {
		return errors.Errorf("acquire delay must be between 0 and 2s, got %s", cfg.Acquisition.Delay)
	}
	if cfg.Transcription.Timeout <= 0 {
		return errors.New("transcribe timeout must be greater than 0")
	}
	if cfg.Generation.Timeout <= 0 {
		return errors.New("generate timeout must be greater than 0")
	}
	if cfg.Generation.MaxOutputTokens <= 0 {
		return errors.New("generate max tokens must be greater than 0")
	}
	if cfg.Generation.Temperature < 0 || cfg.Generation.Temperature > 2 {
		return errors.Errorf("generate temperature must be between 0 and 2, got %g", cfg.Generation.Temperature)
	}
	if err := validateBackend("transcribe", cfg.Transcription.Backend); err != nil {
		return err
	}
	if err := validateBackend("generate", cfg.Generation.Backend); err != nil {
		return err
	}
	return nil
}

func validateBackend(kind, backend string) error {
	switch backend {
	case BackendOpenAI, BackendGemini:
		return nil
	default:
		return errors.Errorf("%s backend must be %q or %q, got %q", kind, BackendOpenAI, BackendGemini, backend)
	}
}

// APIKey returns the credential for the named backend.
func (c *Config) APIKey(backend string) string {
	if backend == BackendOpenAI {
		return c.OpenAI.APIKey
	}
	return c.Gemini.APIKey
}
