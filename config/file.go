package config

import (
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// fileConfig mirrors Config for TOML files. Durations are strings such as
// "30s"; empty values leave the default in place.
type fileConfig struct {
	Server struct {
		Port              string   `toml:"port"`
		ReadTimeout       string   `toml:"read_timeout"`
		WriteTimeout      string   `toml:"write_timeout"`
		IdleTimeout       string   `toml:"idle_timeout"`
		ShutdownTimeout   string   `toml:"shutdown_timeout"`
		RequestTimeout    string   `toml:"request_timeout"`
		RateLimit         int      `toml:"rate_limit"`
		RateLimitInterval string   `toml:"rate_limit_interval"`
		AllowedOrigins    []string `toml:"allowed_origins"`
	} `toml:"server"`

	Log struct {
		Dir   string `toml:"dir"`
		Level string `toml:"level"`
		JSON  *bool  `toml:"json"`
	} `toml:"log"`

	Database struct {
		Path string `toml:"path"`
	} `toml:"database"`

	Acquisition struct {
		YtDlpPath      string `toml:"ytdlp_path"`
		TempDir        string `toml:"temp_dir"`
		AttemptTimeout string `toml:"attempt_timeout"`
		Delay          string `toml:"delay"`
	} `toml:"acquisition"`

	Transcription struct {
		Backend string `toml:"backend"`
		Model   string `toml:"model"`
		Timeout string `toml:"timeout"`
	} `toml:"transcription"`

	Generation struct {
		Backend         string   `toml:"backend"`
		Model           string   `toml:"model"`
		Timeout         string   `toml:"timeout"`
		MaxOutputTokens int      `toml:"max_output_tokens"`
		Temperature     *float64 `toml:"temperature"`
		Parallel        *bool    `toml:"parallel"`
	} `toml:"generation"`

	OpenAI struct {
		APIKey  string `toml:"api_key"`
		BaseURL string `toml:"base_url"`
	} `toml:"openai"`

	Gemini struct {
		APIKey  string `toml:"api_key"`
		BaseURL string `toml:"base_url"`
	} `toml:"gemini"`

	Archive struct {
		Bucket    string `toml:"bucket"`
		Endpoint  string `toml:"endpoint"`
		Region    string `toml:"region"`
		AccessKey string `toml:"access_key"`
		SecretKey string `toml:"secret_key"`
	} `toml:"archive"`
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open config")
	}
	defer file.Close()

	var fc fileConfig
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fc); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	setString(&cfg.Server.Port, fc.Server.Port)
	setInt(&cfg.Server.RateLimit, fc.Server.RateLimit)
	if len(fc.Server.AllowedOrigins) > 0 {
		cfg.Server.AllowedOrigins = fc.Server.AllowedOrigins
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"server.read_timeout", fc.Server.ReadTimeout, &cfg.Server.ReadTimeout},
		{"server.write_timeout", fc.Server.WriteTimeout, &cfg.Server.WriteTimeout},
		{"server.idle_timeout", fc.Server.IdleTimeout, &cfg.Server.IdleTimeout},
		{"server.shutdown_timeout", fc.Server.ShutdownTimeout, &cfg.Server.ShutdownTimeout},
		{"server.request_timeout", fc.Server.RequestTimeout, &cfg.Server.RequestTimeout},
		{"server.rate_limit_interval", fc.Server.RateLimitInterval, &cfg.Server.RateLimitInterval},
		{"acquisition.attempt_timeout", fc.Acquisition.AttemptTimeout, &cfg.Acquisition.AttemptTimeout},
		{"acquisition.delay", fc.Acquisition.Delay, &cfg.Acquisition.Delay},
		{"transcription.timeout", fc.Transcription.Timeout, &cfg.Transcription.Timeout},
		{"generation.timeout", fc.Generation.Timeout, &cfg.Generation.Timeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return errors.Wrapf(err, "config %s", d.key)
		}
		*d.dst = parsed
	}

	setString(&cfg.Log.Dir, fc.Log.Dir)
	setString(&cfg.Log.Level, fc.Log.Level)
	if fc.Log.JSON != nil {
		cfg.Log.JSON = *fc.Log.JSON
	}

	setString(&cfg.DBPath, fc.Database.Path)

	setString(&cfg.Acquisition.YtDlpPath, fc.Acquisition.YtDlpPath)
	setString(&cfg.Acquisition.TempDir, fc.Acquisition.TempDir)

	setString(&cfg.Transcription.Backend, strings.ToLower(fc.Transcription.Backend))
	setString(&cfg.Transcription.Model, fc.Transcription.Model)

	setString(&cfg.Generation.Backend, strings.ToLower(fc.Generation.Backend))
	setString(&cfg.Generation.Model, fc.Generation.Model)
	setInt(&cfg.Generation.MaxOutputTokens, fc.Generation.MaxOutputTokens)
	if fc.Generation.Temperature != nil {
		cfg.Generation.Temperature = *fc.Generation.Temperature
	}
	if fc.Generation.Parallel != nil {
		cfg.Generation.Parallel = *fc.Generation.Parallel
	}

	setString(&cfg.OpenAI.APIKey, fc.OpenAI.APIKey)
	setString(&cfg.OpenAI.BaseURL, fc.OpenAI.BaseURL)
	setString(&cfg.Gemini.APIKey, fc.Gemini.APIKey)
	setString(&cfg.Gemini.BaseURL, fc.Gemini.BaseURL)

	setString(&cfg.Archive.Bucket, fc.Archive.Bucket)
	setString(&cfg.Archive.Endpoint, fc.Archive.Endpoint)
	setString(&cfg.Archive.Region, fc.Archive.Region)
	setString(&cfg.Archive.AccessKey, fc.Archive.AccessKey)
	setString(&cfg.Archive.SecretKey, fc.Archive.SecretKey)
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setInt(dst *int, value int) {
	if value != 0 {
		*dst = value
	}
}
