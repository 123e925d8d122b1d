package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Lingo Relay environment variables.
const EnvPrefix = "LINGO_RELAY_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string `yaml:"listen_addr"`
	OutputDir             string `yaml:"output_dir"`
	DBPath                string `yaml:"db_path"`
	Direction             string `yaml:"direction"`
	PrimaryDevice         string `yaml:"primary_device"`
	SecondaryDevice       string `yaml:"secondary_device"`
	SampleRate            int    `yaml:"sample_rate"`
	ChunkInterval         string `yaml:"chunk_interval"`
	QuietPeriod           string `yaml:"quiet_period"`
	ConnectTimeout        string `yaml:"connect_timeout"`
	TranslateProvider     string `yaml:"translate_provider"`
	OpenAIModel           string `yaml:"openai_model"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
	LogLevel              string `yaml:"log_level"`
	LogPretty             bool   `yaml:"log_pretty"`

	// Secrets — env vars only, never serialized to YAML.
	DeepgramAPIKey  string `yaml:"-"`
	TranslateAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            ":8642",
		OutputDir:             "data/transcripts",
		DBPath:                "data/lingo-relay.db",
		Direction:             "en-es",
		SampleRate:            16000,
		ChunkInterval:         "100ms",
		QuietPeriod:           "1.5s",
		ConnectTimeout:        "30s",
		TranslateProvider:     "google",
		OpenAIModel:           "gpt-4o-mini",
		GoogleCredentialsFile: "./service-account.json",
		LogLevel:              "info",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedChunkInterval returns ChunkInterval as a time.Duration,
// falling back to 100ms if the value is invalid.
func (c *Config) ParsedChunkInterval() time.Duration {
	d, err := time.ParseDuration(c.ChunkInterval)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// ParsedQuietPeriod returns QuietPeriod as a time.Duration,
// falling back to 1.5s if the value is invalid.
func (c *Config) ParsedQuietPeriod() time.Duration {
	d, err := time.ParseDuration(c.QuietPeriod)
	if err != nil || d <= 0 {
		return 1500 * time.Millisecond
	}
	return d
}

// ParsedConnectTimeout returns ConnectTimeout as a time.Duration,
// falling back to 30s if the value is invalid.
func (c *Config) ParsedConnectTimeout() time.Duration {
	d, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "DIRECTION"); v != "" {
		cfg.Direction = v
	}
	if v := os.Getenv(EnvPrefix + "PRIMARY_DEVICE"); v != "" {
		cfg.PrimaryDevice = v
	}
	if v := os.Getenv(EnvPrefix + "SECONDARY_DEVICE"); v != "" {
		cfg.SecondaryDevice = v
	}
	if v := os.Getenv(EnvPrefix + "SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.SampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "CHUNK_INTERVAL"); v != "" {
		cfg.ChunkInterval = v
	}
	if v := os.Getenv(EnvPrefix + "QUIET_PERIOD"); v != "" {
		cfg.QuietPeriod = v
	}
	if v := os.Getenv(EnvPrefix + "CONNECT_TIMEOUT"); v != "" {
		cfg.ConnectTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSLATE_PROVIDER"); v != "" {
		cfg.TranslateProvider = v
	}
	if v := os.Getenv(EnvPrefix + "OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_PRETTY"); v != "" {
		if pretty, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.LogPretty = pretty
		}
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.TranslateAPIKey = os.Getenv(EnvPrefix + "TRANSLATE_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured — live transcription is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	switch cfg.TranslateProvider {
	case "google":
		if cfg.TranslateAPIKey == "" {
			warnings = append(warnings, "Translation API key not configured — live translation is disabled. Set "+EnvPrefix+"TRANSLATE_API_KEY.")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			warnings = append(warnings, "OpenAI API key not configured — live translation is disabled. Set "+EnvPrefix+"OPENAI_API_KEY.")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown translate_provider %q — using google.", cfg.TranslateProvider))
		cfg.TranslateProvider = "google"
	}
	if _, err := time.ParseDuration(cfg.ChunkInterval); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid chunk_interval %q — using default 100ms.", cfg.ChunkInterval))
	}
	if _, err := time.ParseDuration(cfg.QuietPeriod); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid quiet_period %q — using default 1.5s.", cfg.QuietPeriod))
	}
	if _, err := time.ParseDuration(cfg.ConnectTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid connect_timeout %q — using default 30s.", cfg.ConnectTimeout))
	}

	return warnings
}
