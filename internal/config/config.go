// Package config loads musicdoc settings from defaults, a TOML file and
// MUSICDOC_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Log      LogConfig
	Jobs     JobsConfig
	Matching MatchingConfig
	YouTube  YouTubeConfig
	LLM      LLMConfig
	Art      ArtConfig
	TTS      TTSConfig
}

type ServerConfig struct {
	Port int
	Host string
	// APIToken enables bearer auth on /api when set.
	APIToken string
}

type StorageConfig struct {
	DataDir string
	// TTSDir defaults to <DataDir>/tts.
	TTSDir string
}

type LogConfig struct {
	Level string
}

type JobsConfig struct {
	MaxPerUser   int
	Retention    time.Duration
	ReapInterval time.Duration
}

type MatchingConfig struct {
	Threshold  float64
	MaxResults int
}

type YouTubeConfig struct {
	APIKey            string
	SearchMethod      string
	YTDLPPath         string
	RequestsPerSecond float64
}

type LLMConfig struct {
	Provider       string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	PlanModel      string
	NarrationModel string
	OllamaBaseURL  string
	OllamaModel    string
}

type ArtConfig struct {
	Enabled bool
	Model   string
}

type TTSConfig struct {
	Model string
	Voice string
	Speed float64
	Mock  bool
}

const (
	SearchScrape = "scrape"
	SearchAPI    = "api"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8888,
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{Level: "info"},
		Jobs: JobsConfig{
			MaxPerUser:   2,
			Retention:    time.Hour,
			ReapInterval: time.Hour,
		},
		Matching: MatchingConfig{
			Threshold:  0.8,
			MaxResults: 6,
		},
		YouTube: YouTubeConfig{
			SearchMethod:      SearchScrape,
			YTDLPPath:         "yt-dlp",
			RequestsPerSecond: 5,
		},
		LLM: LLMConfig{
			Provider:       ProviderOpenAI,
			PlanModel:      "gpt-4.1",
			NarrationModel: "gpt-4.1",
			OllamaBaseURL:  "http://localhost:11434",
			OllamaModel:    "mistral-nemo",
		},
		Art: ArtConfig{
			Enabled: true,
			Model:   "gpt-image-1",
		},
		TTS: TTSConfig{
			Model: "gpt-4o-mini-tts",
			Voice: "alloy",
			Speed: 1.0,
		},
	}
}

// Load reads configuration from $XDG_CONFIG_HOME/musicdoc/config.toml and
// the environment, then validates it. A missing file is not an error. When
// validation fails the populated config is returned together with the error.
func Load() (Config, error) {
	cfg, err := LoadUnchecked()
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadUnchecked is Load without validation, for clients that only need the
// server address and token.
func LoadUnchecked() (Config, error) {
	return loadFromPath(configFilePath())
}

func loadFromPath(path string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, openFileBackend(path)); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.Storage.TTSDir == "" {
		cfg.Storage.TTSDir = filepath.Join(cfg.Storage.DataDir, "tts")
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Matching.Threshold < 0 || c.Matching.Threshold > 1 {
		errs = append(errs, fmt.Errorf("matching.threshold %v must be within [0,1]", c.Matching.Threshold))
	}
	if c.Matching.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("matching.max_results must be positive"))
	}
	if c.Jobs.MaxPerUser <= 0 {
		errs = append(errs, fmt.Errorf("jobs.max_per_user must be positive"))
	}

	switch c.YouTube.SearchMethod {
	case SearchScrape:
	case SearchAPI:
		if c.YouTube.APIKey == "" {
			errs = append(errs, fmt.Errorf("youtube.search_method=api requires an API key; set MUSICDOC_YOUTUBE_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown youtube.search_method %q (want %s or %s)", c.YouTube.SearchMethod, SearchScrape, SearchAPI))
	}

	switch c.LLM.Provider {
	case ProviderOllama, ProviderMock:
	case ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			errs = append(errs, fmt.Errorf("llm.provider=openai requires an API key; set MUSICDOC_OPENAI_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	return errors.Join(errs...)
}

// ArtDir is where generated album art is written.
func (c Config) ArtDir() string {
	return filepath.Join(c.Storage.DataDir, "album-art")
}

// LockPath guards against two servers sharing one data dir.
func (c Config) LockPath() string {
	return filepath.Join(c.Storage.DataDir, "musicdoc.lock")
}

// Addr is the listen address of the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "musicdoc-data"
		}
	}
	return filepath.Join(dir, "musicdoc")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "musicdoc", "config.toml")
}
