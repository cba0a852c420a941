package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks every MUSICDOC_* variable so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when loading a config
// file that only supplies the required key.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	path := writeTempConfig(t, `[llm]
openai_api_key = "test-key"
`)

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Storage.DataDir != "/xdg/data/musicdoc" {
		t.Errorf("Storage.DataDir = %q, want /xdg/data/musicdoc", cfg.Storage.DataDir)
	}
	if cfg.Storage.TTSDir != "/xdg/data/musicdoc/tts" {
		t.Errorf("Storage.TTSDir = %q, want /xdg/data/musicdoc/tts", cfg.Storage.TTSDir)
	}
	if cfg.Jobs.MaxPerUser != 2 || cfg.Jobs.Retention != time.Hour {
		t.Errorf("Jobs = %+v", cfg.Jobs)
	}
	if cfg.Matching.Threshold != 0.8 || cfg.Matching.MaxResults != 6 {
		t.Errorf("Matching = %+v", cfg.Matching)
	}
	if cfg.YouTube.SearchMethod != SearchScrape {
		t.Errorf("YouTube.SearchMethod = %q, want %q", cfg.YouTube.SearchMethod, SearchScrape)
	}
	if cfg.LLM.Provider != ProviderOpenAI || cfg.LLM.PlanModel != "gpt-4.1" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if !cfg.Art.Enabled || cfg.Art.Model != "gpt-image-1" {
		t.Errorf("Art = %+v", cfg.Art)
	}
	if cfg.TTS.Voice != "alloy" || cfg.TTS.Speed != 1.0 || cfg.TTS.Mock {
		t.Errorf("TTS = %+v", cfg.TTS)
	}
	if cfg.LLM.OpenAIAPIKey != "test-key" {
		t.Errorf("OpenAIAPIKey = %q, want test-key", cfg.LLM.OpenAIAPIKey)
	}
}

// TestTOMLParsing verifies that values of every type are read from the file.
func TestTOMLParsing(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
[server]
port = 5000
host = "0.0.0.0"

[storage]
data_dir = "/tmp/musicdoc-test"
tts_dir = "/tmp/tts"

[jobs]
max_per_user = 3
retention = "30m"

[matching]
threshold = 0.65

[llm]
provider = "ollama"
ollama_model = "llama3"

[art]
enabled = false

[tts]
speed = 1.25
mock = true
`)

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Storage.DataDir != "/tmp/musicdoc-test" || cfg.Storage.TTSDir != "/tmp/tts" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Jobs.MaxPerUser != 3 {
		t.Errorf("Jobs.MaxPerUser = %d, want 3", cfg.Jobs.MaxPerUser)
	}
	if cfg.Jobs.Retention != 30*time.Minute {
		t.Errorf("Jobs.Retention = %v, want 30m", cfg.Jobs.Retention)
	}
	if cfg.Matching.Threshold != 0.65 {
		t.Errorf("Matching.Threshold = %v, want 0.65", cfg.Matching.Threshold)
	}
	if cfg.LLM.Provider != ProviderOllama || cfg.LLM.OllamaModel != "llama3" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.Art.Enabled {
		t.Error("Art.Enabled = true, want false")
	}
	if cfg.TTS.Speed != 1.25 || !cfg.TTS.Mock {
		t.Errorf("TTS = %+v", cfg.TTS)
	}
}

// TestEnvOverride verifies that environment variables override file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `[server]
port = 5000

[llm]
openai_api_key = "file-key"
`)
	t.Setenv("MUSICDOC_SERVER_PORT", "6000")
	t.Setenv("MUSICDOC_OPENAI_API_KEY", "env-key")
	t.Setenv("MUSICDOC_MOCK_TTS", "true")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.LLM.OpenAIAPIKey != "env-key" {
		t.Errorf("OpenAIAPIKey = %q, want env-key", cfg.LLM.OpenAIAPIKey)
	}
	if !cfg.TTS.Mock {
		t.Error("TTS.Mock = false, want true")
	}
}

// TestBadValuesKeepDefaults verifies unparsable values warn and fall back.
func TestBadValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `[jobs]
retention = "forever"

[llm]
provider = "mock"
`)
	t.Setenv("MUSICDOC_MATCHING_THRESHOLD", "high")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Jobs.Retention != time.Hour {
		t.Errorf("Jobs.Retention = %v, want 1h", cfg.Jobs.Retention)
	}
	if cfg.Matching.Threshold != 0.8 {
		t.Errorf("Matching.Threshold = %v, want 0.8", cfg.Matching.Threshold)
	}
}

func TestMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("MUSICDOC_LLM_PROVIDER", "mock")

	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"openai without key", func(c *Config) {}, "MUSICDOC_OPENAI_API_KEY"},
		{"mock provider", func(c *Config) { c.LLM.Provider = ProviderMock }, ""},
		{"api search without key", func(c *Config) {
			c.LLM.Provider = ProviderMock
			c.YouTube.SearchMethod = SearchAPI
		}, "MUSICDOC_YOUTUBE_API_KEY"},
		{"unknown search method", func(c *Config) {
			c.LLM.Provider = ProviderMock
			c.YouTube.SearchMethod = "carrier-pigeon"
		}, "unknown youtube.search_method"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "hal" }, "unknown llm.provider"},
		{"threshold out of range", func(c *Config) {
			c.LLM.Provider = ProviderMock
			c.Matching.Threshold = 1.5
		}, "matching.threshold"},
		{"bad port", func(c *Config) {
			c.LLM.Provider = ProviderMock
			c.Server.Port = 0
		}, "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSetKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "musicdoc", "config.toml")
	b := openFileBackend(path)

	if err := setKey(b, "server.port", "9000"); err != nil {
		t.Fatalf("setKey(server.port) = %v", err)
	}
	if err := setKey(b, "tts.voice", "nova"); err != nil {
		t.Fatalf("setKey(tts.voice) = %v", err)
	}
	if err := setKey(b, "jobs.retention", "2h"); err != nil {
		t.Fatalf("setKey(jobs.retention) = %v", err)
	}

	if err := setKey(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKey(b, "llm.openai_api_key", "sk"); err == nil || !strings.Contains(err.Error(), "secret") {
		t.Errorf("setKey(secret) = %v, want secret error", err)
	}
	if err := setKey(b, "no.such", "x"); err == nil {
		t.Error("expected error for unknown key")
	}

	clearEnv(t)
	t.Setenv("MUSICDOC_LLM_PROVIDER", "mock")
	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("reloading: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.TTS.Voice != "nova" || cfg.Jobs.Retention != 2*time.Hour {
		t.Errorf("reloaded cfg: port=%d voice=%q retention=%v", cfg.Server.Port, cfg.TTS.Voice, cfg.Jobs.Retention)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.LLM.OpenAIAPIKey = "sk-secret"
	for _, ki := range ShowAll(cfg) {
		if strings.Contains(ki.Value, "sk-secret") {
			t.Errorf("ShowAll exposed secret under %s", ki.Key)
		}
	}
	for _, k := range ValidKeys() {
		if k == "llm.openai_api_key" || k == "youtube.api_key" || k == "server.api_token" {
			t.Errorf("ValidKeys includes secret %s", k)
		}
	}
}
