package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

// Secrets are read from the file too, but never shown or written by
// ShowAll and SetKey.
var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "MUSICDOC_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.host", typ: kString, env: "MUSICDOC_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.api_token", typ: kString, env: "MUSICDOC_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "MUSICDOC_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.tts_dir", typ: kString, env: "MUSICDOC_TTS_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.TTSDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.TTSDir },
	},
	{
		key: "log.level", typ: kString, env: "MUSICDOC_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "jobs.max_per_user", typ: kInt, env: "MUSICDOC_JOBS_MAX_PER_USER",
		apply:   func(cfg *Config, v any) { cfg.Jobs.MaxPerUser = v.(int) },
		extract: func(cfg Config) any { return cfg.Jobs.MaxPerUser },
	},
	{
		key: "jobs.retention", typ: kDuration, env: "MUSICDOC_JOBS_RETENTION",
		apply:   func(cfg *Config, v any) { cfg.Jobs.Retention = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Jobs.Retention },
	},
	{
		key: "jobs.reap_interval", typ: kDuration, env: "MUSICDOC_JOBS_REAP_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Jobs.ReapInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Jobs.ReapInterval },
	},
	{
		key: "matching.threshold", typ: kFloat, env: "MUSICDOC_MATCHING_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Matching.Threshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Matching.Threshold },
	},
	{
		key: "matching.max_results", typ: kInt, env: "MUSICDOC_MATCHING_MAX_RESULTS",
		apply:   func(cfg *Config, v any) { cfg.Matching.MaxResults = v.(int) },
		extract: func(cfg Config) any { return cfg.Matching.MaxResults },
	},
	{
		key: "youtube.api_key", typ: kString, env: "MUSICDOC_YOUTUBE_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.YouTube.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.YouTube.APIKey },
	},
	{
		key: "youtube.search_method", typ: kString, env: "MUSICDOC_YOUTUBE_SEARCH_METHOD",
		apply:   func(cfg *Config, v any) { cfg.YouTube.SearchMethod = v.(string) },
		extract: func(cfg Config) any { return cfg.YouTube.SearchMethod },
	},
	{
		key: "youtube.ytdlp_path", typ: kString, env: "MUSICDOC_YTDLP_PATH",
		apply:   func(cfg *Config, v any) { cfg.YouTube.YTDLPPath = v.(string) },
		extract: func(cfg Config) any { return cfg.YouTube.YTDLPPath },
	},
	{
		key: "youtube.requests_per_second", typ: kFloat, env: "MUSICDOC_YOUTUBE_RPS",
		apply:   func(cfg *Config, v any) { cfg.YouTube.RequestsPerSecond = v.(float64) },
		extract: func(cfg Config) any { return cfg.YouTube.RequestsPerSecond },
	},
	{
		key: "llm.provider", typ: kString, env: "MUSICDOC_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.openai_api_key", typ: kString, env: "MUSICDOC_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.OpenAIAPIKey },
	},
	{
		key: "llm.openai_base_url", typ: kString, env: "MUSICDOC_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.OpenAIBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.OpenAIBaseURL },
	},
	{
		key: "llm.plan_model", typ: kString, env: "MUSICDOC_PLAN_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.PlanModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.PlanModel },
	},
	{
		key: "llm.narration_model", typ: kString, env: "MUSICDOC_NARRATION_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.NarrationModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.NarrationModel },
	},
	{
		key: "llm.ollama_base_url", typ: kString, env: "MUSICDOC_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.OllamaBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.OllamaBaseURL },
	},
	{
		key: "llm.ollama_model", typ: kString, env: "MUSICDOC_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.OllamaModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.OllamaModel },
	},
	{
		key: "art.enabled", typ: kBool, env: "MUSICDOC_ART_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Art.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Art.Enabled },
	},
	{
		key: "art.model", typ: kString, env: "MUSICDOC_ART_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Art.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Art.Model },
	},
	{
		key: "tts.model", typ: kString, env: "MUSICDOC_TTS_MODEL",
		apply:   func(cfg *Config, v any) { cfg.TTS.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.TTS.Model },
	},
	{
		key: "tts.voice", typ: kString, env: "MUSICDOC_TTS_VOICE",
		apply:   func(cfg *Config, v any) { cfg.TTS.Voice = v.(string) },
		extract: func(cfg Config) any { return cfg.TTS.Voice },
	},
	{
		key: "tts.speed", typ: kFloat, env: "MUSICDOC_TTS_SPEED",
		apply:   func(cfg *Config, v any) { cfg.TTS.Speed = v.(float64) },
		extract: func(cfg Config) any { return cfg.TTS.Speed },
	},
	{
		key: "tts.mock", typ: kBool, env: "MUSICDOC_MOCK_TTS",
		apply:   func(cfg *Config, v any) { cfg.TTS.Mock = v.(bool) },
		extract: func(cfg Config) any { return cfg.TTS.Mock },
	},
}

// parse converts raw text to the Go type of the key.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func (s keySpec) typeName() string {
	switch s.typ {
	case kInt:
		return "integer"
	case kBool:
		return "bool"
	case kFloat:
		return "float"
	case kDuration:
		return "duration"
	default:
		return "string"
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from config key %s=%q: %v. Using default value.\n", s.typeName(), s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from env var %s=%q: %v. Using default value.\n", s.typeName(), s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
