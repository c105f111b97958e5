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

// keySpec describes one dotted config key. Secret keys are read from the
// environment or the secret store only.
type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "LEGITCHECK_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "LEGITCHECK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.public_url", typ: kString, env: "LEGITCHECK_SERVER_PUBLIC_URL",
		apply:   func(cfg *Config, v any) { cfg.Server.PublicURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.PublicURL },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LEGITCHECK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "llm.provider", typ: kString, env: "LEGITCHECK_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.api_key", typ: kString, env: "LEGITCHECK_LLM_API_KEY", secret: true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.base_url", typ: kString, env: "LEGITCHECK_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.model", typ: kString, env: "LEGITCHECK_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.max_tokens", typ: kInt, env: "LEGITCHECK_LLM_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.LLM.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.MaxTokens },
	},
	{
		key: "llm.temperature", typ: kFloat, env: "LEGITCHECK_LLM_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.LLM.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.LLM.Temperature },
	},
	{
		key: "llm.timeout", typ: kDuration, env: "LEGITCHECK_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "research.concurrency", typ: kInt, env: "LEGITCHECK_RESEARCH_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Research.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Research.Concurrency },
	},
	{
		key: "research.cache_ttl", typ: kDuration, env: "LEGITCHECK_RESEARCH_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Research.CacheTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Research.CacheTTL },
	},
	{
		key: "documents.concurrency", typ: kInt, env: "LEGITCHECK_DOCUMENTS_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Documents.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Documents.Concurrency },
	},
	{
		key: "documents.fetch_timeout", typ: kDuration, env: "LEGITCHECK_DOCUMENTS_FETCH_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Documents.FetchTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Documents.FetchTimeout },
	},
	{
		key: "pipeline.timeout", typ: kDuration, env: "LEGITCHECK_PIPELINE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Pipeline.Timeout },
	},
	{
		key: "worker.poll_interval", typ: kDuration, env: "LEGITCHECK_WORKER_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Worker.PollInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Worker.PollInterval },
	},
	{
		key: "worker.max_attempts", typ: kInt, env: "LEGITCHECK_WORKER_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Worker.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Worker.MaxAttempts },
	},
	{
		key: "email.api_key", typ: kString, env: "LEGITCHECK_EMAIL_API_KEY", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Email.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Email.APIKey },
	},
	{
		key: "email.base_url", typ: kString, env: "LEGITCHECK_EMAIL_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Email.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Email.BaseURL },
	},
	{
		key: "email.from", typ: kString, env: "LEGITCHECK_EMAIL_FROM",
		apply:   func(cfg *Config, v any) { cfg.Email.From = v.(string) },
		extract: func(cfg Config) any { return cfg.Email.From },
	},
	{
		key: "email.from_name", typ: kString, env: "LEGITCHECK_EMAIL_FROM_NAME",
		apply:   func(cfg *Config, v any) { cfg.Email.FromName = v.(string) },
		extract: func(cfg Config) any { return cfg.Email.FromName },
	},
	{
		key: "redis.addr", typ: kString, env: "LEGITCHECK_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Redis.Addr = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.Addr },
	},
	{
		key: "redis.password", typ: kString, env: "LEGITCHECK_REDIS_PASSWORD", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Redis.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.Password },
	},
	{
		key: "redis.db", typ: kInt, env: "LEGITCHECK_REDIS_DB",
		apply:   func(cfg *Config, v any) { cfg.Redis.DB = v.(int) },
		extract: func(cfg Config) any { return cfg.Redis.DB },
	},
	{
		key: "nats.url", typ: kString, env: "LEGITCHECK_NATS_URL",
		apply:   func(cfg *Config, v any) { cfg.NATS.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.NATS.URL },
	},
	{
		key: "nats.subject", typ: kString, env: "LEGITCHECK_NATS_SUBJECT",
		apply:   func(cfg *Config, v any) { cfg.NATS.Subject = v.(string) },
		extract: func(cfg Config) any { return cfg.NATS.Subject },
	},
	{
		key: "capture.enabled", typ: kBool, env: "LEGITCHECK_CAPTURE_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Capture.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Capture.Enabled },
	},
	{
		key: "capture.control_url", typ: kString, env: "LEGITCHECK_CAPTURE_CONTROL_URL",
		apply:   func(cfg *Config, v any) { cfg.Capture.ControlURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Capture.ControlURL },
	},
	{
		key: "capture.timeout", typ: kDuration, env: "LEGITCHECK_CAPTURE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Capture.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Capture.Timeout },
	},
	{
		key: "report.include_sources", typ: kBool, env: "LEGITCHECK_REPORT_INCLUDE_SOURCES",
		apply:   func(cfg *Config, v any) { cfg.Report.IncludeSources = v.(bool) },
		extract: func(cfg Config) any { return cfg.Report.IncludeSources },
	},
	{
		key: "report.format", typ: kString, env: "LEGITCHECK_REPORT_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Report.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Report.Format },
	},
	{
		key: "report.brand", typ: kString, env: "LEGITCHECK_REPORT_BRAND",
		apply:   func(cfg *Config, v any) { cfg.Report.Brand = v.(string) },
		extract: func(cfg Config) any { return cfg.Report.Brand },
	},
	{
		key: "client.server_url", typ: kString, env: "LEGITCHECK_CLIENT_SERVER_URL",
		apply:   func(cfg *Config, v any) { cfg.Client.ServerURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Client.ServerURL },
	},
	{
		key: "client.token", typ: kString, env: "LEGITCHECK_CLIENT_TOKEN", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Client.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Client.Token },
	},
	{
		key: "log.level", typ: kString, env: "LEGITCHECK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parseValue converts a raw string into the Go type expected by typ.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
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

func typeName(typ keyType) string {
	switch typ {
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
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		default:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			parsed, err := parseValue(s.typ, v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from config key %s=%q: %v. Using default value.\n", typeName(s.typ), s.key, v, err)
				continue
			}
			s.apply(cfg, parsed)
		}
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
		parsed, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from env var %s=%q: %v. Using default value.\n", typeName(s.typ), s.env, raw, err)
			continue
		}
		s.apply(cfg, parsed)
	}
}
