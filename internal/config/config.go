package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Research  ResearchConfig
	Documents DocumentsConfig
	Pipeline  PipelineConfig
	Worker    WorkerConfig
	Email     EmailConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Capture   CaptureConfig
	Report    ReportConfig
	Client    ClientConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	// PublicURL is the externally reachable base used for file and report
	// links. Empty means http://Host:Port.
	PublicURL string
}

// BaseURL returns PublicURL, or the listen address when it is unset.
func (s ServerConfig) BaseURL() string {
	if s.PublicURL != "" {
		return strings.TrimRight(s.PublicURL, "/")
	}
	return fmt.Sprintf("http://%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	DataDir string
}

type LLMConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type ResearchConfig struct {
	Concurrency int
	CacheTTL    time.Duration
}

type DocumentsConfig struct {
	Concurrency  int
	FetchTimeout time.Duration
}

type PipelineConfig struct {
	Timeout time.Duration
}

type WorkerConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
}

type EmailConfig struct {
	APIKey   string
	BaseURL  string
	From     string
	FromName string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type NATSConfig struct {
	URL     string
	Subject string
}

type CaptureConfig struct {
	Enabled    bool
	ControlURL string
	Timeout    time.Duration
}

type ReportConfig struct {
	IncludeSources bool
	Format         string
	Brand          string
}

type ClientConfig struct {
	ServerURL string
	Token     string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			BaseURL:     "https://api.anthropic.com",
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			Temperature: 0.3,
			Timeout:     2 * time.Minute,
		},
		Research: ResearchConfig{
			Concurrency: 4,
			CacheTTL:    24 * time.Hour,
		},
		Documents: DocumentsConfig{
			Concurrency:  3,
			FetchTimeout: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			Timeout: 15 * time.Minute,
		},
		Worker: WorkerConfig{
			PollInterval: 500 * time.Millisecond,
			MaxAttempts:  3,
		},
		Email: EmailConfig{
			BaseURL:  "https://api.sendgrid.com",
			From:     "reports@legitcheck.local",
			FromName: "legitcheck",
		},
		NATS: NATSConfig{
			Subject: "investigations.status",
		},
		Capture: CaptureConfig{
			Timeout: 45 * time.Second,
		},
		Report: ReportConfig{
			IncludeSources: true,
			Format:         "letter",
			Brand:          "legitcheck",
		},
		Client: ClientConfig{
			ServerURL: "http://127.0.0.1:8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from config.yaml in the user config dir, a .env
// file, environment variables, and the platform secret store.
//
// Secrets never live in config.yaml. They come from LEGITCHECK_* variables,
// then the macOS Keychain or secrets.yaml next to config.yaml.
//
// Environment variables (LEGITCHECK_*) override file values on all platforms.
func Load() (Config, error) {
	loadDotenv(dotenvPaths())
	return loadWith(newPlatformBackend(), platformSecrets{})
}

// LoadClient is Load without the LLM key requirement. CLI commands that only
// talk to a running server or read the local database use it.
func LoadClient() (Config, error) {
	loadDotenv(dotenvPaths())
	return build(newPlatformBackend(), platformSecrets{})
}

// secretStore reads secrets by config key, e.g. "llm.api_key".
type secretStore interface {
	Get(key string) (string, error)
}

const keychainService = "legitcheck"

func loadWith(b ConfigBackend, kc secretStore) (Config, error) {
	cfg, err := build(b, kc)
	if err != nil {
		return Config{}, err
	}

	if cfg.LLM.APIKey == "" {
		msg := "missing required config: LLM API key. " +
			"Set it via environment variable LEGITCHECK_LLM_API_KEY, " +
			"`legitcheck config secret llm.api_key`, or " + secretStoreHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

func build(b ConfigBackend, kc secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	return cfg, nil
}

// applySecrets fills empty secret keys from the platform secret store.
func applySecrets(cfg *Config, kc secretStore) {
	for _, s := range specs {
		if !s.secret {
			continue
		}
		if v, _ := s.extract(*cfg).(string); v != "" {
			continue
		}
		if val, err := kc.Get(s.key); err == nil && val != "" {
			s.apply(cfg, val)
		}
	}
}

type platformSecrets struct{}

func (platformSecrets) Get(key string) (string, error) {
	v, err := secretGet(key)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

// SetSecret stores a secret in the platform secret store.
func SetSecret(key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if !s.secret {
			return fmt.Errorf("%q is not a secret key", key)
		}
		return secretSet(key, value)
	}
	return fmt.Errorf("unknown config key: %q", key)
}
