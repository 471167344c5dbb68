package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const defaultConfigFileName = "sitegate.toml"

// Environment variables that override file values. Secrets should come from
// the environment so the config file can be committed without them.
const (
	EnvSecretKey      = "SITEGATE_SECRET_KEY"
	EnvUpstreamAPIKey = "OPENAI_API_KEY"
	EnvRedisURL       = "REDIS_URL"
)

type UpstreamConfig struct {
	BaseURL        string  `toml:"base_url,omitempty"`
	APIKey         string  `toml:"api_key,omitempty"`
	Model          string  `toml:"model"`
	TimeoutSeconds int     `toml:"timeout_seconds,omitempty"`
	MaxTokens      int     `toml:"max_tokens,omitempty"`
	Temperature    float32 `toml:"temperature,omitempty"`
}

type TLSConfig struct {
	Enabled  bool   `toml:"enabled"`
	Domain   string `toml:"domain"`
	Email    string `toml:"email"`
	CacheDir string `toml:"cache_dir"`
}

type RateLimitConfig struct {
	RequestsPerWindow int `toml:"requests_per_window"`
	WindowSeconds     int `toml:"window_seconds"`
}

type EvalConfig struct {
	TargetURL         string  `toml:"target_url"`
	JudgeModel        string  `toml:"judge_model"`
	QuestionsPath     string  `toml:"questions_path,omitempty"`
	ReportPath        string  `toml:"report_path"`
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`
}

type ServerConfig struct {
	ListenAddr  string          `toml:"listen_addr"`
	SecretKey   string          `toml:"secret_key,omitempty"`
	RedisURL    string          `toml:"redis_url,omitempty"`
	CORSOrigins []string        `toml:"cors_origins"`
	PersonaPath string          `toml:"persona_path,omitempty"`
	RateLimit   RateLimitConfig `toml:"rate_limit"`
	Upstream    UpstreamConfig  `toml:"upstream"`
	TLS         TLSConfig       `toml:"tls"`
	Eval        EvalConfig      `toml:"eval"`
}

func DefaultServerConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultConfigFileName
	}
	return filepath.Join(home, ".config", "sitegate", defaultConfigFileName)
}

func DefaultTLSCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "autocert-cache"
	}
	return filepath.Join(home, ".cache", "sitegate", "autocert")
}

func NewDefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:  "127.0.0.1:8081",
		RedisURL:    "redis://localhost:6379",
		CORSOrigins: []string{"*"},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 120,
			WindowSeconds:     3600,
		},
		Upstream: UpstreamConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 60,
			MaxTokens:      1000,
			Temperature:    0.7,
		},
		TLS: TLSConfig{
			CacheDir: DefaultTLSCacheDir(),
		},
		Eval: EvalConfig{
			TargetURL:         "http://localhost:8081",
			JudgeModel:        "gpt-4o",
			ReportPath:        "evaluation_results.md",
			RequestsPerSecond: 1,
		},
	}
}

// LoadServerConfig reads the TOML config at path and applies environment
// overrides. Returns os.ErrNotExist (wrapped) when the file is missing.
func LoadServerConfig(path string) (ServerConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, err
	}
	cfg := NewDefaultServerConfig()
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func Save(path string, cfg ServerConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write config temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// LoadDotenv pulls a local .env file into the process environment if one
// exists. Missing files are not an error.
func LoadDotenv() {
	_ = godotenv.Load()
}

func (c *ServerConfig) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvSecretKey)); v != "" {
		c.SecretKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvUpstreamAPIKey)); v != "" {
		c.Upstream.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisURL)); v != "" {
		c.RedisURL = v
	}
}

func (c *ServerConfig) normalize() {
	c.ListenAddr = strings.TrimSpace(c.ListenAddr)
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	if c.RateLimit.RequestsPerWindow <= 0 {
		c.RateLimit.RequestsPerWindow = 120
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = 3600
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = 60
	}
	if c.Upstream.MaxTokens <= 0 {
		c.Upstream.MaxTokens = 1000
	}
	if c.Upstream.Temperature <= 0 {
		c.Upstream.Temperature = 0.7
	}
	if strings.TrimSpace(c.Upstream.Model) == "" {
		c.Upstream.Model = "gpt-4o-mini"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
}

// Validate checks the fields the serve command cannot run without. A missing
// secret key means tokens issued by one process instance would never verify
// in another, so it is refused up front.
func (c ServerConfig) Validate() error {
	if c.ListenAddr == "" && !c.TLS.Enabled {
		return errors.New("listen_addr is required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret key is required (set %s or secret_key in config)", EnvSecretKey)
	}
	if strings.TrimSpace(c.Upstream.APIKey) == "" {
		return fmt.Errorf("upstream api key is required (set %s)", EnvUpstreamAPIKey)
	}
	if c.TLS.Enabled && strings.TrimSpace(c.TLS.Domain) == "" {
		return errors.New("tls.domain is required when tls is enabled")
	}
	return nil
}
