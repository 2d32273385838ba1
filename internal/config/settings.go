package config

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Settings is the typed view of the configuration tree.
type Settings struct {
	Server    ServerSettings    `mapstructure:"server"`
	Catalog   CatalogSettings   `mapstructure:"catalog"`
	Recommend RecommendSettings `mapstructure:"recommend"`
	LLM       LLMSettings       `mapstructure:"llm"`
	History   HistorySettings   `mapstructure:"history"`
	Log       LogSettings       `mapstructure:"log"`
}

type ServerSettings struct {
	Host           string            `mapstructure:"host"`
	Port           int               `mapstructure:"port"`
	MaxUploadBytes int64             `mapstructure:"max_upload_bytes"`
	WriteTimeout   time.Duration     `mapstructure:"write_timeout"`
	CORSOrigins    []string          `mapstructure:"cors_origins"`
	RateLimit      RateLimitSettings `mapstructure:"rate_limit"`
	TrustedProxies []string          `mapstructure:"trusted_proxies"`
}

// Addr is the listen address in host:port form.
func (s ServerSettings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type RateLimitSettings struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type CatalogSettings struct {
	// Path to a YAML or JSON catalog. Empty uses the embedded catalog.
	Path string `mapstructure:"path"`
}

type RecommendSettings struct {
	Limit int `mapstructure:"limit"`
}

type LLMSettings struct {
	Provider string          `mapstructure:"provider"`
	Model    string          `mapstructure:"model"`
	Timeout  time.Duration   `mapstructure:"timeout"`
	OpenAI   OpenAISettings  `mapstructure:"openai"`
	Ollama   OllamaSettings  `mapstructure:"ollama"`
	Breaker  BreakerSettings `mapstructure:"breaker"`
}

type OpenAISettings struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type OllamaSettings struct {
	URL string `mapstructure:"url"`
}

type BreakerSettings struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type HistorySettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogSettings struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Settings decodes and validates the typed settings.
func (c *Config) Settings() (Settings, error) {
	var s Settings
	if err := c.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate rejects settings the server cannot start with.
func (s Settings) Validate() error {
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", s.Server.Port)
	}
	if s.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	for _, p := range s.Server.TrustedProxies {
		if !validProxy(p) {
			return fmt.Errorf("server.trusted_proxies: %q is not an IP or CIDR", p)
		}
	}
	if s.Recommend.Limit < 1 {
		return fmt.Errorf("recommend.limit must be at least 1")
	}
	switch s.LLM.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("llm.provider %q: want openai or ollama", s.LLM.Provider)
	}
	return nil
}

func validProxy(p string) bool {
	p = strings.TrimSpace(p)
	if p == "" {
		return true
	}
	if strings.Contains(p, "/") {
		_, err := netip.ParsePrefix(p)
		return err == nil
	}
	_, err := netip.ParseAddr(p)
	return err == nil
}
