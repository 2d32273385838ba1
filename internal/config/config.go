// Package config provides nil-safe access to viper configuration and the
// typed settings the service runs with.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override,
// e.g. FACEANALYZER_LLM_MODEL for llm.model.
const EnvPrefix = "FACEANALYZER"

// Config wraps a viper instance. A Config built from a nil viper returns
// zero values for every key.
type Config struct {
	v *viper.Viper
}

// New wraps v.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

// Load reads the optional .env file, applies defaults, reads the YAML file
// at path (or searches the default locations when path is empty) and binds
// environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare names used by existing deployments.
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("llm.openai.api_key", EnvPrefix+"_LLM_OPENAI_API_KEY", "OPENAI_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return New(v), nil
	}

	v.SetConfigName("faceanalyzer")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/faceanalyzer")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return New(v), nil
}

// SetDefaults registers the default value of every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit.rps", 1.0)
	v.SetDefault("server.rate_limit.burst", 5)
	// Peers (IPs or CIDRs) allowed to set X-Forwarded-For. Empty trusts none.
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("catalog.path", "")
	v.SetDefault("recommend.limit", 5)

	v.SetDefault("llm.provider", "openai")
	// Empty uses the provider default model.
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.timeout", "90s")
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.ollama.url", "http://localhost:11434")
	v.SetDefault("llm.breaker.enabled", true)
	v.SetDefault("llm.breaker.max_failures", 5)
	v.SetDefault("llm.breaker.timeout", "30s")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "faceanalyzer.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

func (c *Config) GetInt(key string) int {
	if c.v == nil {
		return 0
	}
	return c.v.GetInt(key)
}

func (c *Config) GetBool(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.GetBool(key)
}

func (c *Config) GetFloat64(key string) float64 {
	if c.v == nil {
		return 0
	}
	return c.v.GetFloat64(key)
}

func (c *Config) GetDuration(key string) time.Duration {
	if c.v == nil {
		return 0
	}
	return c.v.GetDuration(key)
}

func (c *Config) IsSet(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}

// Sub returns the subtree at key. A missing subtree yields an empty Config,
// never nil.
func (c *Config) Sub(key string) *Config {
	if c.v == nil {
		return &Config{}
	}
	return &Config{v: c.v.Sub(key)}
}

// Unmarshal decodes the whole tree into target using mapstructure tags.
func (c *Config) Unmarshal(target any) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(target)
}
