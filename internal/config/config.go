// Package config loads engine configuration from an optional YAML file plus
// JURNI_-prefixed environment variables; env vars win.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Agent   AgentConfig   `koanf:"agent"`
	Flights FlightsConfig `koanf:"flights"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type AgentConfig struct {
	APIKey          string `koanf:"api_key"`
	Model           string `koanf:"model"`
	Name            string `koanf:"name"`
	AppName         string `koanf:"app_name"`
	SystemPrompt    string `koanf:"system_prompt"`
	MaxOutputTokens int    `koanf:"max_output_tokens"`
}

type FlightsConfig struct {
	CatalogPath string `koanf:"catalog_path"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml (when present) and the environment. Nested keys use
// double underscores: JURNI_AGENT__API_KEY maps to agent.api_key.
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile is Load with an explicit file path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("JURNI_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "JURNI_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Agent.APIKey = substituteEnvVars(cfg.Agent.APIKey)

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":         8080,
		"storage.type":        "memory",
		"storage.sqlite.path": "trip-engine.db",
		"agent.name":          "root_agent",
		"agent.app_name":      "travel_planner",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
