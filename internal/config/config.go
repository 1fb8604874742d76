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
	Server ServerConfig `koanf:"server"`
	Agent  AgentConfig  `koanf:"agent"`
	Floor  FloorConfig  `koanf:"floor"`
	Log    LogConfig    `koanf:"log"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// AuthToken, when set, requires a matching bearer token on every request.
	AuthToken string `koanf:"auth_token"`
	// RequestTimeout is a Go duration string like "30s".
	RequestTimeout string `koanf:"request_timeout"`
}

type AgentConfig struct {
	SpeakerURI         string `koanf:"speaker_uri"`
	ServiceURL         string `koanf:"service_url"`
	ConversationalName string `koanf:"conversational_name"`
	Organization       string `koanf:"organization"`
	// ManifestPath points at a manifest JSON file. When empty a minimal
	// manifest is assembled from the fields above.
	ManifestPath string `koanf:"manifest_path"`
}

// FloorConfig configures outbound calls to a remote floor or agent.
type FloorConfig struct {
	Endpoint string `koanf:"endpoint"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from the YAML file at path, then overlays
// FLOOR_-prefixed environment variables (FLOOR_SERVER__PORT maps to
// server.port). A missing file is fine; env vars and defaults still apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider("FLOOR_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "FLOOR_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.request_timeout") {
		k.Set("server.request_timeout", "30s")
	}
	if !k.Exists("log.level") {
		k.Set("log.level", "info")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Server.AuthToken = substituteEnvVars(cfg.Server.AuthToken)

	return &cfg, nil
}

// substituteEnvVars expands ${VAR} references against the process environment.
func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
