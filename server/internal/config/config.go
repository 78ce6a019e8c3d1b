package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sysinv/sysinv/pkg/types"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort     = 3000
	DefaultInventoryTTL = 30 * 24 * time.Hour
	DefaultMaxBodyBytes = 16 << 20
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the inventory API listens on (default 3000).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates agents.
	Auth AuthConfig `yaml:"auth"`

	// Inventory controls retention and upload limits.
	Inventory InventoryConfig `yaml:"inventory"`
}

// AuthConfig controls agent authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the accepted
	// agent keys, comma separated. Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-agent-key" if empty.
	Header string `yaml:"header"`
}

// Keys returns the accepted agent keys resolved from the environment.
func (a AuthConfig) Keys() []string {
	if a.KeyEnv == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(os.Getenv(a.KeyEnv), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// EffectiveHeader returns the configured header name, or the default "x-agent-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return types.DefaultAgentKeyHeader
}

// InventoryConfig controls stored inventories.
type InventoryConfig struct {
	// TTL is how long an agent's inventory is kept after its last upload.
	// Zero keeps inventories forever. Default: 30 days.
	TTL time.Duration `yaml:"ttl"`

	// MaxBodyBytes caps the size of one upload. Default: 16 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// Load reads and parses the config file at path, returning the server configuration.
// An empty path yields the defaults. Missing fields are filled with defaults
// before validation.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("server config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("server config: parse yaml: %w", err)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Inventory: InventoryConfig{
				TTL:          DefaultInventoryTTL,
				MaxBodyBytes: DefaultMaxBodyBytes,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Auth.Mode == "apikey" && cfg.Server.Auth.KeyEnv == "" {
		return fmt.Errorf("server.auth.key_env is required when mode is apikey")
	}
	if cfg.Server.Inventory.TTL < 0 {
		return fmt.Errorf("server.inventory.ttl must not be negative")
	}
	if cfg.Server.Inventory.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.inventory.max_body_bytes must be positive")
	}
	return nil
}
