// Package config loads the server configuration: built-in defaults, then the
// YAML file, then CMDBLOCK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CMDBLOCK_"

// Config is the server configuration.
type Config struct {
	// GRPCAddr is the listen address of the game service.
	GRPCAddr string `yaml:"grpc_addr" env:"GRPC_ADDR"`
	// AdminAddr is the listen address of the admin HTTP server. Empty disables it.
	AdminAddr string `yaml:"admin_addr" env:"ADMIN_ADDR"`
	// PluginDir holds .so plugins and per-plugin <name>.yaml configs.
	PluginDir string `yaml:"plugin_dir" env:"PLUGIN_DIR"`
	// PermissionsFile is the YAML capability file.
	PermissionsFile string `yaml:"permissions_file" env:"PERMISSIONS_FILE"`
	// Console enables the stdin admin REPL.
	Console bool `yaml:"console" env:"CONSOLE"`
	// JoinTimeout frees the name of a joined player who opens no stream in time.
	JoinTimeout time.Duration `yaml:"join_timeout" env:"JOIN_TIMEOUT"`

	World WorldConfig `yaml:"world" envPrefix:"WORLD_"`
	Log   LogConfig   `yaml:"log" envPrefix:"LOG_"`
}

// WorldConfig describes the generated world.
type WorldConfig struct {
	Name string `yaml:"name" env:"NAME"`
	// Seed of the terrain generator; 0 picks a random seed.
	Seed int64 `yaml:"seed" env:"SEED"`
	// FlatHeight > 0 replaces the terrain with a flat world of that height.
	FlatHeight int32 `yaml:"flat_height" env:"FLAT_HEIGHT"`
	SpawnX     int32 `yaml:"spawn_x" env:"SPAWN_X"`
	SpawnZ     int32 `yaml:"spawn_z" env:"SPAWN_Z"`
}

// LogConfig configures zap.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is "console" or "json".
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		GRPCAddr:        ":50051",
		AdminAddr:       ":8080",
		PluginDir:       "./plugins",
		PermissionsFile: "./permissions.yaml",
		Console:         true,
		JoinTimeout:     30 * time.Second,
		World:           WorldConfig{Name: "overworld"},
		Log:             LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads path (a missing file leaves the defaults) and applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that have no usable fallback.
func (c Config) Validate() error {
	var errs []error
	if c.GRPCAddr == "" {
		errs = append(errs, errors.New("grpc_addr is required"))
	}
	if strings.TrimSpace(c.World.Name) == "" {
		errs = append(errs, errors.New("world.name is required"))
	}
	if c.JoinTimeout <= 0 {
		errs = append(errs, errors.New("join_timeout must be positive"))
	}
	if c.World.FlatHeight < 0 {
		errs = append(errs, errors.New("world.flat_height must not be negative"))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want console or json", c.Log.Format))
	}
	return errors.Join(errs...)
}
