// Package config loads parcelcore's configuration from built-in defaults,
// .parcelcore/config.yaml (if present), and PARCEL_-prefixed environment
// variables, in that order of increasing priority, via viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is parcelcore's full runtime configuration.
type Config struct {
	// EngineVersion is folded into the persisted cache key; bumping it
	// invalidates every previously cached result.
	EngineVersion string `mapstructure:"engine_version"`

	// Ignore lists glob patterns the filesystem watcher never reports
	// events for.
	Ignore []string `mapstructure:"ignore"`

	// Options is the live option set consulted by option-change
	// invalidation and passed to request bodies.
	Options map[string]any `mapstructure:"options"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `mapstructure:"log_level"`
}

func defaults() Config {
	return Config{
		EngineVersion: "1",
		Ignore:        []string{".parcelcore/**", ".git/**"},
		Options:       map[string]any{},
		LogLevel:      "info",
	}
}

// Load reads configuration for a project rooted at projectRoot. configPath,
// if non-empty, overrides the default .parcelcore/config.yaml location.
func Load(projectRoot, configPath string) (Config, error) {
	v := viper.New()
	cfg := defaults()
	v.SetDefault("engine_version", cfg.EngineVersion)
	v.SetDefault("ignore", cfg.Ignore)
	v.SetDefault("options", cfg.Options)
	v.SetDefault("log_level", cfg.LogLevel)

	v.SetEnvPrefix("PARCEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(projectRoot + "/.parcelcore")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
