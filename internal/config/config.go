// Package config loads process settings from defaults, an optional
// config.yaml and BEWRITTEN_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable key.
const EnvPrefix = "BEWRITTEN"

// Config is a typed snapshot of the loaded settings.
type Config struct {
	Project string
	JSON    bool

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	ReviewTimeout time.Duration
	LockTimeout   time.Duration

	// ConfigFile is the file that was read, or "" when none was found.
	ConfigFile string
}

// Load builds a viper instance and returns the resulting Config.
// explicit names a config file that must exist; when empty the file is
// searched for in <project>/.bewritten/config.yaml, then the user config dir.
func Load(explicit, project string) (*Config, *viper.Viper, error) {
	v := viper.New()

	// Only yaml is supported
	v.SetConfigType("yaml")

	configFile := explicit
	if configFile == "" {
		configFile = findConfigFile(project)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Environment variables take precedence over config file
	// E.g., BEWRITTEN_PROJECT, BEWRITTEN_LOG_LEVEL, BEWRITTEN_REVIEW_TIMEOUT
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := FromViper(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	return cfg, v, nil
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project", "")
	v.SetDefault("json", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max-size-mb", 10)
	v.SetDefault("log.max-backups", 3)
	v.SetDefault("log.max-age-days", 28)

	v.SetDefault("review.timeout", "30s")
	v.SetDefault("lock.timeout", "0s") // 0 waits until the caller's context ends
}

// FromViper reads a Config out of v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Project:       v.GetString("project"),
		JSON:          v.GetBool("json"),
		LogLevel:      v.GetString("log.level"),
		LogFile:       v.GetString("log.file"),
		LogMaxSizeMB:  v.GetInt("log.max-size-mb"),
		LogMaxBackups: v.GetInt("log.max-backups"),
		LogMaxAgeDays: v.GetInt("log.max-age-days"),
	}

	var err error
	if cfg.ReviewTimeout, err = duration(v, "review.timeout"); err != nil {
		return nil, err
	}
	if cfg.LockTimeout, err = duration(v, "lock.timeout"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, raw)
	}
	return d, nil
}

// findConfigFile returns the first existing candidate config file.
// Precedence: <project>/.bewritten/config.yaml > <user config dir>/bewritten/config.yaml
func findConfigFile(project string) string {
	var candidates []string
	if project != "" {
		candidates = append(candidates, filepath.Join(project, ".bewritten", "config.yaml"))
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(configDir, "bewritten", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
