package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files, PRGUARD_* environment
// variables, and the CI variables the pipeline documents (API_KEY, API_BASE,
// MODEL_ID, GITHUB_TOKEN).
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "prguard"
	}

	configFile := locateConfigFile(name, opts.ConfigPaths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "PRGUARD"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	applyCIVariables(&cfg)

	return cfg, nil
}

// applyCIVariables maps the unprefixed CI variables onto the config. They
// win over file values so a workflow can override a committed prguard.yaml.
func applyCIVariables(cfg *Config) {
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("API_BASE"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("MODEL_ID"); v != "" {
		cfg.Model.ID = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = v
	}
}

func locateConfigFile(name string, paths []string) string {
	searchPaths := append([]string{}, paths...)
	searchPaths = append(searchPaths, ".")
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name+".yaml")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.id", "gpt-4o")
	v.SetDefault("model.maxTokens", 4096)

	v.SetDefault("review.chunkTokenBudget", 3000)
	v.SetDefault("review.concurrency", 4)
	v.SetDefault("review.timeout", "10m")

	v.SetDefault("http.timeout", "90s")
	v.SetDefault("http.maxRetries", 3)
	v.SetDefault("http.initialBackoff", "2s")
	v.SetDefault("http.maxBackoff", "32s")
	v.SetDefault("http.backoffMultiplier", 2.0)

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", defaultStorePath())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./prguard.db"
	}
	return filepath.Join(home, ".config", "prguard", "prguard.db")
}
