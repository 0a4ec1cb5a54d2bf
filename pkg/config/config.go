package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// Config holds everything a scan run needs. Values come from the YAML file
// under the user home directory, overridden by COMPLYSCAN_* environment
// variables so pipelines can configure runs without a config file.
type Config struct {
	SelectedProvider string                    `yaml:"selected_provider"`
	SelectedModel    string                    `yaml:"selected_model"`
	Providers        map[string]ProviderConfig `yaml:"providers"`

	AIEndpoint        string `yaml:"ai_endpoint"`
	KnowledgeEndpoint string `yaml:"knowledge_endpoint"`
	KnowledgeBaseID   string `yaml:"knowledge_base_id"`
	VulnFeedEndpoint  string `yaml:"vuln_feed_endpoint"`

	MaxCalls   int     `yaml:"max_calls"`
	MaxCostUSD float64 `yaml:"max_cost_usd"`

	AutoFix      bool `yaml:"auto_fix"`
	PushAfterFix bool `yaml:"push_after_fix"`

	ReportPath     string `yaml:"report_path"`
	CacheDir       string `yaml:"cache_dir"`
	RemoteCacheURL string `yaml:"remote_cache_url"`
	RulesFile      string `yaml:"rules_file"`

	MaxFileBytes int64 `yaml:"max_file_bytes"`
	Workers      int   `yaml:"workers"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".complyscan")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

func defaults() *Config {
	return &Config{
		SelectedProvider: "gemini",
		SelectedModel:    "gemini-1.5-flash",
		Providers:        make(map[string]ProviderConfig),
		MaxCalls:         50,
		MaxCostUSD:       1.0,
		ReportPath:       "compliance-report.json",
		MaxFileBytes:     512 * 1024,
		Workers:          4,
	}
}

func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv layers environment overrides on top of the file.
func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.SelectedProvider, "COMPLYSCAN_PROVIDER")
	setStr(&c.SelectedModel, "COMPLYSCAN_MODEL")
	setStr(&c.AIEndpoint, "COMPLYSCAN_AI_ENDPOINT")
	setStr(&c.KnowledgeEndpoint, "COMPLYSCAN_KNOWLEDGE_ENDPOINT")
	setStr(&c.KnowledgeBaseID, "COMPLYSCAN_KNOWLEDGE_BASE_ID")
	setStr(&c.VulnFeedEndpoint, "COMPLYSCAN_VULN_FEED_ENDPOINT")
	setStr(&c.ReportPath, "COMPLYSCAN_REPORT_PATH")
	setStr(&c.RemoteCacheURL, "COMPLYSCAN_REMOTE_CACHE_URL")
	setStr(&c.RulesFile, "COMPLYSCAN_RULES_FILE")

	if v := os.Getenv("COMPLYSCAN_API_KEY"); v != "" {
		c.SetAPIKey(c.SelectedProvider, v)
	}
	if v := os.Getenv("COMPLYSCAN_MAX_CALLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxCalls = n
		}
	}
	if v := os.Getenv("COMPLYSCAN_MAX_COST_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MaxCostUSD = f
		}
	}
}

// InPipeline reports whether the scan runs inside an automated pipeline.
// Pipeline filesystems are ephemeral, so the remote cache backend is used
// there when configured.
func (c *Config) InPipeline() bool {
	return os.Getenv("CI") == "true" || os.Getenv("COMPLYSCAN_PIPELINE") == "1"
}

// CacheDirectory returns the local cache directory, defaulting next to the
// config file.
func (c *Config) CacheDirectory() (string, error) {
	if c.CacheDir != "" {
		return c.CacheDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".complyscan", "cache"), nil
}

func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// 0600 permissions for security (api keys)
	return os.WriteFile(path, data, 0600)
}

func (c *Config) SetAPIKey(provider, key string) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

func (c *Config) GetAPIKey(provider string) string {
	return c.Providers[provider].APIKey
}
