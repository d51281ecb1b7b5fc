package internal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ArchiveConfig selects the optional interaction archive driver.
type ArchiveConfig struct {
	Driver    string `yaml:"driver"` // "", "memory", "sqlite", "redis"
	Path      string `yaml:"path"`   // sqlite database file
	RedisAddr string `yaml:"redis_addr"`
	RedisTTL  string `yaml:"redis_ttl"` // Go duration, default 24h
}

// Config holds every tunable of the session engine and its servers. Values
// come from an optional YAML file; command-line flags override file values.
type Config struct {
	BackendURL    string `yaml:"backend_url"`
	Model         string `yaml:"model"`
	API           string `yaml:"api"`
	MaxContextLen int    `yaml:"max_context_len"`
	MaxNewTokens  int    `yaml:"max_new_tokens"`
	MinNewTokens  int    `yaml:"min_new_tokens"`
	WrapPolicy    string `yaml:"wrap_policy"` // "drop" or "split"
	SystemPrompt  string `yaml:"system_prompt"`

	Sampling SamplingParams `yaml:"sampling"`

	DisableStreaming bool `yaml:"disable_streaming"`
	DisableStats     bool `yaml:"disable_stats"`

	PromptColor string `yaml:"prompt_color"`
	ReplyColor  string `yaml:"reply_color"`

	SaveJSONByImage bool   `yaml:"save_json_by_image"`
	JSONIndent      int    `yaml:"json_indent"`
	ForwardURL      string `yaml:"forward_url"`
	AttachImage     bool   `yaml:"attach_image"`

	ServerPort   int     `yaml:"server_port"`
	IngestPort   int     `yaml:"ingest_port"`
	IngestDir    string  `yaml:"ingest_dir"`
	ViewPort     int     `yaml:"view_port"`
	ViewRoot     string  `yaml:"view_root"`
	ScanInterval float64 `yaml:"scan_interval"`

	Archive ArchiveConfig `yaml:"archive"`
}

// DefaultConfig returns the built-in defaults, matching the defaults of the
// interactive tool this engine grew out of.
func DefaultConfig() *Config {
	return &Config{
		BackendURL:    "http://127.0.0.1:9000",
		Model:         "Efficient-Large-Model/VILA1.5-3b",
		API:           "mlc",
		MaxContextLen: 4096,
		MaxNewTokens:  512,
		MinNewTokens:  -1,
		WrapPolicy:    "drop",
		Sampling: SamplingParams{
			Temperature:       0.7,
			TopP:              0.95,
			RepetitionPenalty: 1.0,
			DoSample:          true,
		},
		PromptColor:  "blue",
		ReplyColor:   "green",
		JSONIndent:   2,
		ForwardURL:   "",
		AttachImage:  true,
		ServerPort:   8080,
		IngestPort:   5000,
		IngestDir:    "ingested",
		ViewPort:     8090,
		ScanInterval: 2.0,
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults untouched.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// WrapPolicyValue maps the config string onto the budgeter policy.
func (c *Config) WrapPolicyValue() WrapPolicy {
	if c.WrapPolicy == "split" {
		return WrapSplit
	}
	return WrapDropOldest
}
