package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig        `yaml:"app"`
	Model     ModelConfig      `yaml:"model"`
	Documents DocumentsConfig  `yaml:"documents"`
	Database  DatabaseConfig   `yaml:"database"`
	Engine    EngineConfig     `yaml:"engine"`
	Templates []TemplateConfig `yaml:"templates"`
	API       APIConfig        `yaml:"api"`
	Logging   LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Debug   bool   `yaml:"debug"`
}

type ModelConfig struct {
	Name               string  `yaml:"name"`
	Host               string  `yaml:"host"`
	ContextWindow      int     `yaml:"context_window"`
	MaxResponseTokens  int     `yaml:"max_response_tokens"`
	Temperature        float64 `yaml:"temperature"`
	Encoding           string  `yaml:"encoding"`
	TimeoutFloorSecs   int     `yaml:"timeout_floor_seconds"`
	PerTokenMillis     int     `yaml:"per_token_millis"`
	PullOnStartup      bool    `yaml:"pull_on_startup"`
}

type DocumentsConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
	MaxPages      int `yaml:"max_pages"`
}

type DatabaseConfig struct {
	Path         string `yaml:"path"`
	Passphrase   string `yaml:"-"` // only via DB_ENCRYPTION_KEY, never the file
	MaxSummaries int    `yaml:"max_summaries"`
}

type EngineConfig struct {
	OverlapTokens int `yaml:"overlap_tokens"`
	Retries       int `yaml:"retries"`
	RetryDelayMS  int `yaml:"retry_delay_ms"`
}

type TemplateConfig struct {
	Key             string `yaml:"key"`
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Pattern         string `yaml:"pattern"`
	TargetWords     int    `yaml:"target_words"`
	ExtractInsights bool   `yaml:"extract_insights"`
}

type APIConfig struct {
	MaxConcurrentRuns  int      `yaml:"max_concurrent_runs"`
	RateLimit          string   `yaml:"rate_limit"`
	CORSOrigins        []string `yaml:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_seconds"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load starts from the built-in defaults, overlays the YAML file at path, then
// applies environment overrides. Only keys the file actually sets override a
// default, so an explicit zero (temperature: 0, max_pages: 0) sticks. A .env
// file next to the binary is honored first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path == "" {
		for _, loc := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	mergeWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "privadoc",
			Version: "1.0.0",
			Host:    "127.0.0.1",
			Port:    8756,
		},
		Model: ModelConfig{
			Name:              "llama3.2:3b",
			Host:              "http://localhost:11434",
			ContextWindow:     8192,
			MaxResponseTokens: 1024,
			Temperature:       0.3,
			Encoding:          "cl100k_base",
			TimeoutFloorSecs:  120,
			PerTokenMillis:    250,
		},
		Documents: DocumentsConfig{
			MaxFileSizeMB: 50,
			MaxPages:      500,
		},
		Database: DatabaseConfig{
			Path:         "data/privadoc.db",
			MaxSummaries: 50,
		},
		Engine: EngineConfig{
			OverlapTokens: 512,
			Retries:       1,
			RetryDelayMS:  500,
		},
		API: APIConfig{
			MaxConcurrentRuns:  1,
			RateLimit:          "30-M",
			CORSOrigins:        []string{"http://localhost:*", "tauri://localhost"},
			RequestTimeoutSecs: 600,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func mergeWithEnv(cfg *Config) {
	if host := getEnv("OLLAMA_HOST", ""); host != "" {
		cfg.Model.Host = host
	}
	if key := getEnv("DB_ENCRYPTION_KEY", ""); key != "" {
		cfg.Database.Passphrase = key
	}
	if level := getEnv("LOG_LEVEL", ""); level != "" {
		cfg.Logging.Level = level
	}
	if debug := getEnv("DEBUG", ""); debug != "" {
		switch strings.ToLower(debug) {
		case "1", "true", "yes":
			cfg.App.Debug = true
		}
	}
	if port := getEnvInt("PORT", 0); port != 0 {
		cfg.App.Port = port
	}
}

// Validate rejects configurations the engine cannot run with. All problems
// are reported at once.
func (c *Config) Validate() error {
	var problems []string

	if c.App.Port <= 0 || c.App.Port > 65535 {
		problems = append(problems, fmt.Sprintf("app.port %d out of range", c.App.Port))
	}
	if c.Model.Name == "" {
		problems = append(problems, "model.name is required")
	}
	if !strings.HasPrefix(c.Model.Host, "http://") && !strings.HasPrefix(c.Model.Host, "https://") {
		problems = append(problems, fmt.Sprintf("model.host %q must be an http(s) URL", c.Model.Host))
	}
	if c.Model.MaxResponseTokens >= c.Model.ContextWindow {
		problems = append(problems, fmt.Sprintf(
			"model.max_response_tokens %d must be below model.context_window %d",
			c.Model.MaxResponseTokens, c.Model.ContextWindow))
	}
	if c.Engine.OverlapTokens < 0 || c.Engine.OverlapTokens >= c.Model.ContextWindow {
		problems = append(problems, fmt.Sprintf("engine.overlap_tokens %d out of range", c.Engine.OverlapTokens))
	}
	if c.Engine.Retries < 0 {
		problems = append(problems, "engine.retries must not be negative")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("model.temperature %.2f must be in [0, 2]", c.Model.Temperature))
	}
	if c.Documents.MaxFileSizeMB <= 0 {
		problems = append(problems, "documents.max_file_size_mb must be positive")
	}
	if c.API.MaxConcurrentRuns < 0 {
		problems = append(problems, "api.max_concurrent_runs must not be negative")
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	for i, tpl := range c.Templates {
		if tpl.Key == "" {
			problems = append(problems, fmt.Sprintf("templates[%d].key is required", i))
		}
		if tpl.Pattern != "" && !strings.Contains(tpl.Pattern, "{text}") {
			problems = append(problems, fmt.Sprintf("templates[%d] pattern is missing the {text} placeholder", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// MaxFileSizeBytes is the upload limit in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Documents.MaxFileSizeMB) << 20
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
