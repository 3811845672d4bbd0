package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "ZIPPICKS_CONFIG"
	databaseDSNEnv = "DATABASE_DSN"
	llmAPIKeyEnv   = "LLM_API_KEY"
	llmModelEnv    = "LLM_MODEL"
	wpSiteURLEnv   = "WP_SITE_URL"
	wpAuthTypeEnv  = "WP_AUTH_TYPE"
	wpUsernameEnv  = "WP_USERNAME"
	wpPasswordEnv  = "WP_PASSWORD"
	wpAPIKeyEnv    = "WP_API_KEY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Data      DataConfig      `yaml:"data"`
	Taxonomy  TaxonomyConfig  `yaml:"taxonomy"`
	Prompts   PromptConfig    `yaml:"prompts"`
	Output    OutputConfig    `yaml:"output"`
	Store     StoreConfig     `yaml:"store"`
	LLM       LLMConfig       `yaml:"llm"`
	WordPress WordPressConfig `yaml:"wordpress"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// LoggingConfig selects handler level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DataConfig describes the restaurant dataset and candidate bounds.
type DataConfig struct {
	File          string  `yaml:"file"`
	MinRating     float64 `yaml:"minRating"`
	MaxCandidates int     `yaml:"maxCandidates"`
}

// TaxonomyConfig points at the vibe and city definition files.
type TaxonomyConfig struct {
	VibesFile  string `yaml:"vibesFile"`
	CitiesFile string `yaml:"citiesFile"`
}

// PromptConfig selects the template directory and default version.
type PromptConfig struct {
	Dir     string `yaml:"dir"`
	Version string `yaml:"version"`
}

// OutputConfig is where prompts, drafts, and validated lists land.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// StoreConfig selects a task-state backend: Postgres when a DSN is set,
// a JSON flat file otherwise.
type StoreConfig struct {
	File string `yaml:"file"`
	DSN  string `yaml:"dsn"`
}

// LLMConfig defines how to contact the text generator.
type LLMConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"apiKey"`
	SystemPrompt   string `yaml:"systemPrompt"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// WordPressConfig wires the publishing backend.
type WordPressConfig struct {
	SiteURL        string  `yaml:"siteUrl"`
	APIEndpoint    string  `yaml:"apiEndpoint"`
	AuthType       string  `yaml:"authType"`
	Username       string  `yaml:"username"`
	Password       string  `yaml:"password"`
	APIKey         string  `yaml:"apiKey"`
	DefaultStatus  string  `yaml:"defaultStatus"`
	CallsPerSecond float64 `yaml:"callsPerSecond"`
	MaxRetries     int     `yaml:"maxRetries"`
	RetryDelayMS   int     `yaml:"retryDelayMs"`
	TimeoutSeconds int     `yaml:"timeoutSeconds"`
}

// PipelineConfig bounds batch size and redraft attempts.
type PipelineConfig struct {
	BatchSize  int `yaml:"batchSize"`
	MaxRetries int `yaml:"maxRetries"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. A .env file in the working directory is honored first.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(wpSiteURLEnv); v != "" {
		c.WordPress.SiteURL = v
	}
	if v := os.Getenv(wpAuthTypeEnv); v != "" {
		c.WordPress.AuthType = v
	}
	if v := os.Getenv(wpUsernameEnv); v != "" {
		c.WordPress.Username = v
	}
	if v := os.Getenv(wpPasswordEnv); v != "" {
		c.WordPress.Password = v
	}
	if v := os.Getenv(wpAPIKeyEnv); v != "" {
		c.WordPress.APIKey = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Data.File != "" {
		base.Data.File = override.Data.File
	}
	if override.Data.MinRating != 0 {
		base.Data.MinRating = override.Data.MinRating
	}
	if override.Data.MaxCandidates != 0 {
		base.Data.MaxCandidates = override.Data.MaxCandidates
	}

	if override.Taxonomy.VibesFile != "" {
		base.Taxonomy.VibesFile = override.Taxonomy.VibesFile
	}
	if override.Taxonomy.CitiesFile != "" {
		base.Taxonomy.CitiesFile = override.Taxonomy.CitiesFile
	}

	if override.Prompts.Dir != "" {
		base.Prompts.Dir = override.Prompts.Dir
	}
	if override.Prompts.Version != "" {
		base.Prompts.Version = override.Prompts.Version
	}

	if override.Output.Dir != "" {
		base.Output.Dir = override.Output.Dir
	}

	if override.Store.File != "" {
		base.Store.File = override.Store.File
	}
	if override.Store.DSN != "" {
		base.Store.DSN = override.Store.DSN
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.SystemPrompt != "" {
		base.LLM.SystemPrompt = override.LLM.SystemPrompt
	}
	if override.LLM.TimeoutSeconds != 0 {
		base.LLM.TimeoutSeconds = override.LLM.TimeoutSeconds
	}

	if override.WordPress.SiteURL != "" {
		base.WordPress.SiteURL = override.WordPress.SiteURL
	}
	if override.WordPress.APIEndpoint != "" {
		base.WordPress.APIEndpoint = override.WordPress.APIEndpoint
	}
	if override.WordPress.AuthType != "" {
		base.WordPress.AuthType = override.WordPress.AuthType
	}
	if override.WordPress.Username != "" {
		base.WordPress.Username = override.WordPress.Username
	}
	if override.WordPress.Password != "" {
		base.WordPress.Password = override.WordPress.Password
	}
	if override.WordPress.APIKey != "" {
		base.WordPress.APIKey = override.WordPress.APIKey
	}
	if override.WordPress.DefaultStatus != "" {
		base.WordPress.DefaultStatus = override.WordPress.DefaultStatus
	}
	if override.WordPress.CallsPerSecond != 0 {
		base.WordPress.CallsPerSecond = override.WordPress.CallsPerSecond
	}
	if override.WordPress.MaxRetries != 0 {
		base.WordPress.MaxRetries = override.WordPress.MaxRetries
	}
	if override.WordPress.RetryDelayMS != 0 {
		base.WordPress.RetryDelayMS = override.WordPress.RetryDelayMS
	}
	if override.WordPress.TimeoutSeconds != 0 {
		base.WordPress.TimeoutSeconds = override.WordPress.TimeoutSeconds
	}

	if override.Pipeline.BatchSize != 0 {
		base.Pipeline.BatchSize = override.Pipeline.BatchSize
	}
	if override.Pipeline.MaxRetries != 0 {
		base.Pipeline.MaxRetries = override.Pipeline.MaxRetries
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Data: DataConfig{
			File:          "data/restaurants.csv",
			MinRating:     4.3,
			MaxCandidates: 50,
		},
		Taxonomy: TaxonomyConfig{
			VibesFile:  "config/vibes.yaml",
			CitiesFile: "config/cities.yaml",
		},
		Prompts: PromptConfig{Dir: "config/prompts", Version: "1.0"},
		Output:  OutputConfig{Dir: "output"},
		Store:   StoreConfig{File: "output/logs/generation_log.json"},
		LLM: LLMConfig{
			Endpoint:       "https://api.openai.com/v1/chat/completions",
			Model:          "gpt-4o-mini",
			SystemPrompt:   "You are a local food expert writing Top 10 restaurant lists.",
			TimeoutSeconds: 120,
		},
		WordPress: WordPressConfig{
			APIEndpoint:    "/wp-json/wp/v2",
			AuthType:       "application",
			DefaultStatus:  "draft",
			CallsPerSecond: 10,
			MaxRetries:     3,
			RetryDelayMS:   1000,
			TimeoutSeconds: 15,
		},
		Pipeline: PipelineConfig{BatchSize: 5, MaxRetries: 3},
	}
}
