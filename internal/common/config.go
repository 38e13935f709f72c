package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Files       FilesConfig      `toml:"files"`
	Scrape      ScrapeConfig     `toml:"scrape"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Processing  ProcessingConfig `toml:"processing"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// FilesConfig bounds the session file registry
type FilesConfig struct {
	MaxCount      int `toml:"max_count"`      // Maximum files held per session
	PreviewLength int `toml:"preview_length"` // Characters retained in file previews
}

// ScrapeConfig controls URL ingestion behavior
type ScrapeConfig struct {
	UserAgent          string        `toml:"user_agent"`
	RequestTimeout     time.Duration `toml:"request_timeout"`
	MaxBodySize        int           `toml:"max_body_size"`
	OnlyMainContent    bool          `toml:"only_main_content"`    // Strip nav/footer/script before conversion
	EnableJavaScript   bool          `toml:"enable_javascript"`    // Render with headless Chrome before scraping
	JavaScriptWaitTime time.Duration `toml:"javascript_wait_time"` // Render settle time
}

// GeminiConfig contains Google Gemini API configuration (keyed provider)
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // API key; usually supplied at runtime via settings
	Model       string  `toml:"model"`       // Default model (default: "gemini-2.5-flash")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response
	Timeout     string  `toml:"timeout"`     // Per-call timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between calls (default: "4s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration (account provider)
type ClaudeConfig struct {
	Model          string  `toml:"model"`            // Default model (default: "claude-3-5-haiku-latest")
	MaxTokens      int     `toml:"max_tokens"`       // Maximum tokens in response (default: 8192)
	Timeout        string  `toml:"timeout"`          // Per-call timeout as duration string (default: "5m")
	RateLimit      string  `toml:"rate_limit"`       // Minimum interval between calls (default: "1s")
	Temperature    float32 `toml:"temperature"`      // Completion temperature (default: 0.7)
	ClientLoadWait string  `toml:"client_load_wait"` // Bound on client runtime readiness wait (default: "10s")
}

// LLMConfig contains cross-provider selection defaults
type LLMConfig struct {
	DefaultProvider string `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
}

// ProcessingConfig holds the combination defaults applied when a request
// supplies no strategy of its own
type ProcessingConfig struct {
	Strategy          string `toml:"strategy"`           // "simple", "structured", or "smart" (default: "structured")
	Separator         string `toml:"separator"`          // Section separator (default: "---")
	TableOfContents   bool   `toml:"table_of_contents"`  // Prepend a generated table of contents
	PreserveStructure bool   `toml:"preserve_structure"` // Keep per-file heading hierarchy (demoted one level)
	RemoveBlankLines  bool   `toml:"remove_blank_lines"` // Collapse runs of blank lines
	RemoveDuplicates  bool   `toml:"remove_duplicates"`  // Drop repeated paragraphs across files
}

// SchedulerConfig controls background catalog refresh
type SchedulerConfig struct {
	Enabled         bool   `toml:"enabled"`
	CatalogSchedule string `toml:"catalog_schedule"` // Cron schedule (6-field, with seconds)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for stability; only user-facing
// settings should be exposed in contexo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Files: FilesConfig{
			MaxCount:      50,
			PreviewLength: 500,
		},
		Scrape: ScrapeConfig{
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout:     30 * time.Second,
			MaxBodySize:        10 * 1024 * 1024, // 10MB
			OnlyMainContent:    true,
			EnableJavaScript:   false,
			JavaScriptWaitTime: 3 * time.Second,
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-2.5-flash",
			MaxTokens:   8192,
			Timeout:     "5m",
			RateLimit:   "4s", // 15 RPM free tier
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			Model:          "claude-3-5-haiku-latest",
			MaxTokens:      8192,
			Timeout:        "5m",
			RateLimit:      "1s",
			Temperature:    0.7,
			ClientLoadWait: "10s",
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
		},
		Processing: ProcessingConfig{
			Strategy:          "structured",
			Separator:         "---",
			TableOfContents:   true,
			PreserveStructure: true,
			RemoveBlankLines:  false,
			RemoveDuplicates:  true,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			CatalogSchedule: "0 0 * * * *", // Hourly
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CONTEXO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("CONTEXO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CONTEXO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("CONTEXO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("CONTEXO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("CONTEXO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Files configuration
	if maxCount := os.Getenv("CONTEXO_FILES_MAX_COUNT"); maxCount != "" {
		if mc, err := strconv.Atoi(maxCount); err == nil {
			config.Files.MaxCount = mc
		}
	}

	// Scrape configuration
	if userAgent := os.Getenv("CONTEXO_SCRAPE_USER_AGENT"); userAgent != "" {
		config.Scrape.UserAgent = userAgent
	}
	if timeout := os.Getenv("CONTEXO_SCRAPE_REQUEST_TIMEOUT"); timeout != "" {
		if rt, err := time.ParseDuration(timeout); err == nil {
			config.Scrape.RequestTimeout = rt
		}
	}
	if enableJS := os.Getenv("CONTEXO_SCRAPE_ENABLE_JAVASCRIPT"); enableJS != "" {
		if js, err := strconv.ParseBool(enableJS); err == nil {
			config.Scrape.EnableJavaScript = js
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("CONTEXO_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("CONTEXO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if timeout := os.Getenv("CONTEXO_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("CONTEXO_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("CONTEXO_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if model := os.Getenv("CONTEXO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("CONTEXO_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("CONTEXO_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if rateLimit := os.Getenv("CONTEXO_CLAUDE_RATE_LIMIT"); rateLimit != "" {
		config.Claude.RateLimit = rateLimit
	}

	// LLM provider configuration
	if provider := os.Getenv("CONTEXO_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = provider
	}

	// Scheduler configuration
	if enabled := os.Getenv("CONTEXO_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("CONTEXO_SCHEDULER_CATALOG_SCHEDULE"); schedule != "" {
		config.Scheduler.CatalogSchedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
