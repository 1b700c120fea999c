package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Generation  GenerationConfig `toml:"generation"`
	Viewer      ViewerConfig     `toml:"viewer"`
	Jobs        JobsConfig       `toml:"jobs"`
	WebSocket   WebSocketConfig  `toml:"websocket"`
	Templates   TemplatesConfig  `toml:"templates"`
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
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
	Dir        string   `toml:"dir"`         // Log file directory (default: <exe dir>/logs)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`      // default: "gemini-1.5-flash"
	Timeout   string `toml:"timeout"`    // Per-call timeout as duration string (default: "2m")
	RateLimit string `toml:"rate_limit"` // Minimum spacing between calls, "0s" disables
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"`
	RateLimit string `toml:"rate_limit"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the provider used for generation
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
}

// GenerationConfig controls report generation
type GenerationConfig struct {
	MaxAttempts       int     `toml:"max_attempts"`       // default: 3
	BackoffUnit       string  `toml:"backoff_unit"`       // Wait after attempt n is n × unit (default: "1s")
	Pace              string  `toml:"pace"`               // Pause before each progress checkpoint (default: "500ms")
	ReportTemperature float32 `toml:"report_temperature"` // default: 0.5
	FactsTemperature  float32 `toml:"facts_temperature"`  // default: 0.7
	FactsCount        int     `toml:"facts_count"`        // default: 10
}

// ViewerConfig controls how long a viewer waits for a report
type ViewerConfig struct {
	Timeout string `toml:"timeout"` // default: "30s"
}

// JobsConfig controls the stale job reaper
type JobsConfig struct {
	ReaperSchedule string `toml:"reaper_schedule"` // Cron schedule (default: "*/5 * * * *")
	StaleAfter     string `toml:"stale_after"`     // Age after which an orphaned record is failed (default: "10m")
}

// WebSocketConfig contains configuration for record streaming
type WebSocketConfig struct {
	ProgressThrottle string `toml:"progress_throttle"` // Minimum spacing between progress frames (default: "250ms")
}

// TemplatesConfig points to user prompt overrides
type TemplatesConfig struct {
	Dir string `toml:"dir"` // Directory checked before the embedded templates (default: "./templates")
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Gemini: GeminiConfig{
			Model:     "gemini-1.5-flash",
			Timeout:   "2m",
			RateLimit: "0s",
		},
		Claude: ClaudeConfig{
			Model:     "claude-haiku-4-5",
			MaxTokens: 8192,
			Timeout:   "2m",
			RateLimit: "0s",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Generation: GenerationConfig{
			MaxAttempts:       3,
			BackoffUnit:       "1s",
			Pace:              "500ms",
			ReportTemperature: 0.5,
			FactsTemperature:  0.7,
			FactsCount:        10,
		},
		Viewer: ViewerConfig{
			Timeout: "30s",
		},
		Jobs: JobsConfig{
			ReaperSchedule: "*/5 * * * *",
			StaleAfter:     "10m",
		},
		WebSocket: WebSocketConfig{
			ProgressThrottle: "250ms",
		},
		Templates: TemplatesConfig{
			Dir: "./templates",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
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

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BIZAUDIT_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("BIZAUDIT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("BIZAUDIT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("BIZAUDIT_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("BIZAUDIT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("BIZAUDIT_LOG_OUTPUT"); output != "" {
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

	// Gemini configuration
	if apiKey := os.Getenv("BIZAUDIT_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("BIZAUDIT_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if rateLimit := os.Getenv("BIZAUDIT_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("BIZAUDIT_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // BIZAUDIT_ prefix takes priority
	}
	if model := os.Getenv("BIZAUDIT_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	if provider := os.Getenv("BIZAUDIT_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// Generation configuration
	if maxAttempts := os.Getenv("BIZAUDIT_GENERATION_MAX_ATTEMPTS"); maxAttempts != "" {
		if ma, err := strconv.Atoi(maxAttempts); err == nil {
			config.Generation.MaxAttempts = ma
		}
	}
	if unit := os.Getenv("BIZAUDIT_GENERATION_BACKOFF_UNIT"); unit != "" {
		config.Generation.BackoffUnit = unit
	}
	if pace := os.Getenv("BIZAUDIT_GENERATION_PACE"); pace != "" {
		config.Generation.Pace = pace
	}

	if timeout := os.Getenv("BIZAUDIT_VIEWER_TIMEOUT"); timeout != "" {
		config.Viewer.Timeout = timeout
	}

	if schedule := os.Getenv("BIZAUDIT_JOBS_REAPER_SCHEDULE"); schedule != "" {
		config.Jobs.ReaperSchedule = schedule
	}
	if staleAfter := os.Getenv("BIZAUDIT_JOBS_STALE_AFTER"); staleAfter != "" {
		config.Jobs.StaleAfter = staleAfter
	}

	if dir := os.Getenv("BIZAUDIT_TEMPLATES_DIR"); dir != "" {
		config.Templates.Dir = dir
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the values that would otherwise fail deep inside a running job
func (c *Config) Validate() error {
	if c.Generation.MaxAttempts < 1 {
		return fmt.Errorf("generation.max_attempts must be at least 1, got %d", c.Generation.MaxAttempts)
	}
	durations := map[string]string{
		"generation.backoff_unit":     c.Generation.BackoffUnit,
		"generation.pace":             c.Generation.Pace,
		"viewer.timeout":              c.Viewer.Timeout,
		"jobs.stale_after":            c.Jobs.StaleAfter,
		"websocket.progress_throttle": c.WebSocket.ProgressThrottle,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", name, value, err)
		}
	}
	switch c.LLM.DefaultProvider {
	case LLMProviderGemini, LLMProviderClaude:
	default:
		return fmt.Errorf("llm.default_provider: unsupported provider %q", c.LLM.DefaultProvider)
	}
	if c.Jobs.ReaperSchedule != "" {
		if err := ValidateJobSchedule(c.Jobs.ReaperSchedule); err != nil {
			return fmt.Errorf("jobs.reaper_schedule: %w", err)
		}
	}
	return nil
}

// ValidateJobSchedule validates a standard five field cron expression or descriptor (@every 5m)
func ValidateJobSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// ParseDurationOr parses a duration string, returning fallback when empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// BackoffUnitDuration returns the linear backoff unit for generation retries
func (g GenerationConfig) BackoffUnitDuration() time.Duration {
	return ParseDurationOr(g.BackoffUnit, time.Second)
}

// PaceDuration returns the pause before each progress checkpoint
func (g GenerationConfig) PaceDuration() time.Duration {
	return ParseDurationOr(g.Pace, 500*time.Millisecond)
}

// TimeoutDuration returns how long a viewer waits before giving up
func (v ViewerConfig) TimeoutDuration() time.Duration {
	return ParseDurationOr(v.Timeout, 30*time.Second)
}

// StaleAfterDuration returns the age after which an orphaned record is failed
func (j JobsConfig) StaleAfterDuration() time.Duration {
	return ParseDurationOr(j.StaleAfter, 10*time.Minute)
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
