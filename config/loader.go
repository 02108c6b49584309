package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for the leafwise server.
type Config struct {
	// Server configures the HTTP surface.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// LLM configures the chat model provider.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Embedding configures the query embedder.
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Detector configures the image detection endpoint.
	Detector DetectorConfig `yaml:"detector" env:"DETECTOR"`

	// Knowledge configures the pre-built knowledge snapshot.
	Knowledge KnowledgeConfig `yaml:"knowledge" env:"KNOWLEDGE"`

	// Retrieval configures evidence retrieval.
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Context configures prompt assembly.
	Context ContextConfig `yaml:"context" env:"CONTEXT"`

	// Session configures conversation-memory storage.
	Session SessionConfig `yaml:"session" env:"SESSION"`

	// Redis configures the optional persistent session backend.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTP port
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics port
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// Read timeout
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// Write timeout
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// Largest accepted image upload in bytes
	MaxImageBytes int64 `yaml:"max_image_bytes" env:"MAX_IMAGE_BYTES"`
}

// LLMConfig configures the chat model provider.
type LLMConfig struct {
	// Provider name, e.g. "groq" or "openai"
	Provider string `yaml:"provider" env:"PROVIDER"`
	// Model name
	Model string `yaml:"model" env:"MODEL"`
	// API key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Base URL of the OpenAI-compatible endpoint
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Request timeout
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Sampling temperature
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// Answer length bound
	MaxOutputTokens int `yaml:"max_output_tokens" env:"MAX_OUTPUT_TOKENS"`
	// Client-side request rate limit, requests per second; 0 disables
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
}

// EmbeddingConfig configures the query embedder.
type EmbeddingConfig struct {
	// Model name
	Model string `yaml:"model" env:"MODEL"`
	// API key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Base URL of the embeddings endpoint
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Embedding dimensionality; must match the knowledge snapshot
	Dimensions int `yaml:"dimensions" env:"DIMENSIONS"`
	// Request timeout
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// DetectorConfig configures the hosted detection model.
type DetectorConfig struct {
	// Whether image detection is available
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Inference endpoint base URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API key (optional)
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Request timeout
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Detections below this confidence are dropped
	MinConfidence float64 `yaml:"min_confidence" env:"MIN_CONFIDENCE"`
}

// KnowledgeConfig configures the knowledge snapshot.
type KnowledgeConfig struct {
	// Path to the JSON chunk snapshot loaded at startup
	SnapshotPath string `yaml:"snapshot_path" env:"SNAPSHOT_PATH"`
}

// RetrievalConfig configures evidence retrieval.
type RetrievalConfig struct {
	// Chunks returned per query
	TopK int `yaml:"top_k" env:"TOP_K"`
	// Candidates fetched before deduplication
	FetchK int `yaml:"fetch_k" env:"FETCH_K"`
	// Per-flight retrieval deadline
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// ContextConfig configures prompt assembly.
type ContextConfig struct {
	// Hard prompt token budget
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// Recent turns considered before budget trimming
	HistoryLimit int `yaml:"history_limit" env:"HISTORY_LIMIT"`
	// Overrides the built-in system prompt when non-empty
	SystemPrompt string `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
}

// SessionConfig configures conversation-memory storage.
type SessionConfig struct {
	// Backend: memory, redis
	Backend string `yaml:"backend" env:"BACKEND"`
	// Session expiry for persistent backends; 0 means no expiry
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	// Address
	Addr string `yaml:"addr" env:"ADDR"`
	// Password
	Password string `yaml:"password" env:"PASSWORD"`
	// Database number
	DB int `yaml:"db" env:"DB"`
	// Connection pool size
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// Output paths
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// Annotate entries with the calling site
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// Attach stack traces at error level
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// Loader loads configuration with builder-style options.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the default env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "LEAFWISE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a config validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads configuration. Precedence: defaults, YAML file, environment.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing file falls back to defaults.
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma-separated string slices.
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads configuration and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm temperature must be between 0 and 2")
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, "retrieval top_k must be positive")
	}
	if c.Retrieval.FetchK < c.Retrieval.TopK {
		errs = append(errs, "retrieval fetch_k must be >= top_k")
	}
	if c.Context.MaxTokens <= 0 {
		errs = append(errs, "context max_tokens must be positive")
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("unknown session backend %q", c.Session.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
