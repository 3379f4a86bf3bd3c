package common

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Data        DataConfig    `toml:"data"`
	Storage     StorageConfig `toml:"storage"`
	Logging     LoggingConfig `toml:"logging"`
	LLM         LLMConfig     `toml:"llm"`
	Gemini      GeminiConfig  `toml:"gemini"`
	Claude      ClaudeConfig  `toml:"claude"`
	Ollama      OllamaConfig  `toml:"ollama"`
	RAG         RAGConfig     `toml:"rag"`
}

// DataConfig locates the corpus on disk. Dir must contain an advisories/
// subdirectory of markdown files and a csv/ subdirectory with the
// vulnerability database exports.
type DataConfig struct {
	Dir string `toml:"dir" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration for the
// embedding index.
type BadgerConfig struct {
	Path           string `toml:"path"`             // Index directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete index on startup and re-embed the corpus
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderOllama uses a local Ollama server
	LLMProviderOllama LLMProvider = "ollama"
)

// LLMConfig selects the provider used when a model spec carries no
// provider prefix.
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"omitempty,oneof=gemini claude ollama"`
	Model           string      `toml:"model"` // Model spec "provider:model", overrides default_provider when prefixed
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`         // Google Gemini API key
	Model          string  `toml:"model"`           // Model for generation (default: "gemini-3-flash-preview")
	EmbeddingModel string  `toml:"embedding_model"` // Model for embeddings (default: "gemini-embedding-001")
	RateLimit      string  `toml:"rate_limit"`      // Rate limit duration string (default: "4s" for 15 RPM)
	Timeout        string  `toml:"timeout"`         // Operation timeout as duration string (default: "2m")
	Temperature    float32 `toml:"temperature"`     // Completion temperature (default: 0.0)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for generation (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string (default: "1s")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.0)
}

// OllamaConfig contains local Ollama server configuration
type OllamaConfig struct {
	BaseURL        string `toml:"base_url"`        // Server URL (default: "http://localhost:11434")
	Model          string `toml:"model"`           // Model for generation (default: "llama3.2")
	EmbeddingModel string `toml:"embedding_model"` // Model for embeddings (default: "nomic-embed-text")
	Timeout        string `toml:"timeout"`         // Request timeout as duration string (default: "5m")
}

// RAGConfig tunes retrieval and the agentic tool loop
type RAGConfig struct {
	TopK          int `toml:"top_k" validate:"gt=0"`                  // Advisories returned per semantic search (default: 3)
	MaxIterations int `toml:"max_iterations" validate:"gt=0,lte=20"` // Tool-call round trips before forcing an answer (default: 5)
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in vulnaq.toml; technical
// parameters are hardcoded here.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Data: DataConfig{
			Dir: "./data",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./index",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Gemini: GeminiConfig{
			APIKey:         "", // User must provide API key (GEMINI_API_KEY or config)
			Model:          "gemini-3-flash-preview",
			EmbeddingModel: "gemini-embedding-001",
			RateLimit:      "4s", // Free tier is 15 RPM
			Timeout:        "2m",
			Temperature:    0.0, // Deterministic routing and synthesis
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			RateLimit:   "1s",
			Timeout:     "2m",
			Temperature: 0.0,
		},
		Ollama: OllamaConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "llama3.2",
			EmbeddingModel: "nomic-embed-text",
			Timeout:        "5m",
		},
		RAG: RAGConfig{
			TopK:          3,
			MaxIterations: 5,
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
// An empty path skips the file stage and loads defaults plus environment.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks constraint tags on the config struct
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VULNAQ_ENV"); env != "" {
		config.Environment = env
	}

	// Data configuration
	if dataDir := os.Getenv("VULNAQ_DATA_DIR"); dataDir != "" {
		config.Data.Dir = dataDir
	}

	// Storage configuration
	if badgerPath := os.Getenv("VULNAQ_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if reset := os.Getenv("VULNAQ_BADGER_RESET_ON_STARTUP"); reset != "" {
		if r, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = r
		}
	}

	// Logging configuration
	if level := os.Getenv("VULNAQ_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// LLM provider configuration
	if provider := os.Getenv("VULNAQ_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if model := os.Getenv("VULNAQ_LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}

	// Gemini configuration
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("VULNAQ_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey // VULNAQ_ prefix takes priority
	}
	if model := os.Getenv("VULNAQ_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if embeddingModel := os.Getenv("VULNAQ_GEMINI_EMBEDDING_MODEL"); embeddingModel != "" {
		config.Gemini.EmbeddingModel = embeddingModel
	}
	if rateLimit := os.Getenv("VULNAQ_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("VULNAQ_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // VULNAQ_ prefix takes priority
	}
	if model := os.Getenv("VULNAQ_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("VULNAQ_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}

	// Ollama configuration
	if baseURL := os.Getenv("VULNAQ_OLLAMA_BASE_URL"); baseURL != "" {
		config.Ollama.BaseURL = baseURL
	}
	if model := os.Getenv("VULNAQ_OLLAMA_MODEL"); model != "" {
		config.Ollama.Model = model
	}
	if embeddingModel := os.Getenv("VULNAQ_OLLAMA_EMBEDDING_MODEL"); embeddingModel != "" {
		config.Ollama.EmbeddingModel = embeddingModel
	}

	// RAG configuration
	if topK := os.Getenv("VULNAQ_RAG_TOP_K"); topK != "" {
		if k, err := strconv.Atoi(topK); err == nil {
			config.RAG.TopK = k
		}
	}
	if maxIterations := os.Getenv("VULNAQ_RAG_MAX_ITERATIONS"); maxIterations != "" {
		if mi, err := strconv.Atoi(maxIterations); err == nil {
			config.RAG.MaxIterations = mi
		}
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
