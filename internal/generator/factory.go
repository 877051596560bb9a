package generator

import (
	"context"
	"fmt"
	"os"
	"strconv"

	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// Backend enumerates the supported chat model providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// Config holds the chat model configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the model name or deployment ID (e.g. "llama3", "gpt-4o").
	Model string

	// BaseURL overrides the default API endpoint (required for Ollama and Azure).
	BaseURL string

	// APIKey is the authentication credential for the selected provider.
	APIKey string

	// AzureDeployment is the Azure OpenAI deployment name (Azure only).
	AzureDeployment string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps the number of tokens generated per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0). A low default
	// keeps FAQ answers focused on the retrieved context.
	Temperature float32
}

// ConfigFromEnv resolves a Config from environment variables.
//
//	MODEL_PROVIDER     = ollama | openai | azure | gemini (default: ollama)
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3)
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o)
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-1.5-pro)
//	Shared:  MODEL_MAX_TOKENS (default: 1024), MODEL_TEMPERATURE (default: 0.2)
func ConfigFromEnv() *Config {
	cfg := &Config{
		Backend:         Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendOllama))),
		MaxTokens:       getEnvInt("MODEL_MAX_TOKENS", 1024),
		Temperature:     getEnvFloat32("MODEL_TEMPERATURE", 0.2),
		AzureDeployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		AzureAPIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
	}

	switch cfg.Backend {
	case BackendOllama:
		cfg.BaseURL = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		cfg.Model = getEnvOrDefault("OLLAMA_MODEL", "llama3")
	case BackendOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Model = getEnvOrDefault("OPENAI_MODEL", "gpt-4o")
	case BackendAzure:
		cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		cfg.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
		cfg.Model = cfg.AzureDeployment
	case BackendGemini:
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
		cfg.Model = getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-pro")
	}

	return cfg
}

// NewFromEnv constructs a rag.Generator from environment variables.
func NewFromEnv(ctx context.Context) (rag.Generator, error) {
	return NewFromConfig(ctx, ConfigFromEnv())
}

// NewFromConfig constructs a rag.Generator from an explicit Config,
// delegating to the appropriate backend constructor. Validation happens here
// so callers get a clear error at startup rather than on the first query.
func NewFromConfig(ctx context.Context, cfg *Config) (rag.Generator, error) {
	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(chatModel)
}

// newChatModel builds the Eino chat model for the configured backend.
func newChatModel(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	switch cfg.Backend {
	case BackendOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
			BaseURL: baseURL,
			Model:   cfg.Model,
		})

	case BackendOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("generator: OPENAI_API_KEY is required for openai backend")
		}
		return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			MaxTokens:   &cfg.MaxTokens,
			Temperature: &cfg.Temperature,
		})

	case BackendAzure:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("generator: AZURE_OPENAI_API_KEY is required for azure backend")
		}
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("generator: AZURE_OPENAI_ENDPOINT is required for azure backend")
		}
		if cfg.AzureDeployment == "" {
			return nil, fmt.Errorf("generator: AZURE_OPENAI_DEPLOYMENT is required for azure backend")
		}
		return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
			Model:       cfg.AzureDeployment,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			ByAzure:     true,
			APIVersion:  cfg.AzureAPIVersion,
			MaxTokens:   &cfg.MaxTokens,
			Temperature: &cfg.Temperature,
			// Use the deployment name as-is — the default mapper strips
			// dots/colons which breaks deployment names like "gpt-4.1".
			AzureModelMapperFunc: func(model string) string { return model },
		})

	case BackendGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("generator: GOOGLE_API_KEY is required for gemini backend")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("generator: failed to create Gemini client: %w", err)
		}
		return einogemini.NewChatModel(ctx, &einogemini.Config{ //nolint:wrapcheck // constructor passthrough
			Client: client,
			Model:  cfg.Model,
		})

	default:
		return nil, fmt.Errorf("generator: unknown backend %q — valid values: ollama, openai, azure, gemini", cfg.Backend)
	}
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
