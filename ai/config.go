package ai

import (
	"errors"

	"github.com/lightpath-ai/lightpath/internal/profile"
)

// Config represents AI provider configuration.
type Config struct {
	Embedding EmbeddingConfig
	Generator GeneratorConfig
	Enabled   bool
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider          string // openai, local
	Model             string
	APIKey            string
	BaseURL           string
	Dimensions        int
	TimeoutSeconds    int // Request timeout in seconds (default: 30)
	RequestsPerMinute int // Client-side rate limit, 0 disables
}

// GeneratorConfig represents interview/extraction model configuration.
type GeneratorConfig struct {
	Provider       string // openai, local
	Model          string
	APIKey         string
	BaseURL        string
	MaxTokens      int     // default: 1024
	Temperature    float32 // default: 0.7
	TimeoutSeconds int     // Request timeout in seconds (default: 30)
}

// NewConfigFromProfile creates AI config from profile.
//
// Both provider families share the profile's provider/key/base settings;
// the generator and the embedder only differ in model. A process may still
// construct additional Configs by hand when mixing providers.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.IsAIEnabled(),
	}

	cfg.Embedding = EmbeddingConfig{
		Provider:          p.AIProvider,
		Model:             p.AIEmbeddingModel,
		APIKey:            p.AIAPIKey,
		BaseURL:           p.AIBaseURL,
		Dimensions:        p.AIEmbeddingDims,
		TimeoutSeconds:    p.AITimeoutSeconds,
		RequestsPerMinute: p.AIRequestsPerMin,
	}

	cfg.Generator = GeneratorConfig{
		Provider:       p.AIProvider,
		Model:          p.AIModel,
		APIKey:         p.AIAPIKey,
		BaseURL:        p.AIBaseURL,
		MaxTokens:      1024,
		Temperature:    0.7,
		TimeoutSeconds: p.AITimeoutSeconds,
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Embedding.Provider == "" {
		return errors.New("embedding provider is required")
	}
	if c.Embedding.Provider != "local" && c.Embedding.APIKey == "" {
		return errors.New("embedding API key is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}

	if c.Generator.Provider == "" {
		return errors.New("generator provider is required")
	}
	if c.Generator.Provider != "local" && c.Generator.APIKey == "" {
		return errors.New("generator API key is required")
	}

	return nil
}
