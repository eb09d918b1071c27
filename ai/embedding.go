package ai

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lightpath-ai/lightpath/ai/metrics"
)

// EmbeddingService is the vector embedding service interface.
type EmbeddingService interface {
	// Embed generates a vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}

// NewEmbeddingService creates the embedding provider named by cfg.
// The "local" provider needs no network or key; anything else is treated
// as an OpenAI-compatible endpoint. A nil exporter disables provider
// call metrics.
func NewEmbeddingService(cfg *EmbeddingConfig, exporter *metrics.PrometheusExporter) (EmbeddingService, error) {
	if cfg.Dimensions <= 0 {
		return nil, errors.New("embedding dimensions must be positive")
	}
	if cfg.Provider == "local" {
		return NewLocalEmbeddingService(cfg.Dimensions), nil
	}
	return newOpenAIEmbeddingService(cfg, exporter), nil
}

type openaiEmbeddingService struct {
	client     *openai.Client
	provider   string
	model      string
	dimensions int
	timeout    time.Duration
	limiter    *rate.Limiter
	metrics    *metrics.PrometheusExporter
}

func newOpenAIEmbeddingService(cfg *EmbeddingConfig, exporter *metrics.PrometheusExporter) *openaiEmbeddingService {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	// Client-side rate limit; the provider's own limiter still applies.
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &openaiEmbeddingService{
		client:     newOpenAIClient(cfg.APIKey, cfg.BaseURL),
		provider:   cfg.Provider,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    time.Duration(timeout) * time.Second,
		limiter:    limiter,
		metrics:    exporter,
	}
}

func (s *openaiEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (s *openaiEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, newProviderError(s.provider, "embed", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(s.model),
		Dimensions: s.dimensions,
	}

	start := time.Now()
	resp, err := s.client.CreateEmbeddings(ctx, req)
	if s.metrics != nil {
		s.metrics.RecordProviderCall(s.provider, "embed", time.Since(start), err == nil)
	}
	if err != nil {
		return nil, newProviderError(s.provider, "embed", err)
	}
	if s.metrics != nil && resp.Usage.PromptTokens > 0 {
		s.metrics.RecordProviderTokens(s.model, "prompt", resp.Usage.PromptTokens)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = data.Embedding
	}

	return vectors, nil
}

func (s *openaiEmbeddingService) Dimensions() int {
	return s.dimensions
}

// localEmbeddingService produces deterministic token-hash vectors. The
// vectors carry no semantics beyond token overlap, which is enough for
// offline development and for tests that need stable geometry.
type localEmbeddingService struct {
	dimensions int
}

// NewLocalEmbeddingService creates the deterministic offline provider.
func NewLocalEmbeddingService(dimensions int) EmbeddingService {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &localEmbeddingService{dimensions: dimensions}
}

func (s *localEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make([]float32, s.dimensions)
	for _, token := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		idx := int(sum % uint64(s.dimensions))
		if (sum>>32)&1 == 0 {
			vector[idx] += 1
		} else {
			vector[idx] -= 1
		}
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}

	return vector, nil
}

func (s *localEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (s *localEmbeddingService) Dimensions() int {
	return s.dimensions
}

func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, text)
	return strings.Fields(cleaned)
}
