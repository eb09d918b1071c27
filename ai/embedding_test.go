package ai

import (
	"context"
	"math"
	"reflect"
	"testing"
)

func TestLocalEmbeddingDeterministic(t *testing.T) {
	svc := NewLocalEmbeddingService(64)
	ctx := context.Background()

	first, err := svc.Embed(ctx, "Interests: art, design")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	second, err := svc.Embed(ctx, "Interests: art, design")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("identical text should embed to identical vectors")
	}
	if len(first) != 64 {
		t.Errorf("vector length = %d, want 64", len(first))
	}
}

func TestLocalEmbeddingUnitNorm(t *testing.T) {
	svc := NewLocalEmbeddingService(64)

	vector, err := svc.Embed(context.Background(), "python machine learning mentorship")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
		t.Errorf("vector norm = %v, want 1", math.Sqrt(norm))
	}
}

func TestLocalEmbeddingEmptyText(t *testing.T) {
	svc := NewLocalEmbeddingService(32)

	vector, err := svc.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	for i, v := range vector {
		if v != 0 {
			t.Fatalf("vector[%d] = %v, want 0 for empty text", i, v)
		}
	}
}

func TestLocalEmbedBatch(t *testing.T) {
	svc := NewLocalEmbeddingService(32)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"art", "coding"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}
	if reflect.DeepEqual(vectors[0], vectors[1]) {
		t.Error("different texts should embed to different vectors")
	}

	if _, err := svc.EmbedBatch(context.Background(), nil); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestNewEmbeddingServiceDimensionsRequired(t *testing.T) {
	if _, err := NewEmbeddingService(&EmbeddingConfig{Provider: "local", Dimensions: 0}, nil); err == nil {
		t.Error("expected error for zero dimensions")
	}
}

func TestEmbeddingProvidersCoexist(t *testing.T) {
	local, err := NewEmbeddingService(&EmbeddingConfig{Provider: "local", Dimensions: 64}, nil)
	if err != nil {
		t.Fatalf("NewEmbeddingService(local) error = %v", err)
	}
	cloud, err := NewEmbeddingService(&EmbeddingConfig{
		Provider:   "openai",
		Model:      "text-embedding-3-small",
		APIKey:     "test-key",
		Dimensions: 1536,
	}, nil)
	if err != nil {
		t.Fatalf("NewEmbeddingService(openai) error = %v", err)
	}

	if local.Dimensions() != 64 {
		t.Errorf("local Dimensions() = %d, want 64", local.Dimensions())
	}
	if cloud.Dimensions() != 1536 {
		t.Errorf("openai Dimensions() = %d, want 1536", cloud.Dimensions())
	}

	// Each instance carries its own configuration; using one must not
	// affect the other.
	vector, err := local.Embed(context.Background(), "game design")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vector) != 64 {
		t.Errorf("local vector length = %d after openai construction, want 64", len(vector))
	}
	if cloud.Dimensions() != 1536 {
		t.Errorf("openai Dimensions() = %d after local use, want 1536", cloud.Dimensions())
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "mixed case and punctuation", text: "UI Design, Python!", want: []string{"ui", "design", "python"}},
		{name: "whitespace only", text: " \t\n", want: []string{}},
		{name: "digits kept", text: "web3 dev", want: []string{"web3", "dev"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("tokenize(%q)[%d] = %q, want %q", tt.text, i, got[i], tt.want[i])
				}
			}
		})
	}
}
