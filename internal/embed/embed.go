// Package embed provides the embedding clients handed to the chunker.
// Every client is safe for concurrent use.
package embed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Embedder turns texts into vectors, one per input and in input order.
// A nil vector marks a single text the backend could not embed; an error
// fails the whole batch.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

func (f EmbedderFunc) Name() string { return "func" }

// Providers accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderNoop   = "noop"
)

// Config selects and configures an embedding backend.
type Config struct {
	Provider  string
	URL       string
	Model     string
	APIKey    string
	Timeout   time.Duration
	Dimension int // Vector size for the noop provider.
}

// New returns the client for cfg.Provider.
func New(cfg Config) (Embedder, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	url := strings.TrimRight(cfg.URL, "/")

	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		if url == "" {
			url = "http://localhost:11434"
		}
		if cfg.Model == "" {
			return nil, fmt.Errorf("ollama embedder: model is required")
		}
		return &OllamaClient{url: url, model: cfg.Model, httpClient: httpClient}, nil
	case ProviderOpenAI:
		if url == "" {
			url = "https://api.openai.com"
		}
		if cfg.Model == "" {
			return nil, fmt.Errorf("openai embedder: model is required")
		}
		return &OpenAIClient{url: url, model: cfg.Model, apiKey: cfg.APIKey, httpClient: httpClient}, nil
	case ProviderNoop:
		dim := cfg.Dimension
		if dim <= 0 {
			dim = 8
		}
		return &Noop{Dimension: dim}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// StatusError is a non-2xx answer from an embedding backend.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
}
