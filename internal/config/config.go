package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/dgallion1/bookchunk/internal/chunker"
	"github.com/dgallion1/bookchunk/internal/embed"
)

// Config is the service configuration. Each field is set from the
// environment variable whose lowercased name is its koanf tag.
type Config struct {
	Port string `koanf:"port"`

	// Auth
	APIKey string `koanf:"bookchunk_api_key"`

	// Claude table of contents extraction
	AnthropicAPIKey string `koanf:"anthropic_api_key"`
	AnthropicModel  string `koanf:"anthropic_model"`

	// Embedding backend
	EmbedProvider  string        `koanf:"embed_provider"`
	EmbedURL       string        `koanf:"embed_url"`
	EmbedModel     string        `koanf:"embed_model"`
	EmbedAPIKey    string        `koanf:"embed_api_key"`
	EmbedTimeout   time.Duration `koanf:"embed_timeout"`
	EmbedDimension int           `koanf:"embed_dimension"`

	// Worker pool
	WorkerCount  int `koanf:"worker_count"`
	MaxQueueSize int `koanf:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// Chunking
	ChunkStrategy   string   `koanf:"chunk_strategy"`
	ChunkSize       int      `koanf:"chunk_size"`
	ChunkOverlap    int      `koanf:"chunk_overlap"`
	MinChunkLength  int      `koanf:"min_chunk_length"`
	EmbedBatchSize  int      `koanf:"embed_batch_size"`
	NoiseLiterals   []string `koanf:"noise_literals"` // "|"-separated in the environment.
	SkipFrontMatter bool     `koanf:"skip_front_matter"`
	SortTOC         bool     `koanf:"sort_toc"`

	// Persistence and mirrors
	DatabasePath    string `koanf:"database_path"`
	PathstoreURL    string `koanf:"pathstore_url"`
	PathstoreAPIKey string `koanf:"pathstore_api_key"`
	OutputDir       string `koanf:"output_dir"`

	// Job state
	JobTTL time.Duration `koanf:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `koanf:"pdf_fallback_pdftotext"`
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	cc := chunker.DefaultConfig()
	return Config{
		Port:           "8090",
		AnthropicModel: "claude-sonnet-4-5-20250929",

		EmbedProvider:  embed.ProviderOllama,
		EmbedURL:       "http://localhost:11434",
		EmbedModel:     "nomic-embed-text",
		EmbedTimeout:   60 * time.Second,
		EmbedDimension: 768,

		WorkerCount:  4,
		MaxQueueSize: 100,

		MaxUploadBytes: 209715200, // 200MB; scanned textbooks are large.

		ChunkStrategy:  cc.Strategy,
		ChunkSize:      cc.ChunkSize,
		ChunkOverlap:   cc.ChunkOverlap,
		MinChunkLength: cc.MinLength,
		EmbedBatchSize: cc.BatchSize,
		NoiseLiterals:  chunker.DefaultNoise,

		DatabasePath: "bookchunk.db",

		JobTTL: 1 * time.Hour,

		PDFFallbackPdftotext: true,
	}
}

// Load layers environment variables over Default.
func Load() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	known := make(map[string]bool)
	for _, key := range k.Keys() {
		known[key] = true
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: "",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(key)
			if !known[key] {
				return "", nil
			}
			return key, value
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc("|"),
			),
		},
	}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the service cannot run without.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("BOOKCHUNK_API_KEY is required")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("MAX_QUEUE_SIZE must be positive, got %d", c.MaxQueueSize)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.PathstoreURL != "" && c.PathstoreAPIKey == "" {
		return fmt.Errorf("PATHSTORE_API_KEY is required when PATHSTORE_URL is set")
	}
	if _, err := embed.New(c.EmbedConfig()); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	return nil
}

// ChunkerConfig projects the chunking settings.
func (c Config) ChunkerConfig() chunker.Config {
	return chunker.Config{
		Strategy:        c.ChunkStrategy,
		ChunkSize:       c.ChunkSize,
		ChunkOverlap:    c.ChunkOverlap,
		MinLength:       c.MinChunkLength,
		BatchSize:       c.EmbedBatchSize,
		Noise:           c.NoiseLiterals,
		SkipFrontMatter: c.SkipFrontMatter,
	}
}

// EmbedConfig projects the embedding backend settings.
func (c Config) EmbedConfig() embed.Config {
	return embed.Config{
		Provider:  c.EmbedProvider,
		URL:       c.EmbedURL,
		Model:     c.EmbedModel,
		APIKey:    c.EmbedAPIKey,
		Timeout:   c.EmbedTimeout,
		Dimension: c.EmbedDimension,
	}
}
