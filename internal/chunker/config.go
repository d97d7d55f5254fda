package chunker

import "fmt"

// Strategy tags accepted by New.
const (
	StrategyMathematical = "mathematical"
	StrategyRecursive    = "recursive"
)

// Config controls chunking behavior. Zero fields take their DefaultConfig
// value, except ChunkOverlap: zero means no overlap and only a negative
// overlap is clamped to 0.
type Config struct {
	Strategy     string   `json:"strategy"`
	ChunkSize    int      `json:"chunk_size"`    // Target fragment size in characters.
	ChunkOverlap int      `json:"chunk_overlap"` // Characters repeated at the start of the next fragment.
	MinLength    int      `json:"min_length"`    // Fragments shorter than this are never embedded.
	BatchSize    int      `json:"batch_size"`    // Texts per embedding call.
	Noise        []string `json:"noise"`         // Watermark literals; nil means DefaultNoise.

	// SkipFrontMatter drops fragments that precede the first chapter when a
	// table of contents is supplied.
	SkipFrontMatter bool `json:"skip_front_matter"`
}

// DefaultConfig returns the settings tuned on scanned secondary school textbooks.
func DefaultConfig() Config {
	return Config{
		Strategy:     StrategyMathematical,
		ChunkSize:    800,
		ChunkOverlap: 134,
		MinLength:    10,
		BatchSize:    16,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.MinLength <= 0 {
		c.MinLength = d.MinLength
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Noise == nil {
		c.Noise = DefaultNoise
	}
	return c
}

// WithChunkSize sets the fragment size. An overlap that no longer fits below
// the new size is rescaled to the default overlap/size ratio.
func (c Config) WithChunkSize(size int) Config {
	c.ChunkSize = size
	if size > 0 && c.ChunkOverlap >= size {
		d := DefaultConfig()
		c.ChunkOverlap = size * d.ChunkOverlap / d.ChunkSize
	}
	return c
}

func (c Config) String() string {
	return fmt.Sprintf("strategy=%s size=%d overlap=%d min_length=%d batch_size=%d",
		c.Strategy, c.ChunkSize, c.ChunkOverlap, c.MinLength, c.BatchSize)
}
