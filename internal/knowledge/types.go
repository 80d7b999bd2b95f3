package knowledge

import (
	"time"

	"github.com/buraktaskin-zmx/sprinai/internal/document"
)

// VectorDimension is the embedding size stored in the document_chunks table.
// gemini-embedding-001 emits 3072 dimensions by default; we request
// truncation to 768 via OutputDimensionality to match the pgvector schema.
const VectorDimension int32 = 768

// Result is one search hit with its cosine similarity score.
type Result struct {
	Chunk      document.Chunk
	Similarity float32
}

// SearchOption configures Search using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK     int
	minScore float32
	filter   map[string]string
	timeout  time.Duration
}

// WithTopK caps the number of results. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithMinScore excludes results whose similarity is below score.
func WithMinScore(score float32) SearchOption {
	return func(c *searchConfig) {
		c.minScore = score
	}
}

// WithFilter restricts results to chunks whose metadata contains key=value.
// Multiple filters combine with AND.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
