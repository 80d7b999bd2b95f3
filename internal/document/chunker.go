package document

import "strings"

// Splitter defaults. The values match the token splitter settings the
// ingestion pipeline has always used: 200-token chunks, at most 400 chunks
// per document.
const (
	DefaultChunkTokenSize = 200
	DefaultMaxChunks      = 400
)

// SplitConfig bounds the work done per document during chunking.
type SplitConfig struct {
	// ChunkTokenSize is the maximum number of tokens per chunk.
	ChunkTokenSize int

	// MaxChunks caps the number of chunks emitted for one document.
	// Content beyond the cap is dropped; Split reports the drop so the
	// caller can log it.
	MaxChunks int
}

func (c SplitConfig) withDefaults() SplitConfig {
	if c.ChunkTokenSize <= 0 {
		c.ChunkTokenSize = DefaultChunkTokenSize
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = DefaultMaxChunks
	}
	return c
}

// Split divides text into contiguous, non-overlapping chunks of at most
// cfg.ChunkTokenSize tokens each, where a token is a whitespace-delimited
// word. Every chunk inherits tags unmodified.
//
// Split is deterministic: identical input and config always produce
// identical chunk boundaries. The returned bool is true when the document
// exceeded cfg.MaxChunks and trailing content was dropped.
func Split(text string, tags Tags, cfg SplitConfig) ([]Chunk, bool) {
	cfg = cfg.withDefaults()

	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, false
	}

	chunkCount := (len(tokens) + cfg.ChunkTokenSize - 1) / cfg.ChunkTokenSize
	truncated := false
	if chunkCount > cfg.MaxChunks {
		chunkCount = cfg.MaxChunks
		truncated = true
	}

	chunks := make([]Chunk, 0, chunkCount)
	for i := 0; i < chunkCount; i++ {
		start := i * cfg.ChunkTokenSize
		end := start + cfg.ChunkTokenSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, Chunk{
			Text: strings.Join(tokens[start:end], " "),
			Tags: tags,
		})
	}

	return chunks, truncated
}

// TokenCount returns the number of whitespace-delimited tokens in text.
// It uses the same tokenization as Split so callers can reason about
// chunk counts before splitting.
func TokenCount(text string) int {
	return len(strings.Fields(text))
}
