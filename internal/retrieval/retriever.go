// Package retrieval provides user-scoped semantic search over indexed
// chunks and pattern-based masking of sensitive content before chunk
// text reaches a prompt.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/buraktaskin-zmx/sprinai/internal/document"
	"github.com/buraktaskin-zmx/sprinai/internal/knowledge"
)

// ErrMissingUsername is returned when a query carries no username.
// Scoping is never defaulted; an unscoped query is a programming error.
var ErrMissingUsername = errors.New("retrieval query requires a username")

// Index is the similarity search the retriever delegates to.
type Index interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Query describes one scoped retrieval. Username is mandatory. TopK > 0
// overrides the retriever default; a non-nil MinScore overrides the
// default threshold, so an explicit 0.0 (no threshold) is expressible.
type Query struct {
	Username string
	Text     string
	TopK     int
	MinScore *float32
}

// Retriever issues similarity searches constrained to a single user's
// documents.
type Retriever struct {
	index    Index
	topK     int
	minScore float32
	logger   *slog.Logger
}

// New creates a Retriever with the given default result count and
// minimum similarity.
func New(index Index, topK int, minScore float32, logger *slog.Logger) *Retriever {
	return &Retriever{index: index, topK: topK, minScore: minScore, logger: logger}
}

// Retrieve runs the search scoped to q.Username. Results arrive ordered
// by descending similarity; chunks below the threshold are excluded.
func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]document.Chunk, error) {
	if q.Username == "" {
		return nil, ErrMissingUsername
	}

	topK := q.TopK
	if topK <= 0 {
		topK = r.topK
	}
	minScore := r.minScore
	if q.MinScore != nil {
		minScore = *q.MinScore
	}

	results, err := r.index.Search(ctx, q.Text,
		knowledge.WithFilter(document.KeyUsername, q.Username),
		knowledge.WithTopK(topK),
		knowledge.WithMinScore(minScore),
	)
	if err != nil {
		return nil, fmt.Errorf("scoped search failed: %w", err)
	}

	chunks := make([]document.Chunk, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, res.Chunk)
	}

	r.logger.Debug("retrieved chunks",
		"username", q.Username,
		"top_k", topK,
		"min_score", minScore,
		"count", len(chunks))
	return chunks, nil
}
