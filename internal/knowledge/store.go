// Package knowledge implements the chunk vector index on PostgreSQL +
// pgvector. It owns embedding generation for both indexing and search;
// similarity ranking and metadata filtering happen inside the database.
//
// The retrieval layer on top of this package enforces user scoping; Store
// itself exposes generic metadata filters.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/buraktaskin-zmx/sprinai/internal/document"
)

// InsertChunkParams carries one chunk row for insertion.
type InsertChunkParams struct {
	ID        string
	Content   string
	Embedding *pgvector.Vector
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
}

// SearchChunksParams carries one filtered vector search.
type SearchChunksParams struct {
	QueryEmbedding *pgvector.Vector
	FilterMetadata []byte
	MinSimilarity  float32
	ResultLimit    int32
}

// SearchChunksRow is one row returned by SearchChunks, ordered by
// descending similarity.
type SearchChunksRow struct {
	ID         string
	Content    string
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
	Similarity float32
}

// Querier defines the database operations Store depends on. The interface
// lives with its consumer; the pgx implementation is in postgres.go and
// tests substitute a mock.
type Querier interface {
	// InsertChunks inserts a batch of chunk rows.
	InsertChunks(ctx context.Context, args []InsertChunkParams) error

	// SearchChunks performs a filtered vector search.
	SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error)

	// DeleteChunksByMetadata deletes all chunks whose metadata contains the
	// given filter, returning the number of rows removed.
	DeleteChunksByMetadata(ctx context.Context, filterMetadata []byte) (int64, error)

	// CountChunks counts chunks matching the metadata filter.
	CountChunks(ctx context.Context, filterMetadata []byte) (int64, error)
}

// Store manages indexed document chunks with vector search.
// It is safe for concurrent use.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// AddBatch embeds and indexes all chunks in one call: one embedding request
// for the whole batch, one database batch insert. Either every chunk is
// handed to the database or none is.
func (s *Store) AddBatch(ctx context.Context, chunks []document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	input := make([]*ai.Document, len(chunks))
	for i, c := range chunks {
		input[i] = ai.DocumentFromText(c.Text, nil)
	}

	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   input,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return fmt.Errorf("failed to embed chunk batch: %w", err)
	}
	if len(resp.Embeddings) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(resp.Embeddings), len(chunks))
	}

	now := pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}
	params := make([]InsertChunkParams, len(chunks))
	for i, c := range chunks {
		if len(resp.Embeddings[i].Embedding) == 0 {
			return fmt.Errorf("empty embedding returned for chunk %d", i)
		}
		metadataJSON, err := json.Marshal(c.Metadata())
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		vec := pgvector.NewVector(resp.Embeddings[i].Embedding)
		params[i] = InsertChunkParams{
			ID:        uuid.New().String(),
			Content:   c.Text,
			Embedding: &vec,
			Metadata:  metadataJSON,
			CreatedAt: now,
		}
	}

	if err := s.queries.InsertChunks(ctx, params); err != nil {
		return fmt.Errorf("failed to insert chunk batch: %w", err)
	}

	s.logger.Debug("indexed chunk batch", "chunks", len(chunks))
	return nil
}

// Search performs semantic search over indexed chunks. Results are ordered
// by descending similarity; chunks below the configured minimum score are
// excluded by the database. A 10-second timeout bounds the query.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	dim := VectorDimension
	resp, err := s.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(query, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned for query")
	}

	// Filter JSON always comes from json.Marshal over a string map; the
	// jsonb containment operator with a bound parameter keeps user input
	// out of the SQL text.
	filterJSON, err := json.Marshal(cfg.filter)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filter: %w", err)
	}

	queryVec := pgvector.NewVector(resp.Embeddings[0].Embedding)
	limit := int32(cfg.topK) // #nosec G115 -- topK validated positive, small
	rows, err := s.queries.SearchChunks(queryCtx, SearchChunksParams{
		QueryEmbedding: &queryVec,
		FilterMetadata: filterJSON,
		MinSimilarity:  cfg.minScore,
		ResultLimit:    limit,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return s.rowsToResults(rows), nil
}

// DeleteByDocument removes every chunk of one document, identified by both
// owner and document ID so one user can never sweep another user's chunks.
func (s *Store) DeleteByDocument(ctx context.Context, username, documentID string) (int64, error) {
	filterJSON, err := json.Marshal(map[string]string{
		document.KeyUsername:   username,
		document.KeyDocumentID: documentID,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal delete filter: %w", err)
	}

	deleted, err := s.queries.DeleteChunksByMetadata(ctx, filterJSON)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for document %q: %w", documentID, err)
	}

	s.logger.Debug("deleted document chunks", "document_id", documentID, "chunks", deleted)
	return deleted, nil
}

// CountByUser returns the number of indexed chunks owned by username.
func (s *Store) CountByUser(ctx context.Context, username string) (int64, error) {
	filterJSON, err := json.Marshal(map[string]string{document.KeyUsername: username})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal count filter: %w", err)
	}

	count, err := s.queries.CountChunks(ctx, filterJSON)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return count, nil
}

// rowsToResults converts database rows to domain results.
func (s *Store) rowsToResults(rows []SearchChunksRow) []Result {
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]string
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			s.logger.Warn("failed to parse chunk metadata", "chunk_id", row.ID, "error", err)
			metadata = make(map[string]string)
		}

		var uploadedAt time.Time
		if ts := metadata[document.KeyUploadedAt]; ts != "" {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				uploadedAt = parsed
			}
		}

		results = append(results, Result{
			Chunk: document.Chunk{
				Text: row.Content,
				Tags: document.Tags{
					Username:         metadata[document.KeyUsername],
					DocumentID:       metadata[document.KeyDocumentID],
					OriginalFilename: metadata[document.KeyFilename],
					UploadedAt:       uploadedAt,
				},
			},
			Similarity: row.Similarity,
		})
	}
	return results
}
