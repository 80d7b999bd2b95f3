package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQL statements for the document_chunks table (see db/migrations).
// The <=> operator is pgvector cosine distance; similarity = 1 - distance.
const (
	insertChunkSQL = `
		INSERT INTO document_chunks (id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	searchChunksSQL = `
		SELECT id, content, metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM document_chunks
		WHERE metadata @> $2
		  AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1
		LIMIT $4`

	deleteChunksSQL = `DELETE FROM document_chunks WHERE metadata @> $1`

	countChunksSQL = `SELECT count(*) FROM document_chunks WHERE metadata @> $1`
)

// PGQuerier implements Querier on a pgx connection pool.
// pgvector types must be registered on the pool's connections; see
// app wiring (pgxvector.RegisterTypes in AfterConnect).
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier creates a PGQuerier over pool.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

// InsertChunks inserts all rows in one pipelined batch.
func (q *PGQuerier) InsertChunks(ctx context.Context, args []InsertChunkParams) error {
	if len(args) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, arg := range args {
		batch.Queue(insertChunkSQL, arg.ID, arg.Content, arg.Embedding, arg.Metadata, arg.CreatedAt)
	}

	results := q.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := range args {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert chunk %d of %d: %w", i+1, len(args), err)
		}
	}
	return nil
}

// SearchChunks runs the filtered vector search.
func (q *PGQuerier) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error) {
	rows, err := q.pool.Query(ctx, searchChunksSQL,
		arg.QueryEmbedding, arg.FilterMetadata, arg.MinSimilarity, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchChunksRow
	for rows.Next() {
		var r SearchChunksRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteChunksByMetadata deletes chunks matching the jsonb filter.
func (q *PGQuerier) DeleteChunksByMetadata(ctx context.Context, filterMetadata []byte) (int64, error) {
	tag, err := q.pool.Exec(ctx, deleteChunksSQL, filterMetadata)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountChunks counts chunks matching the jsonb filter.
func (q *PGQuerier) CountChunks(ctx context.Context, filterMetadata []byte) (int64, error) {
	var count int64
	if err := q.pool.QueryRow(ctx, countChunksSQL, filterMetadata).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
