package docstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buraktaskin-zmx/sprinai/internal/document"
)

// SQL statements for the user_documents table (see db/migrations).
const (
	insertDocumentSQL = `
		INSERT INTO user_documents (document_id, username, original_filename, content_type, file_size, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getDocumentSQL = `
		SELECT document_id, username, original_filename, content_type, file_size, uploaded_at
		FROM user_documents
		WHERE username = $1 AND document_id = $2`

	listDocumentsSQL = `
		SELECT document_id, username, original_filename, content_type, file_size, uploaded_at
		FROM user_documents
		WHERE username = $1
		ORDER BY uploaded_at DESC`

	deleteDocumentSQL = `DELETE FROM user_documents WHERE username = $1 AND document_id = $2`
)

// PGQuerier implements Querier on a pgx connection pool.
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier creates a PGQuerier over pool.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

func (q *PGQuerier) InsertDocument(ctx context.Context, doc document.UserDocument) error {
	uploadedAt := pgtype.Timestamptz{Time: doc.UploadedAt.UTC(), Valid: true}
	_, err := q.pool.Exec(ctx, insertDocumentSQL,
		doc.DocumentID, doc.Username, doc.OriginalFilename,
		doc.ContentType, doc.FileSize, uploadedAt)
	return err
}

func (q *PGQuerier) GetDocument(ctx context.Context, username, documentID string) (document.UserDocument, error) {
	var (
		doc        document.UserDocument
		uploadedAt pgtype.Timestamptz
	)
	err := q.pool.QueryRow(ctx, getDocumentSQL, username, documentID).Scan(
		&doc.DocumentID, &doc.Username, &doc.OriginalFilename,
		&doc.ContentType, &doc.FileSize, &uploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return document.UserDocument{}, ErrNotFound
		}
		return document.UserDocument{}, err
	}
	doc.UploadedAt = uploadedAt.Time
	return doc, nil
}

func (q *PGQuerier) ListDocuments(ctx context.Context, username string) ([]document.UserDocument, error) {
	rows, err := q.pool.Query(ctx, listDocumentsSQL, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []document.UserDocument
	for rows.Next() {
		var (
			doc        document.UserDocument
			uploadedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&doc.DocumentID, &doc.Username, &doc.OriginalFilename,
			&doc.ContentType, &doc.FileSize, &uploadedAt); err != nil {
			return nil, err
		}
		doc.UploadedAt = uploadedAt.Time
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (q *PGQuerier) DeleteDocument(ctx context.Context, username, documentID string) (int64, error) {
	tag, err := q.pool.Exec(ctx, deleteDocumentSQL, username, documentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
