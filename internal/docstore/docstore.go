// Package docstore persists per-user document metadata in PostgreSQL.
// Chunk content and embeddings live in the knowledge package; this store
// only tracks what a user uploaded and when.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/buraktaskin-zmx/sprinai/internal/document"
)

// ErrNotFound is returned when a document does not exist for the given
// user. Ownership mismatches are indistinguishable from absence.
var ErrNotFound = errors.New("document not found")

// Querier abstracts row access for testability. PGQuerier is the
// production implementation.
type Querier interface {
	InsertDocument(ctx context.Context, doc document.UserDocument) error
	GetDocument(ctx context.Context, username, documentID string) (document.UserDocument, error)
	ListDocuments(ctx context.Context, username string) ([]document.UserDocument, error)
	DeleteDocument(ctx context.Context, username, documentID string) (int64, error)
}

// Store provides user-scoped CRUD over uploaded document records.
type Store struct {
	queries Querier
	logger  *slog.Logger
}

// New creates a Store backed by querier.
func New(querier Querier, logger *slog.Logger) *Store {
	return &Store{queries: querier, logger: logger}
}

// Save persists a document record.
func (s *Store) Save(ctx context.Context, doc document.UserDocument) error {
	if doc.Username == "" || doc.DocumentID == "" {
		return errors.New("document record requires username and document id")
	}
	if err := s.queries.InsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to save document record: %w", err)
	}
	s.logger.Debug("saved document record",
		"username", doc.Username,
		"document_id", doc.DocumentID,
		"filename", doc.OriginalFilename)
	return nil
}

// Get returns the document owned by username, or ErrNotFound.
func (s *Store) Get(ctx context.Context, username, documentID string) (document.UserDocument, error) {
	doc, err := s.queries.GetDocument(ctx, username, documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return document.UserDocument{}, ErrNotFound
		}
		return document.UserDocument{}, fmt.Errorf("failed to load document record: %w", err)
	}
	return doc, nil
}

// ListByUser returns all documents owned by username, newest first.
func (s *Store) ListByUser(ctx context.Context, username string) ([]document.UserDocument, error) {
	docs, err := s.queries.ListDocuments(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Delete removes the document owned by username. Deleting a document
// that does not exist, or that belongs to someone else, returns
// ErrNotFound.
func (s *Store) Delete(ctx context.Context, username, documentID string) error {
	affected, err := s.queries.DeleteDocument(ctx, username, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	s.logger.Debug("deleted document record", "username", username, "document_id", documentID)
	return nil
}
