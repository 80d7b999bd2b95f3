// Package ingest orchestrates document upload: extraction, tagging,
// chunking and indexing, plus the owner-scoped delete and list paths.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/buraktaskin-zmx/sprinai/internal/docstore"
	"github.com/buraktaskin-zmx/sprinai/internal/document"
)

// Sentinel errors callers can test with errors.Is.
var (
	// ErrExtraction means the uploaded bytes could not be turned into text.
	ErrExtraction = errors.New("text extraction failed")
	// ErrStorage means metadata persistence failed.
	ErrStorage = errors.New("document storage failed")
	// ErrNotFound means no document matches both username and id.
	ErrNotFound = errors.New("document not found")
)

// Extractor turns uploaded bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename, contentType string) (string, error)
}

// MetadataStore persists UserDocument records.
type MetadataStore interface {
	Save(ctx context.Context, doc document.UserDocument) error
	Get(ctx context.Context, username, documentID string) (document.UserDocument, error)
	ListByUser(ctx context.Context, username string) ([]document.UserDocument, error)
	Delete(ctx context.Context, username, documentID string) error
}

// ChunkIndex receives chunk batches, sweeps them on delete and reports
// per-user totals.
type ChunkIndex interface {
	AddBatch(ctx context.Context, chunks []document.Chunk) error
	DeleteByDocument(ctx context.Context, username, documentID string) (int64, error)
	CountByUser(ctx context.Context, username string) (int64, error)
}

// Pipeline runs one document through extraction, chunking and indexing.
type Pipeline struct {
	extractor Extractor
	metadata  MetadataStore
	index     ChunkIndex
	splitCfg  document.SplitConfig
	logger    *slog.Logger
}

// New creates a Pipeline.
func New(extractor Extractor, metadata MetadataStore, index ChunkIndex, splitCfg document.SplitConfig, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		metadata:  metadata,
		index:     index,
		splitCfg:  splitCfg,
		logger:    logger,
	}
}

// Upload ingests one document and returns its new id. Extraction runs
// before anything is persisted, so an unreadable file leaves no trace.
// If indexing fails after the metadata write, the error is surfaced and
// the metadata row remains without searchable content; there is no
// two-phase commit across the two stores.
func (p *Pipeline) Upload(ctx context.Context, username string, data []byte, filename, contentType string) (string, error) {
	if username == "" {
		return "", errors.New("upload requires a username")
	}

	documentID := uuid.New().String()

	text, err := p.extractor.Extract(ctx, data, filename, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	doc := document.UserDocument{
		DocumentID:       documentID,
		Username:         username,
		OriginalFilename: filename,
		ContentType:      contentType,
		FileSize:         int64(len(data)),
		UploadedAt:       time.Now().UTC(),
	}
	if err := p.metadata.Save(ctx, doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	tags := document.Tags{
		Username:         username,
		DocumentID:       documentID,
		OriginalFilename: filename,
		UploadedAt:       doc.UploadedAt,
	}
	chunks, truncated := document.Split(text, tags, p.splitCfg)
	if truncated {
		p.logger.Warn("document truncated at chunk cap",
			"username", username,
			"document_id", documentID,
			"max_chunks", p.splitCfg.MaxChunks)
	}

	if err := p.index.AddBatch(ctx, chunks); err != nil {
		p.logger.Error("indexing failed after metadata write; document has no searchable content",
			"username", username,
			"document_id", documentID,
			"error", err)
		return "", fmt.Errorf("failed to index document %s: %w", documentID, err)
	}

	p.logger.Info("document ingested",
		"username", username,
		"document_id", documentID,
		"filename", filename,
		"chunks", len(chunks))
	return documentID, nil
}

// Delete removes a document owned by username. Another user's document
// is reported as not found, never as a permission error. The index
// sweep is best-effort: a failure there is logged but the delete still
// succeeds.
func (p *Pipeline) Delete(ctx context.Context, username, documentID string) error {
	doc, err := p.metadata.Get(ctx, username, documentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, documentID)
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := p.metadata.Delete(ctx, username, documentID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, documentID)
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	swept, err := p.index.DeleteByDocument(ctx, username, documentID)
	if err != nil {
		p.logger.Warn("index sweep failed; stale vectors remain",
			"username", username,
			"document_id", documentID,
			"error", err)
		return nil
	}

	p.logger.Info("document deleted",
		"username", username,
		"document_id", documentID,
		"filename", doc.OriginalFilename,
		"chunks_swept", swept)
	return nil
}

// ListDocuments returns the user's documents, newest first.
func (p *Pipeline) ListDocuments(ctx context.Context, username string) ([]document.UserDocument, error) {
	docs, err := p.metadata.ListByUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return docs, nil
}

// CountChunks returns how many indexed chunks the user currently has.
func (p *Pipeline) CountChunks(ctx context.Context, username string) (int64, error) {
	count, err := p.index.CountByUser(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("chunk count failed: %w", err)
	}
	return count, nil
}
