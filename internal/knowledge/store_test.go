package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/buraktaskin-zmx/sprinai/internal/document"
	"github.com/buraktaskin-zmx/sprinai/internal/log"
)

// ============================================================================
// Mocks
// ============================================================================

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	embedErr    error
	returnEmpty bool
	perDocDims  int
	callCount   int
	lastInputs  []string
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	m.lastInputs = nil
	for _, doc := range req.Input {
		if len(doc.Content) > 0 {
			m.lastInputs = append(m.lastInputs, doc.Content[0].Text)
		}
	}

	if m.embedErr != nil {
		return nil, m.embedErr
	}

	dims := m.perDocDims
	if dims == 0 {
		dims = 3
	}

	resp := &ai.EmbedResponse{}
	for range req.Input {
		vec := make([]float32, dims)
		if m.returnEmpty {
			vec = nil
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	insertErr error
	searchErr error
	deleteErr error
	countErr  error

	searchResults []SearchChunksRow
	deleteCount   int64
	countResult   int64

	insertCalls  int
	inserted     []InsertChunkParams
	searchCalls  int
	lastSearch   SearchChunksParams
	deleteCalls  int
	lastDeleteMD []byte
}

func (m *mockQuerier) InsertChunks(ctx context.Context, args []InsertChunkParams) error {
	m.insertCalls++
	m.inserted = append(m.inserted, args...)
	return m.insertErr
}

func (m *mockQuerier) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error) {
	m.searchCalls++
	m.lastSearch = arg
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResults, nil
}

func (m *mockQuerier) DeleteChunksByMetadata(ctx context.Context, filterMetadata []byte) (int64, error) {
	m.deleteCalls++
	m.lastDeleteMD = filterMetadata
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	return m.deleteCount, nil
}

func (m *mockQuerier) CountChunks(ctx context.Context, filterMetadata []byte) (int64, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.countResult, nil
}

func testChunks(username string, n int) []document.Chunk {
	tags := document.Tags{
		Username:         username,
		DocumentID:       "doc-1",
		OriginalFilename: "f.pdf",
		UploadedAt:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	chunks := make([]document.Chunk, n)
	for i := range chunks {
		chunks[i] = document.Chunk{Text: "chunk text", Tags: tags}
	}
	return chunks
}

// ============================================================================
// AddBatch
// ============================================================================

func TestAddBatchIndexesAllChunks(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{}
	store := New(querier, embedder, log.NewNop())

	err := store.AddBatch(context.Background(), testChunks("alice", 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if embedder.callCount != 1 {
		t.Errorf("expected one batched embed call, got %d", embedder.callCount)
	}
	if querier.insertCalls != 1 {
		t.Errorf("expected one batch insert, got %d", querier.insertCalls)
	}
	if len(querier.inserted) != 3 {
		t.Fatalf("expected 3 inserted rows, got %d", len(querier.inserted))
	}
	for i, row := range querier.inserted {
		var md map[string]string
		if err := json.Unmarshal(row.Metadata, &md); err != nil {
			t.Fatalf("row %d metadata invalid: %v", i, err)
		}
		if md[document.KeyUsername] != "alice" {
			t.Errorf("row %d username = %q, want alice", i, md[document.KeyUsername])
		}
		if row.ID == "" {
			t.Errorf("row %d missing id", i)
		}
	}
}

func TestAddBatchEmptyIsNoop(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{}
	store := New(querier, embedder, log.NewNop())

	if err := store.AddBatch(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder.callCount != 0 || querier.insertCalls != 0 {
		t.Error("empty batch must not touch embedder or database")
	}
}

func TestAddBatchEmbedderError(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{embedErr: errors.New("quota exceeded")}
	store := New(querier, embedder, log.NewNop())

	err := store.AddBatch(context.Background(), testChunks("alice", 2))
	if err == nil {
		t.Fatal("expected error")
	}
	if querier.insertCalls != 0 {
		t.Error("no rows may be inserted when embedding fails")
	}
}

func TestAddBatchEmptyEmbeddingRejected(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{returnEmpty: true}
	store := New(querier, embedder, log.NewNop())

	if err := store.AddBatch(context.Background(), testChunks("alice", 1)); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

// ============================================================================
// Search
// ============================================================================

func TestSearchForwardsOptions(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{}
	store := New(querier, embedder, log.NewNop())

	_, err := store.Search(context.Background(), "photosynthesis",
		WithTopK(15),
		WithMinScore(0.4),
		WithFilter(document.KeyUsername, "alice"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if querier.lastSearch.ResultLimit != 15 {
		t.Errorf("limit = %d, want 15", querier.lastSearch.ResultLimit)
	}
	if querier.lastSearch.MinSimilarity != 0.4 {
		t.Errorf("min similarity = %v, want 0.4", querier.lastSearch.MinSimilarity)
	}

	var filter map[string]string
	if err := json.Unmarshal(querier.lastSearch.FilterMetadata, &filter); err != nil {
		t.Fatalf("filter not valid JSON: %v", err)
	}
	if filter[document.KeyUsername] != "alice" {
		t.Errorf("filter username = %q, want alice", filter[document.KeyUsername])
	}
}

func TestSearchConvertsRows(t *testing.T) {
	md, _ := json.Marshal(map[string]string{
		document.KeyUsername:   "alice",
		document.KeyDocumentID: "doc-9",
		document.KeyFilename:   "bio.pdf",
		document.KeyUploadedAt: "2025-06-01T12:00:00Z",
	})
	querier := &mockQuerier{searchResults: []SearchChunksRow{
		{ID: "c1", Content: "mitochondria", Metadata: md, Similarity: 0.91},
	}}
	store := New(querier, &mockEmbedder{}, log.NewNop())

	results, err := store.Search(context.Background(), "cells", WithTopK(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Chunk.Text != "mitochondria" {
		t.Errorf("text = %q", r.Chunk.Text)
	}
	if r.Chunk.Tags.Username != "alice" || r.Chunk.Tags.DocumentID != "doc-9" {
		t.Errorf("tags not restored: %+v", r.Chunk.Tags)
	}
	if r.Similarity != 0.91 {
		t.Errorf("similarity = %v", r.Similarity)
	}
	if r.Chunk.Tags.UploadedAt.IsZero() {
		t.Error("uploaded_at not parsed")
	}
}

func TestSearchEmbedderError(t *testing.T) {
	store := New(&mockQuerier{}, &mockEmbedder{embedErr: errors.New("boom")}, log.NewNop())

	if _, err := store.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
}

// ============================================================================
// DeleteByDocument / CountByUser
// ============================================================================

func TestDeleteByDocumentScopesToOwner(t *testing.T) {
	querier := &mockQuerier{deleteCount: 7}
	store := New(querier, &mockEmbedder{}, log.NewNop())

	n, err := store.DeleteByDocument(context.Background(), "alice", "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("deleted = %d, want 7", n)
	}

	var filter map[string]string
	if err := json.Unmarshal(querier.lastDeleteMD, &filter); err != nil {
		t.Fatalf("delete filter not valid JSON: %v", err)
	}
	if filter[document.KeyUsername] != "alice" || filter[document.KeyDocumentID] != "doc-1" {
		t.Errorf("delete filter must include owner and document: %v", filter)
	}
}

func TestCountByUser(t *testing.T) {
	querier := &mockQuerier{countResult: 42}
	store := New(querier, &mockEmbedder{}, log.NewNop())

	n, err := store.CountByUser(context.Background(), "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 42 {
		t.Errorf("count = %d, want 42", n)
	}
}
