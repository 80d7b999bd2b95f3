// Package document defines the core document model shared by ingestion,
// indexing and retrieval: uploaded document metadata, indexed chunks, and
// the splitter that turns extracted text into bounded chunks.
package document

import "time"

// Metadata keys used for chunk tagging in the vector index.
// Every chunk carries all four; retrieval filters on KeyUsername.
const (
	KeyUsername   = "username"
	KeyDocumentID = "document_id"
	KeyFilename   = "original_filename"
	KeyUploadedAt = "uploaded_at"
)

// UserDocument is the metadata record of one uploaded document.
// It is created on successful upload and immutable afterwards.
type UserDocument struct {
	DocumentID       string    `json:"documentId"`
	Username         string    `json:"username"`
	OriginalFilename string    `json:"originalFilename"`
	ContentType      string    `json:"contentType"`
	FileSize         int64     `json:"fileSize"`
	UploadedAt       time.Time `json:"uploadedAt"`
}

// Tags is the identity metadata inherited by every chunk of a document.
type Tags struct {
	Username         string
	DocumentID       string
	OriginalFilename string
	UploadedAt       time.Time
}

// Chunk is one bounded segment of extracted document text.
// Chunks are immutable once indexed; they are only superseded by re-upload
// or removed together with their source document.
type Chunk struct {
	Text string
	Tags Tags
}

// Metadata renders the chunk tags as the flat string map stored alongside
// the embedding in the vector index.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		KeyUsername:   c.Tags.Username,
		KeyDocumentID: c.Tags.DocumentID,
		KeyFilename:   c.Tags.OriginalFilename,
		KeyUploadedAt: c.Tags.UploadedAt.UTC().Format(time.RFC3339),
	}
}
