package cmd

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/buraktaskin-zmx/sprinai/internal/app"
	"github.com/buraktaskin-zmx/sprinai/internal/ingest"
)

// runUpload ingests one file for a user and prints the new document ID.
func runUpload(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: sprinai upload <username> <file>")
	}
	username, path := args[0], args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	filename := filepath.Base(path)
	documentID, err := a.Pipeline.Upload(ctx, username, data, filename, guessContentType(filename))
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	fmt.Printf("Uploaded %s\n", filename)
	fmt.Printf("Document ID: %s\n", documentID)
	return nil
}

// runDelete removes one document and its indexed chunks.
func runDelete(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: sprinai delete <username> <document-id>")
	}
	username, documentID := args[0], args[1]

	if err := a.Pipeline.Delete(ctx, username, documentID); err != nil {
		if errors.Is(err, ingest.ErrNotFound) {
			return fmt.Errorf("no document %s for user %s", documentID, username)
		}
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("Deleted document %s\n", documentID)
	return nil
}

// runList prints a user's documents, newest first.
func runList(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: sprinai list <username>")
	}

	docs, err := a.Pipeline.ListDocuments(ctx, args[0])
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No documents uploaded yet.")
		return nil
	}

	for _, d := range docs {
		fmt.Printf("%s  %s  %d bytes  %s\n",
			d.DocumentID, d.UploadedAt.Format("2006-01-02 15:04"), d.FileSize, d.OriginalFilename)
	}

	chunks, err := a.Pipeline.CountChunks(ctx, args[0])
	if err != nil {
		return fmt.Errorf("chunk count failed: %w", err)
	}
	fmt.Printf("%d documents, %d indexed chunks\n", len(docs), chunks)
	return nil
}

// guessContentType maps a filename to a MIME type, defaulting to
// text/plain when the extension is unknown.
func guessContentType(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "text/plain"
}
