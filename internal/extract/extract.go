// Package extract turns uploaded file bytes into plain text for chunking.
//
// The ingestion pipeline depends on the Extractor interface; the default
// implementation dispatches on filename extension and content type and
// handles PDF, HTML and plain-text payloads. Unparseable uploads are
// reported as ErrUnsupported so the caller can reject the upload.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// ErrUnsupported indicates the byte stream could not be parsed as text.
var ErrUnsupported = errors.New("unsupported or unparseable document")

// Extractor extracts plain text from an uploaded byte stream.
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename, contentType string) (string, error)
}

// TextExtractor is the default Extractor. The zero value is ready to use.
type TextExtractor struct{}

// New returns a ready-to-use TextExtractor.
func New() *TextExtractor {
	return &TextExtractor{}
}

// Extract dispatches on extension first, falling back to content type.
// All paths normalize whitespace before returning.
func (e *TextExtractor) Extract(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file %q", ErrUnsupported, filename)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf" || contentType == "application/pdf":
		return e.extractPDF(ctx, data, filename)
	case ext == ".html" || ext == ".htm" || strings.HasPrefix(contentType, "text/html"):
		return e.extractHTML(data, filename)
	default:
		return e.extractPlain(data, filename)
	}
}

// extractPDF walks every page and concatenates the plain text.
// Pages that cannot be decoded are skipped rather than failing the whole
// document; only a document yielding no text at all is an error.
func (e *TextExtractor) extractPDF(ctx context.Context, data []byte, filename string) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf %q: %v", ErrUnsupported, filename, err)
	}

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString(" ")
	}

	text := Normalize(buf.String())
	if text == "" {
		return "", fmt.Errorf("%w: no text extracted from pdf %q", ErrUnsupported, filename)
	}
	return text, nil
}

// extractHTML walks the parsed tree collecting text nodes, skipping script
// and style subtrees, and inserting breaks after block elements.
func (e *TextExtractor) extractHTML(data []byte, filename string) (string, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: parse html %q: %v", ErrUnsupported, filename, err)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
			buf.WriteString(" ")
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && isBlockElement(n.Data) {
			buf.WriteString(" ")
		}
	}
	walk(root)

	text := Normalize(buf.String())
	if text == "" {
		return "", fmt.Errorf("%w: no text extracted from html %q", ErrUnsupported, filename)
	}
	return text, nil
}

// extractPlain treats the payload as UTF-8 text. A NUL byte means the file
// is binary, not text, and the upload is rejected.
func (e *TextExtractor) extractPlain(data []byte, filename string) (string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", fmt.Errorf("%w: binary content in %q", ErrUnsupported, filename)
	}

	text := Normalize(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: no text content in %q", ErrUnsupported, filename)
	}
	return text, nil
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "br", "div", "li", "h1", "h2", "h3", "h4", "tr":
		return true
	}
	return false
}

// Normalize strips invalid UTF-8 and collapses all whitespace runs to a
// single space. The result is stable input for the deterministic chunker.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}
