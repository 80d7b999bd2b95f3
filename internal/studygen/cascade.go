package studygen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/buraktaskin-zmx/sprinai/internal/config"
	"github.com/buraktaskin-zmx/sprinai/internal/document"
	"github.com/buraktaskin-zmx/sprinai/internal/retrieval"
)

// analyzerSystem is the summarization instruction for the analyzing stage.
const analyzerSystem = `You are a document content analyzer for study material generation.
Summarize document content focusing on key facts, concepts, definitions,
processes and important details that can be used for quiz questions.
Be concise and structured.`

// minContentLength is the shortest analyzer output accepted as real
// grounding material.
const minContentLength = 100

// Character budgets for the truncated fallback-tier prompt.
const (
	fallbackQuizBudget      = 1500
	fallbackFlashCardBudget = 800
)

// noContentMarkers flag analyzer output that admits it found nothing.
// Matched case-insensitively; includes localized phrasings.
var noContentMarkers = []string{
	"i don't know",
	"bu sorunun cevabı",
	"bulunmuyor",
	"no information",
	"document not found",
}

const fallbackNote = "generated via fallback"

// Retriever supplies user-scoped document chunks.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) ([]document.Chunk, error)
}

// Masker redacts sensitive spans before chunk text enters a prompt.
type Masker interface {
	Mask(chunks []document.Chunk) []document.Chunk
}

// Profiles bundles the three generation profiles the cascade uses.
type Profiles struct {
	Primary  config.ProfileConfig
	Fallback config.ProfileConfig
	Analyzer config.ProfileConfig
}

// Cascade runs generation as a one-directional sequence of tiers:
// analyzing, primary structured generation, degraded free-text
// fallback, and a deterministic emergency tier. Every path terminates
// in a Result; no tier surfaces an error to the caller.
type Cascade struct {
	retriever Retriever
	masker    Masker
	model     ModelClient
	profiles  Profiles
	prompts   *PromptLibrary
	logger    *slog.Logger
}

// NewCascade wires a Cascade.
func NewCascade(retriever Retriever, masker Masker, model ModelClient, profiles Profiles, prompts *PromptLibrary, logger *slog.Logger) *Cascade {
	return &Cascade{
		retriever: retriever,
		masker:    masker,
		model:     model,
		profiles:  profiles,
		prompts:   prompts,
		logger:    logger,
	}
}

// Generate produces study artifacts for req. The returned Result may
// hold fewer items than requested; callers must not assume the exact
// count.
func (c *Cascade) Generate(ctx context.Context, req Request) Result {
	req = req.withDefaults()

	res := c.run(ctx, req)
	c.logger.Info("generation finished",
		"username", req.Username,
		"kind", res.Kind,
		"items", res.itemCount(),
		"degraded", res.Degraded)
	return res
}

// run walks the tiers in order. A cancelled context stops the walk at
// the next tier boundary; no new tier starts after cancellation.
func (c *Cascade) run(ctx context.Context, req Request) Result {
	content, ok := c.analyze(ctx, req)
	if !ok {
		return c.emergency(req,
			"no usable document content was found; upload a document and try again")
	}
	if ctx.Err() != nil {
		return c.emergency(req,
			"generation was interrupted; please retry")
	}

	if res, ok := c.generatePrimary(ctx, req, content); ok {
		return res
	}
	if ctx.Err() != nil {
		return c.emergency(req,
			"generation was interrupted; please retry")
	}

	if res, ok := c.generateFallback(ctx, req, content); ok {
		return res
	}

	return c.emergency(req,
		"generation is temporarily degraded; these placeholder items do not use your document, please retry later")
}

// analyze retrieves and masks the user's chunks, then asks the analyzer
// profile for a structured summary. Returns false when there is nothing
// to generate from.
func (c *Cascade) analyze(ctx context.Context, req Request) (string, bool) {
	query := c.prompts.ContentQuery(req.Kind)

	chunks, err := c.retriever.Retrieve(ctx, retrieval.Query{
		Username: req.Username,
		Text:     query,
	})
	if err != nil {
		c.logger.Warn("retrieval failed", "username", req.Username, "error", err)
		return "", false
	}
	if len(chunks) == 0 {
		c.logger.Info("no chunks retrieved", "username", req.Username)
		return "", false
	}

	masked := c.masker.Mask(chunks)
	texts := make([]string, len(masked))
	for i, chunk := range masked {
		texts[i] = chunk.Text
	}

	prompt := query + "\n\nDOCUMENT EXCERPTS:\n" + strings.Join(texts, "\n\n")
	content, err := c.model.GenerateText(ctx, c.profiles.Analyzer, analyzerSystem, prompt)
	if err != nil {
		c.logger.Warn("content analysis failed", "username", req.Username, "error", err)
		return "", false
	}
	if !hasGrounding(content) {
		c.logger.Info("analyzer found no grounding content",
			"username", req.Username, "content_length", len(content))
		return "", false
	}
	return content, true
}

// generatePrimary invokes the primary profile with schema-constrained
// output. ok is false when the call fails or returns no items.
func (c *Cascade) generatePrimary(ctx context.Context, req Request, content string) (Result, bool) {
	prompt := c.prompts.Render(req.Kind, content, req.ItemCount, req.Difficulty)
	system := c.prompts.System(req.Kind)

	switch req.Kind {
	case KindFlashCard:
		resp, err := c.model.GenerateFlashCards(ctx, c.profiles.Primary, system, prompt)
		if err != nil || len(resp.FlashCards) == 0 {
			c.logger.Warn("primary flashcard generation failed, degrading",
				"username", req.Username, "error", err)
			return Result{}, false
		}
		return Result{Kind: req.Kind, Cards: resp.FlashCards}, true
	default:
		resp, err := c.model.GenerateQuiz(ctx, c.profiles.Primary, system, prompt)
		if err != nil || len(resp.Questions) == 0 {
			c.logger.Warn("primary quiz generation failed, degrading",
				"username", req.Username, "error", err)
			return Result{}, false
		}
		return Result{Kind: req.Kind, Questions: resp.Questions}, true
	}
}

// generateFallback truncates the content, asks the fallback profile for
// free text and heuristically extracts one JSON object from it.
func (c *Cascade) generateFallback(ctx context.Context, req Request, content string) (Result, bool) {
	budget := fallbackQuizBudget
	if req.Kind == KindFlashCard {
		budget = fallbackFlashCardBudget
	}
	prompt := c.prompts.RenderFallback(req.Kind, truncate(content, budget), req.ItemCount, req.Difficulty)

	text, err := c.model.GenerateText(ctx, c.profiles.Fallback, c.prompts.FallbackSystem(req.Kind), prompt)
	if err != nil {
		c.logger.Warn("fallback generation failed, escalating",
			"username", req.Username, "error", err)
		return Result{}, false
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		c.logger.Warn("fallback response contains no JSON object", "username", req.Username)
		return Result{}, false
	}

	switch req.Kind {
	case KindFlashCard:
		var resp FlashCardResponse
		if err := json.Unmarshal([]byte(raw), &resp); err != nil || len(resp.FlashCards) == 0 {
			c.logger.Warn("fallback flashcard parse failed, escalating",
				"username", req.Username, "error", err)
			return Result{}, false
		}
		return Result{Kind: req.Kind, Cards: resp.FlashCards, Degraded: true, Note: fallbackNote}, true
	default:
		var resp QuizResponse
		if err := json.Unmarshal([]byte(raw), &resp); err != nil || len(resp.Questions) == 0 {
			c.logger.Warn("fallback quiz parse failed, escalating",
				"username", req.Username, "error", err)
			return Result{}, false
		}
		return Result{Kind: req.Kind, Questions: resp.Questions, Degraded: true, Note: fallbackNote}, true
	}
}

// emergency deterministically synthesizes placeholder items with no
// model call, so the cascade terminates even under total outage.
func (c *Cascade) emergency(req Request, note string) Result {
	count := req.ItemCount
	if count > 3 {
		count = 3
	}

	c.logger.Error("serving emergency study material",
		"username", req.Username, "kind", req.Kind, "items", count)

	res := Result{Kind: req.Kind, Degraded: true, Note: note}
	switch req.Kind {
	case KindFlashCard:
		for i := 1; i <= count; i++ {
			res.Cards = append(res.Cards, FlashCard{
				Front: fmt.Sprintf("Key topic %d of your document", i),
				Back:  "Review this part of your uploaded material and retry generation later.",
			})
		}
	default:
		for i := 1; i <= count; i++ {
			res.Questions = append(res.Questions, QuizQuestion{
				Question: fmt.Sprintf("Placeholder question %d: which statement best reflects the main topic of your uploaded document?", i),
				Options: map[string]string{
					"A": "The central subject the document explains in most detail",
					"B": "A side topic the document only briefly mentions",
					"C": "A topic the document does not cover at all",
					"D": "General knowledge unrelated to the document",
				},
				Answer: "A",
			})
		}
	}
	return res
}

// hasGrounding reports whether analyzer output looks like real document
// material rather than an admission of ignorance.
func hasGrounding(content string) bool {
	if len(content) < minContentLength {
		return false
	}
	lower := strings.ToLower(content)
	for _, marker := range noContentMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// extractJSONObject returns the span from the first '{' to the last '}'.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back off to a rune boundary.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
