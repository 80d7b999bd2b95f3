package retrieval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/buraktaskin-zmx/sprinai/internal/document"
)

// maskRule pairs a compiled pattern with its replacement placeholder.
type maskRule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Builtin redaction patterns, applied in order. The national ID rule
// runs before the phone rule so a bare 11-digit sequence is labeled as
// an ID rather than a phone number.
var builtinRules = []maskRule{
	{regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), "[EMAIL]"},
	{regexp.MustCompile(`\b\d{11}\b`), "[NATIONAL_ID]"},
	{regexp.MustCompile(`\+?\d[\d\s().-]{7,16}\d`), "[PHONE]"},
}

// Masker redacts sensitive spans from chunk text. Pure: it never
// mutates its input chunks.
type Masker struct {
	rules []maskRule
}

// NewMasker builds a Masker from the builtin rules plus extra named
// patterns from configuration. Each extra pattern's matches are
// replaced with "[NAME]" derived from its key. Extra patterns run
// before the builtin rules so a specific pattern is not partially
// consumed by the generic phone rule.
func NewMasker(extra map[string]string) (*Masker, error) {
	rules := make([]maskRule, 0, len(builtinRules)+len(extra))

	for name, expr := range extra {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", name, err)
		}
		rules = append(rules, maskRule{
			pattern:     re,
			placeholder: "[" + strings.ToUpper(name) + "]",
		})
	}
	rules = append(rules, builtinRules...)
	return &Masker{rules: rules}, nil
}

// MaskText redacts all rule matches in text.
func (m *Masker) MaskText(text string) string {
	for _, rule := range m.rules {
		text = rule.pattern.ReplaceAllString(text, rule.placeholder)
	}
	return text
}

// Mask returns a new slice of chunks with redacted text. Tags are
// carried over unchanged.
func (m *Masker) Mask(chunks []document.Chunk) []document.Chunk {
	out := make([]document.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = document.Chunk{Text: m.MaskText(c.Text), Tags: c.Tags}
	}
	return out
}
