package studygen

import (
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

//go:embed prompts/*.json
var promptFiles embed.FS

// promptSpec is one artifact kind's prompt bundle as stored on disk.
// Templates use literal {count}, {difficulty}, {content} and {examples}
// placeholders.
type promptSpec struct {
	System           string   `json:"system"`
	ContentQuery     string   `json:"content_query"`
	Template         string   `json:"template"`
	FallbackSystem   string   `json:"fallback_system"`
	FallbackTemplate string   `json:"fallback_template"`
	Examples         []string `json:"examples"`
}

// PromptLibrary serves rendered prompts per artifact kind. Instruction
// text and few-shot examples live in embedded JSON bundles so they can
// be swapped without touching cascade logic.
type PromptLibrary struct {
	specs map[ArtifactKind]promptSpec
}

// LoadPrompts parses the embedded prompt bundles.
func LoadPrompts() (*PromptLibrary, error) {
	specs := make(map[ArtifactKind]promptSpec, 2)
	for _, kind := range []ArtifactKind{KindQuiz, KindFlashCard} {
		data, err := promptFiles.ReadFile("prompts/" + string(kind) + ".json")
		if err != nil {
			return nil, fmt.Errorf("missing prompt bundle for %s: %w", kind, err)
		}
		var spec promptSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("invalid prompt bundle for %s: %w", kind, err)
		}
		specs[kind] = spec
	}
	return &PromptLibrary{specs: specs}, nil
}

// ContentQuery returns the retrieval query used to gather document
// material for the given kind.
func (l *PromptLibrary) ContentQuery(kind ArtifactKind) string {
	return l.spec(kind).ContentQuery
}

// System returns the primary-tier system instruction for kind.
func (l *PromptLibrary) System(kind ArtifactKind) string {
	return l.spec(kind).System
}

// FallbackSystem returns the fallback-tier system instruction for kind.
func (l *PromptLibrary) FallbackSystem(kind ArtifactKind) string {
	return l.spec(kind).FallbackSystem
}

// Render produces the primary-tier prompt with the few-shot examples
// interpolated.
func (l *PromptLibrary) Render(kind ArtifactKind, content string, count int, difficulty string) string {
	spec := l.spec(kind)
	return newFiller(content, count, difficulty, spec.Examples).Replace(spec.Template)
}

// RenderFallback produces the minimal low-token fallback prompt.
func (l *PromptLibrary) RenderFallback(kind ArtifactKind, content string, count int, difficulty string) string {
	spec := l.spec(kind)
	return newFiller(content, count, difficulty, nil).Replace(spec.FallbackTemplate)
}

func (l *PromptLibrary) spec(kind ArtifactKind) promptSpec {
	if spec, ok := l.specs[kind]; ok {
		return spec
	}
	return l.specs[KindQuiz]
}

func newFiller(content string, count int, difficulty string, examples []string) *strings.Replacer {
	return strings.NewReplacer(
		"{count}", strconv.Itoa(count),
		"{difficulty}", difficulty,
		"{content}", content,
		"{examples}", strings.Join(examples, "\n\n"),
	)
}
