// Package studygen turns a user's indexed documents into study
// artifacts: multiple choice quizzes and flashcards. Generation runs
// through a cascade of degrading tiers so a request always produces a
// result, even when every model call fails.
package studygen

import (
	"context"

	"github.com/buraktaskin-zmx/sprinai/internal/config"
)

// ArtifactKind selects what the cascade generates.
type ArtifactKind string

const (
	KindQuiz      ArtifactKind = "quiz"
	KindFlashCard ArtifactKind = "flashcard"
)

// Default item counts per artifact kind.
const (
	DefaultQuizCount      = 5
	DefaultFlashCardCount = 10
	DefaultDifficulty     = "medium"
)

// Request describes one generation run. Zero values for ItemCount and
// Difficulty are filled in per kind.
type Request struct {
	Username   string       `json:"username"`
	ItemCount  int          `json:"item_count"`
	Difficulty string       `json:"difficulty"`
	Kind       ArtifactKind `json:"kind"`
}

func (r Request) withDefaults() Request {
	if r.ItemCount <= 0 {
		switch r.Kind {
		case KindFlashCard:
			r.ItemCount = DefaultFlashCardCount
		default:
			r.ItemCount = DefaultQuizCount
		}
	}
	if r.Difficulty == "" {
		r.Difficulty = DefaultDifficulty
	}
	return r
}

// QuizQuestion is one multiple choice question. Options maps the four
// labels "A".."D" to option text; Answer holds the correct label.
type QuizQuestion struct {
	Question string            `json:"question"`
	Options  map[string]string `json:"options"`
	Answer   string            `json:"answer"`
}

// QuizResponse is the structured model output for quiz generation.
type QuizResponse struct {
	Questions []QuizQuestion `json:"questions"`
	Note      string         `json:"note,omitempty"`
}

// FlashCard is one two-sided study card.
type FlashCard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// FlashCardResponse is the structured model output for flashcard
// generation.
type FlashCardResponse struct {
	FlashCards []FlashCard `json:"flashcards"`
	Note       string      `json:"note,omitempty"`
}

// Result is the cascade's terminal output. Exactly one of Questions or
// Cards is populated, matching the request's kind. Degraded is true
// when a fallback tier produced the items; Note explains how.
type Result struct {
	Kind      ArtifactKind   `json:"kind"`
	Questions []QuizQuestion `json:"questions,omitempty"`
	Cards     []FlashCard    `json:"flashcards,omitempty"`
	Degraded  bool           `json:"degraded"`
	Note      string         `json:"note,omitempty"`
}

func (r Result) itemCount() int {
	if r.Kind == KindFlashCard {
		return len(r.Cards)
	}
	return len(r.Questions)
}

// ModelClient is the language model surface the cascade needs. The llm
// package provides the production implementation.
type ModelClient interface {
	// GenerateText returns the model's free-text response.
	GenerateText(ctx context.Context, profile config.ProfileConfig, system, prompt string) (string, error)
	// GenerateQuiz requests schema-constrained quiz output.
	GenerateQuiz(ctx context.Context, profile config.ProfileConfig, system, prompt string) (QuizResponse, error)
	// GenerateFlashCards requests schema-constrained flashcard output.
	GenerateFlashCards(ctx context.Context, profile config.ProfileConfig, system, prompt string) (FlashCardResponse, error)
}
