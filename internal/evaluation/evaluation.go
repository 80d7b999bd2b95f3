// Package evaluation scores submitted quizzes against their answer key
// and turns the mistakes into a personalized remediation prompt.
package evaluation

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/buraktaskin-zmx/sprinai/internal/config"
)

//go:embed prompts/mistake_analysis.txt
var mistakeTemplate string

// Congratulation is returned when a submission has no wrong answers.
// No model call is made on this path.
const Congratulation = "Congratulations! You answered all questions correctly. Excellent performance!"

// answerLabels maps a 0-based option index to its display label.
var answerLabels = [...]string{"A", "B", "C", "D"}

// SubmittedQuestion is one quiz question with its answer key. The
// correct answer is a 0-based index into the A-D labels.
type SubmittedQuestion struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer int               `json:"correct_answer"`
}

// Submission pairs questions with the student's chosen option indices.
// A nil entry means the question was left unanswered.
type Submission struct {
	Questions []SubmittedQuestion `json:"questions"`
	Answers   []*int              `json:"answers"`
}

// WrongAnswer describes one missed question. QuestionNumber is 1-based.
type WrongAnswer struct {
	QuestionNumber int    `json:"question_number"`
	QuestionText   string `json:"question_text"`
	CorrectAnswer  string `json:"correct_answer"`
	StudentAnswer  string `json:"student_answer"`
}

// MistakeReport is the outcome of scoring one submission.
type MistakeReport struct {
	TotalQuestions int           `json:"total_questions"`
	CorrectCount   int           `json:"correct_count"`
	WrongCount     int           `json:"wrong_count"`
	WrongAnswers   []WrongAnswer `json:"wrong_answers"`
}

// TextGenerator is the single model call mistake analysis needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, profile config.ProfileConfig, system, prompt string) (string, error)
}

// Evaluator scores submissions and produces remediation text.
type Evaluator struct {
	model   TextGenerator
	profile config.ProfileConfig
	logger  *slog.Logger
}

// New creates an Evaluator. The profile is used for the advisory
// mistake-analysis call.
func New(model TextGenerator, profile config.ProfileConfig, logger *slog.Logger) *Evaluator {
	return &Evaluator{model: model, profile: profile, logger: logger}
}

// Evaluate scores a submission. Pure; it makes no model calls.
func (e *Evaluator) Evaluate(sub Submission) MistakeReport {
	var wrong []WrongAnswer
	for i, q := range sub.Questions {
		var answer *int
		if i < len(sub.Answers) {
			answer = sub.Answers[i]
		}
		if answer != nil && *answer == q.CorrectAnswer {
			continue
		}

		studentText := "Not answered"
		if answer != nil {
			studentText = answerText(q.Options, *answer)
		}
		wrong = append(wrong, WrongAnswer{
			QuestionNumber: i + 1,
			QuestionText:   q.Question,
			CorrectAnswer:  answerText(q.Options, q.CorrectAnswer),
			StudentAnswer:  studentText,
		})
	}

	return MistakeReport{
		TotalQuestions: len(sub.Questions),
		CorrectCount:   len(sub.Questions) - len(wrong),
		WrongCount:     len(wrong),
		WrongAnswers:   wrong,
	}
}

// BuildMistakePrompt renders the wrong answers into the embedded
// analysis template. With no wrong answers it returns the fixed
// congratulation text and ok=false, signaling that no model call is
// needed.
func BuildMistakePrompt(wrongAnswers []WrongAnswer) (string, bool) {
	if len(wrongAnswers) == 0 {
		return Congratulation, false
	}

	var sb strings.Builder
	for _, wa := range wrongAnswers {
		fmt.Fprintf(&sb, "Question %d: %s\n", wa.QuestionNumber, wa.QuestionText)
		fmt.Fprintf(&sb, "Correct Answer: %s\n", wa.CorrectAnswer)
		fmt.Fprintf(&sb, "Student's Answer: %s\n\n", wa.StudentAnswer)
	}

	return strings.Replace(mistakeTemplate, "{wrongAnswersText}", sb.String(), 1), true
}

// AnalyzeMistakes turns a mistake report into advisory study text with
// a single model call. A clean report short-circuits to the
// congratulation message.
func (e *Evaluator) AnalyzeMistakes(ctx context.Context, wrongAnswers []WrongAnswer) (string, error) {
	prompt, needsModel := BuildMistakePrompt(wrongAnswers)
	if !needsModel {
		return prompt, nil
	}

	analysis, err := e.model.GenerateText(ctx, e.profile, "", prompt)
	if err != nil {
		return "", fmt.Errorf("mistake analysis failed: %w", err)
	}

	e.logger.Debug("analyzed quiz mistakes", "wrong_answers", len(wrongAnswers))
	return analysis, nil
}

// answerText formats one labeled option, e.g. "A) Mitochondria".
// Indices outside A-D yield "Unknown answer".
func answerText(options map[string]string, index int) string {
	if index < 0 || index >= len(answerLabels) {
		return "Unknown answer"
	}
	label := answerLabels[index]
	return label + ") " + options[label]
}
