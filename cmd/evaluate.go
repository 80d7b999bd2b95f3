package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/buraktaskin-zmx/sprinai/internal/app"
	"github.com/buraktaskin-zmx/sprinai/internal/evaluation"
)

// evaluationOutput is the combined result printed by the evaluate command.
type evaluationOutput struct {
	evaluation.MistakeReport
	Analysis string `json:"analysis"`
}

// readSubmission decodes a quiz submission and checks it is well formed.
func readSubmission(r io.Reader) (evaluation.Submission, error) {
	var sub evaluation.Submission
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sub); err != nil {
		return evaluation.Submission{}, fmt.Errorf("invalid submission: %w", err)
	}
	if len(sub.Questions) == 0 {
		return evaluation.Submission{}, errors.New("submission has no questions")
	}
	return sub, nil
}

// runEvaluate scores a submission file and prints the report together with
// the model's mistake analysis. "-" reads the submission from stdin.
func runEvaluate(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: sprinai evaluate <submission.json>")
	}

	var in io.Reader
	if args[0] == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	sub, err := readSubmission(in)
	if err != nil {
		return err
	}

	report := a.Evaluator.Evaluate(sub)
	analysis, err := a.Evaluator.AnalyzeMistakes(ctx, report.WrongAnswers)
	if err != nil {
		return fmt.Errorf("mistake analysis failed: %w", err)
	}

	return printJSON(os.Stdout, evaluationOutput{MistakeReport: report, Analysis: analysis})
}
