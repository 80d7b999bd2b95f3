package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/buraktaskin-zmx/sprinai/internal/app"
	"github.com/buraktaskin-zmx/sprinai/internal/studygen"
)

// parseGenerateArgs turns CLI arguments into a generation request.
// The username is positional; -n and -d are optional.
func parseGenerateArgs(args []string, kind studygen.ArtifactKind) (studygen.Request, error) {
	fs := flag.NewFlagSet(string(kind), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	count := fs.Int("n", 0, "number of items")
	difficulty := fs.String("d", "", "difficulty: easy, medium or hard")

	if len(args) == 0 {
		return studygen.Request{}, fmt.Errorf("usage: sprinai %s <username> [-n count] [-d difficulty]", kind)
	}
	username := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return studygen.Request{}, fmt.Errorf("invalid flags: %w", err)
	}
	if fs.NArg() != 0 {
		return studygen.Request{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if *count < 0 {
		return studygen.Request{}, errors.New("item count must be positive")
	}

	return studygen.Request{
		Username:   username,
		ItemCount:  *count,
		Difficulty: *difficulty,
		Kind:       kind,
	}, nil
}

// runGenerate runs the generation cascade and prints the result as JSON.
// Degraded results still print; the degradation is visible in the output.
func runGenerate(ctx context.Context, a *app.App, args []string, kind studygen.ArtifactKind) error {
	req, err := parseGenerateArgs(args, kind)
	if err != nil {
		return err
	}

	result := a.Cascade.Generate(ctx, req)
	return printJSON(os.Stdout, result)
}

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
