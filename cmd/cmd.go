// Package cmd provides the sprinai CLI commands.
//
// Commands:
//   - upload: Ingest a document for a user
//   - delete: Remove a document and its indexed chunks
//   - list: Show a user's uploaded documents
//   - quiz: Generate a quiz from the user's documents
//   - cards: Generate flashcards from the user's documents
//   - evaluate: Score a quiz submission and analyze mistakes
//
// Signal handling and graceful shutdown are implemented
// for all commands via context cancellation.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/buraktaskin-zmx/sprinai/internal/app"
	"github.com/buraktaskin-zmx/sprinai/internal/config"
	"github.com/buraktaskin-zmx/sprinai/internal/log"
	"github.com/buraktaskin-zmx/sprinai/internal/studygen"
)

// Execute is the main entry point for the sprinai CLI application.
func Execute() error {
	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "upload":
		return withApp(func(ctx context.Context, a *app.App) error {
			return runUpload(ctx, a, os.Args[2:])
		})
	case "delete":
		return withApp(func(ctx context.Context, a *app.App) error {
			return runDelete(ctx, a, os.Args[2:])
		})
	case "list":
		return withApp(func(ctx context.Context, a *app.App) error {
			return runList(ctx, a, os.Args[2:])
		})
	case "quiz":
		return withApp(func(ctx context.Context, a *app.App) error {
			return runGenerate(ctx, a, os.Args[2:], studygen.KindQuiz)
		})
	case "cards":
		return withApp(func(ctx context.Context, a *app.App) error {
			return runGenerate(ctx, a, os.Args[2:], studygen.KindFlashCard)
		})
	case "evaluate":
		return withApp(func(ctx context.Context, a *app.App) error {
			return runEvaluate(ctx, a, os.Args[2:])
		})
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// withApp loads configuration, builds the application graph and runs fn
// under a signal-cancelled context.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := log.New(log.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, cleanup, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	return fn(ctx, a)
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("sprinai - Document-grounded quiz and flashcard generator")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sprinai upload <username> <file>        Ingest a document (pdf, html, txt)")
	fmt.Println("  sprinai delete <username> <document-id> Remove a document and its chunks")
	fmt.Println("  sprinai list <username>                 List a user's documents")
	fmt.Println("  sprinai quiz <username> [flags]         Generate a quiz as JSON")
	fmt.Println("  sprinai cards <username> [flags]        Generate flashcards as JSON")
	fmt.Println("  sprinai evaluate <submission.json>      Score a submission, analyze mistakes")
	fmt.Println("  sprinai --version                       Show version information")
	fmt.Println("  sprinai --help                          Show this help")
	fmt.Println()
	fmt.Println("Generation flags:")
	fmt.Println("  -n <count>        Number of questions or cards")
	fmt.Println("  -d <difficulty>   easy, medium or hard (default: medium)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY    Required: Gemini API key")
	fmt.Println("  SPRINAI_*         Optional: Override any sprinai.yaml setting")
}
