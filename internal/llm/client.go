// Package llm adapts Genkit model calls to the generation profiles the
// cascade and evaluator run on.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/buraktaskin-zmx/sprinai/internal/config"
	"github.com/buraktaskin-zmx/sprinai/internal/studygen"
)

// Client implements studygen.ModelClient and evaluation.TextGenerator
// over a Genkit instance with the Google AI plugin.
type Client struct {
	g      *genkit.Genkit
	logger *slog.Logger
}

// New creates a Client over an initialized Genkit instance.
func New(g *genkit.Genkit, logger *slog.Logger) *Client {
	return &Client{g: g, logger: logger}
}

// GenerateText runs a free-text generation under the given profile.
func (c *Client) GenerateText(ctx context.Context, profile config.ProfileConfig, system, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, c.g, c.options(profile, system, prompt)...)
	if err != nil {
		return "", fmt.Errorf("text generation failed: %w", err)
	}
	c.logger.Debug("generated text", "model", profile.Model, "response_length", len(resp.Text()))
	return resp.Text(), nil
}

// GenerateQuiz runs a schema-constrained quiz generation.
func (c *Client) GenerateQuiz(ctx context.Context, profile config.ProfileConfig, system, prompt string) (studygen.QuizResponse, error) {
	opts := append(c.options(profile, system, prompt), ai.WithOutputType(studygen.QuizResponse{}))
	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return studygen.QuizResponse{}, fmt.Errorf("quiz generation failed: %w", err)
	}

	var out studygen.QuizResponse
	if err := resp.Output(&out); err != nil {
		return studygen.QuizResponse{}, fmt.Errorf("quiz output did not match schema: %w", err)
	}
	c.logger.Debug("generated quiz", "model", profile.Model, "questions", len(out.Questions))
	return out, nil
}

// GenerateFlashCards runs a schema-constrained flashcard generation.
func (c *Client) GenerateFlashCards(ctx context.Context, profile config.ProfileConfig, system, prompt string) (studygen.FlashCardResponse, error) {
	opts := append(c.options(profile, system, prompt), ai.WithOutputType(studygen.FlashCardResponse{}))
	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return studygen.FlashCardResponse{}, fmt.Errorf("flashcard generation failed: %w", err)
	}

	var out studygen.FlashCardResponse
	if err := resp.Output(&out); err != nil {
		return studygen.FlashCardResponse{}, fmt.Errorf("flashcard output did not match schema: %w", err)
	}
	c.logger.Debug("generated flashcards", "model", profile.Model, "cards", len(out.FlashCards))
	return out, nil
}

func (c *Client) options(profile config.ProfileConfig, system, prompt string) []ai.GenerateOption {
	opts := []ai.GenerateOption{
		ai.WithModelName(qualifiedModel(profile.Model)),
		ai.WithPrompt(prompt),
		ai.WithConfig(generationConfig(profile)),
	}
	if system != "" {
		opts = append(opts, ai.WithSystem(system))
	}
	return opts
}

// generationConfig maps a profile onto the Gemini request config.
func generationConfig(profile config.ProfileConfig) *genai.GenerateContentConfig {
	temperature := profile.Temperature
	topP := profile.TopP
	return &genai.GenerateContentConfig{
		Temperature:     &temperature,
		TopP:            &topP,
		MaxOutputTokens: profile.MaxOutputTokens,
	}
}

// qualifiedModel prefixes bare Gemini model ids with the googleai
// provider. Already-qualified names pass through.
func qualifiedModel(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	return "googleai/" + model
}
