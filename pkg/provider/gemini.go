package provider

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini is a thin wrapper around the official genai client.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// GeminiOption configures the Gemini provider.
type GeminiOption func(*Gemini)

// WithTemperature sets the sampling temperature (0 by default).
func WithTemperature(t float32) GeminiOption {
	return func(g *Gemini) {
		g.temperature = t
	}
}

// NewGemini creates a Gemini provider. An empty apiKey lets the SDK read
// GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGemini(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	g := &Gemini{client: cli, model: model}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Gemini) Name() string { return "gemini:" + g.model }

// Complete requests a JSON answer for prompt.
func (g *Gemini) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(g.temperature),
	}
	if systemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", wrapError(g.Name(), err)
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return "", &Error{Provider: g.Name(), Kind: KindContentFiltered, Err: fmt.Errorf("prompt blocked: %s", fb.BlockReason)}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", &Error{Provider: g.Name(), Kind: KindContentFiltered, Err: errors.New("response blocked by safety filters")}
	}

	text := resp.Text()
	if text == "" {
		return "", &Error{Provider: g.Name(), Kind: KindEmptyResponse, Err: errors.New("no candidates returned")}
	}
	return text, nil
}
