// Package intent classifies a user instruction into a domain.Classification
// through a completion provider, falling back to keyword heuristics whenever
// the provider cannot produce a usable answer.
package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/clarify"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/fallback"
	"github.com/aretw0/canvasbuilder/pkg/ports"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 30 * time.Second

// QuestionGenerator produces the clarification attached to low-confidence results.
type QuestionGenerator interface {
	GenerateIntentClarification(cls *domain.Classification, message string) (domain.ClarificationRequest, error)
}

// Classifier resolves messages into classifications.
// It holds no per-call state and is safe for concurrent use.
type Classifier struct {
	provider  ports.CompletionProvider
	questions QuestionGenerator
	timeout   time.Duration
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	prompt    promptConfig
}

// Option configures the Classifier.
type Option func(*Classifier)

// WithTimeout bounds each provider call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger configures a logger for the Classifier.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Classifier) {
		c.hooks = hooks
	}
}

// WithQuestionGenerator replaces the default clarify.Generator.
func WithQuestionGenerator(g QuestionGenerator) Option {
	return func(c *Classifier) {
		c.questions = g
	}
}

// WithMaxNodeLabels limits how many node labels are embedded in the prompt.
func WithMaxNodeLabels(n int) Option {
	return func(c *Classifier) {
		c.prompt.maxNodeLabels = n
	}
}

// WithHistoryLimit limits how many history messages are embedded in the prompt.
func WithHistoryLimit(n int) Option {
	return func(c *Classifier) {
		c.prompt.historyLimit = n
	}
}

// NewClassifier creates a Classifier backed by provider.
func NewClassifier(provider ports.CompletionProvider, opts ...Option) *Classifier {
	c := &Classifier{
		provider:  provider,
		questions: clarify.NewGenerator(),
		timeout:   DefaultTimeout,
		logger:    logging.NewNop(),
		prompt: promptConfig{
			maxNodeLabels:   10,
			historyLimit:    6,
			maxHistoryChars: 400,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify resolves message against the canvas snapshot.
// The only error it returns is domain.ErrInvalidArgument for an empty message;
// provider and parse failures are absorbed by the fallback classifier.
func (c *Classifier) Classify(ctx context.Context, message string, canvas *domain.CanvasContext) (domain.Classification, error) {
	return c.ClassifyWithHistory(ctx, message, canvas, nil)
}

// ClassifyWithHistory is Classify with recent conversation embedded in the prompt.
func (c *Classifier) ClassifyWithHistory(ctx context.Context, message string, canvas *domain.CanvasContext, history []domain.ChatMessage) (domain.Classification, error) {
	if strings.TrimSpace(message) == "" {
		return domain.Classification{}, domain.EmptyArgument("message")
	}

	start := time.Now()
	prompt := buildPrompt(message, canvas, history, c.prompt)

	cls, err := c.complete(ctx, prompt)
	if err != nil {
		cls = c.fallback(message, err)
		c.report(ctx, message, cls, err, start)
		return cls, nil
	}

	if cls.Confidence < domain.IntentConfidenceThreshold {
		cls.NeedsClarification = true
	}
	if cls.NeedsClarification {
		c.attachClarification(&cls, message)
	}

	c.logger.Debug("Classified message",
		"category", cls.Category,
		"confidence", cls.Confidence,
		"provider", c.providerName(),
		"path", "provider",
	)
	c.report(ctx, message, cls, nil, start)
	return cls, nil
}

// complete runs the provider call and parses its answer. Errors wrap either
// domain.ErrProviderFailure or domain.ErrParseFailure.
func (c *Classifier) complete(ctx context.Context, prompt string) (cls domain.Classification, err error) {
	if c.provider == nil {
		return cls, fmt.Errorf("%w: no provider configured", domain.ErrProviderFailure)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: provider panicked: %v", domain.ErrProviderFailure, r)
		}
	}()

	raw, err := c.provider.Complete(callCtx, prompt, SystemInstruction)
	if err != nil {
		return cls, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}
	if err := callCtx.Err(); err != nil {
		return cls, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}
	return parseResponse(raw)
}

func (c *Classifier) fallback(message string, reason error) domain.Classification {
	cls := fallback.Classify(message)
	path := "provider error"
	if errors.Is(reason, domain.ErrParseFailure) {
		path = "unparsable response"
	}
	cls.Reasoning = fmt.Sprintf("%s (%s)", cls.Reasoning, path)
	if cls.NeedsClarification {
		c.attachClarification(&cls, message)
	}

	c.logger.Warn("Falling back to keyword classification",
		"category", cls.Category,
		"provider", c.providerName(),
		"path", "fallback",
		"err", reason,
	)
	return cls
}

// attachClarification adds a generated question, keeping the provider's own
// question text when it supplied one.
func (c *Classifier) attachClarification(cls *domain.Classification, message string) {
	if c.questions == nil {
		return
	}
	req, err := c.questions.GenerateIntentClarification(cls, message)
	if err != nil {
		c.logger.Warn("Failed to generate clarification", "err", err)
		return
	}
	if cls.ClarificationQuestion != "" {
		req.Question = cls.ClarificationQuestion
	}
	cls.ClarificationQuestion = req.Question
	cls.Clarification = &req
}

func (c *Classifier) report(ctx context.Context, message string, cls domain.Classification, reason error, start time.Time) {
	if c.hooks.OnClassified == nil {
		return
	}
	c.hooks.OnClassified(ctx, &domain.ClassificationEvent{
		Message:        message,
		Classification: cls,
		Provider:       c.providerName(),
		Fallback:       reason != nil,
		Reason:         reason,
		Duration:       time.Since(start),
	})
}

func (c *Classifier) providerName() string {
	if c.provider == nil {
		return "none"
	}
	return c.provider.Name()
}
