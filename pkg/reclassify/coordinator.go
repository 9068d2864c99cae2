// Package reclassify turns the user's reply to a clarification into a final
// classification.
package reclassify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/clarify"
	"github.com/aretw0/canvasbuilder/pkg/domain"
)

// Classifier is the subset of intent.Classifier used for re-querying.
type Classifier interface {
	Classify(ctx context.Context, message string, canvas *domain.CanvasContext) (domain.Classification, error)
}

// AlternativeGenerator builds the follow-up question after a rejection.
type AlternativeGenerator interface {
	GenerateAlternativeClarification(cls *domain.Classification, message string, excluded ...domain.IntentCategory) (domain.ClarificationRequest, error)
}

// Coordinator dispatches on the clarification response type.
type Coordinator struct {
	classifier Classifier
	generator  AlternativeGenerator
	logger     *slog.Logger
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger configures a logger for the Coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithGenerator replaces the default clarify.Generator.
func WithGenerator(g AlternativeGenerator) Option {
	return func(c *Coordinator) {
		c.generator = g
	}
}

// NewCoordinator creates a Coordinator that re-queries classifier.
func NewCoordinator(classifier Classifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		classifier: classifier,
		generator:  clarify.NewGenerator(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reclassify produces the classification that follows resp.
// originalMessage defaults to resp.OriginalMessage when empty.
//
//   - Cancelled: category Clarify, action none, confidence 1.0. No provider call.
//   - Confirmed: the original classification with confidence raised to at least 0.80.
//   - Rejected: category Clarify with an embedded question asking what to do instead.
//   - OptionSelected, FreeText: the classifier runs again on the message augmented
//     with the option label or the free text.
func (c *Coordinator) Reclassify(ctx context.Context, originalMessage string, resp *domain.ClarificationResponse, canvas *domain.CanvasContext) (domain.Classification, error) {
	if resp == nil {
		return domain.Classification{}, domain.MissingArgument("clarificationResponse")
	}
	if originalMessage == "" {
		originalMessage = resp.OriginalMessage
	}

	log := c.logger.With("session_id", resp.SessionID, "response", resp.Type)

	switch resp.Type {
	case domain.ResponseCancelled:
		log.Debug("Clarification cancelled")
		return cancelled(), nil

	case domain.ResponseConfirmed:
		if resp.OriginalClassification == nil {
			return domain.Classification{}, domain.MissingArgument("originalClassification")
		}
		log.Debug("Classification confirmed", "category", resp.OriginalClassification.Category)
		return confirmed(*resp.OriginalClassification), nil

	case domain.ResponseRejected:
		return c.rejected(originalMessage, resp)

	case domain.ResponseOptionSelected:
		label := selectedLabel(resp)
		if label == "" {
			return domain.Classification{}, domain.EmptyArgument("selectedOption")
		}
		return c.classifier.Classify(ctx, augmentWithOption(originalMessage, label), canvas)

	case domain.ResponseFreeText:
		text := strings.TrimSpace(resp.FreeText)
		if text == "" {
			return domain.Classification{}, domain.EmptyArgument("freeText")
		}
		return c.classifier.Classify(ctx, augmentWithText(originalMessage, text), canvas)
	}

	return domain.Classification{}, fmt.Errorf("%w: unknown clarification response type %q", domain.ErrInvalidArgument, resp.Type)
}

func cancelled() domain.Classification {
	return domain.Classification{
		Category:   domain.IntentClarify,
		Action:     domain.ActionNone,
		Confidence: 1.0,
		Reasoning:  "Clarification cancelled by the user",
	}
}

func confirmed(orig domain.Classification) domain.Classification {
	out := orig.Clone()
	out.Confidence = max(domain.ClampConfidence(orig.Confidence), domain.ConfirmedConfidenceFloor)
	out.NeedsClarification = false
	out.ClarificationQuestion = ""
	out.Clarification = nil
	out.Reasoning = "Confirmed by user"
	if orig.Reasoning != "" {
		out.Reasoning += ": " + orig.Reasoning
	}
	return out
}

func (c *Coordinator) rejected(originalMessage string, resp *domain.ClarificationResponse) (domain.Classification, error) {
	orig := domain.Classification{Category: domain.IntentUnclear}
	if resp.OriginalClassification != nil {
		orig = resp.OriginalClassification.Clone()
	}

	var excluded []domain.IntentCategory
	if resp.SelectedOptionID != "" {
		if cat := domain.ParseIntentCategory(resp.SelectedOptionID); cat.IsActionable() {
			excluded = append(excluded, cat)
		}
	}

	req, err := c.generator.GenerateAlternativeClarification(&orig, originalMessage, excluded...)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("failed to build alternative clarification: %w", err)
	}

	return domain.Classification{
		Category:              domain.IntentClarify,
		Action:                domain.ActionRequestClarification,
		Confidence:            0,
		Reasoning:             fmt.Sprintf("User rejected %s", orig.Category),
		NeedsClarification:    true,
		ClarificationQuestion: req.Question,
		Clarification:         &req,
	}, nil
}

// selectedLabel prefers the label relayed by the host, then the category
// label when the option id names a category, then the raw id.
func selectedLabel(resp *domain.ClarificationResponse) string {
	if l := strings.TrimSpace(resp.SelectedOptionLabel); l != "" {
		return l
	}
	id := strings.TrimSpace(resp.SelectedOptionID)
	if id == "" {
		return ""
	}
	if cat := domain.ParseIntentCategory(id); cat.IsActionable() {
		return clarify.Label(cat)
	}
	return id
}

func augmentWithOption(original, label string) string {
	if strings.TrimSpace(original) == "" {
		return label
	}
	return fmt.Sprintf("%s\n\nThe user clarified by choosing: %s", original, label)
}

func augmentWithText(original, text string) string {
	if strings.TrimSpace(original) == "" {
		return text
	}
	return fmt.Sprintf("%s\n\nThe user clarified: %s", original, text)
}
