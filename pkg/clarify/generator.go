// Package clarify builds the questions posed back to the user when a message
// cannot be acted on with enough confidence.
package clarify

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/fallback"
	"github.com/google/uuid"
)

// MaxAlternatives caps the number of intent options offered at once.
const MaxAlternatives = 4

// defaultSuggestions pad the alternatives when the classification itself is not actionable.
var defaultSuggestions = []domain.IntentCategory{
	domain.IntentAddNode,
	domain.IntentConnectNodes,
	domain.IntentQueryStatus,
	domain.IntentCreatePlaybook,
}

// NeedsClarification is the single source of truth for whether a result may be
// acted on: it is true iff intentConfidence is below domain.IntentConfidenceThreshold
// or entityConfidence is present and below domain.EntityConfidenceThreshold.
func NeedsClarification(intentConfidence float64, entityConfidence *float64) bool {
	if intentConfidence < domain.IntentConfidenceThreshold {
		return true
	}
	return entityConfidence != nil && *entityConfidence < domain.EntityConfidenceThreshold
}

// Generator builds ClarificationRequests. It holds no per-turn state and is safe
// for concurrent use.
type Generator struct {
	logger *slog.Logger
	newID  func() string
}

// Option configures the Generator.
type Option func(*Generator)

// WithLogger configures a logger for the Generator.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithIDGenerator replaces the request ID source (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(g *Generator) {
		g.newID = fn
	}
}

// NewGenerator creates a clarification Generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		logger: logging.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateIntentClarification asks the user which action they meant.
// message is the text that was classified; it feeds the alternatives ranking.
func (g *Generator) GenerateIntentClarification(cls *domain.Classification, message string) (domain.ClarificationRequest, error) {
	if cls == nil {
		return domain.ClarificationRequest{}, domain.MissingArgument("classification")
	}

	alts := LikelyAlternatives(cls.Category, message)
	req := domain.ClarificationRequest{
		ID:                g.newID(),
		Type:              domain.ClarifyIntent,
		Question:          intentQuestion(alts),
		Options:           intentOptions(alts),
		AllowFreeText:     true,
		UnderstoodContext: understood(cls),
		AmbiguityReason:   ambiguity(cls),
	}

	g.logger.Debug("Generated intent clarification",
		"category", cls.Category,
		"options", len(req.Options),
	)
	return req, nil
}

// GenerateAlternativeClarification is used after the user rejected cls: it
// invites a different action and never offers the rejected category or any
// of excluded.
func (g *Generator) GenerateAlternativeClarification(cls *domain.Classification, message string, excluded ...domain.IntentCategory) (domain.ClarificationRequest, error) {
	if cls == nil {
		return domain.ClarificationRequest{}, domain.MissingArgument("classification")
	}

	skip := slices.Concat(excluded, []domain.IntentCategory{cls.Category, domain.IntentUnclear, domain.IntentClarify})
	alts := LikelyAlternatives(domain.IntentUnclear, message, skip...)

	return domain.ClarificationRequest{
		ID:                g.newID(),
		Type:              domain.ClarifyIntentDisambiguation,
		Question:          "Got it, that's not what you meant. What would you like to do instead?",
		Options:           intentOptions(alts),
		AllowFreeText:     true,
		UnderstoodContext: fmt.Sprintf("Not: %s", Label(cls.Category)),
		AmbiguityReason:   "The suggested action was rejected",
	}, nil
}

// GenerateEntityClarification asks which node (or other entity) the user meant.
// An empty candidate list yields a "couldn't find" question with no options.
func (g *Generator) GenerateEntityClarification(res *domain.EntityResolutionResult) (domain.ClarificationRequest, error) {
	if res == nil {
		return domain.ClarificationRequest{}, domain.MissingArgument("resolution")
	}

	kind := res.EntityType
	if kind == "" {
		kind = "item"
	}

	req := domain.ClarificationRequest{
		ID:              g.newID(),
		Type:            domain.ClarifyEntity,
		AllowFreeText:   true,
		AmbiguityReason: fmt.Sprintf("%q matched %d %ss", res.ReferenceText, len(res.Candidates), kind),
	}
	if len(res.Candidates) == 0 {
		req.Question = fmt.Sprintf("I couldn't find a %s matching %q. Could you describe it differently?", kind, res.ReferenceText)
		return req, nil
	}

	req.Question = fmt.Sprintf("Which %s did you mean?", kind)
	req.Options = candidateOptions(res.Candidates)
	return req, nil
}

// GenerateScopeClarification asks which skill, knowledge source or action the
// user meant. The reserved domain.CreateNewOptionID option is always appended.
func (g *Generator) GenerateScopeClarification(res *domain.EntityResolutionResult, referenceText string) (domain.ClarificationRequest, error) {
	if res == nil {
		return domain.ClarificationRequest{}, domain.MissingArgument("resolution")
	}
	if strings.TrimSpace(referenceText) == "" {
		return domain.ClarificationRequest{}, domain.EmptyArgument("referenceText")
	}

	noun := scopeNoun(res.ScopeCategory)
	req := domain.ClarificationRequest{
		ID:            g.newID(),
		Type:          domain.ClarifyScope,
		AllowFreeText: true,
		ScopeCategory: res.ScopeCategory,
		Options:       candidateOptions(res.Candidates),
	}
	if len(res.Candidates) == 0 {
		req.Question = fmt.Sprintf("I couldn't find a %s matching %q. Would you like to create a new one?", noun, referenceText)
	} else {
		req.Question = fmt.Sprintf("Which %s did you mean by %q?", noun, referenceText)
	}
	req.Options = append(req.Options, domain.ClarificationOption{
		ID:          domain.CreateNewOptionID,
		Label:       "Create new " + noun,
		Description: fmt.Sprintf("Create a new %s named %q", noun, referenceText),
	})
	return req, nil
}

// FormatForStreaming renders req as a Clarification stream event.
func FormatForStreaming(req *domain.ClarificationRequest) (domain.StreamEvent, error) {
	if req == nil {
		return domain.StreamEvent{}, domain.MissingArgument("clarification")
	}
	if len(req.Options) == 0 {
		return domain.ClarificationEvent(req.Question, *req), nil
	}

	var b strings.Builder
	b.WriteString(req.Question)
	b.WriteString("\n")
	for i, o := range req.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, o.Label)
	}
	return domain.ClarificationEvent(b.String(), *req), nil
}

// LikelyAlternatives ranks the categories the user may have meant. The primary
// category comes first, then keyword candidates from message. The result is
// deduplicated and capped at MaxAlternatives; categories in excluded never appear.
func LikelyAlternatives(primary domain.IntentCategory, message string, excluded ...domain.IntentCategory) []domain.IntentCategory {
	out := make([]domain.IntentCategory, 0, MaxAlternatives)
	add := func(c domain.IntentCategory) {
		if len(out) >= MaxAlternatives || slices.Contains(out, c) || slices.Contains(excluded, c) {
			return
		}
		out = append(out, c)
	}

	add(primary)
	for _, c := range fallback.Candidates(message) {
		add(c)
	}
	if !primary.IsActionable() || len(out) == 0 {
		for _, c := range defaultSuggestions {
			add(c)
		}
	}
	return out
}

func intentQuestion(alts []domain.IntentCategory) string {
	actionable := slices.DeleteFunc(slices.Clone(alts), func(c domain.IntentCategory) bool { return !c.IsActionable() })
	switch {
	case len(alts) >= 3:
		return "Which of these actions would you like to take?"
	case len(actionable) == 0:
		return "I'm not sure what you'd like to do. Could you describe it in more detail?"
	case len(alts) == 1:
		return fmt.Sprintf("Did you mean to %s?", phrase(alts[0]))
	default:
		return fmt.Sprintf("Did you mean to %s or %s?", phrase(alts[0]), phrase(alts[1]))
	}
}

func intentOptions(alts []domain.IntentCategory) []domain.ClarificationOption {
	opts := make([]domain.ClarificationOption, 0, len(alts))
	for _, c := range alts {
		opts = append(opts, domain.ClarificationOption{
			ID:          string(c),
			Label:       Label(c),
			Description: Description(c),
		})
	}
	return opts
}

func candidateOptions(matches []domain.EntityMatch) []domain.ClarificationOption {
	sorted := slices.Clone(matches)
	slices.SortStableFunc(sorted, func(a, b domain.EntityMatch) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	opts := make([]domain.ClarificationOption, 0, len(sorted)+1)
	for _, m := range sorted {
		opts = append(opts, domain.ClarificationOption{
			ID:          m.ID,
			Label:       m.Label,
			Description: m.Description,
		})
	}
	return opts
}

func understood(cls *domain.Classification) string {
	if !cls.Category.IsActionable() {
		return ""
	}
	return fmt.Sprintf("It sounds like you want to %s (%.0f%% sure)", phrase(cls.Category), cls.Confidence*100)
}

func ambiguity(cls *domain.Classification) string {
	if cls.Reasoning != "" {
		return cls.Reasoning
	}
	return "Confidence is below the threshold for acting"
}
