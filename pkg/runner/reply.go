package runner

import (
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/canvasbuilder/pkg/domain"
)

var (
	cancelWords  = []string{"cancel", "never mind", "nevermind", "forget it", "stop"}
	confirmWords = []string{"yes", "y", "yeah", "yep", "correct", "right", "sure", "ok", "okay"}
	rejectWords  = []string{"no", "n", "nope", "wrong", "not that"}
)

// ParseReply interprets a typed line as the answer to pending:
//   - a cancel phrase cancels the question;
//   - yes/no confirm or reject an intent question;
//   - an option number (1-based) or an exact option label selects it;
//   - anything else is free text.
func ParseReply(pending *domain.ClarificationRequest, text string) domain.ClarificationResponse {
	text = strings.TrimSpace(text)
	norm := strings.ToLower(strings.TrimRight(text, ".!"))

	if slices.Contains(cancelWords, norm) {
		return domain.ClarificationResponse{Type: domain.ResponseCancelled}
	}
	if pending == nil {
		return domain.ClarificationResponse{Type: domain.ResponseFreeText, FreeText: text}
	}

	if pending.Type == domain.ClarifyIntent || pending.Type == domain.ClarifyIntentDisambiguation {
		switch {
		case slices.Contains(confirmWords, norm):
			return domain.ClarificationResponse{Type: domain.ResponseConfirmed}
		case slices.Contains(rejectWords, norm):
			return domain.ClarificationResponse{Type: domain.ResponseRejected}
		}
	}

	if n, err := strconv.Atoi(norm); err == nil && n >= 1 && n <= len(pending.Options) {
		return selected(pending.Options[n-1])
	}
	for _, o := range pending.Options {
		if strings.EqualFold(o.Label, text) || strings.EqualFold(o.ID, text) {
			return selected(o)
		}
	}
	return domain.ClarificationResponse{Type: domain.ResponseFreeText, FreeText: text}
}

func selected(o domain.ClarificationOption) domain.ClarificationResponse {
	return domain.ClarificationResponse{
		Type:                domain.ResponseOptionSelected,
		SelectedOptionID:    o.ID,
		SelectedOptionLabel: o.Label,
	}
}
