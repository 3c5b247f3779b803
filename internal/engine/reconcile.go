package engine

import (
	"sort"

	"github.com/spec-kit/chat-widget/internal/calling"
	"github.com/spec-kit/chat-widget/internal/domain"
)

// HiddenStart describes an active hidden auto-start configuration during a
// history load. When active, the first history message matching the start
// text is suppressed.
type HiddenStart struct {
	Active bool
	Text   string
}

// Reconcile annotates a freshly fetched history list in place: it re-sorts
// chronologically, suppresses the hidden start message, pairs interactive
// questions with their answers, and hides abandoned prompts. Entries are
// never removed; only the derived flags change. Missing optional fields
// mean "does not match", never an error.
func Reconcile(messages []*domain.Message, hiddenStart HiddenStart) {
	// The pairing pass scans backward from each answer, so chronological
	// order is a hard requirement. Callers should sort, but the history API
	// does not guarantee order, so re-sort here.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	suppressHiddenStart(messages, hiddenStart)
	pairAnswers(messages)
	hideAbandoned(messages)
}

// suppressHiddenStart hides the first message whose text matches the
// configured start text. Only the first match: a later message with
// coincidentally identical text is a legitimate message.
func suppressHiddenStart(messages []*domain.Message, hiddenStart HiddenStart) {
	if !hiddenStart.Active || hiddenStart.Text == "" {
		return
	}
	expected := normalizeText(hiddenStart.Text)
	for _, msg := range messages {
		if normalizeText(msg.Text) == expected {
			msg.Hidden = true
			break
		}
	}
}

// pairAnswers walks forward through history and, for each outbound answer,
// scans backward for its question. Nearest-unanswered semantics: an answer
// always pairs with the most recent open question, never an older one.
func pairAnswers(messages []*domain.Message) {
	for idx, msg := range messages {
		if !msg.Outbound() {
			continue
		}
		switch {
		case msg.Form != nil:
			pairFormAnswer(messages, idx, msg)
		case msg.RelatedID != "":
			pairQuickReplyAnswer(messages, idx, msg)
		}
	}
}

// pairFormAnswer merges a submitted form's field values into the nearest
// prior unanswered question carrying the same template id, marks the
// question answered and hides the answer bubble.
func pairFormAnswer(messages []*domain.Message, idx int, answer *domain.Message) {
	if answer.Form.TemplateID == "" {
		return
	}
	for i := idx - 1; i >= 0; i-- {
		question := messages[i]
		if question.Outbound() || question.Form == nil || question.Answered {
			continue
		}
		if question.Form.TemplateID != answer.Form.TemplateID {
			continue
		}
		for fi := range question.Form.Fields {
			for _, af := range answer.Form.Fields {
				if af.Name == question.Form.Fields[fi].Name && af.Value != "" {
					question.Form.Fields[fi].Value = af.Value
				}
			}
		}
		question.Answered = true
		answer.Hidden = true
		return
	}
}

// pairQuickReplyAnswer resolves the selected option on the question the
// answer's relatedId points to. The option identifier from interactiveData
// wins; answers recorded without it fall back to a title match. A resolved
// call-action option is non-terminating: calling is repeatable, so the
// question stays open and the answer stays visible.
func pairQuickReplyAnswer(messages []*domain.Message, idx int, answer *domain.Message) {
	for i := idx - 1; i >= 0; i-- {
		question := messages[i]
		if question.CorrelationID != answer.RelatedID || question.QuickReplies == nil || question.Answered {
			continue
		}

		selected := ""
		if answer.Interactive != nil {
			selected = answer.Interactive.Identifier
		}
		if selected == "" && answer.Text != "" {
			want := normalizeText(answer.Text)
			for _, opt := range question.QuickReplies.Options {
				if opt.Title != "" && normalizeText(opt.Title) == want {
					selected = opt.Identifier
					break
				}
			}
		}

		if selected != "" {
			if opt, ok := optionByIdentifier(question.QuickReplies, selected); ok && calling.IsCallOption(opt) {
				return
			}
			question.Answered = true
			question.SelectedOptionID = selected
			answer.Answered = true
			answer.SelectedOptionID = selected
			answer.Hidden = true
		}
		return
	}
}

// hideAbandoned suppresses stale interactive prompts: inbound, unanswered,
// and no longer the last message. The newest prompt stays visible even if
// unanswered, and call-action prompts are standing offers, never abandoned.
func hideAbandoned(messages []*domain.Message) {
	for idx, msg := range messages {
		if msg.Hidden || msg.Outbound() || !msg.Interactivity() {
			continue
		}
		if msg.Answered || idx == len(messages)-1 {
			continue
		}
		if calling.HasCallAction(msg) {
			continue
		}
		msg.Hidden = true
	}
}

func optionByIdentifier(set *domain.QuickReplySet, identifier string) (domain.QuickReplyOption, bool) {
	for _, opt := range set.Options {
		if opt.Identifier == identifier {
			return opt, true
		}
	}
	return domain.QuickReplyOption{}, false
}
