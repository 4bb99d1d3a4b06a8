package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"regulaite-backend/models"
)

var strictPhrases = []string{
	"return only",
	"only the",
	"only:",
	"just the",
	"quote verbatim",
	"verbatim",
	"exact sentence",
	"exact line",
	"ids only",
	"url only",
	"nothing else",
}

var scenarioPhrases = []string{
	"scenario",
	"workflow",
	"board-ready",
	"board ready",
	"kris",
	"stress test",
	"stress-test",
	"escalation",
	"reporting matrix",
}

// IsStrictQuery reports whether the user asked for an exact extract
func IsStrictQuery(query string) bool {
	return containsAny(strings.ToLower(query), strictPhrases)
}

// IsScenarioQuery reports whether the query asks for playbook-style content.
// Strict queries are never scenario queries.
func IsScenarioQuery(query string) bool {
	q := strings.ToLower(query)
	return !containsAny(q, strictPhrases) && containsAny(q, scenarioPhrases)
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// ApplyLengthNote appends the answer-length hint for short and long UI
// choices. Strict queries are returned unchanged.
func ApplyLengthNote(query string, mode Mode) string {
	if IsStrictQuery(query) {
		return query
	}
	switch mode {
	case ModeShort:
		return query + "\n\n(Please answer concisely in 4–7 bullets or ~120–180 words.)"
	case ModeResearch:
		return query + "\n\n(Provide a comprehensive, board-ready answer with clear sectioning. Be thorough.)"
	default:
		return query
	}
}

const maxTopicRunes = 80

var followUpTemplates = []string{
	"Board approval thresholds for large exposures",
	"Monthly reporting checklist",
	"Escalation steps for breaches/exceptions",
	"Stress-test scenarios for concentration risk",
	"KRIs and metrics for exposure concentration",
	"Differences CBB vs Basel: connected parties",
}

// FollowUpSuggestions returns the six follow-up prompts for a query
func FollowUpSuggestions(query string) []string {
	topic := followUpTopic(query)
	out := make([]string, 0, len(followUpTemplates))
	for _, base := range followUpTemplates {
		if topic == "" {
			out = append(out, base)
			continue
		}
		out = append(out, fmt.Sprintf("%s (re: %s)", base, topic))
	}
	return out
}

func followUpTopic(query string) string {
	topic := strings.Join(strings.Fields(query), " ")
	if utf8.RuneCountInString(topic) > maxTopicRunes {
		topic = strings.TrimSpace(string([]rune(topic)[:maxTopicRunes])) + "…"
	}
	return strings.TrimRight(topic, "?")
}

const minAnswerRunes = 120

var notFoundPhrases = []string{
	"no matching content found",
	"not found in",
	"could not find",
	"no relevant",
	"no evidence",
}

var frameworkKeywords = []string{"ifrs", "aaoifi", "cbb", "internal polic"}

// IsWeakAnswer reports whether an answer is likely unhelpful: too short,
// a not-found statement about a framework, or a structured record with no
// quotes and no citations.
func IsWeakAnswer(rec *models.AnswerRecord) bool {
	md := strings.TrimSpace(rec.Markdown())
	if utf8.RuneCountInString(md) < minAnswerRunes {
		return true
	}
	lower := strings.ToLower(md)
	if containsAny(lower, notFoundPhrases) && containsAny(lower, frameworkKeywords) {
		return true
	}
	if rec.Narrative() == "" && !rec.HasEvidence() && len(rec.Citations) == 0 {
		return true
	}
	return false
}
