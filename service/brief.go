package service

import (
	"strings"
	"unicode/utf8"

	"regulaite-backend/models"
)

const (
	briefMaxTurns          = 10
	briefMaxAssistantRunes = 600
)

// ConversationBrief compresses recent history into "role: content" lines,
// oldest first. A trailing user turn equal to query is dropped since the
// query is sent separately.
func ConversationBrief(history []models.ConversationTurn, query string) string {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.IsUser() && strings.TrimSpace(last.Content) == strings.TrimSpace(query) {
			history = history[:n-1]
		}
	}
	if len(history) > briefMaxTurns {
		history = history[len(history)-briefMaxTurns:]
	}

	lines := make([]string, 0, len(history))
	for _, turn := range history {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		if turn.Role == models.RoleAssistant && utf8.RuneCountInString(content) > briefMaxAssistantRunes {
			content = strings.TrimSpace(string([]rune(content)[:briefMaxAssistantRunes])) + "…"
		}
		lines = append(lines, strings.TrimSpace(turn.Role)+": "+content)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// composeUserText prefixes the query with the brief when there is one
func composeUserText(brief, query string) string {
	if brief == "" {
		return query
	}
	return "Conversation brief (oldest first):\n" + brief + "\n\nUser query:\n" + query
}
