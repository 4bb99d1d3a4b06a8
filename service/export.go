package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"regulaite-backend/models"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ErrNoAnswer is returned when a transcript has no assistant turn to export
var ErrNoAnswer = errors.New("no assistant answer to export")

var markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

const answerPageTemplate = `<!doctype html>
<html><head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: -apple-system, Segoe UI, Roboto, Helvetica, Arial, sans-serif; padding: 24px; }
pre, code { background:#f6f8fa; padding:2px 4px; border-radius:4px; }
table { border-collapse: collapse; width:100%%; }
th, td { border:1px solid #e5e7eb; padding:8px; }
h1, h2, h3 { margin-top:1.2em; }
</style>
</head><body>
%s
</body></html>
`

// DisplayMarkdown renders stored turn content for display. Assistant turns
// hold whatever the backend returned, so they are normalized again.
func DisplayMarkdown(content string) string {
	return Normalize(content).Markdown()
}

// LatestAnswerMarkdown returns the display markdown of the last assistant turn
func LatestAnswerMarkdown(history []models.ConversationTurn) (string, error) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != models.RoleAssistant {
			continue
		}
		if md := DisplayMarkdown(history[i].Content); md != "" {
			return md, nil
		}
	}
	return "", ErrNoAnswer
}

// RenderHTML converts markdown into a standalone HTML page
func RenderHTML(title, markdown string) (string, error) {
	var body bytes.Buffer
	if err := markdownRenderer.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return fmt.Sprintf(answerPageTemplate, html.EscapeString(title), body.String()), nil
}

// ChatJSON encodes the transcript as an indented JSON array
func ChatJSON(history []models.ConversationTurn) ([]byte, error) {
	if history == nil {
		history = []models.ConversationTurn{}
	}
	return json.MarshalIndent(history, "", "  ")
}

// ChatMarkdown renders the transcript with one "### Role (time)" section per turn
func ChatMarkdown(history []models.ConversationTurn) string {
	parts := make([]string, 0, len(history))
	for _, t := range history {
		role := t.Role
		if role == "" {
			role = models.RoleAssistant
		}
		header := "### " + strings.ToUpper(role[:1]) + role[1:]
		if t.Timestamp != "" {
			header += " (" + t.Timestamp + ")"
		}
		parts = append(parts, header+"\n\n"+DisplayMarkdown(t.Content)+"\n")
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// ExportFileName builds a download name such as regulaite_answer_20240131_154500.md
func ExportFileName(kind, ext string, at time.Time) string {
	return fmt.Sprintf("regulaite_%s_%s.%s", kind, at.Format("20060102_150405"), ext)
}
