package service

import (
	"encoding/json"
	"testing"

	"regulaite-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeContent(t *testing.T, raw string) models.Content {
	t.Helper()
	var c models.Content
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	return c
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"plain string", `"  hello  "`, "hello"},
		{"null", `null`, ""},
		{"number", `42`, ""},
		{"fields value", `{"value": "from value", "text": "from text"}`, "from value"},
		{"fields text", `{"text": "from text"}`, "from text"},
		{"fields content", `{"content": "from content"}`, "from content"},
		{"parts text value", `[{"type": "text", "text": {"value": "A"}}]`, "A"},
		{"parts text text", `[{"type": "text", "text": {"text": "B"}}]`, "B"},
		{"parts output_text string", `[{"type": "output_text", "text": "C"}]`, "C"},
		{
			"parts joined with blank line",
			`[{"type": "text", "text": {"value": "one"}}, "skip", 7, {"type": "output_text", "text": "two"}]`,
			"one\n\ntwo",
		},
		{"fallback value", `[{"type": "image", "value": "V"}]`, "V"},
		{"fallback content", `[{"type": "other", "content": "K"}]`, "K"},
		{
			"fallback only before first chunk",
			`[{"type": "text", "text": "first"}, {"type": "other", "value": "ignored"}]`,
			"first",
		},
		{"empty parts", `[]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractText(decodeContent(t, tt.raw)))
		})
	}
}

func TestExtractTextConstructed(t *testing.T) {
	assert.Equal(t, "x", ExtractText(models.TextContent(" x ")))
	assert.Equal(t, "", ExtractText(models.Content{}))
	assert.Equal(t, "a\n\nb", ExtractText(models.PartsContent(
		models.ContentPart{Type: "text", Text: "a"},
		models.ContentPart{Type: "output_text", Text: "b"},
	)))
}
