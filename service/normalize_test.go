package service

import (
	"testing"

	"regulaite-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFencedJSON(t *testing.T) {
	rec := Normalize("```json\n{\"raw_markdown\": \"Hello\", \"follow_up_suggestions\": []}\n```")

	require.NotNil(t, rec.RawMarkdown)
	assert.Equal(t, "Hello", *rec.RawMarkdown)
	assert.Empty(t, rec.FollowUpSuggestions)
}

func TestNormalizeTrailingCommaVariant(t *testing.T) {
	rec := Normalize(`{"raw_markdown": "A", "extra_bad":,}`)

	require.NotNil(t, rec.RawMarkdown)
	assert.Equal(t, "A", *rec.RawMarkdown)
}

func TestNormalizeTrailingCommaRepair(t *testing.T) {
	rec := Normalize(`{"raw_markdown": "Body", "follow_up_suggestions": ["a", "b",],}`)

	assert.Equal(t, "Body", rec.Narrative())
	assert.Equal(t, []string{"a", "b"}, rec.FollowUpSuggestions)
}

func TestNormalizeRawMarkdownRegexUnescapes(t *testing.T) {
	rec := Normalize(`{"raw_markdown": "Line 1\nLine \"2\"\tend", "per_source": {broken}`)

	assert.Equal(t, "Line 1\nLine \"2\"\tend", rec.Narrative())
}

func TestNormalizeRoundTrip(t *testing.T) {
	input := `{
		"raw_markdown": "## Large exposures\n\nCBB caps single counterparties at 25%.",
		"summary": "CBB sets a 25% cap.",
		"per_source": {
			"CBB": {"notes": "Binding", "quotes": [{"framework": "CBB", "snippet": "25% of capital base", "citation": "CM-5.2"}]},
			"IFRS": {"quotes": []}
		},
		"comparison_table_md": "| a | b |",
		"follow_up_suggestions": ["Monthly reporting?"],
		"citations": ["CBB CM-5.2"]
	}`

	rec := Normalize(input)

	assert.Equal(t, "## Large exposures\n\nCBB caps single counterparties at 25%.", rec.Narrative())
	assert.Equal(t, "CBB sets a 25% cap.", rec.Summary)
	require.Contains(t, rec.PerSource, models.FrameworkCBB)
	cbb := rec.PerSource[models.FrameworkCBB]
	require.NotNil(t, cbb.Notes)
	assert.Equal(t, "Binding", *cbb.Notes)
	require.Len(t, cbb.Quotes, 1)
	assert.Equal(t, "25% of capital base", cbb.Quotes[0].Snippet)
	require.NotNil(t, cbb.Quotes[0].Citation)
	assert.Equal(t, "CM-5.2", *cbb.Quotes[0].Citation)
	assert.Empty(t, rec.PerSource[models.FrameworkIFRS].Quotes)
	require.NotNil(t, rec.ComparisonTableMD)
	assert.Equal(t, "| a | b |", *rec.ComparisonTableMD)
	assert.Equal(t, []string{"Monthly reporting?"}, rec.FollowUpSuggestions)
	assert.Equal(t, []string{"CBB CM-5.2"}, rec.Citations)
}

func TestNormalizeFenceIdempotence(t *testing.T) {
	inputs := []string{
		`{"raw_markdown": "Hello", "summary": "s"}`,
		`{"summary": "only a summary", "per_source": {"AAOIFI": {"quotes": [{"framework": "AAOIFI", "snippet": "x"}]}}}`,
		"plain text answer",
		`{"raw_markdown": "A", "extra_bad":,}`,
	}
	for _, in := range inputs {
		plain := Normalize(in)
		assert.Equal(t, plain, Normalize("```\n"+in+"\n```"), in)
		assert.Equal(t, plain, Normalize("```json\n"+in+"\n```"), in)
	}
}

func TestNormalizeNonJSONFallback(t *testing.T) {
	rec := Normalize("  The limit is 25% of the capital base.  ")
	assert.Equal(t, "The limit is 25% of the capital base.", rec.Narrative())

	rec = Normalize(`Line one\nLine two`)
	assert.Equal(t, "Line one\nLine two", rec.Narrative())
}

func TestNormalizeValidationFailureKeepsNarrative(t *testing.T) {
	rec := Normalize(`{"raw_markdown": "Kept", "per_source": {"Basel": {"quotes": []}}}`)
	assert.Equal(t, "Kept", rec.Narrative())
	assert.Empty(t, rec.PerSource)

	rec = Normalize(`{"summary": 42, "per_source": {}}`)
	assert.Equal(t, `{"summary": 42, "per_source": {}}`, rec.Narrative())
}

func TestNormalizeBraceProseUsesWholeText(t *testing.T) {
	rec := Normalize(`Use the format {"a": 1} when filing.`)
	assert.Equal(t, `Use the format {"a": 1} when filing.`, rec.Narrative())
}

func TestNormalizeEmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "```\n```"} {
		rec := Normalize(in)
		require.NotNil(t, rec)
		assert.Equal(t, "", rec.Narrative())
		assert.True(t, rec.IsEmpty())
	}
}

func TestNormalizeFencedRawMarkdownValue(t *testing.T) {
	rec := Normalize(`{"raw_markdown": "` + "```markdown\\n# Title\\n```" + `"}`)
	assert.Equal(t, "# Title", rec.Narrative())
}

func TestNormalizeEmptySnippetAndNilCitation(t *testing.T) {
	rec := Normalize(`{"raw_markdown":"","summary":"Large exposures need board approval.","per_source":{"CBB":{"quotes":[{"framework":"CBB","snippet":""}]}}}`)

	require.NotNil(t, rec.RawMarkdown)
	assert.Equal(t, "", *rec.RawMarkdown)
	assert.Equal(t, "Large exposures need board approval.", rec.Summary)
	require.Contains(t, rec.PerSource, models.FrameworkCBB)
	quotes := rec.PerSource[models.FrameworkCBB].Quotes
	require.Len(t, quotes, 1)
	assert.Equal(t, models.FrameworkCBB, quotes[0].Framework)
	assert.Equal(t, "", quotes[0].Snippet)
	assert.Nil(t, quotes[0].Citation)
	assert.NotContains(t, rec.Markdown(), `"summary"`)
	assert.Contains(t, rec.Markdown(), "Large exposures need board approval.")
}

func TestNormalizeKeepsObjectWithoutRenderableFields(t *testing.T) {
	rec := Normalize(`{"follow_up_suggestions":["a","b"]}`)

	assert.Nil(t, rec.RawMarkdown)
	assert.Equal(t, []string{"a", "b"}, rec.FollowUpSuggestions)
	assert.True(t, rec.IsEmpty())
}

func TestNormalizeKeepsRawMarkdownWhitespace(t *testing.T) {
	rec := Normalize(`{"raw_markdown":" Hello "}`)

	require.NotNil(t, rec.RawMarkdown)
	assert.Equal(t, " Hello ", *rec.RawMarkdown)
	assert.Equal(t, "Hello", rec.Narrative())
	assert.Equal(t, "Hello", rec.Markdown())
}
