package service

import (
	"encoding/json"
	"regexp"
	"strings"

	"regulaite-backend/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	fenceOpenRe       = regexp.MustCompile("^```[a-zA-Z0-9_-]*\\s*")
	fenceCloseRe      = regexp.MustCompile("\\s*```$")
	jsonSpanRe        = regexp.MustCompile(`(?s)\{.*\}`)
	trailingBraceRe   = regexp.MustCompile(`,\s*}`)
	trailingBracketRe = regexp.MustCompile(`,\s*]`)
	rawMarkdownRe     = regexp.MustCompile(`(?s)"raw_markdown"\s*:\s*"(.*)"\s*(,|\})`)

	escapeReplacer = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`)

	answerValidator = validator.New()
)

// answerKeys are the top-level keys of the answer object
var answerKeys = []string{
	"raw_markdown", "summary", "per_source", "comparison_table_md", "follow_up_suggestions",
	"comparative_analysis", "recommendation", "general_knowledge", "gaps_or_next_steps",
	"citations", "ai_opinion",
}

// hasAnswerKeys reports whether obj carries any answer key
func hasAnswerKeys(obj map[string]any) bool {
	for _, k := range answerKeys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// jsonRecovery turns a candidate JSON span into an object, or nil
type jsonRecovery func(span string) map[string]any

// recoveryStrategies are tried in order; the first non-nil result wins
var recoveryStrategies = []jsonRecovery{
	parseStrict,
	parseWithoutTrailingCommas,
	parseRawMarkdownField,
}

func parseStrict(span string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return nil
	}
	return obj
}

func parseWithoutTrailingCommas(span string) map[string]any {
	repaired := trailingBraceRe.ReplaceAllString(span, "}")
	repaired = trailingBracketRe.ReplaceAllString(repaired, "]")
	return parseStrict(repaired)
}

func parseRawMarkdownField(span string) map[string]any {
	m := rawMarkdownRe.FindStringSubmatch(span)
	if m == nil {
		return nil
	}
	return map[string]any{"raw_markdown": escapeReplacer.Replace(m[1])}
}

// stripCodeFences removes one leading ```lang line and one trailing ```
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = fenceOpenRe.ReplaceAllString(s, "")
		s = fenceCloseRe.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// unescapeNewlines expands literal \n sequences in text that has no real newline
func unescapeNewlines(s string) string {
	if strings.Contains(s, `\n`) && !strings.Contains(s, "\n") {
		return strings.ReplaceAll(s, `\n`, "\n")
	}
	return s
}

// recoverJSON finds the outermost {...} span and runs the recovery strategies on it
func recoverJSON(text string) map[string]any {
	span := jsonSpanRe.FindString(text)
	if span == "" {
		return nil
	}
	for _, strategy := range recoveryStrategies {
		if obj := strategy(span); obj != nil {
			return obj
		}
	}
	return nil
}

// decodeAnswer maps a recovered object onto an AnswerRecord and validates it
func decodeAnswer(obj map[string]any) (*models.AnswerRecord, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	rec := &models.AnswerRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, err
	}
	if err := answerValidator.Struct(rec); err != nil {
		return nil, err
	}
	if rec.PerSource == nil {
		rec.PerSource = map[models.Framework]models.PerSourceAnswer{}
	}
	if rec.FollowUpSuggestions == nil {
		rec.FollowUpSuggestions = []string{}
	}
	if rec.Citations == nil {
		rec.Citations = []string{}
	}
	return rec, nil
}

// Normalize parses backend text into an AnswerRecord. It never fails: text
// that is not recoverable JSON becomes the record's raw_markdown. Empty input
// gives an empty raw_markdown; callers substitute NoAnswer.
func Normalize(text string) *models.AnswerRecord {
	return normalizeWithLogger(text, zap.NewNop())
}

func normalizeWithLogger(text string, logger *zap.Logger) *models.AnswerRecord {
	stripped := stripCodeFences(text)
	if stripped == "" {
		return models.NewMarkdownAnswer("")
	}

	obj := recoverJSON(stripped)
	if obj == nil {
		return models.NewMarkdownAnswer(strings.TrimSpace(unescapeNewlines(stripped)))
	}

	rec, err := decodeAnswer(obj)
	if err != nil {
		logger.Debug("Answer JSON did not validate, keeping narrative only", zap.Error(err))
		if raw, ok := obj["raw_markdown"].(string); ok && strings.TrimSpace(raw) != "" {
			return models.NewMarkdownAnswer(strings.TrimSpace(unescapeNewlines(stripCodeFences(raw))))
		}
		return models.NewMarkdownAnswer(stripped)
	}

	if rec.RawMarkdown != nil {
		md := unescapeNewlines(*rec.RawMarkdown)
		if strings.HasPrefix(strings.TrimSpace(md), "```") {
			md = stripCodeFences(md)
		}
		rec.RawMarkdown = &md
	}

	// An object with none of the answer keys is prose that happens to contain braces
	if !hasAnswerKeys(obj) {
		logger.Debug("Recovered JSON carried no answer fields, using full text")
		return models.NewMarkdownAnswer(strings.TrimSpace(unescapeNewlines(stripped)))
	}
	return rec
}
