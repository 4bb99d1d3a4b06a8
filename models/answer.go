package models

import (
	"strings"
)

// Framework is a regulatory framework tag an answer can cite evidence from
type Framework string

const (
	FrameworkIFRS           Framework = "IFRS"
	FrameworkAAOIFI         Framework = "AAOIFI"
	FrameworkCBB            Framework = "CBB"
	FrameworkInternalPolicy Framework = "InternalPolicy"
)

// Frameworks lists the known framework tags in rendering order
var Frameworks = []Framework{
	FrameworkIFRS,
	FrameworkAAOIFI,
	FrameworkCBB,
	FrameworkInternalPolicy,
}

// NoAnswerText is the narrative of the sentinel record
const NoAnswerText = "No answer was produced."

// Quote is a short evidence snippet taken from a framework document
type Quote struct {
	Framework Framework `json:"framework" validate:"required,oneof=IFRS AAOIFI CBB InternalPolicy"`
	Snippet   string    `json:"snippet"`
	Citation  *string   `json:"citation,omitempty"`
}

// PerSourceAnswer holds the notes and quotes for one framework.
// A framework without evidence is left out of AnswerRecord.PerSource entirely.
type PerSourceAnswer struct {
	Notes  *string `json:"notes,omitempty"`
	Quotes []Quote `json:"quotes" validate:"dive"`
}

// AnswerRecord is the normalized result of one query
type AnswerRecord struct {
	// Primary narrative; authoritative when non-empty
	RawMarkdown *string `json:"raw_markdown,omitempty"`

	Summary             string                        `json:"summary"`
	PerSource           map[Framework]PerSourceAnswer `json:"per_source" validate:"omitempty,dive,keys,oneof=IFRS AAOIFI CBB InternalPolicy,endkeys"`
	ComparisonTableMD   *string                       `json:"comparison_table_md,omitempty"`
	FollowUpSuggestions []string                      `json:"follow_up_suggestions"`

	// Legacy fields, only used by the structured rendering path
	ComparativeAnalysis string   `json:"comparative_analysis"`
	Recommendation      string   `json:"recommendation"`
	GeneralKnowledge    string   `json:"general_knowledge"`
	GapsOrNextSteps     string   `json:"gaps_or_next_steps"`
	Citations           []string `json:"citations"`
	AIOpinion           string   `json:"ai_opinion"`
}

// NewMarkdownAnswer creates a record carrying only a narrative
func NewMarkdownAnswer(markdown string) *AnswerRecord {
	return &AnswerRecord{
		RawMarkdown:         &markdown,
		PerSource:           map[Framework]PerSourceAnswer{},
		FollowUpSuggestions: []string{},
		Citations:           []string{},
	}
}

// NoAnswer returns the sentinel record used when no backend produced anything
func NoAnswer() *AnswerRecord {
	return NewMarkdownAnswer(NoAnswerText)
}

// Narrative returns the trimmed raw_markdown, or "" when it is absent
func (a *AnswerRecord) Narrative() string {
	if a == nil || a.RawMarkdown == nil {
		return ""
	}
	return strings.TrimSpace(*a.RawMarkdown)
}

// IsEmpty reports whether the record has nothing to display
func (a *AnswerRecord) IsEmpty() bool {
	if a == nil {
		return true
	}
	return a.Markdown() == ""
}

// HasEvidence reports whether any framework carries at least one quote
func (a *AnswerRecord) HasEvidence() bool {
	if a == nil {
		return false
	}
	for _, ps := range a.PerSource {
		if len(ps.Quotes) > 0 {
			return true
		}
	}
	return false
}

// Markdown renders the record for display and export.
// A non-empty raw_markdown is returned as is; otherwise the structured
// fields are laid out as fixed sections, skipping empty ones.
func (a *AnswerRecord) Markdown() string {
	if a == nil {
		return ""
	}
	if narrative := a.Narrative(); narrative != "" {
		return narrative
	}

	var parts []string
	section := func(title, body string) {
		body = strings.TrimSpace(body)
		if body == "" {
			return
		}
		parts = append(parts, "### "+title, body, "")
	}

	section("Summary", a.Summary)

	for _, fw := range Frameworks {
		ps, ok := a.PerSource[fw]
		if !ok {
			continue
		}
		sec := []string{"### " + string(fw)}
		if ps.Notes != nil && strings.TrimSpace(*ps.Notes) != "" {
			sec = append(sec, strings.TrimSpace(*ps.Notes))
		}
		if len(ps.Quotes) > 0 {
			sec = append(sec, "", "**Evidence:**")
			for _, q := range ps.Quotes {
				line := "> " + strings.TrimSpace(q.Snippet)
				if q.Citation != nil && strings.TrimSpace(*q.Citation) != "" {
					line += " — " + strings.TrimSpace(*q.Citation)
				}
				sec = append(sec, line)
			}
		}
		if len(sec) == 1 {
			continue
		}
		parts = append(parts, sec...)
		parts = append(parts, "")
	}

	if a.ComparisonTableMD != nil {
		section("Comparison", *a.ComparisonTableMD)
	}
	section("Comparative analysis", a.ComparativeAnalysis)
	section("Recommendation", a.Recommendation)
	section("General knowledge", a.GeneralKnowledge)
	section("Gaps / Next steps", a.GapsOrNextSteps)
	section("AI opinion", a.AIOpinion)

	var citations []string
	for _, c := range a.Citations {
		if c = strings.TrimSpace(c); c != "" {
			citations = append(citations, "- "+c)
		}
	}
	if len(citations) > 0 {
		parts = append(parts, "### Citations")
		parts = append(parts, citations...)
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}
