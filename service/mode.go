package service

import "strings"

// Mode is the requested answer depth
type Mode string

const (
	ModeShort    Mode = "short"
	ModeLong     Mode = "long"
	ModeResearch Mode = "research"
	ModeAuto     Mode = "auto"
)

var modeAliases = map[string]Mode{
	"short":    ModeShort,
	"concise":  ModeShort,
	"long":     ModeLong,
	"detailed": ModeLong,
	"research": ModeResearch,
	"deep":     ModeResearch,
	"auto":     ModeAuto,
}

// ResolveMode maps a free-form hint to a Mode. Unknown or blank hints give ModeAuto.
func ResolveMode(hint string) Mode {
	if m, ok := modeAliases[strings.ToLower(strings.TrimSpace(hint))]; ok {
		return m
	}
	return ModeAuto
}

// LengthDirective returns the one-line sizing instruction for a mode
func LengthDirective(m Mode) string {
	switch m {
	case ModeShort:
		return "Respond in ~5–8 bullet points with tight phrasing."
	case ModeLong:
		return "Respond as a detailed brief (8–15 bullets + short paragraphs)."
	case ModeResearch:
		return "Respond as a structured memo with sections, bullets, and short paragraphs; include context, caveats, and alternatives."
	default:
		return "Pick an appropriate level of detail automatically."
	}
}

// ModeAddendum returns the word-count target for a mode
func ModeAddendum(m Mode) string {
	switch m {
	case ModeShort:
		return "Mode: SHORT. Aim ~350–500 words."
	case ModeLong:
		return "Mode: LONG. Aim ~1000–1400 words, include comparison table + workflow/reporting guidance."
	case ModeResearch:
		return "Mode: RESEARCH. Aim ~1500–2000 words; must include detailed comparison table, " +
			"approval workflow and/or reporting matrix, and a strong recommendation."
	default:
		return "Mode: AUTO. Choose a suitable depth."
	}
}

// MaxOutputTokens returns the completion budget for a mode; auto uses the long budget
func MaxOutputTokens(m Mode) int {
	switch m {
	case ModeShort:
		return 1200
	case ModeResearch:
		return 5000
	default:
		return 3000
	}
}

// ModeForAnswerLength maps the UI answer-length choice to a mode hint
func ModeForAnswerLength(length string) Mode {
	switch strings.ToLower(strings.TrimSpace(length)) {
	case "short":
		return ModeShort
	case "medium":
		return ModeLong
	case "long":
		return ModeResearch
	default:
		return ModeAuto
	}
}
