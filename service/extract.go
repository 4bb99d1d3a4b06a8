package service

import (
	"strings"

	"regulaite-backend/models"
)

// ExtractText flattens a backend payload into plain text. It never fails;
// an empty result means the payload carried no content.
func ExtractText(c models.Content) string {
	switch c.Kind {
	case models.ContentText:
		return strings.TrimSpace(c.Text)
	case models.ContentFields:
		for _, key := range []string{"value", "text", "content"} {
			if v := strings.TrimSpace(c.Fields[key]); v != "" {
				return v
			}
		}
		return ""
	case models.ContentParts:
		var chunks []string
		for _, part := range c.Parts {
			if part.Type == "text" || part.Type == "output_text" {
				if txt := strings.TrimSpace(part.Text); txt != "" {
					chunks = append(chunks, txt)
				}
			}
			if len(chunks) == 0 {
				maybe := part.Value
				if maybe == "" {
					maybe = part.Content
				}
				if maybe = strings.TrimSpace(maybe); maybe != "" {
					chunks = append(chunks, maybe)
				}
			}
		}
		return strings.TrimSpace(strings.Join(chunks, "\n\n"))
	default:
		return ""
	}
}
