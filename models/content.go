package models

import (
	"bytes"
	"encoding/json"
)

// ContentKind identifies which shape a backend payload arrived in
type ContentKind int

const (
	ContentEmpty ContentKind = iota
	ContentText
	ContentFields
	ContentParts
)

// Content is a backend message payload. Exactly one of Text, Fields or
// Parts is meaningful, selected by Kind.
type Content struct {
	Kind   ContentKind
	Text   string
	Fields map[string]string
	Parts  []ContentPart
}

// ContentPart is one typed element of a multi-part message
type ContentPart struct {
	Type    string
	Text    string
	Value   string
	Content string
}

// TextContent wraps a plain string payload
func TextContent(s string) Content {
	return Content{Kind: ContentText, Text: s}
}

// PartsContent wraps a sequence of parts
func PartsContent(parts ...ContentPart) Content {
	return Content{Kind: ContentParts, Parts: parts}
}

// UnmarshalJSON classifies a raw payload into one of the known shapes.
// Unknown shapes decode to ContentEmpty instead of failing.
func (c *Content) UnmarshalJSON(data []byte) error {
	*c = Content{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*c = TextContent(s)
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		fields := make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := stringOrValue(v); ok {
				fields[k] = s
			}
		}
		*c = Content{Kind: ContentFields, Fields: fields}
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		parts := make([]ContentPart, 0, len(raw))
		for _, item := range raw {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '{' {
				continue
			}
			var p ContentPart
			if err := json.Unmarshal(item, &p); err != nil {
				continue
			}
			parts = append(parts, p)
		}
		*c = PartsContent(parts...)
	}
	return nil
}

// UnmarshalJSON accepts text as a string or as {"value": ...} / {"text": ...}
func (p *ContentPart) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    string          `json:"type"`
		Text    json.RawMessage `json:"text"`
		Value   json.RawMessage `json:"value"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ContentPart{Type: raw.Type}
	p.Text, _ = stringOrValue(raw.Text)
	p.Value, _ = stringOrValue(raw.Value)
	p.Content, _ = stringOrValue(raw.Content)
	return nil
}

// stringOrValue reads a JSON string, or the value/text key of a JSON object
func stringOrValue(data json.RawMessage) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", false
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false
		}
		return s, true
	case '{':
		var obj struct {
			Value *string `json:"value"`
			Text  *string `json:"text"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", false
		}
		if obj.Value != nil && *obj.Value != "" {
			return *obj.Value, true
		}
		if obj.Text != nil {
			return *obj.Text, true
		}
	}
	return "", false
}
