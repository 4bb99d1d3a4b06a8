package models

// Conversation roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one stored message of a chat
type ConversationTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"meta,omitempty"`
}

// IsUser reports whether the turn was written by the user
func (t ConversationTurn) IsUser() bool {
	return t.Role == RoleUser
}
