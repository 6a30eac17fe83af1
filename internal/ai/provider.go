package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider sends a whole conversation to a chat-completion backend and
// returns the text of the first choice.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
