package ai

import "context"

// Role of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a completion request or a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Client is the completion capability: complete(systemPrompt?, userPrompt) -> text.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Ask sends an optional system prompt and a single user prompt.
func Ask(ctx context.Context, c Client, system, user string) (string, error) {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: user})
	return c.Complete(ctx, msgs)
}
