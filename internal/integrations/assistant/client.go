package assistant

import "context"

// Client is a chat-completion provider.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}
