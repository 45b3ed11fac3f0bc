// Package port define a fronteira entre o orquestrador e o modelo de
// linguagem. O orquestrador só conhece estas interfaces; o adaptador Gemini
// vive em internal/infra/gemini.
package port

import (
	"context"

	"github.com/citmax/central-assinante-go/internal/chat/domain"
)

// ModelReply is one model response: free text plus zero or more tool calls.
type ModelReply struct {
	Text      string
	ToolCalls []domain.ToolCall

	// Token usage for the turn, when the backend reports it.
	PromptTokens     int
	CompletionTokens int
}

// ModelConversation is a live multi-turn exchange with the model.
type ModelConversation interface {
	// Send delivers a user message and returns the model's reply.
	Send(ctx context.Context, text string) (ModelReply, error)

	// SendToolResults delivers the outcomes of dispatched tool calls and
	// returns the follow-up reply.
	SendToolResults(ctx context.Context, results []domain.ToolResult) (ModelReply, error)
}

// ChatModel creates conversations seeded with a system context.
type ChatModel interface {
	// Available reports whether the backend can be reached at all (an
	// unavailable model degrades the chat to a fixed reply, it never
	// breaks the portal).
	Available() bool

	// StartConversation opens a conversation carrying the subscriber
	// context assembled at open time.
	StartConversation(ctx context.Context, systemContext string) (ModelConversation, error)
}
