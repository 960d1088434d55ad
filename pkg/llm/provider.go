// Package llm contains the chat endpoint clients used to drive a diagnosis.
package llm

import "context"

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Options are the generation parameters forwarded to the model.
type Options struct {
	Temperature   float64
	TopP          float64
	TopK          int
	RepeatPenalty float64
	ContextWindow int
	MaxTokens     int
}

// ChatRequest is a single chat completion request.
type ChatRequest struct {
	Model    string
	Messages []Message
	Options  Options
	Stream   bool
}

// ChatResponse is the completed reply, with token counts when the endpoint
// reports them.
type ChatResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Provider is the chat endpoint abstraction. Chat blocks until the reply is
// complete (streamed chunks are assembled internally); the context carries
// the caller's timeout.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	TestConnection(ctx context.Context) error
	Name() string
}
