package session

import (
	"context"

	"github.com/hbmon/diskdiag/pkg/llm"
	"github.com/hbmon/diskdiag/pkg/model"
	"github.com/hbmon/diskdiag/pkg/parser"
	"github.com/hbmon/diskdiag/pkg/prompts"
)

// LLMAdvisor asks the chat endpoint for the next action. The conversation
// sent each turn is reconstructed from the alert and the full history, plus
// the rejected attempts of the current episode; the model never sees hidden
// mutable state.
type LLMAdvisor struct {
	provider     llm.Provider
	opts         llm.Options
	stream       bool
	outputBudget int
}

// NewLLMAdvisor creates an advisor on top of a chat provider.
func NewLLMAdvisor(provider llm.Provider, opts llm.Options, stream bool, outputBudget int) *LLMAdvisor {
	return &LLMAdvisor{provider: provider, opts: opts, stream: stream, outputBudget: outputBudget}
}

// NextAction builds the prompt, sends it, and decodes the reply. The raw
// reply text is returned alongside the action so the controller can thread
// it back as an assistant message when rejecting the attempt.
func (a *LLMAdvisor) NextAction(ctx context.Context, alert model.Alert, history []model.Turn, feedback []Feedback) (model.ParsedAction, string, error) {
	messages := []llm.Message{{
		Role:    "user",
		Content: prompts.BuildDiagnosticPrompt(alert, history, a.outputBudget),
	}}
	for _, f := range feedback {
		messages = append(messages,
			llm.Message{Role: "assistant", Content: f.Reply},
			llm.Message{Role: "user", Content: f.Rejection},
		)
	}

	resp, err := a.provider.Chat(ctx, llm.ChatRequest{
		Messages: messages,
		Options:  a.opts,
		Stream:   a.stream,
	})
	if err != nil {
		return model.ParsedAction{}, "", err
	}

	return parser.ParseReply(resp.Content), resp.Content, nil
}
