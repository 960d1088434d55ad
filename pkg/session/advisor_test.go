package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbmon/diskdiag/pkg/llm"
	"github.com/hbmon/diskdiag/pkg/model"
)

type fakeProvider struct {
	reply    string
	requests []llm.ChatRequest
}

func (p *fakeProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	return &llm.ChatResponse{Content: p.reply}, nil
}

func (p *fakeProvider) TestConnection(context.Context) error { return nil }
func (p *fakeProvider) Name() string                         { return "fake" }

func TestLLMAdvisorDecodesProposal(t *testing.T) {
	provider := &fakeProvider{reply: "TARGET_HOST: hbc21\nNEXT_COMMAND: df -h\nEXPLANATION: check usage"}
	advisor := NewLLMAdvisor(provider, llm.Options{}, false, 3000)

	action, raw, err := advisor.NextAction(context.Background(), testAlert(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, model.ActionProposeCommand, action.Kind)
	assert.Equal(t, "hbc21", action.TargetHost)
	assert.Equal(t, "df -h", action.Command)
	assert.Equal(t, provider.reply, raw)

	require.Len(t, provider.requests, 1)
	msgs := provider.requests[0].Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "h1")
	assert.Contains(t, msgs[0].Content, "/data")
}

func TestLLMAdvisorThreadsFeedback(t *testing.T) {
	provider := &fakeProvider{reply: "NEXT_COMMAND: du -sh /var/*\nEXPLANATION: size up /var"}
	advisor := NewLLMAdvisor(provider, llm.Options{}, false, 3000)

	feedback := []Feedback{
		{Reply: "NEXT_COMMAND: df -h", Rejection: "Command rejected as a near-duplicate"},
		{Reply: "garbage", Rejection: "Your reply did not follow the required format"},
	}
	_, _, err := advisor.NextAction(context.Background(), testAlert(), nil, feedback)
	require.NoError(t, err)

	msgs := provider.requests[0].Messages
	require.Len(t, msgs, 5)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "NEXT_COMMAND: df -h", msgs[1].Content)
	assert.Equal(t, "user", msgs[2].Role)
	assert.Contains(t, msgs[2].Content, "near-duplicate")
	assert.Equal(t, "assistant", msgs[3].Role)
	assert.Equal(t, "user", msgs[4].Role)
}

func TestLLMAdvisorHistoryReachesPrompt(t *testing.T) {
	provider := &fakeProvider{reply: "NEXT_COMMAND: lsof +L1\nEXPLANATION: deleted-but-open files"}
	advisor := NewLLMAdvisor(provider, llm.Options{}, false, 3000)

	history := []model.Turn{{
		Command:    "df -h",
		TargetHost: "h1",
		Decision:   model.DecisionApproved,
		Result:     &model.ExecutionResult{Stdout: "/dev/sda1 92% /data", Success: true},
	}}
	_, _, err := advisor.NextAction(context.Background(), testAlert(), history, nil)
	require.NoError(t, err)

	prompt := provider.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "df -h")
	assert.Contains(t, prompt, "/dev/sda1 92% /data")
}
