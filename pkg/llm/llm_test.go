package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbmon/diskdiag/pkg/config"
)

func TestOpenAICompatChat(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{
			"model": "gpt-4o",
			"choices": [{"message": {"content": "NEXT_COMMAND: df -h"}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 9}
		}`)
	}))
	defer srv.Close()

	p := NewOpenAICompat(srv.URL, "sk-test", "gpt-4o", time.Minute, false)
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "diagnose"}},
		Options:  Options{Temperature: 0.2, MaxTokens: 4000},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])
	assert.Equal(t, 0.2, gotBody["temperature"])
	assert.Equal(t, "NEXT_COMMAND: df -h", resp.Content)
	assert.Equal(t, 120, resp.InputTokens)
	assert.Equal(t, 9, resp.OutputTokens)
}

func TestOpenAICompatChatErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream overloaded")
	}))
	defer srv.Close()

	p := NewOpenAICompat(srv.URL, "sk-test", "gpt-4o", time.Minute, false)
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestOpenAICompatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices": []}`)
	}))
	defer srv.Close()

	p := NewOpenAICompat(srv.URL, "", "m", time.Minute, false)
	_, err := p.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.NotNil(t, req.Options)
		assert.Equal(t, 4000, req.Options.NumPredict)

		json.NewEncoder(w).Encode(ollamaResponse{
			Model:           "qwen3:32b",
			Message:         Message{Role: "assistant", Content: "DIAGNOSIS_COMPLETE"},
			Done:            true,
			PromptEvalCount: 200,
			EvalCount:       15,
		})
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "qwen3:32b", time.Minute)
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "diagnose"}},
		Options:  Options{MaxTokens: 4000},
	})
	require.NoError(t, err)
	assert.Equal(t, "DIAGNOSIS_COMPLETE", resp.Content)
	assert.Equal(t, 200, resp.InputTokens)
	assert.Equal(t, 15, resp.OutputTokens)
}

func TestOllamaChatStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		chunks := []ollamaResponse{
			{Model: "qwen3:32b", Message: Message{Content: "NEXT_COMMAND: "}},
			{Model: "qwen3:32b", Message: Message{Content: "df -h"}},
			{Model: "qwen3:32b", Done: true, PromptEvalCount: 180, EvalCount: 7},
		}
		enc := json.NewEncoder(w)
		for _, c := range chunks {
			enc.Encode(c)
		}
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "qwen3:32b", time.Minute)
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "diagnose"}},
		Stream:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "NEXT_COMMAND: df -h", resp.Content)
	assert.Equal(t, 180, resp.InputTokens)
	assert.Equal(t, 7, resp.OutputTokens)
}

func TestOllamaChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "missing", time.Minute)
	_, err := p.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestTestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/version", "/api/models":
			fmt.Fprint(w, `{}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	require.NoError(t, NewOllama(srv.URL, "m", time.Minute).TestConnection(context.Background()))
	require.NoError(t, NewOpenAICompat(srv.URL, "sk", "m", time.Minute, false).TestConnection(context.Background()))
}

func TestNewFromConfig(t *testing.T) {
	openai, err := NewFromConfig(config.LLM{Provider: "openai", URL: "http://x", Model: "m", APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, "openai", openai.Name())

	_, err = NewFromConfig(config.LLM{Provider: "openai", URL: "http://x", Model: "m"})
	require.Error(t, err, "openai provider needs an api key")

	ollama, err := NewFromConfig(config.LLM{Provider: "ollama", URL: "http://x", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", ollama.Name())

	_, err = NewFromConfig(config.LLM{Provider: "bedrock"})
	require.Error(t, err)
}
