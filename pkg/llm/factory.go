package llm

import (
	"fmt"

	"github.com/hbmon/diskdiag/pkg/config"
)

// NewFromConfig creates the configured chat provider.
func NewFromConfig(cfg config.LLM) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm.api_key is required for the openai provider")
		}
		return NewOpenAICompat(cfg.URL, cfg.APIKey, cfg.Model, cfg.Timeout, cfg.InsecureTLS()), nil
	case "ollama":
		return NewOllama(cfg.URL, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (supported: openai, ollama)", cfg.Provider)
	}
}

// OptionsFromConfig maps config generation parameters onto request options.
func OptionsFromConfig(cfg config.LLM) Options {
	return Options{
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		TopK:          cfg.TopK,
		RepeatPenalty: cfg.RepeatPenalty,
		ContextWindow: cfg.ContextWindow,
		MaxTokens:     cfg.MaxTokens,
	}
}
