package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/acuhlmann/hackersbot/internal/config"
)

// Client generates text from a prompt. The pipeline depends only on this
// interface; the concrete provider is chosen once at configuration time.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New creates an LLM client based on the configuration.
func New(cfg *config.Config) (Client, error) {
	switch cfg.LLM.Provider {
	case "ollama":
		return NewOllamaClient(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLMTimeout()), nil
	case "deepseek":
		return NewDeepseekClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLMTimeout()), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// ErrUnsupportedProvider is returned when an unsupported LLM provider is specified.
var ErrUnsupportedProvider = fmt.Errorf("unsupported llm provider")

// StripCodeFences removes markdown code fences around a model response.
// Models often wrap JSON answers in ```json ... ``` despite instructions.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
