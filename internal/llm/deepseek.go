package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/acuhlmann/hackersbot/internal/retry"
)

const deepseekSystemPrompt = "You are a helpful assistant that provides concise, accurate responses."

// DeepseekClient talks to the hosted DeepSeek API (OpenAI-compatible).
type DeepseekClient struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

func NewDeepseekClient(baseURL, apiKey, model string, maxTokens int, timeout time.Duration) *DeepseekClient {
	return &DeepseekClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
	}
}

type deepseekRequest struct {
	Model       string            `json:"model"`
	Messages    []deepseekMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
}

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekResponse struct {
	Choices []struct {
		Message deepseekMessage `json:"message"`
	} `json:"choices"`
	Error *deepseekError `json:"error,omitempty"`
}

type deepseekError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (c *DeepseekClient) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := retry.WithBackoff(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
		text, err := c.chatCompletion(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

func (c *DeepseekClient) chatCompletion(ctx context.Context, prompt string) (string, error) {
	reqBody := deepseekRequest{
		Model: c.model,
		Messages: []deepseekMessage{
			{Role: "system", Content: deepseekSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("deepseek: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("deepseek: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepseek: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("deepseek: failed to read response: %w", err)
	}

	var apiResp deepseekResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("deepseek: unexpected status %d: %s", resp.StatusCode, respBody)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("deepseek: API error (status %d): %s - %s",
			resp.StatusCode, apiResp.Error.Type, apiResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepseek: unexpected status %d: %s", resp.StatusCode, respBody)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("deepseek: empty response")
	}

	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}
