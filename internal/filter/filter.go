package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/acuhlmann/hackersbot/internal/llm"
)

// Classification is the relevance verdict for one article.
type Classification struct {
	AIRelated  bool    `json:"is_ai_related"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Filter decides whether an article is on-topic.
type Filter interface {
	Classify(ctx context.Context, title, url, content string) (Classification, error)
}

// LLMFilter classifies articles with an LLM, falling back to keyword
// matching when the model's answer cannot be parsed.
type LLMFilter struct {
	client llm.Client
}

func New(client llm.Client) *LLMFilter {
	return &LLMFilter{client: client}
}

const contentPreviewLength = 500

func (f *LLMFilter) Classify(ctx context.Context, title, url, content string) (Classification, error) {
	preview := content
	if preview == "" {
		preview = "No content available"
	} else if len(preview) > contentPreviewLength {
		preview = preview[:contentPreviewLength]
	}

	prompt := fmt.Sprintf(`Analyze the following article and determine if it is related to Artificial Intelligence, Machine Learning, or AI technology.

Title: %s
URL: %s
Content preview: %s

Respond with ONLY a JSON object in this exact format:
{"is_ai_related": true/false, "confidence": 0.0-1.0, "reasoning": "brief explanation"}

JSON:`, title, url, preview)

	response, err := f.client.Generate(ctx, prompt)
	if err != nil {
		return Classification{}, fmt.Errorf("filter: classification failed: %w", err)
	}

	var c Classification
	if err := json.Unmarshal([]byte(llm.StripCodeFences(response)), &c); err != nil {
		// The model answered in prose; infer from keywords instead of failing.
		return keywordFallback(title + " " + response), nil
	}
	return c, nil
}

var aiKeywords = []string{
	"artificial intelligence",
	"machine learning",
	"neural network",
	"ai-related",
	"llm",
	"deep learning",
	"gpt",
	"ai technology",
}

func keywordFallback(text string) Classification {
	lower := strings.ToLower(text)
	for _, kw := range aiKeywords {
		if strings.Contains(lower, kw) {
			return Classification{
				AIRelated:  true,
				Confidence: 0.5,
				Reasoning:  "Could not parse structured response, inferred from keywords",
			}
		}
	}
	return Classification{
		AIRelated:  false,
		Confidence: 0.5,
		Reasoning:  "Could not parse structured response, no AI keywords found",
	}
}
