package summarizer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/acuhlmann/hackersbot/internal/fetcher"
	"github.com/acuhlmann/hackersbot/internal/llm"
)

const (
	// maxArticleChars bounds the article text sent to the model.
	maxArticleChars = 3000
	// maxThreadChars bounds the combined comment text sent to the model.
	maxThreadChars = 10000
)

// Summarizer produces natural-language summaries of an article and of its
// discussion thread.
type Summarizer interface {
	SummarizeArticle(ctx context.Context, article fetcher.Article, content string) (string, error)
	SummarizeThread(ctx context.Context, article fetcher.Article, comments []fetcher.Comment) (string, error)
}

// LLMSummarizer delegates summarization to an LLM backend.
type LLMSummarizer struct {
	client llm.Client
}

func New(client llm.Client) *LLMSummarizer {
	return &LLMSummarizer{client: client}
}

func (s *LLMSummarizer) SummarizeArticle(ctx context.Context, article fetcher.Article, content string) (string, error) {
	var text string
	if content == "" {
		text = fmt.Sprintf("Title: %s\nURL: %s\n\nThis article was linked from Hacker News but the content could not be fetched.",
			article.Title, article.URL)
	} else {
		text = fmt.Sprintf("Title: %s\nURL: %s\n\nContent:\n%s", article.Title, article.URL, content)
	}
	if len(text) > maxArticleChars {
		text = truncate(text, maxArticleChars) + "..."
	}

	prompt := fmt.Sprintf(`Please provide a concise summary of the following text.
Focus on the main points and key information.

Text:
%s

Summary:

Keep the summary under 150 words.`, text)

	summary, err := s.client.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summarizer: article summary failed: %w", err)
	}
	return summary, nil
}

func (s *LLMSummarizer) SummarizeThread(ctx context.Context, article fetcher.Article, comments []fetcher.Comment) (string, error) {
	if len(comments) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for i, c := range comments {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		author := c.Author
		if author == "" {
			author = "unknown"
		}
		fmt.Fprintf(&sb, "Comment by %s:\n%s", author, c.Text)
	}
	text := sb.String()
	if len(text) > maxThreadChars {
		text = truncate(text, maxThreadChars) + "..."
	}

	prompt := fmt.Sprintf(`Summarize the main discussion topics from these Hacker News comments in a concise paragraph (around 100-150 words).
Focus on the key themes and what people are discussing.

Article title: %s

Comments:
%s

Concise summary of discussion topics:`, article.Title, text)

	summary, err := s.client.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summarizer: thread summary failed: %w", err)
	}
	return summary, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
