package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/acuhlmann/hackersbot/internal/retry"
)

const (
	defaultAPIBaseURL = "https://hacker-news.firebaseio.com/v0"
	siteBaseURL       = "https://news.ycombinator.com"

	// maxContentLength caps extracted article text before summarization.
	maxContentLength = 5000

	// minCommentLength filters out noise comments ("thanks", bare links).
	minCommentLength = 15
)

// hnItem mirrors the Hacker News Firebase API item shape.
type hnItem struct {
	ID          int    `json:"id"`
	Deleted     bool   `json:"deleted"`
	Dead        bool   `json:"dead"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Kids        []int  `json:"kids"`
}

// HNFetcher fetches stories and comment threads from the Hacker News API
// and article text from the linked pages.
type HNFetcher struct {
	client     *http.Client
	apiBaseURL string
	siteURL    string
}

func NewHNFetcher(timeout time.Duration) *HNFetcher {
	return &HNFetcher{
		client:     &http.Client{Timeout: timeout},
		apiBaseURL: defaultAPIBaseURL,
		siteURL:    siteBaseURL,
	}
}

// NewHNFetcherWithBaseURL creates a fetcher against a custom API endpoint,
// used by tests.
func NewHNFetcherWithBaseURL(client *http.Client, apiBaseURL, siteURL string) *HNFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HNFetcher{
		client:     client,
		apiBaseURL: apiBaseURL,
		siteURL:    siteURL,
	}
}

// TopArticles returns up to n front-page stories in ranking order. The
// story ID listing is the one call the whole run depends on, so it is
// retried with backoff; individual item failures are skipped.
func (f *HNFetcher) TopArticles(ctx context.Context, n int) ([]Article, error) {
	var ids []int
	err := retry.WithBackoff(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
		return f.getJSON(ctx, f.apiBaseURL+"/topstories.json", &ids)
	})
	if err != nil {
		return nil, fmt.Errorf("hn: failed to fetch top stories: %w", err)
	}

	articles := make([]Article, 0, n)
	for _, id := range ids {
		if len(articles) == n {
			break
		}
		var item hnItem
		if err := f.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", f.apiBaseURL, id), &item); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("hn: %w", ctx.Err())
			}
			log.Printf("WARNING: hn: skipping item %d: %v", id, err)
			continue
		}
		if item.Type != "story" || item.Deleted || item.Dead || item.Title == "" {
			continue
		}

		discussionURL := fmt.Sprintf("%s/item?id=%d", f.siteURL, item.ID)
		url := item.URL
		if url == "" {
			// Ask HN and similar text posts only have a discussion page.
			url = discussionURL
		}
		articles = append(articles, Article{
			ID:            item.ID,
			Rank:          len(articles) + 1,
			Title:         item.Title,
			URL:           url,
			DiscussionURL: discussionURL,
			Author:        item.By,
			Points:        item.Score,
			CommentCount:  item.Descendants,
		})
	}

	return articles, nil
}

// Thread returns up to max comments for a story, walking the comment tree
// breadth-first so top-level discussion comes before deep reply chains.
func (f *HNFetcher) Thread(ctx context.Context, storyID int, max int) ([]Comment, error) {
	var story hnItem
	if err := f.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", f.apiBaseURL, storyID), &story); err != nil {
		return nil, fmt.Errorf("hn: failed to fetch story %d: %w", storyID, err)
	}

	queue := append([]int(nil), story.Kids...)
	comments := make([]Comment, 0, max)
	for len(queue) > 0 && len(comments) < max {
		id := queue[0]
		queue = queue[1:]

		var c hnItem
		if err := f.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", f.apiBaseURL, id), &c); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("hn: %w", ctx.Err())
			}
			continue
		}
		if c.Type != "comment" || c.Deleted || c.Dead {
			continue
		}
		text := stripHTML(c.Text)
		if len(text) < minCommentLength {
			continue
		}
		comments = append(comments, Comment{ID: c.ID, Author: c.By, Text: text})
		queue = append(queue, c.Kids...)
	}

	return comments, nil
}

// Content fetches the linked page and extracts readable text, truncated to
// maxContentLength. Discussion-only links yield no content.
func (f *HNFetcher) Content(ctx context.Context, url string) (string, error) {
	if url == "" || strings.HasPrefix(url, f.siteURL) {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("hn: failed to create content request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; hackersbot/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("hn: failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("hn: content fetch of %s returned status %d", url, resp.StatusCode)
	}

	page, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		return "", fmt.Errorf("hn: failed to extract content from %s: %w", url, err)
	}

	content := strings.TrimSpace(page.TextContent)
	if len(content) > maxContentLength {
		content = truncate(content, maxContentLength)
	}
	return content, nil
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

func (f *HNFetcher) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var (
	paragraphRegex = regexp.MustCompile(`(?i)<p[^>]*>`)
	tagRegex       = regexp.MustCompile(`<[^>]+>`)
)

// stripHTML converts HN comment markup to plain text.
func stripHTML(s string) string {
	s = paragraphRegex.ReplaceAllString(s, "\n")
	s = tagRegex.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(s)
}
