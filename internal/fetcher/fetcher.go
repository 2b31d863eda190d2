package fetcher

import "context"

// Article is a front-page story with its metadata.
type Article struct {
	ID            int
	Rank          int
	Title         string
	URL           string
	DiscussionURL string
	Author        string
	Points        int
	CommentCount  int
}

// Comment is one comment from a discussion thread, with markup stripped.
type Comment struct {
	ID     int
	Author string
	Text   string
}

// Fetcher retrieves articles and their discussion threads from the news source.
type Fetcher interface {
	// TopArticles returns up to n front-page articles in ranking order.
	// Fewer than n may be returned when the source has fewer stories.
	TopArticles(ctx context.Context, n int) ([]Article, error)

	// Thread returns up to max comments for the given story ID.
	Thread(ctx context.Context, storyID int, max int) ([]Comment, error)

	// Content fetches the article page and extracts its readable text.
	// Returns an empty string for URLs that have no external page.
	Content(ctx context.Context, url string) (string, error)
}
