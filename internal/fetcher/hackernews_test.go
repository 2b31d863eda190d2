package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

// newHNServer serves a Firebase-style API from a map of item ID to item.
func newHNServer(t *testing.T, top []int, items map[int]hnItem) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(top)
	})
	mux.HandleFunc("/item/", func(w http.ResponseWriter, r *http.Request) {
		var id int
		fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/item/"), "%d.json", &id)
		item, ok := items[id]
		if !ok {
			w.Write([]byte("null"))
			return
		}
		json.NewEncoder(w).Encode(item)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestTopArticles(t *testing.T) {
	items := map[int]hnItem{
		1: {ID: 1, Type: "story", Title: "First story", URL: "https://example.com/1", By: "alice", Score: 300, Descendants: 42},
		2: {ID: 2, Type: "job", Title: "Hiring"},
		3: {ID: 3, Type: "story", Title: "Deleted story", Deleted: true},
		4: {ID: 4, Type: "story", Title: "Ask HN: text post", Text: "question", By: "bob", Score: 50},
		5: {ID: 5, Type: "story", Title: "Third story", URL: "https://example.com/5", By: "carol", Score: 100},
	}
	srv := newHNServer(t, []int{1, 2, 3, 4, 5}, items)
	f := NewHNFetcherWithBaseURL(srv.Client(), srv.URL, "https://news.ycombinator.com")

	articles, err := f.TopArticles(context.Background(), 3)
	if err != nil {
		t.Fatalf("TopArticles failed: %v", err)
	}

	if len(articles) != 3 {
		t.Fatalf("Expected 3 articles, got %d", len(articles))
	}
	// Jobs and deleted items are skipped; ranks stay contiguous.
	wantTitles := []string{"First story", "Ask HN: text post", "Third story"}
	for i, a := range articles {
		if a.Title != wantTitles[i] {
			t.Errorf("Article %d: expected %q, got %q", i, wantTitles[i], a.Title)
		}
		if a.Rank != i+1 {
			t.Errorf("Article %d: expected rank %d, got %d", i, i+1, a.Rank)
		}
	}

	first := articles[0]
	if first.Points != 300 || first.CommentCount != 42 || first.Author != "alice" {
		t.Errorf("Metadata wrong: %+v", first)
	}
	if first.DiscussionURL != "https://news.ycombinator.com/item?id=1" {
		t.Errorf("Unexpected discussion URL: %s", first.DiscussionURL)
	}

	// Text posts link to their own discussion page.
	if articles[1].URL != articles[1].DiscussionURL {
		t.Errorf("Text post URL should be the discussion page, got %s", articles[1].URL)
	}
}

func TestTopArticles_FewerThanRequested(t *testing.T) {
	items := map[int]hnItem{
		1: {ID: 1, Type: "story", Title: "Only story", URL: "https://example.com/1"},
	}
	srv := newHNServer(t, []int{1}, items)
	f := NewHNFetcherWithBaseURL(srv.Client(), srv.URL, "https://news.ycombinator.com")

	articles, err := f.TopArticles(context.Background(), 10)
	if err != nil {
		t.Fatalf("TopArticles failed: %v", err)
	}
	if len(articles) != 1 {
		t.Errorf("Expected 1 article, got %d", len(articles))
	}
}

func TestThread_BreadthFirstWithCap(t *testing.T) {
	items := map[int]hnItem{
		1:  {ID: 1, Type: "story", Title: "Story", Kids: []int{10, 11}},
		10: {ID: 10, Type: "comment", By: "alice", Text: "This is a top-level comment with substance.", Kids: []int{12}},
		11: {ID: 11, Type: "comment", By: "bob", Text: "Another thoughtful top-level comment here."},
		12: {ID: 12, Type: "comment", By: "carol", Text: "A reply nested below the first comment."},
	}
	srv := newHNServer(t, nil, items)
	f := NewHNFetcherWithBaseURL(srv.Client(), srv.URL, "https://news.ycombinator.com")

	comments, err := f.Thread(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Thread failed: %v", err)
	}

	// Both top-level comments come before the nested reply, and the cap holds.
	if len(comments) != 2 {
		t.Fatalf("Expected 2 comments, got %d", len(comments))
	}
	if comments[0].Author != "alice" || comments[1].Author != "bob" {
		t.Errorf("Expected breadth-first order alice, bob; got %s, %s",
			comments[0].Author, comments[1].Author)
	}
}

func TestThread_SkipsNoise(t *testing.T) {
	items := map[int]hnItem{
		1:  {ID: 1, Type: "story", Title: "Story", Kids: []int{10, 11, 12}},
		10: {ID: 10, Type: "comment", By: "alice", Text: "thx"},
		11: {ID: 11, Type: "comment", By: "bob", Text: "deleted one", Deleted: true},
		12: {ID: 12, Type: "comment", By: "carol", Text: "<p>A real comment with &gt; enough text.</p>"},
	}
	srv := newHNServer(t, nil, items)
	f := NewHNFetcherWithBaseURL(srv.Client(), srv.URL, "https://news.ycombinator.com")

	comments, err := f.Thread(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Thread failed: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("Expected 1 comment after filtering, got %d", len(comments))
	}
	if comments[0].Text != "A real comment with > enough text." {
		t.Errorf("Markup not stripped: %q", comments[0].Text)
	}
}

func TestContent_ExtractsReadableText(t *testing.T) {
	paragraph := strings.Repeat("This is the first meaningful paragraph of the article with enough words to matter. ", 5)
	page := `<!DOCTYPE html><html><head><title>Test Page</title></head><body>
<article><h1>Test Page</h1>
<p>` + paragraph + `</p>
<p>And a second paragraph that continues the argument in some depth for the reader, covering background, context, and the implications of the announcement in detail.</p>
</article></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "hackersbot") {
			t.Errorf("Expected identifying User-Agent, got %q", ua)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	f := NewHNFetcherWithBaseURL(srv.Client(), "unused", "https://news.ycombinator.com")
	content, err := f.Content(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if !strings.Contains(content, "first meaningful paragraph") {
		t.Errorf("Extracted content missing article text: %q", content)
	}
}

func TestContent_SkipsDiscussionURLs(t *testing.T) {
	f := NewHNFetcherWithBaseURL(nil, "unused", "https://news.ycombinator.com")

	for _, url := range []string{"", "https://news.ycombinator.com/item?id=1"} {
		content, err := f.Content(context.Background(), url)
		if err != nil {
			t.Errorf("Content(%q) errored: %v", url, err)
		}
		if content != "" {
			t.Errorf("Content(%q) should be empty, got %q", url, content)
		}
	}
}

func TestContent_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHNFetcherWithBaseURL(srv.Client(), "unused", "https://news.ycombinator.com")
	if _, err := f.Content(context.Background(), srv.URL); err == nil {
		t.Fatal("Expected error for 404 page")
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	s := strings.Repeat("日", 8) // 3 bytes per rune
	for n := 0; n <= len(s); n++ {
		got := truncate(s, n)
		if len(got) > n {
			t.Errorf("truncate(s, %d) returned %d bytes", n, len(got))
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(s, %d) split a rune", n)
		}
	}
}

func TestStripHTML(t *testing.T) {
	in := `First line.<p>Second line with a <a href="https://x">link</a> &amp; entity.</p>`
	got := stripHTML(in)
	want := "First line.\nSecond line with a link & entity."
	if got != want {
		t.Errorf("stripHTML = %q, want %q", got, want)
	}
}
