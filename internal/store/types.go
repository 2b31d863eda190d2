package store

import "time"

// runIDLayout gives lexicographically sortable IDs: sorting filenames by
// string order is the same as sorting runs by creation time.
const runIDLayout = "2006-01-02_15-04-05"

// NewRunID derives a run identifier from the run's creation time.
func NewRunID(t time.Time) string {
	return t.Format(runIDLayout)
}

// Article is one article's processed result within a run. Created once by
// the orchestrator and never updated in place.
type Article struct {
	Rank           int     `json:"rank"`
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	DiscussionURL  string  `json:"discussion_url"`
	Author         string  `json:"author,omitempty"`
	Points         int     `json:"points"`
	CommentCount   int     `json:"comment_count"`
	Summary        string  `json:"summary"`
	CommentSummary string  `json:"comment_summary,omitempty"`
	AIRelated      *bool   `json:"ai_related,omitempty"`
	AIConfidence   float64 `json:"ai_confidence,omitempty"`
}

// Run is one execution of the pipeline. A persisted run is immutable;
// corrections require a new run.
type Run struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	RequestedTopN int       `json:"requested_top_n"`
	FilterApplied bool      `json:"filter_applied"`
	FilteredOut   int       `json:"filtered_out,omitempty"`
	Articles      []Article `json:"articles"`
}

// RunMeta is one index entry: enough to list runs without opening each file.
type RunMeta struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	ArticleCount int       `json:"article_count"`
	AICount      int       `json:"ai_article_count"`
}

func metaFor(run *Run) RunMeta {
	m := RunMeta{
		ID:           run.ID,
		CreatedAt:    run.CreatedAt,
		ArticleCount: len(run.Articles),
	}
	for _, a := range run.Articles {
		if a.AIRelated != nil && *a.AIRelated {
			m.AICount++
		}
	}
	return m
}
