package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/acuhlmann/hackersbot/internal/fetcher"
	"github.com/acuhlmann/hackersbot/internal/filter"
	"github.com/acuhlmann/hackersbot/internal/store"
	"github.com/acuhlmann/hackersbot/internal/summarizer"
)

// Phase is a coarse-grained progress marker emitted during a run so
// callers can stream status.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseFetching    Phase = "fetching"
	PhaseFiltering   Phase = "filtering"
	PhaseSummarizing Phase = "summarizing"
	PhaseDone        Phase = "done"
)

// ErrAlreadyRunning is returned when a refresh is requested while another
// one is in progress. Not an error condition for the end user, just
// "please wait".
var ErrAlreadyRunning = errors.New("refresh: a refresh is already in progress")

// RateLimitedError is returned when a refresh is requested before the
// minimum interval since the last completed run has elapsed.
type RateLimitedError struct {
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("refresh: rate limited, retry in %s", e.Remaining.Round(time.Second))
}

// State is a point-in-time snapshot of the orchestrator.
type State struct {
	Running    bool
	Phase      Phase
	LastRunID  string
	LastRunAt  time.Time
	LastError  string
	RetryAfter time.Duration
}

// Store is the slice of the summary store the orchestrator needs.
type Store interface {
	Persist(run *store.Run) error
}

// Options tune a single orchestrator.
type Options struct {
	// MinInterval is the cooldown between completed runs. Zero disables
	// rate limiting.
	MinInterval time.Duration
	// FetchTimeout bounds each per-article thread/content fetch.
	FetchTimeout time.Duration
	// LLMTimeout bounds each classification or summarization call.
	LLMTimeout time.Duration
	// MaxComments caps how many comments are read per thread.
	MaxComments int
	// MinConfidence is the relevance threshold when filtering.
	MinConfidence float64
	// OnPhase, when set, receives phase transitions during a run.
	OnPhase func(Phase)
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Orchestrator runs the fetch -> filter -> summarize -> persist pipeline,
// at most one run at a time and at most once per minimum interval.
type Orchestrator struct {
	fetcher    fetcher.Fetcher
	filter     filter.Filter
	summarizer summarizer.Summarizer
	store      Store
	opts       Options
	now        func() time.Time

	mu        sync.Mutex
	running   bool
	phase     Phase
	lastRunID string
	lastRunAt time.Time
	lastErr   string
}

func New(f fetcher.Fetcher, fl filter.Filter, s summarizer.Summarizer, st Store, opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.MaxComments == 0 {
		opts.MaxComments = 40
	}
	return &Orchestrator{
		fetcher:    f,
		filter:     fl,
		summarizer: s,
		store:      st,
		opts:       opts,
		now:        now,
		phase:      PhaseIdle,
	}
}

// Seed initializes the last-run timestamp from the newest persisted run.
// Called once at startup so the cooldown survives restarts.
func (o *Orchestrator) Seed(meta *store.RunMeta) {
	if meta == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastRunID = meta.ID
	o.lastRunAt = meta.CreatedAt
}

// State returns a snapshot of the orchestrator's status.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := State{
		Running:   o.running,
		Phase:     o.phase,
		LastRunID: o.lastRunID,
		LastRunAt: o.lastRunAt,
		LastError: o.lastErr,
	}
	if !o.running && !o.lastRunAt.IsZero() && o.opts.MinInterval > 0 {
		if wait := o.opts.MinInterval - o.now().Sub(o.lastRunAt); wait > 0 {
			s.RetryAfter = wait
		}
	}
	return s
}

// Refresh executes one run end to end. It fails fast with ErrAlreadyRunning
// when a run is in progress and with a RateLimitedError inside the cooldown
// window; in both cases no work is started and no state changes.
func (o *Orchestrator) Refresh(ctx context.Context, topN int, filterAI bool) (*store.Run, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}

	run, err := o.execute(ctx, topN, filterAI)
	o.finish(run, err)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Start begins a refresh in the background. Precondition failures
// (ErrAlreadyRunning, RateLimitedError) are returned synchronously; the
// pipeline itself runs in a new goroutine and its outcome is observable
// through State.
func (o *Orchestrator) Start(ctx context.Context, topN int, filterAI bool) error {
	if err := o.begin(); err != nil {
		return err
	}
	go func() {
		run, err := o.execute(ctx, topN, filterAI)
		o.finish(run, err)
		if err != nil {
			log.Printf("Refresh failed: %v", err)
		}
	}()
	return nil
}

// begin is the single serialization point: the check-and-set of the
// running flag happens under one lock, so of any concurrent callers
// exactly one proceeds.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrAlreadyRunning
	}
	if o.opts.MinInterval > 0 && !o.lastRunAt.IsZero() {
		if wait := o.opts.MinInterval - o.now().Sub(o.lastRunAt); wait > 0 {
			return &RateLimitedError{Remaining: wait}
		}
	}
	o.running = true
	o.phase = PhaseFetching
	return nil
}

// finish resets the running flag on every exit path and emits the
// terminal phase so subscribers see the run end.
func (o *Orchestrator) finish(run *store.Run, err error) {
	o.mu.Lock()
	o.running = false
	terminal := PhaseDone
	if err != nil {
		terminal = PhaseIdle
		o.lastErr = err.Error()
	} else {
		o.lastErr = ""
		o.lastRunID = run.ID
		o.lastRunAt = run.CreatedAt
	}
	o.phase = terminal
	o.mu.Unlock()

	if o.opts.OnPhase != nil {
		o.opts.OnPhase(terminal)
	}
}

// fetched carries one article through the pipeline stages.
type fetched struct {
	article  fetcher.Article
	comments []fetcher.Comment
	content  string
	fetchErr error
	class    *filter.Classification
}

func (o *Orchestrator) execute(ctx context.Context, topN int, filterAI bool) (*store.Run, error) {
	o.setPhase(PhaseFetching)
	log.Printf("Refresh started (top_n=%d, filter_ai=%t)", topN, filterAI)

	articles, err := o.fetcher.TopArticles(ctx, topN)
	if err != nil {
		return nil, fmt.Errorf("refresh: fetch failed: %w", err)
	}
	// Fewer articles than requested is fine; use what the source returned.
	log.Printf("Fetched %d articles", len(articles))

	items := make([]*fetched, len(articles))
	for i, a := range articles {
		item := &fetched{article: a}
		items[i] = item

		comments, err := o.fetchThread(ctx, a)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("refresh: %w", ctx.Err())
			}
			log.Printf("WARNING: comments for %q unavailable: %v", a.Title, err)
			item.fetchErr = err
			continue
		}
		item.comments = comments

		content, err := o.fetchContent(ctx, a)
		if err != nil {
			// Summarization falls back to title and metadata.
			log.Printf("WARNING: content for %q unavailable: %v", a.Title, err)
		}
		item.content = content
	}

	filteredOut := 0
	if filterAI {
		o.setPhase(PhaseFiltering)
		kept := items[:0]
		for _, item := range items {
			class, err := o.classify(ctx, item)
			if err != nil {
				if ctx.Err() != nil {
					return nil, fmt.Errorf("refresh: %w", ctx.Err())
				}
				// Keep the article when classification itself fails.
				log.Printf("WARNING: classification of %q failed: %v", item.article.Title, err)
				kept = append(kept, item)
				continue
			}
			item.class = &class
			if class.AIRelated && class.Confidence >= o.opts.MinConfidence {
				kept = append(kept, item)
			} else {
				filteredOut++
			}
		}
		items = kept
		log.Printf("Filter kept %d articles (%d excluded)", len(items), filteredOut)
	}

	o.setPhase(PhaseSummarizing)
	results := make([]store.Article, len(items))
	for i, item := range items {
		results[i] = o.summarize(ctx, item)
	}

	createdAt := o.now()
	run := &store.Run{
		ID:            store.NewRunID(createdAt),
		CreatedAt:     createdAt,
		RequestedTopN: topN,
		FilterApplied: filterAI,
		FilteredOut:   filteredOut,
		Articles:      results,
	}

	if err := o.store.Persist(run); err != nil {
		return nil, fmt.Errorf("refresh: persist failed: %w", err)
	}

	log.Printf("Refresh complete: run %s with %d articles", run.ID, len(run.Articles))
	return run, nil
}

func (o *Orchestrator) fetchThread(ctx context.Context, a fetcher.Article) ([]fetcher.Comment, error) {
	ctx, cancel := o.withTimeout(ctx, o.opts.FetchTimeout)
	defer cancel()
	return o.fetcher.Thread(ctx, a.ID, o.opts.MaxComments)
}

func (o *Orchestrator) fetchContent(ctx context.Context, a fetcher.Article) (string, error) {
	ctx, cancel := o.withTimeout(ctx, o.opts.FetchTimeout)
	defer cancel()
	return o.fetcher.Content(ctx, a.URL)
}

func (o *Orchestrator) classify(ctx context.Context, item *fetched) (filter.Classification, error) {
	ctx, cancel := o.withTimeout(ctx, o.opts.LLMTimeout)
	defer cancel()
	return o.filter.Classify(ctx, item.article.Title, item.article.URL, item.content)
}

// summarize turns one fetched article into its persisted form. A failed
// step yields a placeholder summary instead of failing the run; article
// order is never changed.
func (o *Orchestrator) summarize(ctx context.Context, item *fetched) store.Article {
	a := item.article
	result := store.Article{
		Rank:          a.Rank,
		Title:         a.Title,
		URL:           a.URL,
		DiscussionURL: a.DiscussionURL,
		Author:        a.Author,
		Points:        a.Points,
		CommentCount:  a.CommentCount,
	}
	if item.class != nil {
		related := item.class.AIRelated
		result.AIRelated = &related
		result.AIConfidence = item.class.Confidence
	}

	if item.fetchErr != nil {
		result.Summary = placeholder("the discussion thread could not be fetched", item.fetchErr)
		return result
	}

	summary, err := o.summarizeArticle(ctx, item)
	if err != nil {
		log.Printf("WARNING: summary of %q failed: %v", a.Title, err)
		result.Summary = placeholder("summarization failed", err)
	} else {
		result.Summary = summary
	}

	if len(item.comments) > 0 {
		commentSummary, err := o.summarizeThread(ctx, item)
		if err != nil {
			log.Printf("WARNING: thread summary of %q failed: %v", a.Title, err)
			result.CommentSummary = placeholder("discussion summarization failed", err)
		} else {
			result.CommentSummary = commentSummary
		}
	}

	return result
}

func (o *Orchestrator) summarizeArticle(ctx context.Context, item *fetched) (string, error) {
	ctx, cancel := o.withTimeout(ctx, o.opts.LLMTimeout)
	defer cancel()
	return o.summarizer.SummarizeArticle(ctx, item.article, item.content)
}

func (o *Orchestrator) summarizeThread(ctx context.Context, item *fetched) (string, error) {
	ctx, cancel := o.withTimeout(ctx, o.opts.LLMTimeout)
	defer cancel()
	return o.summarizer.SummarizeThread(ctx, item.article, item.comments)
}

func (o *Orchestrator) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
	if o.opts.OnPhase != nil {
		o.opts.OnPhase(p)
	}
}

func placeholder(reason string, err error) string {
	return fmt.Sprintf("Summary unavailable: %s (%v).", reason, err)
}
