package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/acuhlmann/hackersbot/internal/refresh"
	"github.com/acuhlmann/hackersbot/internal/store"
)

// Server exposes the refresh and read surfaces over HTTP:
//
//	GET  /api/status      orchestrator state
//	POST /api/refresh     trigger a refresh (202 / 409 / 429)
//	GET  /api/runs        run listing, newest first
//	GET  /api/runs/{id}   one run
//	GET  /summaries/...   persisted run files
//	GET  /                HTML index
type Server struct {
	addr     string
	orch     *refresh.Orchestrator
	store    *store.Store
	topN     int
	filterAI bool
	server   *http.Server
}

func NewServer(addr string, orch *refresh.Orchestrator, st *store.Store, topN int, filterAI bool) *Server {
	s := &Server{
		addr:     addr,
		orch:     orch,
		store:    st,
		topN:     topN,
		filterAI: filterAI,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/api/runs", s.handleListRuns)
	mux.HandleFunc("/api/runs/", s.handleGetRun)
	mux.HandleFunc("/summaries/", s.handleFile)
	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving HTTP in the background. Call Shutdown to stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", s.addr, err)
	}
	go func() {
		log.Printf("Web server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("Web server error: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// statusResponse mirrors the orchestrator state for the UI's polling loop.
type statusResponse struct {
	InProgress        bool    `json:"in_progress"`
	CanRefresh        bool    `json:"can_refresh"`
	Phase             string  `json:"phase"`
	LastRefresh       *string `json:"last_refresh"`
	RetryAfterSeconds int     `json:"retry_after_seconds,omitempty"`
	LastError         string  `json:"last_error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	state := s.orch.State()
	resp := statusResponse{
		InProgress: state.Running,
		CanRefresh: !state.Running && state.RetryAfter == 0,
		Phase:      string(state.Phase),
		LastError:  state.LastError,
	}
	if !state.LastRunAt.IsZero() {
		t := state.LastRunAt.Format(time.RFC3339)
		resp.LastRefresh = &t
	}
	if state.RetryAfter > 0 {
		resp.RetryAfterSeconds = int(state.RetryAfter.Seconds() + 0.5)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// The run outlives the request; progress is observable via /api/status.
	err := s.orch.Start(context.Background(), s.topN, s.filterAI)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
	case errors.Is(err, refresh.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "A refresh is already in progress",
		})
	default:
		var rl *refresh.RateLimitedError
		if errors.As(err, &rl) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":               fmt.Sprintf("Rate limit: please wait %s before refreshing again", formatWait(rl.Remaining)),
				"retry_after_seconds": int(rl.Remaining.Seconds() + 0.5),
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	metas, err := s.store.ListRuns()
	if err != nil {
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, metas)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	run, err := s.store.GetRun(id)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to read run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleFile serves persisted run files. Only flat filenames inside the
// output directory are allowed.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/summaries/")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, filepath.Join(s.store.Dir(), name))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	metas, err := s.store.ListRuns()
	if err != nil {
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, buildIndexHTML(metas, s.orch.State()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WARNING: web: failed to encode response: %v", err)
	}
}

func formatWait(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
