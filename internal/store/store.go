package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	jsonSuffix = "_summary.json"
	mdSuffix   = "_summary.md"
	indexFile  = "index.json"
)

// ErrNotFound is returned by GetRun for an unknown run ID.
var ErrNotFound = fmt.Errorf("store: run not found")

// Store persists summary runs under a single directory. Each run becomes
// one JSON file and one Markdown file; index.json is a derived listing that
// can always be rebuilt by scanning the run files.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: failed to create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the output directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// JSONFileName returns the structured-data filename for a run ID.
func JSONFileName(id string) string {
	return id + jsonSuffix
}

// MarkdownFileName returns the human-readable filename for a run ID.
func MarkdownFileName(id string) string {
	return id + mdSuffix
}

// Persist writes both representations of the run, then updates the index.
// Each file is written to a temp file and renamed so a concurrent reader
// never sees a partial file. An index update failure does not invalidate
// the persisted run; the index is rebuildable.
func (s *Store) Persist(run *Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("store: failed to marshal run %s: %w", run.ID, err)
	}
	if err := s.writeAtomic(JSONFileName(run.ID), append(data, '\n')); err != nil {
		return err
	}
	if err := s.writeAtomic(MarkdownFileName(run.ID), []byte(renderMarkdown(run))); err != nil {
		return err
	}

	if err := s.appendIndex(metaFor(run)); err != nil {
		log.Printf("WARNING: store: index update failed (run %s is persisted): %v", run.ID, err)
	}
	return nil
}

// GetRun loads a single run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, JSONFileName(id)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: failed to read run %s: %w", id, err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("store: failed to parse run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns metadata for all persisted runs, newest first. It is
// served from index.json when readable, otherwise the index is rebuilt by
// scanning the run files.
func (s *Store) ListRuns() ([]RunMeta, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if err == nil {
		var metas []RunMeta
		if jsonErr := json.Unmarshal(data, &metas); jsonErr == nil {
			return metas, nil
		}
		log.Printf("WARNING: store: corrupt %s, rebuilding", indexFile)
	}
	return s.RebuildIndex()
}

// LatestMeta returns the newest run's metadata, or nil when the store is
// empty. Used to seed refresh state at startup.
func (s *Store) LatestMeta() (*RunMeta, error) {
	metas, err := s.ListRuns()
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, nil
	}
	return &metas[0], nil
}

// RebuildIndex regenerates index.json from scratch by scanning run files.
// Malformed run files are skipped with a warning. An empty store produces
// an empty index, never an error.
func (s *Store) RebuildIndex() ([]RunMeta, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+jsonSuffix))
	if err != nil {
		return nil, fmt.Errorf("store: failed to scan %s: %w", s.dir, err)
	}

	metas := make([]RunMeta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("WARNING: store: skipping unreadable %s: %v", filepath.Base(path), err)
			continue
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			log.Printf("WARNING: store: skipping malformed %s: %v", filepath.Base(path), err)
			continue
		}
		if run.ID == "" {
			run.ID = strings.TrimSuffix(filepath.Base(path), jsonSuffix)
		}
		metas = append(metas, metaFor(&run))
	}

	sortMetas(metas)
	if err := s.writeIndex(metas); err != nil {
		return nil, err
	}
	return metas, nil
}

func (s *Store) appendIndex(meta RunMeta) error {
	metas, err := s.ListRuns()
	if err != nil {
		return err
	}
	// Replace any stale entry for the same ID rather than duplicating it.
	out := metas[:0]
	for _, m := range metas {
		if m.ID != meta.ID {
			out = append(out, m)
		}
	}
	out = append(out, meta)
	sortMetas(out)
	return s.writeIndex(out)
}

func (s *Store) writeIndex(metas []RunMeta) error {
	data, err := json.MarshalIndent(metas, "", "  ")
	if err != nil {
		return fmt.Errorf("store: failed to marshal index: %w", err)
	}
	return s.writeAtomic(indexFile, append(data, '\n'))
}

// writeAtomic writes data to a temp file in the store directory and renames
// it into place.
func (s *Store) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: failed to rename %s into place: %w", name, err)
	}
	return nil
}

func sortMetas(metas []RunMeta) {
	// Newest first. IDs are timestamp-derived, so string order is time order.
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].ID > metas[j].ID
	})
}
