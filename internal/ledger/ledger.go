// Package ledger persists the set of candidate names that have already been
// registered in the catalog. The ledger file is the sole owner of durability:
// the processing loop must not trust its own in-memory state across restarts.
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Kind selects which JSON key the ledger file uses.
type Kind string

const (
	Files       Kind = "processed_files"
	Directories Kind = "processed_dirs"
)

// Entry is one processed name with its registration timestamp.
type Entry struct {
	Name        string
	ProcessedAt time.Time
}

type fileFormat struct {
	ProcessedFiles []string          `json:"processed_files,omitempty"`
	ProcessedDirs  []string          `json:"processed_dirs,omitempty"`
	Timestamps     map[string]string `json:"timestamps,omitempty"`
}

// Ledger is a write-through, append-only record of processed names.
// A single worker goroutine performs all writes; concurrent external
// processes writing the same path are unsupported.
type Ledger struct {
	path   string
	kind   Kind
	logger *slog.Logger

	mu     sync.Mutex
	names  map[string]struct{}
	stamps map[string]time.Time
	now    func() time.Time
}

// Open creates a ledger handle for path. The file itself is created lazily by
// Load, which self-heals missing or corrupt state.
func Open(path string, kind Kind, logger *slog.Logger) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is empty")
	}
	if kind != Files && kind != Directories {
		return nil, fmt.Errorf("invalid ledger kind %q", kind)
	}
	return &Ledger{
		path:   path,
		kind:   kind,
		logger: logger.With("component", "ledger"),
		names:  make(map[string]struct{}),
		stamps: make(map[string]time.Time),
		now:    time.Now,
	}, nil
}

// Load merges the persisted entries into the in-memory set and returns the
// result. A missing or corrupt backing file never fails the caller: the
// current in-memory state is rewritten in its place. Entries whose earlier
// persist failed are flushed here, so a name reported as processed is still
// present when the next scan cycle begins, even while storage is degraded.
func (l *Ledger) Load() map[string]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Error("failed to read ledger, rewriting", "path", l.path, "error", err)
		}
		l.flushLocked()
		return l.copyNamesLocked()
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		l.logger.Error("ledger is corrupt, rewriting", "path", l.path, "error", err)
		l.flushLocked()
		return l.copyNamesLocked()
	}

	persisted := make(map[string]struct{}, len(ff.ProcessedFiles)+len(ff.ProcessedDirs))
	for _, name := range append(ff.ProcessedFiles, ff.ProcessedDirs...) {
		persisted[name] = struct{}{}
	}

	unflushed := false
	for name := range l.names {
		if _, ok := persisted[name]; !ok {
			unflushed = true
			break
		}
	}

	for name := range persisted {
		l.names[name] = struct{}{}
	}
	for name, stamp := range ff.Timestamps {
		if t, err := time.Parse(time.RFC3339, stamp); err == nil {
			l.stamps[name] = t
		}
	}

	if unflushed {
		l.flushLocked()
	}
	return l.copyNamesLocked()
}

// Contains reports whether name has already been processed.
func (l *Ledger) Contains(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.names[name]
	return ok
}

// Append records name as processed and persists immediately (write-through).
// Appending a name already present is a no-op; its timestamp is not touched.
// A persist failure is logged and the entry kept in memory for the remainder
// of the run: the candidate will be reprocessed after a restart, which is the
// accepted at-least-once tradeoff.
func (l *Ledger) Append(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.names[name]; ok {
		return
	}
	l.names[name] = struct{}{}
	l.stamps[name] = l.now().UTC()

	if err := l.persistLocked(); err != nil {
		l.logger.Error("failed to persist ledger, continuing in-memory", "path", l.path, "name", name, "error", err)
	}
}

// Entries returns all entries sorted by name.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.names))
	for name := range l.names {
		out = append(out, Entry{Name: name, ProcessedAt: l.stamps[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of processed names.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.names)
}

// Path returns the backing file path.
func (l *Ledger) Path() string { return l.path }

// flushLocked rewrites the backing file from the in-memory state. Failure is
// logged, not returned: the in-memory view keeps serving and the next Load
// retries.
func (l *Ledger) flushLocked() {
	if err := l.persistLocked(); err != nil {
		l.logger.Error("failed to persist ledger, continuing in-memory", "path", l.path, "error", err)
	}
}

// persistLocked rewrites the full ledger file. Ledger size is bounded by
// per-run candidate counts, so whole-file rewrites are cheap relative to
// cycle latency.
func (l *Ledger) persistLocked() error {
	names := make([]string, 0, len(l.names))
	for name := range l.names {
		names = append(names, name)
	}
	sort.Strings(names)

	stamps := make(map[string]string, len(l.stamps))
	for name, t := range l.stamps {
		stamps[name] = t.Format(time.RFC3339)
	}

	// The kind key is always written, even when empty, so readers can tell
	// an initialized ledger from a missing one.
	doc := map[string]any{
		string(l.kind): names,
		"timestamps":   stamps,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

func (l *Ledger) copyNamesLocked() map[string]struct{} {
	out := make(map[string]struct{}, len(l.names))
	for name := range l.names {
		out[name] = struct{}{}
	}
	return out
}
