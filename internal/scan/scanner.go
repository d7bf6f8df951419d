// Package scan enumerates candidate filesystem entries under a watch root.
// Scanning is a pure read: reconciliation against the ledger happens in the
// pipeline, not here.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Mode selects which entries are candidates.
type Mode string

const (
	// Files treats every non-excluded regular file at any depth as a candidate.
	Files Mode = "files"
	// Directories treats every non-root, non-excluded directory as a
	// candidate, typically one per acquisition session.
	Directories Mode = "directories"
)

// Kind classifies a candidate entry.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "directory"
)

// Candidate is a filesystem entry considered for registration during one
// scan cycle. Transient: discarded after reconciliation.
type Candidate struct {
	Path string
	Name string
	Kind Kind
}

// Options configures a Scanner.
type Options struct {
	Mode Mode
	// Prefix restricts directory candidates to basenames starting with it.
	// Only meaningful in Directories mode.
	Prefix string
	// Exclude lists basenames to prune. A matching directory is not descended
	// into; a matching file is skipped. Used for housekeeping directories and
	// the pipeline's own state files.
	Exclude []string
}

// Scanner walks a watch root and yields candidates in stable order.
type Scanner struct {
	root    string
	mode    Mode
	prefix  string
	exclude map[string]struct{}
	logger  *slog.Logger
}

// New validates the watch root and returns a Scanner. A missing or unreadable
// root is a fatal setup error: nothing may silently proceed without one.
func New(root string, opts Options, logger *slog.Logger) (*Scanner, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch directory %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory %q is not a directory", root)
	}

	mode := opts.Mode
	if mode == "" {
		mode = Files
	}
	if mode != Files && mode != Directories {
		return nil, fmt.Errorf("invalid scan mode %q", mode)
	}
	if opts.Prefix != "" && mode != Directories {
		return nil, fmt.Errorf("prefix filter requires directory mode")
	}

	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, name := range opts.Exclude {
		exclude[name] = struct{}{}
	}

	return &Scanner{
		root:    filepath.Clean(root),
		mode:    mode,
		prefix:  opts.Prefix,
		exclude: exclude,
		logger:  logger.With("component", "scan"),
	}, nil
}

// Root returns the watch root.
func (s *Scanner) Root() string { return s.root }

// Scan walks the tree and returns candidates sorted lexicographically by
// path, so ledger-diff results are reproducible across runs given an
// unchanged filesystem. Permission errors skip the affected subtree; sibling
// subtrees are still scanned.
func (s *Scanner) Scan(ctx context.Context) ([]Candidate, error) {
	var out []Candidate

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			if path == s.root {
				return fmt.Errorf("scan root: %w", err)
			}
			s.logger.Warn("skipping unreadable subtree", "path", path, "error", err)
			return nil
		}

		name := d.Name()

		if d.IsDir() {
			if path == s.root {
				return nil
			}
			if _, excluded := s.exclude[name]; excluded {
				return fs.SkipDir
			}
			if s.mode == Directories && s.matchesPrefix(name) {
				out = append(out, Candidate{Path: path, Name: name, Kind: KindDir})
			}
			return nil
		}

		if s.mode != Files {
			return nil
		}
		if _, excluded := s.exclude[name]; excluded {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		out = append(out, Candidate{Path: path, Name: name, Kind: KindFile})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Scanner) matchesPrefix(name string) bool {
	if s.prefix == "" {
		return true
	}
	return strings.HasPrefix(name, s.prefix)
}
