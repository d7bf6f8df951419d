// Package extract derives catalog metadata from instrument output files.
//
// Extraction is a pluggable capability keyed by file extension. Failures
// never propagate past the FileMetadata boundary: a failed or unsupported
// extraction degrades to basic filesystem metadata so that the processing
// pipeline can always register the file.
package extract

import (
	"path/filepath"
	"strings"
	"sync"
)

// Mapping is the JSON-compatible metadata produced for one file.
type Mapping = map[string]any

// Extractor produces metadata for a single file format.
type Extractor interface {
	Extract(path string) (Mapping, error)
}

// Func adapts a plain function to the Extractor interface.
type Func func(path string) (Mapping, error)

func (f Func) Extract(path string) (Mapping, error) { return f(path) }

// Registry dispatches extraction by file extension, case-insensitive.
// New formats register here without touching dispatch logic.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Extractor)}
}

// Default returns a registry with all built-in format extractors.
func Default() *Registry {
	r := NewRegistry()
	r.Register(".json", Func(extractJSON))
	r.Register(".xrdml", Func(extractXRDML))
	r.Register(".ibw", Func(extractIBW))
	r.Register(".h5", Func(extractH5))
	r.Register(".dm4", Func(extractDM4))
	return r
}

// Register associates ext (with leading dot) with an extractor.
func (r *Registry) Register(ext string, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byExt[strings.ToLower(ext)] = e
}

// Lookup returns the extractor for path's extension, if any.
func (r *Registry) Lookup(path string) (Extractor, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byExt[ext]
	return e, ok
}

// FileMetadata is the single entry point the pipeline calls.
//
// For a recognized extension the specialized result is returned. Unsupported
// extensions yield basic filesystem metadata with an unsupported_type marker,
// and a failed specialized extraction yields the basic fields plus an error
// description. Only a failing stat propagates to the caller.
func (r *Registry) FileMetadata(path string) (Mapping, error) {
	if e, ok := r.Lookup(path); ok {
		m, err := e.Extract(path)
		if err == nil {
			return m, nil
		}
		basic, statErr := basicMetadata(path)
		if statErr != nil {
			return nil, statErr
		}
		basic["error"] = err.Error()
		return basic, nil
	}

	basic, err := basicMetadata(path)
	if err != nil {
		return nil, err
	}
	basic["unsupported_type"] = true
	return basic, nil
}
