package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxlab/curator/internal/log"
)

func mkTree(t *testing.T, root string, dirs []string, files []string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	for _, f := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(root, f)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, f), []byte("data"), 0o644))
	}
}

func names(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Name
	}
	return out
}

func TestScanMissingRootFails(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), Options{}, log.Get())
	require.Error(t, err)
}

func TestScanFilesMode(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, nil, []string{"b.dat", "a/x.h5", "a/y.ibw"})

	s, err := New(root, Options{Mode: Files}, log.Get())
	require.NoError(t, err)

	cands, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x.h5", "y.ibw", "b.dat"}, names(cands))
	for _, c := range cands {
		assert.Equal(t, KindFile, c.Kind)
	}
}

func TestScanPrefixFilter(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, []string{"GC001", "DATA1", "GC002"}, nil)

	s, err := New(root, Options{Mode: Directories, Prefix: "GC"}, log.Get())
	require.NoError(t, err)

	cands, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GC001", "GC002"}, names(cands))
	for _, c := range cands {
		assert.Equal(t, KindDir, c.Kind)
	}
}

func TestScanExcludedDirIsPruned(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root,
		[]string{"$RECYCLE.BIN/nested"},
		[]string{"$RECYCLE.BIN/ghost.dat", "$RECYCLE.BIN/nested/deep.dat", "keep.dat"})

	s, err := New(root, Options{Mode: Files, Exclude: []string{"$RECYCLE.BIN"}}, log.Get())
	require.NoError(t, err)

	cands, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.dat"}, names(cands))
}

func TestScanExcludedDirNotACandidateInDirectoryMode(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, []string{"$RECYCLE.BIN", "RUN1"}, nil)

	s, err := New(root, Options{Mode: Directories, Exclude: []string{"$RECYCLE.BIN"}}, log.Get())
	require.NoError(t, err)

	cands, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"RUN1"}, names(cands))
}

func TestScanExcludedFileIsSkipped(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, nil, []string{"processed.json", "sample.json"})

	s, err := New(root, Options{Mode: Files, Exclude: []string{"processed.json"}}, log.Get())
	require.NoError(t, err)

	cands, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sample.json"}, names(cands))
}

func TestScanOrderIsStable(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, nil, []string{"c.dat", "a.dat", "b.dat"})

	s, err := New(root, Options{Mode: Files}, log.Get())
	require.NoError(t, err)

	first, err := s.Scan(context.Background())
	require.NoError(t, err)
	second, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a.dat", "b.dat", "c.dat"}, names(first))
}

func TestScanHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, nil, []string{"a.dat"})

	s, err := New(root, Options{Mode: Files}, log.Get())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
