package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogIndexAndList(t *testing.T) {
	cat, err := OpenCatalog(filepath.Join(t.TempDir(), "futurecast.db"))
	require.NoError(t, err)
	defer cat.Close()

	older := sampleCast(t, "older", time.Date(2026, 8, 20, 8, 0, 0, 0, time.UTC))
	newer := sampleCast(t, "newer", time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC))
	require.NoError(t, cat.Index("/saved/a.json", older))
	require.NoError(t, cat.Index("/saved/b.json", newer))

	entries, err := cat.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "newer", entries[0].Context)
	assert.Equal(t, "older", entries[1].Context)
	assert.Equal(t, 2, entries[0].EffectCount)
	assert.Equal(t, 2, entries[0].MaxOrder)
	assert.Equal(t, "summary for newer", entries[0].Snippet)
}

func TestCatalogIndexIsUpsert(t *testing.T) {
	cat, err := OpenCatalog(filepath.Join(t.TempDir(), "futurecast.db"))
	require.NoError(t, err)
	defer cat.Close()

	fc := sampleCast(t, "v1", time.Now().UTC())
	require.NoError(t, cat.Index("/saved/a.json", fc))
	fc.Tree.Context = "v2"
	require.NoError(t, cat.Index("/saved/a.json", fc))

	entries, err := cat.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "v2", entries[0].Context)
}

func TestCatalogRebuild(t *testing.T) {
	dir := t.TempDir()
	files, err := NewFileStore(filepath.Join(dir, "saved"))
	require.NoError(t, err)
	cat, err := OpenCatalog(filepath.Join(dir, "futurecast.db"))
	require.NoError(t, err)
	defer cat.Close()

	_, err = files.Save(sampleCast(t, "alpha", time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = files.Save(sampleCast(t, "beta", time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	// A stale entry whose file no longer exists.
	require.NoError(t, cat.Index(filepath.Join(files.Dir(), "futurecast_20200101_000000.json"),
		sampleCast(t, "ghost", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))))

	require.NoError(t, cat.Rebuild(files))

	entries, err := cat.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "beta", entries[0].Context)
	assert.Equal(t, "alpha", entries[1].Context)
	for _, e := range entries {
		assert.NotEqual(t, "ghost", e.Context)
	}

	t.Run("unreadable file is skipped", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(files.Dir(), "futurecast_20260823_000000.json"), []byte("{"), 0o644))
		require.NoError(t, cat.Rebuild(files))
		entries, err := cat.List()
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestSummarySnippet(t *testing.T) {
	assert.Equal(t, "first line", summarySnippet("  first line\nsecond line"))
	long := strings.Repeat("x", 300)
	assert.Len(t, summarySnippet(long), 203)
}
