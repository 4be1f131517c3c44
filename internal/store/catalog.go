package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"futurecast/internal/forecast"
	"futurecast/internal/logging"
)

// CatalogEntry is one indexed futurecast.
type CatalogEntry struct {
	Path        string
	Context     string
	Snippet     string
	CreatedAt   time.Time
	EffectCount int
	MaxOrder    int
}

// Catalog indexes saved futurecasts in SQLite so listing does not have to
// parse every JSON file.
type Catalog struct {
	db     *sql.DB
	dbPath string
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS casts (
	path         TEXT PRIMARY KEY,
	context      TEXT NOT NULL,
	snippet      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL,
	effect_count INTEGER NOT NULL,
	max_order    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_casts_created ON casts(created_at DESC);
`

// OpenCatalog initializes the SQLite catalog at the given path.
func OpenCatalog(path string) (*Catalog, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenCatalog")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.Get(logging.CategoryStore).Debug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.Get(logging.CategoryStore).Debug("failed to set journal_mode=WAL: %v", err)
	}

	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Catalog{db: db, dbPath: path}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Index records or refreshes a saved futurecast.
func (c *Catalog) Index(path string, fc *forecast.Futurecast) error {
	snippet := summarySnippet(fc.Summary)
	_, err := c.db.Exec(`
		INSERT INTO casts (path, context, snippet, created_at, effect_count, max_order)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			context = excluded.context,
			snippet = excluded.snippet,
			created_at = excluded.created_at,
			effect_count = excluded.effect_count,
			max_order = excluded.max_order`,
		path, fc.Tree.Context, snippet, fc.Timestamp, fc.Tree.EffectCount(), fc.Tree.MaxOrder())
	if err != nil {
		return fmt.Errorf("index futurecast: %w", err)
	}
	return nil
}

// Remove drops an entry by path.
func (c *Catalog) Remove(path string) error {
	if _, err := c.db.Exec("DELETE FROM casts WHERE path = ?", path); err != nil {
		return fmt.Errorf("remove catalog entry: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (c *Catalog) List() ([]CatalogEntry, error) {
	rows, err := c.db.Query(`
		SELECT path, context, snippet, created_at, effect_count, max_order
		FROM casts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.Path, &e.Context, &e.Snippet, &e.CreatedAt, &e.EffectCount, &e.MaxOrder); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Rebuild re-indexes every futurecast the FileStore knows about and drops
// entries whose files are gone. Unreadable files are skipped.
func (c *Catalog) Rebuild(files *FileStore) error {
	paths, err := files.List()
	if err != nil {
		return err
	}
	onDisk := make(map[string]bool, len(paths))
	for _, path := range paths {
		onDisk[path] = true
		fc, err := files.Load(path)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("skipping unreadable futurecast %s: %v", path, err)
			continue
		}
		if err := c.Index(path, fc); err != nil {
			return err
		}
	}

	entries, err := c.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !onDisk[e.Path] {
			if err := c.Remove(e.Path); err != nil {
				return err
			}
		}
	}
	logging.Store("catalog rebuilt: %d casts", len(paths))
	return nil
}

// summarySnippet keeps the first sentence-ish chunk of a summary.
func summarySnippet(summary string) string {
	summary = strings.TrimSpace(summary)
	if i := strings.IndexAny(summary, "\n"); i > 0 {
		summary = summary[:i]
	}
	const max = 200
	if len(summary) > max {
		summary = summary[:max] + "..."
	}
	return summary
}
