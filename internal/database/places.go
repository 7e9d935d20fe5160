package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/socialmark/internal/annotation"
	"github.com/nao1215/socialmark/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "places.db"

// PlacesDB provides SQLite-based storage for history entries and their
// annotations. It implements annotation.Store.
type PlacesDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

var _ annotation.Store = (*PlacesDB)(nil)

// Options configures PlacesDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a PlacesDB in the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*PlacesDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw prevents creating new files, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pdb := &PlacesDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := pdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pdb, nil
}

// Path returns the database file path.
func (pdb *PlacesDB) Path() string {
	return pdb.dbPath
}

// Close closes the database connection.
func (pdb *PlacesDB) Close() error {
	return pdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (pdb *PlacesDB) createTables() error {
	schema := `
	-- Places are history entries, one per URL
	CREATE TABLE IF NOT EXISTS places (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		url_hash TEXT NOT NULL,
		visit_count INTEGER NOT NULL DEFAULT 0,
		last_visit TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_places_url_hash ON places(url_hash);

	-- Visits record each time a place was seen
	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		place_id INTEGER NOT NULL,
		visited_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_visits_place ON visits(place_id);

	-- Annotations are named values attached to a place
	CREATE TABLE IF NOT EXISTS annotations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		place_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		content TEXT NOT NULL,
		last_modified DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(place_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_annotations_name ON annotations(name);
	`

	_, err := pdb.db.ExecContext(context.Background(), schema)
	return err
}

// placeIDQuery looks a place up through the url_hash index. The url
// comparison guards against hash collisions.
const placeIDQuery = `SELECT id FROM places WHERE url_hash = ? AND url = ?`

// URLHash returns the hex encoded SHA3-256 hash of url. Every lookup by
// URL goes through it.
func URLHash(url string) string {
	sum := sha3.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Get returns the saved-to annotation value of url.
// ok is false when the URL has no history entry or no annotation.
func (pdb *PlacesDB) Get(ctx context.Context, url string) (string, bool, error) {
	query := `
	SELECT a.content
	FROM annotations a
	JOIN places p ON p.id = a.place_id
	WHERE p.url_hash = ? AND p.url = ? AND a.name = ?
	`

	var content string
	err := pdb.db.QueryRowContext(ctx, query, URLHash(url), url, model.AnnotationName).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get annotation: %w", err)
	}

	return content, true, nil
}

// Set replaces the saved-to annotation value of url. An empty value
// removes the annotation. Annotating a URL without a history entry
// returns annotation.ErrNoHistoryEntry.
func (pdb *PlacesDB) Set(ctx context.Context, url, value string) error {
	if value == "" {
		query := `
		DELETE FROM annotations
		WHERE name = ? AND place_id IN (SELECT id FROM places WHERE url_hash = ? AND url = ?)
		`
		if _, err := pdb.db.ExecContext(ctx, query, model.AnnotationName, URLHash(url), url); err != nil {
			return fmt.Errorf("failed to remove annotation: %w", err)
		}
		return nil
	}

	placeID, err := pdb.placeID(ctx, url)
	if err != nil {
		return err
	}
	if placeID == 0 {
		return annotation.ErrNoHistoryEntry
	}

	query := `
	INSERT INTO annotations (place_id, name, content)
	VALUES (?, ?, ?)
	ON CONFLICT(place_id, name) DO UPDATE SET
		content = excluded.content,
		last_modified = CURRENT_TIMESTAMP
	`
	if _, err := pdb.db.ExecContext(ctx, query, placeID, model.AnnotationName, value); err != nil {
		return fmt.Errorf("failed to set annotation: %w", err)
	}

	return nil
}

// EnsureHistoryEntry creates a place for url with a single visit at the
// given time. Existing places are left untouched.
func (pdb *PlacesDB) EnsureHistoryEntry(ctx context.Context, url string, visit time.Time) error {
	tx, err := pdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	visitedAt := formatTimestamp(visit)

	result, err := tx.ExecContext(ctx, `
	INSERT INTO places (url, url_hash, visit_count, last_visit)
	VALUES (?, ?, 1, ?)
	ON CONFLICT(url) DO NOTHING
	`, url, URLHash(url), visitedAt)
	if err != nil {
		return fmt.Errorf("failed to insert place: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check inserted place: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	placeID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get place id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO visits (place_id, visited_at) VALUES (?, ?)`,
		placeID, visitedAt,
	); err != nil {
		return fmt.Errorf("failed to insert visit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history entry: %w", err)
	}

	return nil
}

// Page returns the stored page for url, or nil if the URL has no history entry.
// A page without annotation has an empty saved-to list.
func (pdb *PlacesDB) Page(ctx context.Context, url string) (*model.AnnotatedPage, error) {
	query := `
	SELECT p.url, p.visit_count, COALESCE(p.last_visit, ''), COALESCE(a.content, '')
	FROM places p
	LEFT JOIN annotations a ON a.place_id = p.id AND a.name = ?
	WHERE p.url_hash = ? AND p.url = ?
	`

	var (
		page      model.AnnotatedPage
		lastVisit string
		content   string
	)
	err := pdb.db.QueryRowContext(ctx, query, model.AnnotationName, URLHash(url), url).Scan(
		&page.URL,
		&page.VisitCount,
		&lastVisit,
		&content,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	page.LastVisit = parseTimestamp(lastVisit)
	page.SavedTo = model.SavedTo{}
	if content != "" {
		savedTo, err := annotation.DecodeSavedTo(content)
		if err != nil {
			return nil, fmt.Errorf("failed to parse annotation: %w", err)
		}
		page.SavedTo = savedTo
	}

	return &page, nil
}

// ListAnnotated returns all annotated pages ordered by URL.
// A non-empty service keeps only pages shared to that service.
// Pages whose annotation cannot be parsed are skipped.
func (pdb *PlacesDB) ListAnnotated(ctx context.Context, service string) ([]model.AnnotatedPage, error) {
	query := `
	SELECT p.url, p.visit_count, COALESCE(p.last_visit, ''), a.content
	FROM places p
	JOIN annotations a ON a.place_id = p.id
	WHERE a.name = ?
	ORDER BY p.url
	`

	rows, err := pdb.db.QueryContext(ctx, query, model.AnnotationName)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotated pages: %w", err)
	}
	defer rows.Close()

	var pages []model.AnnotatedPage
	for rows.Next() {
		var (
			page      model.AnnotatedPage
			lastVisit string
			content   string
		)
		if err := rows.Scan(&page.URL, &page.VisitCount, &lastVisit, &content); err != nil {
			return nil, fmt.Errorf("failed to scan annotated page: %w", err)
		}

		savedTo, err := annotation.DecodeSavedTo(content)
		if err != nil {
			continue // Skip malformed annotations
		}
		if service != "" && !savedTo.Contains(service) {
			continue
		}

		page.SavedTo = savedTo
		page.LastVisit = parseTimestamp(lastVisit)
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

// Forget removes the history entry of url together with its visits and
// annotations. It reports whether an entry existed.
func (pdb *PlacesDB) Forget(ctx context.Context, url string) (bool, error) {
	tx, err := pdb.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var placeID int64
	err = tx.QueryRowContext(ctx, placeIDQuery, URLHash(url), url).Scan(&placeID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up place: %w", err)
	}

	for _, stmt := range []string{
		`DELETE FROM annotations WHERE place_id = ?`,
		`DELETE FROM visits WHERE place_id = ?`,
		`DELETE FROM places WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, placeID); err != nil {
			return false, fmt.Errorf("failed to forget place: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit forget: %w", err)
	}

	return true, nil
}

// Visits returns the visit times recorded for url, oldest first.
func (pdb *PlacesDB) Visits(ctx context.Context, url string) ([]time.Time, error) {
	query := `
	SELECT v.visited_at
	FROM visits v
	JOIN places p ON p.id = v.place_id
	WHERE p.url_hash = ? AND p.url = ?
	ORDER BY v.id
	`

	rows, err := pdb.db.QueryContext(ctx, query, URLHash(url), url)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []time.Time
	for rows.Next() {
		var visitedAt string
		if err := rows.Scan(&visitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, parseTimestamp(visitedAt))
	}

	return visits, rows.Err()
}

// placeID returns the id of the place for url, or 0 when there is none.
func (pdb *PlacesDB) placeID(ctx context.Context, url string) (int64, error) {
	var id int64
	err := pdb.db.QueryRowContext(ctx, placeIDQuery, URLHash(url), url).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up place: %w", err)
	}
	return id, nil
}

// formatTimestamp formats t for storage.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // Format written by formatTimestamp
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
