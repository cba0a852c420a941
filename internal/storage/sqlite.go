package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "modernc.org/sqlite"

	"github.com/kalambet/musicdoc/internal/timeline"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding playlists and their narration assets.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "musicdoc.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Playlists ---

const playlistColumns = `id, owner_id, title, topic, summary, timeline, source, narration_album_art_url, created_at, updated_at`

// NewPlaylistID returns a fresh URL-safe playlist id.
func NewPlaylistID() string {
	return gonanoid.Must()
}

// CreatePlaylist inserts p. A missing ID is generated; timestamps are set
// to now. The stored record is returned.
func (s *Store) CreatePlaylist(p Playlist) (Playlist, error) {
	if p.ID == "" {
		p.ID = NewPlaylistID()
	}
	if p.Timeline == nil {
		p.Timeline = []timeline.Entry{}
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	tl, err := json.Marshal(p.Timeline)
	if err != nil {
		return Playlist{}, fmt.Errorf("encoding timeline: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO playlists (`+playlistColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Title, p.Topic, p.Summary, string(tl), p.Source, p.NarrationAlbumArtURL,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return Playlist{}, fmt.Errorf("inserting playlist: %w", err)
	}
	return p, nil
}

func (s *Store) GetPlaylist(id string) (Playlist, error) {
	row := s.db.QueryRow(`SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id)
	p, err := scanPlaylist(row)
	if err == sql.ErrNoRows {
		return Playlist{}, ErrNotFound
	}
	return p, err
}

// ListPlaylistsByOwner returns the owner's playlists, newest first. A
// non-positive limit means no limit.
func (s *Store) ListPlaylistsByOwner(ownerID string, limit int) ([]Playlist, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT `+playlistColumns+` FROM playlists
		WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, ownerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Playlist{}
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// UpdatePlaylist merges u into the stored playlist and returns the result.
func (s *Store) UpdatePlaylist(id string, u PlaylistUpdate) (Playlist, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Playlist{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPlaylist(tx.QueryRow(`SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Playlist{}, ErrNotFound
	}
	if err != nil {
		return Playlist{}, err
	}

	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Topic != nil {
		p.Topic = *u.Topic
	}
	if u.Summary != nil {
		p.Summary = *u.Summary
	}
	if u.Timeline != nil {
		p.Timeline = u.Timeline
	}
	if u.NarrationAlbumArtURL != nil {
		p.NarrationAlbumArtURL = *u.NarrationAlbumArtURL
	}
	p.UpdatedAt = time.Now().UTC()

	tl, err := json.Marshal(p.Timeline)
	if err != nil {
		return Playlist{}, fmt.Errorf("encoding timeline: %w", err)
	}
	if _, err := tx.Exec(`
		UPDATE playlists SET title = ?, topic = ?, summary = ?, timeline = ?, narration_album_art_url = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Topic, p.Summary, string(tl), p.NarrationAlbumArtURL, formatTime(p.UpdatedAt), id,
	); err != nil {
		return Playlist{}, fmt.Errorf("updating playlist: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Playlist{}, fmt.Errorf("committing playlist update: %w", err)
	}
	return p, nil
}

// CountPlaylists returns the total number of stored playlists.
func (s *Store) CountPlaylists() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM playlists`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(r rowScanner) (Playlist, error) {
	var p Playlist
	var tl, createdAt, updatedAt string
	if err := r.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Topic, &p.Summary, &tl, &p.Source, &p.NarrationAlbumArtURL, &createdAt, &updatedAt); err != nil {
		return Playlist{}, err
	}
	if err := json.Unmarshal([]byte(tl), &p.Timeline); err != nil {
		return Playlist{}, fmt.Errorf("decoding timeline of %s: %w", p.ID, err)
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Playlist{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Playlist{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return p, nil
}

// --- Narration assets ---

// SaveNarrationAsset records (or replaces) one narration audio file.
func (s *Store) SaveNarrationAsset(a NarrationAsset) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO narration_assets (playlist_id, idx, file_name, url, bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(playlist_id, idx) DO UPDATE SET
			file_name = excluded.file_name, url = excluded.url, bytes = excluded.bytes, created_at = excluded.created_at`,
		a.PlaylistID, a.Index, a.FileName, a.URL, a.Bytes, formatTime(a.CreatedAt),
	)
	return err
}

// ListNarrationAssets returns a playlist's narration files in index order.
func (s *Store) ListNarrationAssets(playlistID string) ([]NarrationAsset, error) {
	rows, err := s.db.Query(`
		SELECT playlist_id, idx, file_name, url, bytes, created_at
		FROM narration_assets WHERE playlist_id = ? ORDER BY idx ASC`, playlistID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []NarrationAsset
	for rows.Next() {
		var a NarrationAsset
		var createdAt string
		if err := rows.Scan(&a.PlaylistID, &a.Index, &a.FileName, &a.URL, &a.Bytes, &createdAt); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
