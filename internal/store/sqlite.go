package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/afterflow/internal/core"
	"github.com/JonMunkholm/afterflow/internal/links"
)

// sqliteTimeLayout is fixed width so that text comparison orders by time.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                  TEXT    PRIMARY KEY,
	created_at          TEXT    NOT NULL,
	session_date        TEXT    NOT NULL,
	treatment           TEXT    NOT NULL,
	administration      TEXT    NOT NULL,
	intention           TEXT    NOT NULL DEFAULT '',
	mood_before         INTEGER NOT NULL,
	mood_after          INTEGER NOT NULL,
	reflections         TEXT    NOT NULL DEFAULT '',
	music_link_url      TEXT    NOT NULL DEFAULT '',
	music_link_web_url  TEXT    NOT NULL DEFAULT '',
	music_link_provider TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sessions_date      ON sessions(session_date);
CREATE INDEX IF NOT EXISTS idx_sessions_treatment ON sessions(treatment);
`

// SQLite stores the journal in a single local database file.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the journal at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	// WAL lets exports read while an import is writing.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}

	return &SQLite{db: db, path: path}, nil
}

// Path returns the journal file location.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListSessions returns sessions matching opts, oldest first.
func (s *SQLite) ListSessions(ctx context.Context, opts core.ExportOptions) ([]core.SessionRecord, error) {
	var (
		where []string
		args  []any
	)
	if opts.Range != nil {
		where = append(where, "session_date >= ?", "session_date <= ?")
		args = append(args, formatSQLiteTime(opts.Range.Start), formatSQLiteTime(opts.Range.End))
	}
	if opts.Treatment != "" {
		where = append(where, "treatment = ?")
		args = append(args, string(opts.Treatment))
	}

	query := `
		SELECT id, created_at, session_date, treatment, administration, intention,
		       mood_before, mood_after, reflections,
		       music_link_url, music_link_web_url, music_link_provider
		FROM sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY session_date, created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []core.SessionRecord
	for rows.Next() {
		var (
			r                         core.SessionRecord
			createdAt, sessionDate    string
			treatment, administration string
			provider                  string
		)
		if err := rows.Scan(
			&r.ID, &createdAt, &sessionDate, &treatment, &administration, &r.Intention,
			&r.MoodBefore, &r.MoodAfter, &r.Reflections,
			&r.MusicLinkURL, &r.MusicLinkWebURL, &provider,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		if r.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
			return nil, fmt.Errorf("session %s: created_at: %w", r.ID, err)
		}
		if r.SessionDate, err = parseSQLiteTime(sessionDate); err != nil {
			return nil, fmt.Errorf("session %s: session_date: %w", r.ID, err)
		}
		r.Treatment = core.TreatmentType(treatment)
		r.Administration = core.AdministrationMethod(administration)
		r.MusicLinkProvider = parseStoredProvider(provider)

		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return records, nil
}

// InsertSessions writes records in one transaction.
func (s *SQLite) InsertSessions(ctx context.Context, records []core.SessionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	records = prepareRecords(records, time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if already committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sessions (
			id, created_at, session_date, treatment, administration, intention,
			mood_before, mood_after, reflections,
			music_link_url, music_link_web_url, music_link_provider
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.ID, formatSQLiteTime(r.CreatedAt), formatSQLiteTime(r.SessionDate),
			string(r.Treatment), string(r.Administration), r.Intention,
			r.MoodBefore, r.MoodAfter, r.Reflections,
			r.MusicLinkURL, r.MusicLinkWebURL, string(r.MusicLinkProvider),
		); err != nil {
			return 0, fmt.Errorf("insert session %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(records), nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

// parseStoredProvider keeps "no link" distinct from an unknown provider.
func parseStoredProvider(s string) links.Provider {
	if s == "" {
		return ""
	}
	return links.ParseProvider(s)
}
