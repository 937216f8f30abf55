package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/afterflow/internal/config"
	"github.com/JonMunkholm/afterflow/internal/core"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                  UUID        PRIMARY KEY,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	session_date        TIMESTAMPTZ NOT NULL,
	treatment           TEXT        NOT NULL,
	administration      TEXT        NOT NULL,
	intention           TEXT        NOT NULL DEFAULT '',
	mood_before         INTEGER     NOT NULL,
	mood_after          INTEGER     NOT NULL,
	reflections         TEXT        NOT NULL DEFAULT '',
	music_link_url      TEXT,
	music_link_web_url  TEXT,
	music_link_provider TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_date      ON sessions(session_date);
CREATE INDEX IF NOT EXISTS idx_sessions_treatment ON sessions(treatment);
`

var sessionColumns = []string{
	"id", "created_at", "session_date", "treatment", "administration", "intention",
	"mood_before", "mood_after", "reflections",
	"music_link_url", "music_link_web_url", "music_link_provider",
}

// Postgres stores sessions through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to cfg.URL and ensures the schema exists.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool. The schema is assumed to exist.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Ping verifies the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// ListSessions returns sessions matching opts, oldest first.
func (p *Postgres) ListSessions(ctx context.Context, opts core.ExportOptions) ([]core.SessionRecord, error) {
	var (
		where []string
		args  []any
	)
	if opts.Range != nil {
		args = append(args, toPgTimestamptz(opts.Range.Start), toPgTimestamptz(opts.Range.End))
		where = append(where, fmt.Sprintf("session_date BETWEEN $%d AND $%d", len(args)-1, len(args)))
	}
	if opts.Treatment != "" {
		args = append(args, string(opts.Treatment))
		where = append(where, fmt.Sprintf("treatment = $%d", len(args)))
	}

	query := "SELECT " + strings.Join(sessionColumns, ", ") + " FROM sessions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY session_date, created_at"

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []core.SessionRecord
	for rows.Next() {
		var (
			id                        pgtype.UUID
			createdAt, sessionDate    pgtype.Timestamptz
			treatment, admin          string
			moodBefore, moodAfter     int32
			linkURL, webURL, provider pgtype.Text
			r                         core.SessionRecord
		)
		if err := rows.Scan(
			&id, &createdAt, &sessionDate, &treatment, &admin, &r.Intention,
			&moodBefore, &moodAfter, &r.Reflections,
			&linkURL, &webURL, &provider,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		r.ID = pgUUIDString(id)
		r.CreatedAt = pgTimestamptzTime(createdAt)
		r.SessionDate = pgTimestamptzTime(sessionDate)
		r.Treatment = core.TreatmentType(treatment)
		r.Administration = core.AdministrationMethod(admin)
		r.MoodBefore = int(moodBefore)
		r.MoodAfter = int(moodAfter)
		r.MusicLinkURL = pgTextString(linkURL)
		r.MusicLinkWebURL = pgTextString(webURL)
		r.MusicLinkProvider = parseStoredProvider(pgTextString(provider))

		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return records, nil
}

// InsertSessions copies records in one transaction.
func (p *Postgres) InsertSessions(ctx context.Context, records []core.SessionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	records = prepareRecords(records, time.Now())

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"sessions"},
		sessionColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			id := toPgUUID(r.ID)
			if !id.Valid {
				return nil, fmt.Errorf("session %d: invalid id %q", i+1, r.ID)
			}
			return []any{
				id,
				toPgTimestamptz(r.CreatedAt),
				toPgTimestamptz(r.SessionDate),
				string(r.Treatment),
				string(r.Administration),
				r.Intention,
				int32(r.MoodBefore),
				int32(r.MoodAfter),
				r.Reflections,
				toPgText(r.MusicLinkURL),
				toPgText(r.MusicLinkWebURL),
				toPgText(string(r.MusicLinkProvider)),
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy sessions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}
