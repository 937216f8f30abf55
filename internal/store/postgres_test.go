package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/afterflow/internal/config"
	"github.com/JonMunkholm/afterflow/internal/core"
)

// openTestPostgres connects to TEST_DATABASE_URL and empties the sessions
// table. Tests are skipped when the variable is unset.
func openTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	p, err := OpenPostgres(ctx, config.DatabaseConfig{
		URL:             url,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	})
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	if _, err := p.pool.Exec(ctx, "TRUNCATE sessions"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPostgres_InsertAndList(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()

	n, err := p.InsertSessions(ctx, testSessions())
	if err != nil {
		t.Fatalf("InsertSessions() error = %v", err)
	}
	if n != 3 {
		t.Errorf("inserted %d, want 3", n)
	}

	got, err := p.ListSessions(ctx, core.ExportOptions{Treatment: core.TreatmentPsilocybin})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d sessions, want 2", len(got))
	}
	if !got[0].SessionDate.Before(got[1].SessionDate) {
		t.Error("sessions not ordered by date")
	}
	if got[0].MusicLinkURL == "" || got[1].MusicLinkURL != "" {
		t.Errorf("music links = %q, %q", got[0].MusicLinkURL, got[1].MusicLinkURL)
	}
}

func TestPostgres_InsertIsAtomic(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()

	records := testSessions()
	records[2].ID = "not-a-uuid"

	if _, err := p.InsertSessions(ctx, records); err == nil {
		t.Fatal("InsertSessions() with invalid id succeeded")
	}

	got, err := p.ListSessions(ctx, core.ExportOptions{})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("partial insert left %d sessions", len(got))
	}
}

func TestPgConversions(t *testing.T) {
	if v := toPgText(""); v.Valid {
		t.Error("toPgText(\"\") is valid")
	}
	if v := toPgText("  keep  "); !v.Valid || pgTextString(v) != "  keep  " {
		t.Errorf("toPgText kept %q", pgTextString(v))
	}

	id := uuid.NewString()
	if got := pgUUIDString(toPgUUID(id)); got != id {
		t.Errorf("uuid round trip = %q, want %q", got, id)
	}
	if toPgUUID("nope").Valid {
		t.Error("toPgUUID accepted an invalid id")
	}

	local := time.Date(2024, 3, 10, 19, 30, 0, 0, time.FixedZone("CET", 3600))
	got := pgTimestamptzTime(toPgTimestamptz(local))
	if !got.Equal(local) || got.Location() != time.UTC {
		t.Errorf("timestamptz round trip = %v", got)
	}
	if toPgTimestamptz(time.Time{}).Valid {
		t.Error("zero time is valid")
	}
}
