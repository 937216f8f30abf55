package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/afterflow/internal/config"
	"github.com/JonMunkholm/afterflow/internal/core"
	"github.com/JonMunkholm/afterflow/internal/links"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal", "afterflow.db")
	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSessions() []core.SessionRecord {
	return []core.SessionRecord{
		{
			SessionDate:       time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC),
			Treatment:         core.TreatmentPsilocybin,
			Administration:    core.AdministrationOral,
			Intention:         "  Let go  ",
			MoodBefore:        4,
			MoodAfter:         8,
			Reflections:       "Line one\nline two, with \"quotes\"",
			MusicLinkURL:      "spotify:playlist:37i9dQZF1DX4sWSpwq3LiO",
			MusicLinkWebURL:   "https://open.spotify.com/playlist/37i9dQZF1DX4sWSpwq3LiO",
			MusicLinkProvider: links.ProviderSpotify,
		},
		{
			SessionDate:    time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
			Treatment:      core.TreatmentKetamine,
			Administration: core.AdministrationIntravenous,
			MoodBefore:     3,
			MoodAfter:      6,
		},
		{
			SessionDate:    time.Date(2024, 6, 1, 21, 15, 0, 0, time.UTC),
			Treatment:      core.TreatmentPsilocybin,
			Administration: core.AdministrationOral,
			MoodBefore:     5,
			MoodAfter:      5,
		},
	}
}

func TestOpenSQLite_CreatesDirectoryAndWAL(t *testing.T) {
	s := openTestSQLite(t)

	if _, err := os.Stat(s.Path()); err != nil {
		t.Fatalf("journal file not created: %v", err)
	}

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestOpenSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afterflow.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if _, err := s.InsertSessions(ctx, testSessions()[:1]); err != nil {
		t.Fatalf("InsertSessions() error = %v", err)
	}
	s.Close()

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	got, err := s.ListSessions(ctx, core.ExportOptions{})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d sessions after reopen, want 1", len(got))
	}
}

func TestSQLite_InsertAndList(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	in := testSessions()

	n, err := s.InsertSessions(ctx, in)
	if err != nil {
		t.Fatalf("InsertSessions() error = %v", err)
	}
	if n != len(in) {
		t.Errorf("inserted %d, want %d", n, len(in))
	}

	got, err := s.ListSessions(ctx, core.ExportOptions{})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("got %d sessions, want %d", len(got), len(in))
	}

	// Ordered by session date.
	wantOrder := []time.Time{in[1].SessionDate, in[0].SessionDate, in[2].SessionDate}
	for i, want := range wantOrder {
		if !got[i].SessionDate.Equal(want) {
			t.Errorf("got[%d].SessionDate = %v, want %v", i, got[i].SessionDate, want)
		}
		if got[i].ID == "" || got[i].CreatedAt.IsZero() {
			t.Errorf("got[%d] missing ID or CreatedAt: %+v", i, got[i])
		}
	}

	first := got[1]
	want := in[0]
	if first.Intention != want.Intention || first.Reflections != want.Reflections {
		t.Errorf("text fields changed: %q / %q", first.Intention, first.Reflections)
	}
	if first.MusicLinkURL != want.MusicLinkURL || first.MusicLinkWebURL != want.MusicLinkWebURL {
		t.Errorf("links = %q / %q", first.MusicLinkURL, first.MusicLinkWebURL)
	}
	if first.MusicLinkProvider != links.ProviderSpotify {
		t.Errorf("provider = %q, want spotify", first.MusicLinkProvider)
	}
	if got[0].MusicLinkProvider != "" {
		t.Errorf("session without link has provider %q", got[0].MusicLinkProvider)
	}
}

func TestSQLite_ListFilters(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	if _, err := s.InsertSessions(ctx, testSessions()); err != nil {
		t.Fatalf("InsertSessions() error = %v", err)
	}

	tests := []struct {
		name string
		opts core.ExportOptions
		want int
	}{
		{"no filter", core.ExportOptions{}, 3},
		{"treatment", core.ExportOptions{Treatment: core.TreatmentPsilocybin}, 2},
		{"unused treatment", core.ExportOptions{Treatment: core.TreatmentDMT}, 0},
		{
			name: "range inclusive on both ends",
			opts: core.ExportOptions{Range: &core.DateRange{
				Start: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC),
			}},
			want: 2,
		},
		{
			name: "range in another zone",
			opts: core.ExportOptions{Range: &core.DateRange{
				Start: time.Date(2024, 3, 10, 19, 30, 0, 0, time.FixedZone("CET", 3600)),
				End:   time.Date(2024, 3, 10, 19, 30, 0, 0, time.FixedZone("CET", 3600)),
			}},
			want: 1,
		},
		{
			name: "range and treatment",
			opts: core.ExportOptions{
				Range: &core.DateRange{
					Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
					End:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
				},
				Treatment: core.TreatmentPsilocybin,
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListSessions(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListSessions() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d sessions, want %d", len(got), tt.want)
			}
			for _, r := range got {
				if !tt.opts.Matches(r) {
					t.Errorf("session %+v does not match filter", r)
				}
			}
		})
	}
}

func TestSQLite_InsertIsAtomic(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	records := testSessions()
	records[0].ID = "dup"
	records[2].ID = "dup"

	if _, err := s.InsertSessions(ctx, records); err == nil {
		t.Fatal("InsertSessions() with duplicate IDs succeeded")
	}

	got, err := s.ListSessions(ctx, core.ExportOptions{})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("partial insert left %d sessions", len(got))
	}
}

func TestSQLite_InsertEmpty(t *testing.T) {
	s := openTestSQLite(t)
	n, err := s.InsertSessions(context.Background(), nil)
	if err != nil || n != 0 {
		t.Errorf("InsertSessions(nil) = %d, %v", n, err)
	}
}

func TestSQLite_ServiceRoundTrip(t *testing.T) {
	src := openTestSQLite(t)
	dst := openTestSQLite(t)
	ctx := context.Background()

	if _, err := src.InsertSessions(ctx, testSessions()); err != nil {
		t.Fatalf("InsertSessions() error = %v", err)
	}

	exported, err := core.NewService(src, core.ServiceConfig{}).ExportSessions(ctx, core.ExportOptions{})
	if err != nil {
		t.Fatalf("ExportSessions() error = %v", err)
	}

	result, err := core.NewService(dst, core.ServiceConfig{}).ImportSessions(ctx, strings.NewReader(exported.CSV))
	if err != nil {
		t.Fatalf("ImportSessions() error = %v", err)
	}
	if result.Imported != 3 {
		t.Errorf("Imported = %d, want 3", result.Imported)
	}

	again, err := core.NewService(dst, core.ServiceConfig{}).ExportSessions(ctx, core.ExportOptions{})
	if err != nil {
		t.Fatalf("second ExportSessions() error = %v", err)
	}
	if again.CSV != exported.CSV {
		t.Errorf("round trip changed CSV:\n got: %q\nwant: %q", again.CSV, exported.CSV)
	}
}

func TestPrepareRecords(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := []core.SessionRecord{{}, {ID: "kept", CreatedAt: now.Add(-time.Hour)}}

	out := prepareRecords(in, now)

	if out[0].ID == "" || !out[0].CreatedAt.Equal(now) {
		t.Errorf("out[0] = %+v, want generated ID and now", out[0])
	}
	if out[1].ID != "kept" || !out[1].CreatedAt.Equal(now.Add(-time.Hour)) {
		t.Errorf("out[1] = %+v, existing values overwritten", out[1])
	}
	if in[0].ID != "" {
		t.Error("input slice was modified")
	}
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.DatabaseConfig{Driver: "SQLite", Path: filepath.Join(t.TempDir(), "a.db")})
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	if _, ok := s.(*SQLite); !ok {
		t.Errorf("Open(sqlite) = %T, want *SQLite", s)
	}
	s.Close()

	if _, err := Open(ctx, config.DatabaseConfig{Driver: "mysql"}); err == nil {
		t.Error("Open(mysql) succeeded, want error")
	}
}
