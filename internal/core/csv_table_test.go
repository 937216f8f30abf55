package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/afterflow/internal/links"
)

const header = "Date,Treatment Type,Administration,Intention,Mood Before,Mood After,Reflections,Music Link URL"

func sessionAt(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return ts
}

// csvFields drops the store-owned fields that CSV does not carry.
func csvFields(r SessionRecord) SessionRecord {
	r.ID = ""
	r.CreatedAt = time.Time{}
	return r
}

func TestExport_HeaderOnly(t *testing.T) {
	got := Export(nil, ExportOptions{})
	if got != header+"\n" {
		t.Errorf("Export(nil) = %q, want header line", got)
	}
}

func TestExport_Row(t *testing.T) {
	rec := SessionRecord{
		SessionDate:    sessionAt(t, "Mar 5, 2024 at 9:30 PM"),
		Treatment:      TreatmentPsilocybin,
		Administration: AdministrationOral,
		Intention:      "Let go",
		MoodBefore:     4,
		MoodAfter:      8,
		Reflections:    "Felt open, calm",
		MusicLinkURL:   "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
	}

	got := Export([]SessionRecord{rec}, ExportOptions{})
	want := header + "\n" +
		`"Mar 5, 2024 at 9:30 PM",Psilocybin,Oral,Let go,4,8,"Felt open, calm",spotify:playlist:37i9dQZF1DXcBWIGoYBM5M` + "\n"
	if got != want {
		t.Errorf("Export() =\n%q\nwant\n%q", got, want)
	}
}

func TestExport_MusicLinkFallsBackToWebURL(t *testing.T) {
	rec := SessionRecord{
		SessionDate:     sessionAt(t, "Jan 1, 2024 at 8:00 AM"),
		Treatment:       TreatmentOther,
		Administration:  AdministrationOther,
		MusicLinkWebURL: "https://open.spotify.com/track/1",
	}
	got := Export([]SessionRecord{rec}, ExportOptions{})
	if !strings.HasSuffix(got, ",https://open.spotify.com/track/1\n") {
		t.Errorf("Export() = %q, want web URL in last column", got)
	}
}

func TestExport_Filters(t *testing.T) {
	records := []SessionRecord{
		{SessionDate: sessionAt(t, "Jan 1, 2024 at 8:00 AM"), Treatment: TreatmentLSD, Administration: AdministrationOral, Intention: "a"},
		{SessionDate: sessionAt(t, "Jan 15, 2024 at 8:00 AM"), Treatment: TreatmentKetamine, Administration: AdministrationIntravenous, Intention: "b"},
		{SessionDate: sessionAt(t, "Jan 31, 2024 at 8:00 AM"), Treatment: TreatmentLSD, Administration: AdministrationOral, Intention: "c"},
		{SessionDate: sessionAt(t, "Feb 1, 2024 at 8:00 AM"), Treatment: TreatmentLSD, Administration: AdministrationOral, Intention: "d"},
	}
	january := &DateRange{
		Start: sessionAt(t, "Jan 1, 2024 at 8:00 AM"),
		End:   sessionAt(t, "Jan 31, 2024 at 8:00 AM"),
	}

	tests := []struct {
		name string
		opts ExportOptions
		want []string
	}{
		{"no filters", ExportOptions{}, []string{"a", "b", "c", "d"}},
		{"range inclusive both ends", ExportOptions{Range: january}, []string{"a", "b", "c"}},
		{"treatment only", ExportOptions{Treatment: TreatmentKetamine}, []string{"b"}},
		{"range and treatment", ExportOptions{Range: january, Treatment: TreatmentLSD}, []string{"a", "c"}},
		{"nothing matches", ExportOptions{Treatment: TreatmentDMT}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imported, err := Import(Export(records, tt.opts))
			if err != nil {
				t.Fatalf("Import() error = %v", err)
			}
			var got []string
			for _, r := range imported {
				got = append(got, r.Intention)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("intentions = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	records := []SessionRecord{
		{
			SessionDate:       sessionAt(t, "Mar 5, 2024 at 9:30 PM"),
			Treatment:         TreatmentPsilocybin,
			Administration:    AdministrationOral,
			Intention:         "He said \"hi\", then\nleft",
			MoodBefore:        3,
			MoodAfter:         9,
			Reflections:       "=SUM(1,2)",
			MusicLinkURL:      "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			MusicLinkWebURL:   "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			MusicLinkProvider: links.ProviderSpotify,
		},
		{
			SessionDate:    sessionAt(t, "Dec 31, 2023 at 11:59 PM"),
			Treatment:      TreatmentKetamine,
			Administration: AdministrationIntramuscular,
			Intention:      "+calm -noise @home",
			MoodBefore:     -2,
			MoodAfter:      0,
			Reflections:    "",
		},
		{
			SessionDate:       sessionAt(t, "Jul 4, 2024 at 12:00 PM"),
			Treatment:         TreatmentMDMA,
			Administration:    AdministrationNasal,
			Intention:         "'already quoted' ✨ café",
			MoodBefore:        11,
			MoodAfter:         12,
			Reflections:       ",,,\n\n\"\"",
			MusicLinkURL:      "https://youtu.be/abcd1234",
			MusicLinkWebURL:   "https://www.youtube.com/watch?v=abcd1234",
			MusicLinkProvider: links.ProviderYouTube,
		},
	}

	got, err := Import(Export(records, ExportOptions{}))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i := range records {
		if !reflect.DeepEqual(csvFields(got[i]), records[i]) {
			t.Errorf("record %d:\n got  %+v\n want %+v", i, got[i], records[i])
		}
	}
}

func TestRoundTrip_NonUTCLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	table := NewTable(loc, nil)
	when := time.Date(2024, 3, 5, 2, 15, 0, 0, time.UTC) // Mar 4 at 9:15 PM in loc

	text := table.Export([]SessionRecord{{
		SessionDate:    when,
		Treatment:      TreatmentLSD,
		Administration: AdministrationOral,
	}}, ExportOptions{})
	if !strings.Contains(text, "Mar 4, 2024 at 9:15 PM") {
		t.Fatalf("Export() = %q, want date in table location", text)
	}

	got, err := table.Import(text)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if !got[0].SessionDate.Equal(when) {
		t.Errorf("SessionDate = %v, want %v", got[0].SessionDate, when)
	}
}

func TestInjectionGuard(t *testing.T) {
	rec := SessionRecord{
		SessionDate:    sessionAt(t, "Jan 1, 2024 at 8:00 AM"),
		Treatment:      TreatmentOther,
		Administration: AdministrationOther,
		Intention:      "=SUM(1,2)",
	}

	text := Export([]SessionRecord{rec}, ExportOptions{})
	rows := Tokenize(text)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if field := rows[1][colIntention]; !strings.HasPrefix(field, "'=") {
		t.Errorf("exported intention = %q, want prefix '=", field)
	}

	got, err := Import(text)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if got[0].Intention != "=SUM(1,2)" {
		t.Errorf("imported intention = %q, want =SUM(1,2)", got[0].Intention)
	}
}

func TestImport_HeaderGate(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad header", "Bad,Header\n\"Jan 1, 2024 at 8:00 AM\",LSD,Oral,,1,2,,\n"},
		{"missing column", "Date,Treatment Type,Administration,Intention,Mood Before,Mood After,Reflections\n"},
		{"wrong order", "Treatment Type,Date,Administration,Intention,Mood Before,Mood After,Reflections,Music Link URL\n"},
		{"case differs", strings.ToLower(header) + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(tt.input)
			if !errors.Is(err, ErrInvalidHeader) {
				t.Errorf("Import() error = %v, want ErrInvalidHeader", err)
			}
		})
	}
}

func TestImport_HeaderCellsTrimmed(t *testing.T) {
	padded := strings.ReplaceAll(header, ",", " , ")
	got, err := Import(padded + "\n")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}

func TestImport_RowErrors(t *testing.T) {
	good := "\"Jan 1, 2024 at 8:00 AM\",LSD,Oral,,1,2,,"
	if got, err := Import(header + "\n" + good + "\n"); err != nil || len(got) != 1 {
		t.Fatalf("Import(good row) = %d records, %v; want 1, nil", len(got), err)
	}
	if fields := Tokenize(good)[0]; len(fields) != len(Columns) {
		t.Fatalf("good row has %d fields, want %d", len(fields), len(Columns))
	}

	tests := []struct {
		name      string
		rows      []string
		wantIndex int
		wantIn    string
	}{
		{"seven fields", []string{good, "\"Jan 1, 2024 at 8:00 AM\",LSD,Oral,,1,2,"}, 2, "got 7"},
		{"nine fields", []string{"\"Jan 1, 2024 at 8:00 AM\",LSD,Oral,,1,2,,,"}, 1, "got 9"},
		{"bad date", []string{"2024-01-01,LSD,Oral,,1,2,,"}, 1, "date"},
		{"unknown treatment", []string{"\"Jan 1, 2024 at 8:00 AM\",lsd,Oral,,1,2,,"}, 1, "treatment"},
		{"unknown administration", []string{"\"Jan 1, 2024 at 8:00 AM\",LSD,IV,,1,2,,"}, 1, "administration"},
		{"mood before not integer", []string{"\"Jan 1, 2024 at 8:00 AM\",LSD,Oral,,five,2,,"}, 1, "mood before"},
		{"mood after not integer", []string{good, good, "\"Jan 1, 2024 at 8:00 AM\",LSD,Oral,,1,2.5,,"}, 3, "mood after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := header + "\n" + strings.Join(tt.rows, "\n") + "\n"
			got, err := Import(text)
			if got != nil {
				t.Errorf("Import() returned %d records, want none", len(got))
			}
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				t.Fatalf("Import() error = %v, want *RowError", err)
			}
			if rowErr.Index != tt.wantIndex {
				t.Errorf("RowError.Index = %d, want %d", rowErr.Index, tt.wantIndex)
			}
			if !strings.Contains(rowErr.Error(), tt.wantIn) {
				t.Errorf("RowError = %q, want it to mention %q", rowErr.Error(), tt.wantIn)
			}
		})
	}
}

func TestImport_MoodsNotRangeChecked(t *testing.T) {
	got, err := Import(header + "\n\"Jan 1, 2024 at 8:00 AM\",LSD,Oral,,'-40,200,,\n")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if got[0].MoodBefore != -40 || got[0].MoodAfter != 200 {
		t.Errorf("moods = %d/%d, want -40/200", got[0].MoodBefore, got[0].MoodAfter)
	}
}

func TestImport_SkipsBlankLinesAndAcceptsCRLF(t *testing.T) {
	text := "\ufeff" + header + "\r\n\r\n\"Jan 1, 2024 at 8:00 AM\",LSD,Oral,x,1,2,,\r\n\r\n"
	got, err := Import(text)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(got) != 1 || got[0].Intention != "x" {
		t.Errorf("got %+v, want one record with intention x", got)
	}
}

func TestImport_NoTrailingNewline(t *testing.T) {
	got, err := Import(header + "\n\"Jan 1, 2024 at 8:00 AM\",LSD,Oral,x,1,2,,last")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(got) != 1 || got[0].MusicLinkURL != "https://last" {
		t.Errorf("got %+v, want one record with a link-only music link", got)
	}
}

func TestImport_MusicLink(t *testing.T) {
	tests := []struct {
		name         string
		cell         string
		wantURL      string
		wantWebURL   string
		wantProvider links.Provider
	}{
		{
			name:         "empty",
			cell:         "",
			wantProvider: "",
		},
		{
			name:         "spotify deep link",
			cell:         "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			wantURL:      "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			wantWebURL:   "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			wantProvider: links.ProviderSpotify,
		},
		{
			name:         "guarded link",
			cell:         "'https://soundcloud.com/artist/track",
			wantURL:      "https://soundcloud.com/artist/track",
			wantWebURL:   "https://soundcloud.com/artist/track",
			wantProvider: links.ProviderSoundCloud,
		},
		{
			name:         "unparseable kept verbatim",
			cell:         "http://",
			wantURL:      "http://",
			wantWebURL:   "http://",
			wantProvider: links.ProviderUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := "\"Jan 1, 2024 at 8:00 AM\",LSD,Oral,,1,2,," + EscapeField(tt.cell)
			got, err := Import(header + "\n" + line + "\n")
			if err != nil {
				t.Fatalf("Import() error = %v", err)
			}
			r := got[0]
			if r.MusicLinkURL != tt.wantURL || r.MusicLinkWebURL != tt.wantWebURL || r.MusicLinkProvider != tt.wantProvider {
				t.Errorf("link = (%q, %q, %q), want (%q, %q, %q)",
					r.MusicLinkURL, r.MusicLinkWebURL, r.MusicLinkProvider,
					tt.wantURL, tt.wantWebURL, tt.wantProvider)
			}
		})
	}
}

func TestTable_CustomClassifier(t *testing.T) {
	calls := 0
	table := NewTable(nil, func(raw string) (links.Classification, bool) {
		calls++
		return links.Classification{}, false
	})

	got, err := table.Import(header + "\n\"Jan 1, 2024 at 8:00 AM\",LSD,Oral,,1,2,,anything\n")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("classifier called %d times, want 1", calls)
	}
	if got[0].MusicLinkProvider != links.ProviderUnknown {
		t.Errorf("provider = %q, want unknown", got[0].MusicLinkProvider)
	}
}

func TestImportBytes_InvalidUTF8(t *testing.T) {
	_, err := NewTable(nil, nil).ImportBytes([]byte{0xFF, 0xFE, 'D'})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("ImportBytes() error = %v, want *ParseError", err)
	}
	if !IsCSVError(err) {
		t.Error("IsCSVError() = false, want true")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestExportTo_WriteError(t *testing.T) {
	err := NewTable(nil, nil).ExportTo(failingWriter{}, nil, ExportOptions{})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("ExportTo() error = %v, want wrapped write error", err)
	}
}
