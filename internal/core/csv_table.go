package core

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/afterflow/internal/links"
)

// DateLayout is the fixed medium-date, short-time layout used on the wire.
// It uses English month names and a 12-hour clock regardless of host locale,
// and has minute resolution.
const DateLayout = "Jan 2, 2006 at 3:04 PM"

// Columns is the exact export header, in order.
var Columns = []string{
	"Date",
	"Treatment Type",
	"Administration",
	"Intention",
	"Mood Before",
	"Mood After",
	"Reflections",
	"Music Link URL",
}

const (
	colDate = iota
	colTreatment
	colAdministration
	colIntention
	colMoodBefore
	colMoodAfter
	colReflections
	colMusicLink
)

var defaultTable = NewTable(nil, nil)

// Export renders records with UTC dates and the standard link classifier.
func Export(records []SessionRecord, opts ExportOptions) string {
	return defaultTable.Export(records, opts)
}

// Import parses text with UTC dates and the standard link classifier.
func Import(text string) ([]SessionRecord, error) {
	return defaultTable.Import(text)
}

// ClassifyFunc classifies a pasted music link. links.Classify satisfies it.
type ClassifyFunc func(raw string) (links.Classification, bool)

// Table converts session records to and from the journal CSV format.
// A Table holds no mutable state and is safe for concurrent use.
type Table struct {
	location *time.Location
	classify ClassifyFunc
}

// NewTable returns a Table that formats and parses dates in loc (UTC when
// nil) and resolves music links with classify (links.Classify when nil).
func NewTable(loc *time.Location, classify ClassifyFunc) *Table {
	if loc == nil {
		loc = time.UTC
	}
	if classify == nil {
		classify = links.Classify
	}
	return &Table{location: loc, classify: classify}
}

// Location returns the time zone dates are rendered in.
func (t *Table) Location() *time.Location {
	return t.location
}

// Export renders records matching opts as CSV text, header first.
func (t *Table) Export(records []SessionRecord, opts ExportOptions) string {
	var b strings.Builder
	// strings.Builder never fails to write.
	_ = t.ExportTo(&b, records, opts)
	return b.String()
}

// ExportTo writes the CSV export to w. Any write error is terminal; the
// partial output must be discarded.
func (t *Table) ExportTo(w io.Writer, records []SessionRecord, opts ExportOptions) error {
	if _, err := io.WriteString(w, strings.Join(Columns, ",")+"\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range records {
		if !opts.Matches(r) {
			continue
		}
		if _, err := io.WriteString(w, JoinRow(t.fields(r))+"\n"); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

// fields returns the unescaped column values for one record.
func (t *Table) fields(r SessionRecord) []string {
	return []string{
		r.SessionDate.In(t.location).Format(DateLayout),
		r.Treatment.DisplayName(),
		r.Administration.DisplayName(),
		r.Intention,
		strconv.Itoa(r.MoodBefore),
		strconv.Itoa(r.MoodAfter),
		r.Reflections,
		r.BestMusicLink(),
	}
}

// ImportBytes decodes data as UTF-8 text and imports it.
func (t *Table) ImportBytes(data []byte) ([]SessionRecord, error) {
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	return t.Import(text)
}

// Import parses CSV text produced by Export.
//
// It fails with ErrInvalidHeader when the first row is not the export header,
// and with *RowError at the first data row that has the wrong number of
// fields or an unparseable date, label or mood. Nothing is returned on
// failure. Blank lines are skipped.
func (t *Table) Import(text string) ([]SessionRecord, error) {
	rows := Tokenize(strings.TrimPrefix(text, utf8BOM))
	if len(rows) == 0 || !isHeader(rows[0]) {
		return nil, ErrInvalidHeader
	}

	records := make([]SessionRecord, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		if isBlankRow(rows[i]) {
			continue
		}
		rec, err := t.decodeRow(rows[i])
		if err != nil {
			return nil, &RowError{Index: i, Reason: err.Error()}
		}
		records = append(records, rec)
	}
	return records, nil
}

func isHeader(row []string) bool {
	if len(row) != len(Columns) {
		return false
	}
	for i, name := range Columns {
		if strings.TrimSpace(row[i]) != name {
			return false
		}
	}
	return true
}

func (t *Table) decodeRow(row []string) (SessionRecord, error) {
	if len(row) != len(Columns) {
		return SessionRecord{}, fmt.Errorf("expected %d fields, got %d", len(Columns), len(row))
	}

	cell := func(i int) string { return UnguardField(row[i]) }

	date, err := time.ParseInLocation(DateLayout, strings.TrimSpace(cell(colDate)), t.location)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("invalid date %q", row[colDate])
	}

	treatment, ok := ParseTreatmentDisplayName(cell(colTreatment))
	if !ok {
		return SessionRecord{}, fmt.Errorf("unknown treatment type %q", row[colTreatment])
	}

	administration, ok := ParseAdministrationDisplayName(cell(colAdministration))
	if !ok {
		return SessionRecord{}, fmt.Errorf("unknown administration %q", row[colAdministration])
	}

	moodBefore, err := strconv.Atoi(strings.TrimSpace(cell(colMoodBefore)))
	if err != nil {
		return SessionRecord{}, fmt.Errorf("mood before %q is not an integer", row[colMoodBefore])
	}
	moodAfter, err := strconv.Atoi(strings.TrimSpace(cell(colMoodAfter)))
	if err != nil {
		return SessionRecord{}, fmt.Errorf("mood after %q is not an integer", row[colMoodAfter])
	}

	rec := SessionRecord{
		SessionDate:    date,
		Treatment:      treatment,
		Administration: administration,
		Intention:      cell(colIntention),
		MoodBefore:     moodBefore,
		MoodAfter:      moodAfter,
		Reflections:    cell(colReflections),
	}
	t.resolveMusicLink(&rec, row[colMusicLink])
	return rec, nil
}

// resolveMusicLink fills the music link fields from the raw cell. A link the
// classifier rejects is kept verbatim with an unknown provider.
func (t *Table) resolveMusicLink(rec *SessionRecord, raw string) {
	raw = strings.TrimPrefix(raw, "'")
	if raw == "" {
		return
	}

	if c, ok := t.classify(raw); ok {
		rec.MusicLinkURL = c.OriginalURL
		rec.MusicLinkWebURL = c.CanonicalURL
		rec.MusicLinkProvider = c.Provider
		return
	}

	rec.MusicLinkURL = raw
	rec.MusicLinkWebURL = raw
	rec.MusicLinkProvider = links.ProviderUnknown
}
