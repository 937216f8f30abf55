// Package core provides the business logic for journal CSV export and import.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/afterflow/internal/links"
)

// TreatmentType is the substance used in a session.
type TreatmentType string

const (
	TreatmentPsilocybin TreatmentType = "psilocybin"
	TreatmentLSD        TreatmentType = "lsd"
	TreatmentDMT        TreatmentType = "dmt"
	TreatmentMDMA       TreatmentType = "mdma"
	TreatmentKetamine   TreatmentType = "ketamine"
	TreatmentAyahuasca  TreatmentType = "ayahuasca"
	TreatmentMescaline  TreatmentType = "mescaline"
	TreatmentCannabis   TreatmentType = "cannabis"
	TreatmentOther      TreatmentType = "other"
)

// AdministrationMethod is how the treatment was administered.
type AdministrationMethod string

const (
	AdministrationIntravenous   AdministrationMethod = "intravenous"
	AdministrationIntramuscular AdministrationMethod = "intramuscular"
	AdministrationOral          AdministrationMethod = "oral"
	AdministrationNasal         AdministrationMethod = "nasal"
	AdministrationOther         AdministrationMethod = "other"
)

// Display names are part of the CSV wire format. Changing one breaks import
// of older exports.
var (
	treatmentLabels = []struct {
		value TreatmentType
		label string
	}{
		{TreatmentPsilocybin, "Psilocybin"},
		{TreatmentLSD, "LSD"},
		{TreatmentDMT, "DMT"},
		{TreatmentMDMA, "MDMA"},
		{TreatmentKetamine, "Ketamine"},
		{TreatmentAyahuasca, "Ayahuasca"},
		{TreatmentMescaline, "Mescaline"},
		{TreatmentCannabis, "Cannabis"},
		{TreatmentOther, "Other"},
	}

	administrationLabels = []struct {
		value AdministrationMethod
		label string
	}{
		{AdministrationIntravenous, "Intravenous (IV)"},
		{AdministrationIntramuscular, "Intramuscular (IM)"},
		{AdministrationOral, "Oral"},
		{AdministrationNasal, "Nasal"},
		{AdministrationOther, "Other"},
	}
)

// TreatmentTypes returns every treatment type in display order.
func TreatmentTypes() []TreatmentType {
	out := make([]TreatmentType, len(treatmentLabels))
	for i, l := range treatmentLabels {
		out[i] = l.value
	}
	return out
}

// DisplayName returns the human label, e.g. "Psilocybin".
func (t TreatmentType) DisplayName() string {
	for _, l := range treatmentLabels {
		if l.value == t {
			return l.label
		}
	}
	return ""
}

// Valid reports whether t is one of the known treatment types.
func (t TreatmentType) Valid() bool {
	return t.DisplayName() != ""
}

// ParseTreatmentDisplayName matches an exact, case-sensitive display name.
func ParseTreatmentDisplayName(label string) (TreatmentType, bool) {
	for _, l := range treatmentLabels {
		if l.label == label {
			return l.value, true
		}
	}
	return "", false
}

// AdministrationMethods returns every administration method in display order.
func AdministrationMethods() []AdministrationMethod {
	out := make([]AdministrationMethod, len(administrationLabels))
	for i, l := range administrationLabels {
		out[i] = l.value
	}
	return out
}

// DisplayName returns the human label, e.g. "Intravenous (IV)".
func (a AdministrationMethod) DisplayName() string {
	for _, l := range administrationLabels {
		if l.value == a {
			return l.label
		}
	}
	return ""
}

// Valid reports whether a is one of the known administration methods.
func (a AdministrationMethod) Valid() bool {
	return a.DisplayName() != ""
}

// ParseAdministrationDisplayName matches an exact, case-sensitive display name.
func ParseAdministrationDisplayName(label string) (AdministrationMethod, bool) {
	for _, l := range administrationLabels {
		if l.label == label {
			return l.value, true
		}
	}
	return "", false
}

// SessionRecord is one journaled session, the unit of export and import.
type SessionRecord struct {
	// ID and CreatedAt are assigned by the store; CSV never carries them.
	ID        string
	CreatedAt time.Time

	SessionDate    time.Time
	Treatment      TreatmentType
	Administration AdministrationMethod
	Intention      string
	MoodBefore     int
	MoodAfter      int
	Reflections    string

	MusicLinkURL      string // original link as pasted (possibly spotify:)
	MusicLinkWebURL   string // canonical https form
	MusicLinkProvider links.Provider
}

// BestMusicLink returns the link written to CSV: the original when present,
// otherwise the canonical one.
func (r SessionRecord) BestMusicLink() string {
	if r.MusicLinkURL != "" {
		return r.MusicLinkURL
	}
	return r.MusicLinkWebURL
}

// DateRange is an inclusive [Start, End] interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the range, inclusive on both ends.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// ExportOptions narrows an export. Filters combine with AND.
type ExportOptions struct {
	Range     *DateRange    // nil exports every date
	Treatment TreatmentType // empty exports every treatment
}

// Matches reports whether r passes every configured filter.
func (o ExportOptions) Matches(r SessionRecord) bool {
	if o.Range != nil && !o.Range.Contains(r.SessionDate) {
		return false
	}
	if o.Treatment != "" && r.Treatment != o.Treatment {
		return false
	}
	return true
}

// SessionStore is the record source for exports and the sink for imports.
// Implementations live in the store package.
type SessionStore interface {
	// ListSessions returns sessions matching opts ordered by session date.
	ListSessions(ctx context.Context, opts ExportOptions) ([]SessionRecord, error)

	// InsertSessions stores records atomically and returns how many were written.
	InsertSessions(ctx context.Context, records []SessionRecord) (int, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// ImportResult summarizes a completed import.
type ImportResult struct {
	Imported int           `json:"imported"`
	Duration time.Duration `json:"-"`
}
