package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/afterflow/internal/core"
	"github.com/JonMunkholm/afterflow/internal/web/templates"
)

// queryDateLayout is the format of the from and to export parameters.
const queryDateLayout = "2006-01-02"

// multipartOverhead is allowed on top of the file size limit for the form
// boundaries and headers.
const multipartOverhead = 64 << 10

// handleExportSessions streams the journal as a CSV attachment.
//
//	GET /api/sessions/export?from=2024-01-01&to=2024-03-31&treatment=Psilocybin
func (s *Server) handleExportSessions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.parseExportOptions(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	result, err := s.service.ExportSessions(r.Context(), opts)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	filename := "afterflow-sessions-" + time.Now().In(s.service.Table().Location()).Format(queryDateLayout) + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("X-Session-Count", strconv.Itoa(result.Rows))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(result.CSV))
}

// parseExportOptions reads the from, to and treatment query parameters.
// Dates are whole days in the export location; either bound may be omitted.
func (s *Server) parseExportOptions(r *http.Request) (core.ExportOptions, error) {
	q := r.URL.Query()
	loc := s.service.Table().Location()

	var opts core.ExportOptions

	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	if from != "" || to != "" {
		rng := core.DateRange{
			Start: time.Time{},
			End:   time.Date(9999, 12, 31, 23, 59, 59, 0, loc),
		}
		if from != "" {
			day, err := time.ParseInLocation(queryDateLayout, from, loc)
			if err != nil {
				return opts, fmt.Errorf("invalid from date %q, expected YYYY-MM-DD", from)
			}
			rng.Start = day
		}
		if to != "" {
			day, err := time.ParseInLocation(queryDateLayout, to, loc)
			if err != nil {
				return opts, fmt.Errorf("invalid to date %q, expected YYYY-MM-DD", to)
			}
			rng.End = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		if rng.End.Before(rng.Start) {
			return opts, fmt.Errorf("from date %s is after to date %s", from, to)
		}
		opts.Range = &rng
	}

	if name := strings.TrimSpace(q.Get("treatment")); name != "" {
		t, err := parseTreatment(name)
		if err != nil {
			return opts, err
		}
		opts.Treatment = t
	}

	return opts, nil
}

// parseTreatment accepts a display name ("Psilocybin") or a stored value
// ("psilocybin").
func parseTreatment(name string) (core.TreatmentType, error) {
	if t, ok := core.ParseTreatmentDisplayName(name); ok {
		return t, nil
	}
	if t := core.TreatmentType(name); t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown treatment %q", name)
}

// importResponse is the JSON body of a successful import.
type importResponse struct {
	Imported   int    `json:"imported"`
	Duration   string `json:"duration"`
	DurationMS int64  `json:"duration_ms"`
}

// handleImportSessions imports an uploaded Afterflow export.
//
//	POST /api/sessions/import  (multipart form, field "file")
func (s *Server) handleImportSessions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize()+multipartOverhead)

	file, _, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			err = core.ErrFileTooLarge
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			err = core.ErrNoFile
		default:
			err = fmt.Errorf("read upload: %w", err)
			respondError(w, r, err, http.StatusBadRequest)
			return
		}
		respondError(w, r, err, statusFor(err))
		return
	}
	defer file.Close()

	result, err := s.service.ImportSessions(r.Context(), file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("HX-Trigger", "sessionsImported")
		if err := templates.ImportSummary(result.Imported, result.Duration).Render(r.Context(), w); err != nil {
			respondError(w, r, err, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, importResponse{
		Imported:   result.Imported,
		Duration:   result.Duration.Round(time.Millisecond).String(),
		DurationMS: result.Duration.Milliseconds(),
	})
}
