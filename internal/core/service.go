package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ErrNoFile is returned when an import request carries no file.
var ErrNoFile = errors.New("no file provided")

// Default limits applied when ServiceConfig leaves a field zero.
const (
	DefaultMaxFileSize   = 10 << 20
	DefaultImportTimeout = 2 * time.Minute
	DefaultExportTimeout = 30 * time.Second
)

// ServiceConfig tunes the Service. Zero values select the defaults.
type ServiceConfig struct {
	MaxFileSize          int64
	MaxConcurrentImports int
	MaxWait              time.Duration
	ImportTimeout        time.Duration
	ExportTimeout        time.Duration
	Location             *time.Location
	Classify             ClassifyFunc
}

// Service connects the CSV codec to a session store. It is the single entry
// point used by both the HTTP server and the CLI.
type Service struct {
	store   SessionStore
	table   *Table
	limiter *ImportLimiter
	cfg     ServiceConfig
}

// NewService creates a Service over store.
func NewService(store SessionStore, cfg ServiceConfig) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = DefaultImportTimeout
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = DefaultExportTimeout
	}

	return &Service{
		store:   store,
		table:   NewTable(cfg.Location, cfg.Classify),
		limiter: NewImportLimiter(cfg.MaxConcurrentImports, cfg.MaxWait),
		cfg:     cfg,
	}
}

// Table returns the codec the service uses.
func (s *Service) Table() *Table {
	return s.table
}

// Limiter returns the import limiter, for status reporting and shutdown.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// MaxFileSize returns the largest accepted import, in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// ExportResult is a rendered export.
type ExportResult struct {
	CSV  string
	Rows int
}

// ExportSessions loads sessions matching opts and renders them as CSV.
func (s *Service) ExportSessions(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExportTimeout)
	defer cancel()

	start := time.Now()

	records, err := s.store.ListSessions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	rows := 0
	for _, r := range records {
		if opts.Matches(r) {
			rows++
		}
	}

	result := &ExportResult{
		CSV:  s.table.Export(records, opts),
		Rows: rows,
	}

	slog.Info("sessions exported",
		append(logAttrs(ctx),
			"rows", rows,
			"bytes", len(result.CSV),
			"treatment", string(opts.Treatment),
			"duration", time.Since(start),
		)...,
	)

	return result, nil
}

// ImportSessions reads an Afterflow export from r and stores every session
// in it. The import is all-or-nothing: when any row fails to decode, or the
// store rejects the batch, nothing is written.
//
// Returns ErrTooManyImports when no import slot frees up in time.
func (s *Service) ImportSessions(ctx context.Context, r io.Reader) (*ImportResult, error) {
	if r == nil {
		return nil, ErrNoFile
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ImportTimeout)
	defer cancel()

	start := time.Now()

	text, size, err := ReadText(r, s.cfg.MaxFileSize)
	if err != nil {
		s.logImportFailure(ctx, "read", err, size)
		return nil, err
	}

	records, err := s.table.Import(text)
	if err != nil {
		s.logImportFailure(ctx, "decode", err, size)
		return nil, err
	}

	imported := 0
	if len(records) > 0 {
		imported, err = s.store.InsertSessions(ctx, records)
		if err != nil {
			err = fmt.Errorf("insert sessions: %w", err)
			s.logImportFailure(ctx, "store", err, size)
			return nil, err
		}
	}

	result := &ImportResult{
		Imported: imported,
		Duration: time.Since(start),
	}

	slog.Info("sessions imported",
		append(logAttrs(ctx),
			"rows", imported,
			"bytes", size,
			"duration", result.Duration,
		)...,
	)

	return result, nil
}

func (s *Service) logImportFailure(ctx context.Context, stage string, err error, size int64) {
	level := slog.LevelWarn
	if !IsCSVError(err) && !IsUserFacing(err) {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "import failed",
		append(logAttrs(ctx),
			"stage", stage,
			"bytes", size,
			"error", err,
			"code", MapError(err).Code,
		)...,
	)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
