// Package importer loads libraries and projects from .xlsx workbooks.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxSamples = 20

// ImportOptions defines the configuration for Excel import operations.
type ImportOptions struct {
	Mapping   *MappingConfig // default mapping when nil
	DryRun    bool
	MaxErrors int // default 50
}

// RowError represents an error that occurred during row processing.
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet.
type SheetSummary struct {
	Name     string     `json:"name"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
}

func (s *SheetSummary) fail(e RowError) {
	s.Errors++
	if len(s.Samples) < maxSamples {
		s.Samples = append(s.Samples, e)
	}
}

// ImportSummary contains the overall import statistics.
type ImportSummary struct {
	Inserted int            `json:"inserted"`
	Updated  int            `json:"updated"`
	Skipped  int            `json:"skipped"`
	Errors   int            `json:"errors"`
	Sheets   []SheetSummary `json:"sheets"`
	DryRun   bool           `json:"dry_run"`
}

// ErrTooManyErrors stops an import once MaxErrors is exceeded.
var ErrTooManyErrors = errors.New("too many errors")

// Execer is the subset of pgx.Tx used to write records.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (o *ImportOptions) defaults() error {
	if o.MaxErrors <= 0 {
		o.MaxErrors = 50
	}
	if o.Mapping == nil {
		m, err := DefaultMapping()
		if err != nil {
			return err
		}
		o.Mapping = m
	}
	return nil
}

// ImportExcel reads a workbook and upserts its rows in one transaction.
// A dry run performs every write and then rolls back. The transaction is
// also rolled back when the import stops on too many errors.
func ImportExcel(ctx context.Context, db *pgxpool.Pool, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{DryRun: opts.DryRun, Sheets: []SheetSummary{}}
	if err := opts.defaults(); err != nil {
		return summary, err
	}

	// xlsx needs random access, so the upload is buffered.
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("failed to read Excel file: %w", err)
	}
	sheets, err := ReadWorkbook(data, opts.Mapping)
	if err != nil {
		return summary, err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return summary, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	summary, err = Apply(ctx, tx, sheets, opts)
	if err != nil || opts.DryRun {
		return summary, err
	}
	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("commit import: %w", err)
	}
	return summary, nil
}

// Apply writes parsed sheets through db. Each row runs inside a savepoint
// so one bad row does not abort the surrounding transaction.
func Apply(ctx context.Context, db Execer, sheets []ParsedSheet, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{DryRun: opts.DryRun, Sheets: []SheetSummary{}}
	if err := opts.defaults(); err != nil {
		return summary, err
	}

	for _, ps := range sheets {
		ss := SheetSummary{Name: ps.Name, Skipped: ps.Skipped}
		for _, e := range ps.Errors {
			ss.fail(e)
		}
		for _, rec := range ps.Records {
			if summary.Errors+ss.Errors > opts.MaxErrors {
				break
			}
			inserted, err := upsertRow(ctx, db, ps.Config, rec)
			switch {
			case err != nil:
				ss.fail(RowError{Sheet: ps.Name, Row: rec.Row, Message: err.Error()})
			case inserted:
				ss.Inserted++
			default:
				ss.Updated++
			}
		}

		summary.Sheets = append(summary.Sheets, ss)
		summary.Inserted += ss.Inserted
		summary.Updated += ss.Updated
		summary.Skipped += ss.Skipped
		summary.Errors += ss.Errors

		if summary.Errors > opts.MaxErrors {
			return summary, fmt.Errorf("%w (%d), stopping import", ErrTooManyErrors, summary.Errors)
		}
	}
	return summary, nil
}

func upsertRow(ctx context.Context, db Execer, cfg SheetConfig, rec Record) (inserted bool, err error) {
	if _, err := db.Exec(ctx, "SAVEPOINT import_row"); err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			if _, rbErr := db.Exec(ctx, "ROLLBACK TO SAVEPOINT import_row"); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
			return
		}
		_, err = db.Exec(ctx, "RELEASE SAVEPOINT import_row")
	}()

	fields := make([]string, 0, len(rec.Values))
	for f := range rec.Values {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var existingID int64
	err = db.QueryRow(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE %s = $1 ORDER BY id LIMIT 1", cfg.Table, cfg.NaturalKey),
		rec.Values[cfg.NaturalKey]).Scan(&existingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	args := make([]any, 0, len(fields)+1)
	if existingID > 0 {
		sets := make([]string, 0, len(fields))
		for i, f := range fields {
			sets = append(sets, fmt.Sprintf("%s = $%d", f, i+1))
			args = append(args, rec.Values[f])
		}
		args = append(args, existingID)
		_, err = db.Exec(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
			cfg.Table, strings.Join(sets, ", "), len(args)), args...)
		return false, err
	}

	placeholders := make([]string, 0, len(fields))
	for i, f := range fields {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, rec.Values[f])
	}
	_, err = db.Exec(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		cfg.Table, strings.Join(fields, ", "), strings.Join(placeholders, ", ")), args...)
	return err == nil, err
}
