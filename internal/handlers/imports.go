package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"library-catalog/internal/auth"
	"library-catalog/pkg/importer"
)

// ImportFunc runs an import of the workbook read from r.
type ImportFunc func(ctx context.Context, r io.Reader, opts importer.ImportOptions) (importer.ImportSummary, error)

// ImportsHandler handles Excel import operations.
type ImportsHandler struct {
	Import   ImportFunc
	MaxBytes int64
	Mapping  *importer.MappingConfig
	Logger   *zap.Logger
}

// NewImportsHandler imports through db. A nil db leaves imports unavailable.
func NewImportsHandler(db *pgxpool.Pool, mapping *importer.MappingConfig, maxBytes int64, logger *zap.Logger) *ImportsHandler {
	h := &ImportsHandler{
		MaxBytes: maxBytes,
		Mapping:  mapping,
		Logger:   logger,
	}
	if db != nil {
		h.Import = func(ctx context.Context, r io.Reader, opts importer.ImportOptions) (importer.ImportSummary, error) {
			return importer.ImportExcel(ctx, db, r, opts)
		}
	}
	return h
}

// UploadExcel imports the Libraries and Projects sheets of an uploaded workbook.
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	if h.Import == nil {
		auth.WriteError(w, http.StatusServiceUnavailable, "IMPORT_UNAVAILABLE", "Spreadsheet import is not available.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_CONTENT_TYPE", "content-type must be multipart/form-data")
		return
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_FORM", "invalid multipart form: "+err.Error())
		return
	}

	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))
	maxErrors := 50
	if v := r.FormValue("max_errors"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxErrors = n
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		auth.WriteError(w, http.StatusBadRequest, "MISSING_FILE", "file is required: "+err.Error())
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_FILE", "only .xlsx files are accepted")
		return
	}

	sum, impErr := h.Import(r.Context(), file, importer.ImportOptions{
		Mapping:   h.Mapping,
		DryRun:    dryRun,
		MaxErrors: maxErrors,
	})
	if impErr != nil {
		if h.Logger != nil {
			h.Logger.Warn("import failed",
				zap.String("file", header.Filename),
				zap.Bool("dry_run", dryRun),
				zap.Error(impErr))
		}
		code := "IMPORT_FAILED"
		if errors.Is(impErr, importer.ErrTooManyErrors) {
			code = "TOO_MANY_ERRORS"
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": impErr.Error(),
			"code":   code,
			"data":   sum,
		})
		return
	}

	if h.Logger != nil {
		h.Logger.Info("import finished",
			zap.String("file", header.Filename),
			zap.Bool("dry_run", dryRun),
			zap.Int("inserted", sum.Inserted),
			zap.Int("updated", sum.Updated),
			zap.Int("errors", sum.Errors))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": sum,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// isXLSX checks if the uploaded file is an Excel .xlsx file.
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
