package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"library-catalog/pkg/importer"
)

type recordedImport struct {
	called bool
	opts   importer.ImportOptions
	body   string
}

func newTestHandler(rec *recordedImport, result importer.ImportSummary, err error) *ImportsHandler {
	return &ImportsHandler{
		MaxBytes: 1 << 20,
		Logger:   zap.NewNop(),
		Import: func(_ context.Context, r io.Reader, opts importer.ImportOptions) (importer.ImportSummary, error) {
			data, _ := io.ReadAll(r)
			rec.called = true
			rec.opts = opts
			rec.body = string(data)
			return result, err
		},
	}
}

func multipartRequest(t *testing.T, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		fw, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/excel", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadExcelValidation(t *testing.T) {
	rec := &recordedImport{}
	handler := newTestHandler(rec, importer.ImportSummary{}, nil)

	t.Run("Rejects non-multipart content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/imports/excel", nil)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "content-type must be multipart/form-data")
	})

	t.Run("Rejects missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.UploadExcel(w, multipartRequest(t, map[string]string{"dry_run": "true"}, "", ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "file is required")
	})

	t.Run("Rejects non-xlsx file", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.UploadExcel(w, multipartRequest(t, nil, "catalog.xls", "fake"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "only .xlsx files are accepted")
	})

	assert.False(t, rec.called)
}

func TestUploadExcelRunsImport(t *testing.T) {
	rec := &recordedImport{}
	handler := newTestHandler(rec, importer.ImportSummary{Inserted: 2, DryRun: true}, nil)

	w := httptest.NewRecorder()
	handler.UploadExcel(w, multipartRequest(t, map[string]string{"dry_run": "true", "max_errors": "7"}, "catalog.XLSX", "payload"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, rec.called)
	assert.True(t, rec.opts.DryRun)
	assert.Equal(t, 7, rec.opts.MaxErrors)
	assert.Equal(t, "payload", rec.body)

	var resp struct {
		Data importer.ImportSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Inserted)
	assert.True(t, resp.Data.DryRun)
}

func TestUploadExcelReportsImportFailure(t *testing.T) {
	rec := &recordedImport{}
	handler := newTestHandler(rec, importer.ImportSummary{Errors: 51}, importer.ErrTooManyErrors)

	w := httptest.NewRecorder()
	handler.UploadExcel(w, multipartRequest(t, nil, "catalog.xlsx", "payload"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "TOO_MANY_ERRORS")
}

func TestUploadExcelUnavailableWithoutDatabase(t *testing.T) {
	handler := NewImportsHandler(nil, nil, 1<<20, zap.NewNop())
	w := httptest.NewRecorder()
	handler.UploadExcel(w, multipartRequest(t, nil, "catalog.xlsx", "payload"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestIsXLSX(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected bool
	}{
		{"Valid xlsx", "test.xlsx", true},
		{"Valid xlsx uppercase", "TEST.XLSX", true},
		{"Invalid xls", "test.xls", false},
		{"Invalid xlsm", "test.xlsm", false},
		{"No extension", "test", false},
		{"Empty filename", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isXLSX(&multipart.FileHeader{Filename: tt.filename}))
		})
	}
}
