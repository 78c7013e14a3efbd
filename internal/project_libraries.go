package internal

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"library-catalog/internal/auth"
	"library-catalog/internal/models"
)

const projectLibrarySelect = `
	SELECT pl.id, pl.project_id, pl.library_id, l.description, pl.version
	FROM project_libraries pl
	JOIN libraries l ON l.id = pl.library_id`

func scanProjectLibrary(row interface{ Scan(...any) error }) (models.ProjectLibrary, error) {
	var pl models.ProjectLibrary
	err := row.Scan(&pl.ID, &pl.ProjectID, &pl.LibraryID, &pl.Description, &pl.Version)
	return pl, err
}

// queryProjectLibraries lists relations ordered by id, for one project when
// projectID is positive.
func (s *Server) queryProjectLibraries(ctx context.Context, projectID int64) ([]models.ProjectLibrary, error) {
	sqlStr := projectLibrarySelect
	args := []any{}
	if projectID > 0 {
		sqlStr += " WHERE pl.project_id = $1"
		args = append(args, projectID)
	}
	sqlStr += " ORDER BY pl.id ASC"

	rows, err := s.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ProjectLibrary{}
	for rows.Next() {
		pl, err := scanProjectLibrary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

func (s *Server) listProjectLibraries(w http.ResponseWriter, r *http.Request) {
	var projectID int64
	if v := strings.TrimSpace(r.URL.Query().Get("project_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			auth.WriteError(w, http.StatusBadRequest, "INVALID_PARAM", "project_id must be a positive integer.")
			return
		}
		projectID = id
	}
	out, err := s.queryProjectLibraries(r.Context(), projectID)
	if err != nil {
		s.internalError(w, r, "list project libraries", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func notFound(w http.ResponseWriter) {
	auth.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
}

func (s *Server) getProjectLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		notFound(w)
		return
	}
	pl, err := scanProjectLibrary(s.DB.QueryRowContext(r.Context(), projectLibrarySelect+" WHERE pl.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		notFound(w)
		return
	}
	if err != nil {
		s.internalError(w, r, "get project library", err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (s *Server) createProjectLibrary(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request: body must be a JSON object.")
		return
	}
	fe := fieldErrors{}
	projectID, ok := p.id("project_id")
	if !ok {
		fe.add("project_id", "A valid project id is required.")
	}
	libraryID, ok := p.id("library_id")
	if !ok {
		fe.add("library_id", "A valid library id is required.")
	}
	version, _ := p.str("version", fe)
	requireText(fe, "version", version, 254)
	if len(fe) > 0 {
		writeFieldErrors(w, fe)
		return
	}

	var id int64
	err = s.DB.QueryRowContext(r.Context(),
		`INSERT INTO project_libraries (library_id, project_id, version) VALUES ($1, $2, $3) RETURNING id`,
		libraryID, projectID, version).Scan(&id)
	if isForeignKeyViolation(err) {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_REFERENCE", "The project or library does not exist.")
		return
	}
	if err != nil {
		s.internalError(w, r, "create project library", err)
		return
	}
	s.Metrics.ObserveMutation("project_library", "create")

	pl, err := scanProjectLibrary(s.DB.QueryRowContext(r.Context(), projectLibrarySelect+" WHERE pl.id = $1", id))
	if err != nil {
		s.internalError(w, r, "load project library", err)
		return
	}
	writeJSON(w, http.StatusCreated, pl)
}

// updateProjectLibrary changes a relation's version. Relations are not moved
// between projects or libraries.
func (s *Server) updateProjectLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		notFound(w)
		return
	}
	p, err := decodePayload(w, r)
	if err != nil {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request: body must be a JSON object.")
		return
	}
	fe := fieldErrors{}
	version, present := p.str("version", fe)
	if !present {
		fe.add("version", "This field is required.")
	}
	requireText(fe, "version", version, 254)
	if len(fe) > 0 {
		writeFieldErrors(w, fe)
		return
	}

	res, err := s.DB.ExecContext(r.Context(), `UPDATE project_libraries SET version = $1 WHERE id = $2`, version, id)
	if err != nil {
		s.internalError(w, r, "update project library", err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		notFound(w)
		return
	}
	s.Metrics.ObserveMutation("project_library", "update")

	pl, err := scanProjectLibrary(s.DB.QueryRowContext(r.Context(), projectLibrarySelect+" WHERE pl.id = $1", id))
	if err != nil {
		s.internalError(w, r, "load project library", err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (s *Server) deleteProjectLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		notFound(w)
		return
	}
	res, err := s.DB.ExecContext(r.Context(), `DELETE FROM project_libraries WHERE id = $1`, id)
	if err != nil {
		s.internalError(w, r, "delete project library", err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		notFound(w)
		return
	}
	s.Metrics.ObserveMutation("project_library", "delete")
	w.WriteHeader(http.StatusNoContent)
}
