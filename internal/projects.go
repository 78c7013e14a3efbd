package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"library-catalog/internal/auth"
	"library-catalog/internal/models"
)

const projectColumns = `id, name, active_start_date, active_end_date, description, client_name, git_url, testing_url, production_url`

func scanProject(row interface{ Scan(...any) error }) (models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.Name, &p.ActiveStartDate, &p.ActiveEndDate, &p.Description,
		&p.ClientName, &p.GitURL, &p.TestingURL, &p.ProductionURL)
	p.Libraries = []models.ProjectLibrary{}
	return p, err
}

// entryError reports a library entry that could not be applied.
type entryError struct {
	index int
	msg   string
}

func (e *entryError) Error() string {
	return fmt.Sprintf("libraries[%d]: %s", e.index, e.msg)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	clauses := []string{}
	args := []any{}
	switch params.active {
	case filterActive:
		args = append(args, s.today())
		clauses = append(clauses, activeClause("$1"))
	case filterInactive:
		args = append(args, s.today())
		clauses = append(clauses, "NOT "+activeClause("$1"))
	}
	if params.q != "" {
		args = append(args, "%"+params.q+"%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR client_name ILIKE $%d)", len(args), len(args)))
	}

	sqlStr := `SELECT ` + projectColumns + ` FROM projects`
	if len(clauses) > 0 {
		sqlStr += " WHERE " + strings.Join(clauses, " AND ")
	}
	sqlStr += buildOrderBy(params.sort, map[string]string{
		"id":                "id",
		"name":              "name",
		"client_name":       "client_name",
		"active_start_date": "active_start_date",
	})

	rows, err := s.DB.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		s.internalError(w, r, "list projects", err)
		return
	}
	defer rows.Close()

	projects := []models.Project{}
	index := map[int64]int{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			s.internalError(w, r, "scan project", err)
			return
		}
		index[p.ID] = len(projects)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		s.internalError(w, r, "list projects", err)
		return
	}

	relations, err := s.queryProjectLibraries(r.Context(), 0)
	if err != nil {
		s.internalError(w, r, "list project libraries", err)
		return
	}
	for _, rel := range relations {
		if i, ok := index[rel.ProjectID]; ok {
			projects[i].Libraries = append(projects[i].Libraries, rel)
		}
	}
	writeJSON(w, http.StatusOK, projects)
}

// projectFields applies the project fields present in p onto dst. With
// creating set, required fields must be present.
func projectFields(p payload, dst *models.Project, creating bool, fe fieldErrors) {
	if v, ok := p.str("name", fe); ok || creating {
		dst.Name = v
		requireText(fe, "name", v, 254)
	}
	if v, ok := p.str("client_name", fe); ok || creating {
		dst.ClientName = v
		requireText(fe, "client_name", v, 254)
	}
	if v, ok := p.str("description", fe); ok {
		dst.Description = v
	}
	if v, ok := p.str("git_url", fe); ok || creating {
		dst.GitURL = v
		checkURL(fe, "git_url", v, false)
	}
	if v, ok := p.str("testing_url", fe); ok {
		dst.TestingURL = v
		checkURL(fe, "testing_url", v, true)
	}
	if v, ok := p.str("production_url", fe); ok {
		dst.ProductionURL = v
		checkURL(fe, "production_url", v, true)
	}
	start, ok := p.date("active_start_date", false, fe)
	if ok {
		if start != nil {
			dst.ActiveStartDate = *start
		}
	} else if creating {
		fe.add("active_start_date", "This field is required.")
	}
	if d, ok := p.date("active_end_date", true, fe); ok {
		dst.ActiveEndDate = d
	}
	checkDateOrder(fe, start, dst.ActiveEndDate)
}

func nullableDate(d *models.Date) any {
	if d == nil {
		return nil
	}
	return *d
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request: body must be a JSON object.")
		return
	}

	fe := fieldErrors{}
	var in models.Project
	projectFields(p, &in, true, fe)
	entries := p.entries(fe)
	if len(fe) > 0 {
		writeFieldErrors(w, fe)
		return
	}

	tx, err := s.DB.BeginTx(r.Context(), nil)
	if err != nil {
		s.internalError(w, r, "begin transaction", err)
		return
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(r.Context(), `
		INSERT INTO projects (name, active_start_date, active_end_date, description, client_name, git_url, testing_url, production_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		in.Name, in.ActiveStartDate, nullableDate(in.ActiveEndDate), in.Description,
		in.ClientName, in.GitURL, in.TestingURL, in.ProductionURL).Scan(&in.ID)
	if err != nil {
		s.internalError(w, r, "create project", err)
		return
	}
	if err := s.saveLibraryEntries(r.Context(), tx, in.ID, entries); err != nil {
		s.entryFailure(w, r, http.MethodPost, err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.internalError(w, r, "commit project", err)
		return
	}
	s.Metrics.ObserveMutation("project", "create")

	libs, err := s.queryProjectLibraries(r.Context(), in.ID)
	if err != nil {
		s.internalError(w, r, "load project libraries", err)
		return
	}
	in.Libraries = libs
	writeJSON(w, http.StatusCreated, in)
}

// editProject applies a partial update plus library entries in one
// transaction and echoes the request body.
func (s *Server) editProject(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", invalidRequest(http.MethodPut))
		return
	}
	id, ok := p.id("id")
	if !ok {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", invalidRequest(http.MethodPut))
		return
	}

	type set struct {
		sql string
		val any
	}
	fe := fieldErrors{}
	var in models.Project
	projectFields(p, &in, false, fe)
	entries := p.entries(fe)
	if len(fe) > 0 {
		writeFieldErrors(w, fe)
		return
	}

	sets := make([]set, 0, 8)
	columns := []struct {
		key string
		val any
	}{
		{"name", in.Name},
		{"active_start_date", in.ActiveStartDate},
		{"active_end_date", nullableDate(in.ActiveEndDate)},
		{"description", in.Description},
		{"client_name", in.ClientName},
		{"git_url", in.GitURL},
		{"testing_url", in.TestingURL},
		{"production_url", in.ProductionURL},
	}
	for _, c := range columns {
		if !p.has(c.key) {
			continue
		}
		sets = append(sets, set{c.key + " = $%d", c.val})
	}

	args := make([]any, 0, len(sets)+1)
	sqlStr := "UPDATE projects SET "
	if len(sets) == 0 {
		sqlStr += "id = id"
	}
	for i, st := range sets {
		if i > 0 {
			sqlStr += ", "
		}
		sqlStr += fmt.Sprintf(st.sql, i+1)
		args = append(args, st.val)
	}
	args = append(args, id)
	sqlStr += fmt.Sprintf(" WHERE id = $%d", len(args))

	tx, err := s.DB.BeginTx(r.Context(), nil)
	if err != nil {
		s.internalError(w, r, "begin transaction", err)
		return
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(r.Context(), sqlStr, args...)
	if isDateOrderViolation(err) {
		writeFieldErrors(w, fieldErrors{"active_end_date": endBeforeStart})
		return
	}
	if err != nil {
		s.internalError(w, r, "edit project", err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", invalidRequest(http.MethodPut))
		return
	}
	if err := s.saveLibraryEntries(r.Context(), tx, id, entries); err != nil {
		s.entryFailure(w, r, http.MethodPut, err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.internalError(w, r, "commit project", err)
		return
	}
	s.Metrics.ObserveMutation("project", "update")
	writeJSON(w, http.StatusOK, p)
}

// deleteProject removes the project named by "id" in the body. Its library
// relations go with it.
func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", invalidRequest(http.MethodDelete))
		return
	}
	id, ok := p.id("id")
	if !ok {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", invalidRequest(http.MethodDelete))
		return
	}

	res, err := s.DB.ExecContext(r.Context(), `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		s.internalError(w, r, "delete project", err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", invalidRequest(http.MethodDelete))
		return
	}
	s.Metrics.ObserveMutation("project", "delete")
	writeJSON(w, http.StatusOK, p)
}

// saveLibraryEntries applies library entries to a project inside tx.
// Remove deletes the relation, New creates one for the library id, and
// anything else updates the relation's version. Relation ids are always
// scoped to projectID.
func (s *Server) saveLibraryEntries(ctx context.Context, tx *sql.Tx, projectID int64, entries []models.LibraryEntry) error {
	for i, e := range entries {
		switch {
		case bool(e.Remove):
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM project_libraries WHERE id = $1 AND project_id = $2`, e.ID, projectID); err != nil {
				return err
			}
		case bool(e.New):
			version := strings.TrimSpace(e.Version)
			if version == "" || tooLong(version, 254) || e.ID <= 0 {
				return &entryError{i, "a library id and a version of at most 254 characters are required"}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO project_libraries (library_id, project_id, version) VALUES ($1, $2, $3)`,
				e.ID, projectID, version)
			if isForeignKeyViolation(err) {
				return &entryError{i, fmt.Sprintf("library %d does not exist", e.ID)}
			}
			if err != nil {
				return err
			}
		default:
			version := strings.TrimSpace(e.Version)
			if version == "" || tooLong(version, 254) {
				return &entryError{i, "version must be 1 to 254 characters"}
			}
			res, err := tx.ExecContext(ctx,
				`UPDATE project_libraries SET version = $1 WHERE id = $2 AND project_id = $3`,
				version, e.ID, projectID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return &entryError{i, fmt.Sprintf("library relation %d does not belong to project %d", e.ID, projectID)}
			}
		}
	}
	return nil
}

func (s *Server) entryFailure(w http.ResponseWriter, r *http.Request, method string, err error) {
	var ee *entryError
	if errors.As(err, &ee) {
		auth.WriteErrorResponse(w, http.StatusBadRequest, models.ErrorResponse{
			Detail: fmt.Sprintf(`Invalid request: Changes to library data not saved. Please check your "%s" data`, method),
			Code:   "INVALID_LIBRARIES",
			Fields: map[string]string{"libraries": ee.Error()},
		})
		return
	}
	s.internalError(w, r, "save project libraries", err)
}
