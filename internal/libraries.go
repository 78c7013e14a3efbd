package internal

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"library-catalog/internal/auth"
	"library-catalog/internal/models"
)

const libraryColumns = `id, description, active_start_date, active_end_date`

func scanLibrary(row interface{ Scan(...any) error }) (models.Library, error) {
	var l models.Library
	err := row.Scan(&l.ID, &l.Description, &l.ActiveStartDate, &l.ActiveEndDate)
	return l, err
}

// listLibraries returns all libraries, or only active (?active=true) or
// inactive (?active=false) ones relative to today.
func (s *Server) listLibraries(w http.ResponseWriter, r *http.Request) {
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
		clauses = append(clauses, fmt.Sprintf("description ILIKE $%d", len(args)))
	}

	sqlStr := `SELECT ` + libraryColumns + ` FROM libraries`
	if len(clauses) > 0 {
		sqlStr += " WHERE " + strings.Join(clauses, " AND ")
	}
	sqlStr += buildOrderBy(params.sort, map[string]string{
		"id":                "id",
		"description":       "description",
		"active_start_date": "active_start_date",
		"active_end_date":   "active_end_date",
	})

	rows, err := s.DB.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		s.internalError(w, r, "list libraries", err)
		return
	}
	defer rows.Close()

	libraries := []models.Library{}
	for rows.Next() {
		l, err := scanLibrary(rows)
		if err != nil {
			s.internalError(w, r, "scan library", err)
			return
		}
		libraries = append(libraries, l)
	}
	if err := rows.Err(); err != nil {
		s.internalError(w, r, "list libraries", err)
		return
	}
	writeJSON(w, http.StatusOK, libraries)
}

func (s *Server) createLibrary(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request: body must be a JSON object.")
		return
	}

	fe := fieldErrors{}
	description, _ := p.str("description", fe)
	requireText(fe, "description", description, 0)
	start, present := p.date("active_start_date", false, fe)
	if !present {
		fe.add("active_start_date", "This field is required.")
	}
	end, _ := p.date("active_end_date", true, fe)
	checkDateOrder(fe, start, end)
	if len(fe) > 0 {
		writeFieldErrors(w, fe)
		return
	}

	var endValue any
	if end != nil {
		endValue = *end
	}
	l, err := scanLibrary(s.DB.QueryRowContext(r.Context(), `
		INSERT INTO libraries (description, active_start_date, active_end_date)
		VALUES ($1, $2, $3)
		RETURNING `+libraryColumns, description, *start, endValue))
	if err != nil {
		s.internalError(w, r, "create library", err)
		return
	}
	s.Metrics.ObserveMutation("library", "create")
	writeJSON(w, http.StatusCreated, l)
}

// editLibrary updates the library named by "id" in the body. Only the
// fields present in the body change.
func (s *Server) editLibrary(w http.ResponseWriter, r *http.Request) {
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
	sets := make([]set, 0, 3)
	fe := fieldErrors{}
	if description, ok := p.str("description", fe); ok {
		requireText(fe, "description", description, 0)
		sets = append(sets, set{"description = $%d", description})
	}
	start, ok := p.date("active_start_date", false, fe)
	if ok && start != nil {
		sets = append(sets, set{"active_start_date = $%d", *start})
	}
	end, ok := p.date("active_end_date", true, fe)
	if ok {
		var v any
		if end != nil {
			v = *end
		}
		sets = append(sets, set{"active_end_date = $%d", v})
	}
	checkDateOrder(fe, start, end)
	if len(fe) > 0 {
		writeFieldErrors(w, fe)
		return
	}

	args := make([]any, 0, len(sets)+1)
	sqlStr := "UPDATE libraries SET "
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
	sqlStr += fmt.Sprintf(" WHERE id = $%d RETURNING %s", len(args), libraryColumns)

	l, err := scanLibrary(s.DB.QueryRowContext(r.Context(), sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		auth.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", invalidRequest(http.MethodPut))
		return
	}
	if isDateOrderViolation(err) {
		writeFieldErrors(w, fieldErrors{"active_end_date": endBeforeStart})
		return
	}
	if err != nil {
		s.internalError(w, r, "edit library", err)
		return
	}
	s.Metrics.ObserveMutation("library", "update")
	writeJSON(w, http.StatusOK, l)
}
