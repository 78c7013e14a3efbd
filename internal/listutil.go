package internal

import (
	"net/http"
	"strings"

	"library-catalog/internal/models"
)

type activeFilter int

const (
	filterAll activeFilter = iota
	filterActive
	filterInactive
)

// listParams holds the query parameters understood by list endpoints.
type listParams struct {
	active activeFilter
	q      string
	sort   string
}

// parseListParams reads active, q and sort. active=true and active=false
// select active and inactive records; any other value selects all.
func parseListParams(r *http.Request) listParams {
	values := r.URL.Query()

	p := listParams{
		q:    strings.TrimSpace(values.Get("q")),
		sort: strings.TrimSpace(values.Get("sort")),
	}
	inside, all := models.ParseParamFlag(values.Get("active"))
	switch {
	case all:
		p.active = filterAll
	case inside:
		p.active = filterActive
	default:
		p.active = filterInactive
	}
	return p
}

// activeClause selects rows active on the date bound to placeholder n.
func activeClause(n string) string {
	return "(active_start_date <= " + n + " AND (active_end_date >= " + n + " OR active_end_date IS NULL))"
}

// buildOrderBy builds a safe ORDER BY clause using a whitelist of allowed keys.
// Input sort is comma-separated; prefix with '-' for DESC. Defaults to id ASC.
func buildOrderBy(sortParam string, allowed map[string]string) string {
	clauses := []string{}
	for _, raw := range strings.Split(sortParam, ",") {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		dir := " ASC"
		if strings.HasPrefix(s, "-") {
			dir = " DESC"
			s = strings.TrimPrefix(s, "-")
		}
		if col, ok := allowed[s]; ok {
			clauses = append(clauses, col+dir)
		}
	}
	if len(clauses) == 0 {
		return " ORDER BY id ASC"
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}
