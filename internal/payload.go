package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgconn"

	"library-catalog/internal/auth"
	"library-catalog/internal/models"
)

const maxBodyBytes = 1 << 20

// payload is a decoded JSON object whose fields are inspected one by one, so
// that partial updates can tell absent fields from empty ones.
type payload map[string]json.RawMessage

// fieldErrors collects per-field validation messages.
type fieldErrors map[string]string

func (fe fieldErrors) add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

func (fe fieldErrors) detail() string {
	for _, key := range []string{"active_start_date", "active_end_date"} {
		if msg, ok := fe[key]; ok {
			return msg
		}
	}
	if len(fe) == 1 {
		for k, v := range fe {
			return k + ": " + v
		}
	}
	return "Invalid request: please check the highlighted fields."
}

func decodePayload(w http.ResponseWriter, r *http.Request) (payload, error) {
	var p payload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return p, nil
}

func (p payload) has(key string) bool {
	_, ok := p[key]
	return ok
}

// str returns a string field. null decodes as "".
func (p payload) str(key string, fe fieldErrors) (string, bool) {
	raw, ok := p[key]
	if !ok {
		return "", false
	}
	if string(raw) == "null" {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		fe.add(key, "Not a valid string.")
		return "", true
	}
	return strings.TrimSpace(s), true
}

// id returns a numeric identifier given as a number or a numeric string.
func (p payload) id(key string) (int64, bool) {
	raw, ok := p[key]
	if !ok {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := n.Int64(); err == nil && v > 0 {
			return v, true
		}
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// date parses a YYYY-MM-DD field. An empty or null value yields nil, which
// is an error unless the field is nullable.
func (p payload) date(key string, nullable bool, fe fieldErrors) (*models.Date, bool) {
	s, ok := p.str(key, fe)
	if !ok {
		return nil, false
	}
	if s == "" {
		if !nullable {
			fe.add(key, "This field is required.")
		}
		return nil, true
	}
	d, err := models.ParseDate(s)
	if err != nil {
		fe.add(key, dateFormatError(key))
		return nil, true
	}
	return &d, true
}

const endBeforeStart = "Ensure the end date is not before the start date."

// checkDateOrder rejects an end date before the start date. Either may be
// nil when absent from a partial update.
func checkDateOrder(fe fieldErrors, start, end *models.Date) {
	if start != nil && end != nil && end.Before(*start) {
		fe.add("active_end_date", endBeforeStart)
	}
}

func dateFormatError(field string) string {
	return fmt.Sprintf(`Invalid format for %s: must be "YYYY-mm-dd"`, field)
}

func (p payload) entries(fe fieldErrors) []models.LibraryEntry {
	raw, ok := p["libraries"]
	if !ok || string(raw) == "null" {
		return nil
	}
	var out []models.LibraryEntry
	if err := json.Unmarshal(raw, &out); err != nil {
		fe.add("libraries", "Expected a list of library entries.")
		return nil
	}
	return out
}

// tooLong counts characters, matching VARCHAR(n).
func tooLong(value string, maxLen int) bool {
	return utf8.RuneCountInString(value) > maxLen
}

func requireText(fe fieldErrors, field, value string, maxLen int) {
	switch {
	case value == "":
		fe.add(field, "This field may not be blank.")
	case maxLen > 0 && tooLong(value, maxLen):
		fe.add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", maxLen))
	}
}

// checkURL validates an absolute http(s) URL; empty is allowed when optional.
func checkURL(fe fieldErrors, field, value string, optional bool) {
	if value == "" {
		if !optional {
			fe.add(field, "This field may not be blank.")
		}
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fe.add(field, "Enter a valid URL.")
		return
	}
	if tooLong(value, 200) {
		fe.add(field, "Ensure this field has no more than 200 characters.")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFieldErrors(w http.ResponseWriter, fe fieldErrors) {
	auth.WriteErrorResponse(w, http.StatusBadRequest, models.ErrorResponse{
		Detail: fe.detail(),
		Code:   "VALIDATION",
		Fields: fe,
	})
}

// invalidRequest is the detail returned when a write names no valid record.
func invalidRequest(method string) string {
	return fmt.Sprintf(`Invalid request: Please check your "%s" data`, method)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// isDateOrderViolation reports a partial update that left the stored end
// date before the start date.
func isDateOrderViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514" && strings.HasSuffix(pgErr.ConstraintName, "_date_order")
}
