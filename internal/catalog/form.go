package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"library-catalog/internal/models"
)

// Validator checks a field's view value.
type Validator func(value string) error

// Required rejects blank values.
func Required(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("this field is required")
	}
	return nil
}

// MaxLen rejects values longer than n characters.
func MaxLen(n int) Validator {
	return func(v string) error {
		if utf8.RuneCountInString(v) > n {
			return fmt.Errorf("ensure this field has no more than %d characters", n)
		}
		return nil
	}
}

// DateValue accepts YYYY-MM-DD or an empty value.
func DateValue(v string) error {
	if v == "" {
		return nil
	}
	if !models.ValidDate(v) {
		return fmt.Errorf("must be %q", "YYYY-mm-dd")
	}
	return nil
}

// URLValue accepts an absolute http(s) URL or an empty value.
func URLValue(v string) error {
	if v == "" {
		return nil
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("enter a valid URL")
	}
	return nil
}

// Field is one form control.
type Field struct {
	Name    string
	Value   string
	Err     error
	Dirty   bool
	Touched bool

	validators []Validator
}

// Valid reports whether the current value passed every validator.
func (f *Field) Valid() bool { return f.Err == nil }

func (f *Field) validate() {
	f.Err = nil
	for _, v := range f.validators {
		if err := v(f.Value); err != nil {
			f.Err = err
			return
		}
	}
}

// Snapshot is a copy of a record taken when editing starts, keyed by
// attribute name.
type Snapshot map[string]string

// Form is a set of fields edited against an optional snapshot. A form
// without a snapshot adds a new record.
type Form struct {
	fields   []*Field
	byName   map[string]*Field
	snapshot Snapshot
}

// NewForm creates an empty form over snapshot; nil means an add form.
func NewForm(snapshot Snapshot) *Form {
	return &Form{byName: map[string]*Field{}, snapshot: snapshot}
}

// AddField registers a field. Editing forms start from the snapshot value
// the field maps to, add forms from initial.
func (f *Form) AddField(name, initial string, validators ...Validator) *Field {
	fd := &Field{Name: name, Value: initial, validators: validators}
	if f.snapshot != nil {
		if key, ok := f.Key(name); ok {
			fd.Value = f.snapshot[key]
		}
	}
	fd.validate()
	f.fields = append(f.fields, fd)
	f.byName[name] = fd
	return fd
}

// Field returns the named field, or nil.
func (f *Form) Field(name string) *Field { return f.byName[name] }

// Fields returns the fields in registration order.
func (f *Form) Fields() []*Field { return f.fields }

// IsNew reports whether the form adds a record.
func (f *Form) IsNew() bool { return f.snapshot == nil }

// Set changes a field's view value as the user would, marking it dirty and
// touched.
func (f *Form) Set(name, value string) error {
	fd, ok := f.byName[name]
	if !ok {
		return fmt.Errorf("unknown field %q", name)
	}
	fd.Value = value
	fd.Dirty = true
	fd.Touched = true
	fd.validate()
	return nil
}

// Key maps a field name to the snapshot attribute it edits. The attribute
// must prefix the field name, so "description_12" maps to "description".
// The longest matching attribute wins.
func (f *Form) Key(name string) (string, bool) {
	best := ""
	for key := range f.snapshot {
		if strings.HasPrefix(name, key) && len(key) > len(best) {
			best = key
		}
	}
	return best, best != ""
}

// Pristine reports whether no field has been changed.
func (f *Form) Pristine() bool {
	for _, fd := range f.fields {
		if fd.Dirty {
			return false
		}
	}
	return true
}

// Validate returns an error naming every invalid field.
func (f *Form) Validate() error {
	var bad []string
	for _, fd := range f.fields {
		if !fd.Valid() {
			bad = append(bad, fmt.Sprintf("%s: %v", fd.Name, fd.Err))
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return fmt.Errorf("invalid fields: %s", strings.Join(bad, "; "))
}

// Changes builds a partial update: each dirty, valid field whose value
// differs from the snapshot, keyed by attribute, plus "id".
func (f *Form) Changes(id int64) map[string]any {
	out := map[string]any{"id": id}
	for _, fd := range f.fields {
		if !fd.Dirty || !fd.Valid() {
			continue
		}
		key, ok := f.Key(fd.Name)
		if !ok {
			key = fd.Name
		}
		if old, ok := f.snapshot[key]; ok && old == fd.Value {
			continue
		}
		out[key] = fd.Value
	}
	return out
}

// Payload builds a full body from every field. Invalid fields fall back to
// the snapshot value; fields with no snapshot attribute use their own name.
func (f *Form) Payload() map[string]any {
	out := map[string]any{}
	for _, fd := range f.fields {
		key, ok := f.Key(fd.Name)
		if !ok {
			key = fd.Name
		}
		switch {
		case fd.Valid():
			out[key] = fd.Value
		case ok:
			out[key] = f.snapshot[key]
		}
	}
	return out
}

// Cancel restores dirty fields from the snapshot, or clears an add form, and
// leaves the form pristine and untouched.
func (f *Form) Cancel() {
	for _, fd := range f.fields {
		if f.snapshot == nil {
			fd.Value = ""
		} else if fd.Dirty {
			if key, ok := f.Key(fd.Name); ok {
				fd.Value = f.snapshot[key]
			}
		}
		fd.Dirty = false
		fd.Touched = false
		fd.validate()
	}
}

// fieldName suffixes attribute names with the record id on edit forms.
func fieldName(key string, id int64) string {
	if id == 0 {
		return key
	}
	return fmt.Sprintf("%s_%d", key, id)
}

// LibrarySnapshot copies the editable attributes of l.
func LibrarySnapshot(l models.Library) Snapshot {
	s := Snapshot{
		"description":       l.Description,
		"active_start_date": l.ActiveStartDate.String(),
		"active_end_date":   "",
	}
	if l.ActiveEndDate != nil {
		s["active_end_date"] = l.ActiveEndDate.String()
	}
	return s
}

// ProjectSnapshot copies the editable attributes of p.
func ProjectSnapshot(p models.Project) Snapshot {
	s := Snapshot{
		"name":              p.Name,
		"client_name":       p.ClientName,
		"description":       p.Description,
		"active_start_date": p.ActiveStartDate.String(),
		"active_end_date":   "",
		"git_url":           p.GitURL,
		"testing_url":       p.TestingURL,
		"production_url":    p.ProductionURL,
	}
	if p.ActiveEndDate != nil {
		s["active_end_date"] = p.ActiveEndDate.String()
	}
	return s
}

// LibraryForm edits l, or adds a library when l is nil.
func LibraryForm(l *models.Library) *Form {
	var (
		f  *Form
		id int64
	)
	if l == nil {
		f = NewForm(nil)
	} else {
		f = NewForm(LibrarySnapshot(*l))
		id = l.ID
	}
	f.AddField(fieldName("description", id), "", Required)
	f.AddField(fieldName("active_start_date", id), "", Required, DateValue)
	f.AddField(fieldName("active_end_date", id), "", DateValue)
	return f
}

// ProjectForm edits p, or adds a project starting today when p is nil.
func ProjectForm(p *models.Project, today models.Date) *Form {
	var (
		f     *Form
		id    int64
		start string
	)
	if p == nil {
		f = NewForm(nil)
		start = today.String()
	} else {
		f = NewForm(ProjectSnapshot(*p))
		id = p.ID
	}
	f.AddField(fieldName("name", id), "", Required, MaxLen(254))
	f.AddField(fieldName("client_name", id), "", Required, MaxLen(254))
	f.AddField(fieldName("description", id), "")
	f.AddField(fieldName("active_start_date", id), start, Required, DateValue)
	f.AddField(fieldName("active_end_date", id), "", DateValue)
	f.AddField(fieldName("git_url", id), "", Required, URLValue, MaxLen(200))
	f.AddField(fieldName("testing_url", id), "", URLValue, MaxLen(200))
	f.AddField(fieldName("production_url", id), "", URLValue, MaxLen(200))
	return f
}

// SetAttr sets the field editing attribute key.
func (f *Form) SetAttr(key, value string) error {
	for _, fd := range f.fields {
		if k, ok := f.Key(fd.Name); (ok && k == key) || (!ok && fd.Name == key) {
			return f.Set(fd.Name, value)
		}
	}
	return fmt.Errorf("unknown field %q", key)
}
