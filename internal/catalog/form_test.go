package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-catalog/internal/models"
)

func TestFormKeyUsesPrefix(t *testing.T) {
	f := NewForm(Snapshot{"name": "a", "client_name": "b", "description": "c"})
	key, ok := f.Key("description_12")
	require.True(t, ok)
	assert.Equal(t, "description", key)

	key, ok = f.Key("client_name_12")
	require.True(t, ok)
	assert.Equal(t, "client_name", key)

	_, ok = f.Key("git_url_12")
	assert.False(t, ok)
}

func TestChangesSkipInvalidAndUnchanged(t *testing.T) {
	lib := models.Library{ID: 4, Description: "libA", ActiveStartDate: date("2020-01-01"), ActiveEndDate: datePtr("2021-01-01")}
	f := LibraryForm(&lib)

	assert.Equal(t, map[string]any{"id": int64(4)}, f.Changes(4))

	require.NoError(t, f.Set("description_4", "libA renamed"))
	require.NoError(t, f.Set("active_start_date_4", "bad"))
	require.NoError(t, f.Set("active_end_date_4", ""))

	assert.Equal(t, map[string]any{
		"id":              int64(4),
		"description":     "libA renamed",
		"active_end_date": "",
	}, f.Changes(4))
}

func TestPayloadFallsBackToSnapshot(t *testing.T) {
	lib := models.Library{ID: 4, Description: "libA", ActiveStartDate: date("2020-01-01")}
	f := LibraryForm(&lib)
	require.NoError(t, f.Set("active_start_date_4", "2020-13-40"))

	assert.Equal(t, map[string]any{
		"description":       "libA",
		"active_start_date": "2020-01-01",
		"active_end_date":   "",
	}, f.Payload())

	add := NewForm(nil)
	add.AddField("custom", "v")
	assert.Equal(t, map[string]any{"custom": "v"}, add.Payload())
}

func TestCancelRestoresSnapshot(t *testing.T) {
	lib := models.Library{ID: 4, Description: "libA", ActiveStartDate: date("2020-01-01")}
	f := LibraryForm(&lib)
	require.NoError(t, f.Set("description_4", "changed"))
	assert.False(t, f.Pristine())

	f.Cancel()
	assert.Equal(t, "libA", f.Field("description_4").Value)
	assert.True(t, f.Pristine())
	assert.False(t, f.Field("description_4").Touched)

	add := LibraryForm(nil)
	require.NoError(t, add.Set("description", "new"))
	add.Cancel()
	assert.Equal(t, "", add.Field("description").Value)
	assert.True(t, add.Pristine())
}

func TestProjectFormValidation(t *testing.T) {
	f := ProjectForm(nil, date("2020-06-15"))
	err := f.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "git_url")

	require.NoError(t, f.Set("name", "Site"))
	require.NoError(t, f.Set("client_name", "ACME"))
	require.NoError(t, f.Set("git_url", "ftp://nope"))
	assert.False(t, f.Field("git_url").Valid())
	require.NoError(t, f.SetAttr("git_url", "https://git.example/site"))
	assert.NoError(t, f.Validate())

	assert.Error(t, f.Set("missing", "x"))
}

func TestStagingRemoveAndCancel(t *testing.T) {
	s := StageProject(models.Project{Libraries: []models.ProjectLibrary{{ID: 10, Version: "1"}}})
	require.NoError(t, s.Add(2, "2.0", []models.Library{{ID: 2, Description: "libB"}}))

	assert.False(t, s.Remove(0, 99), "id must match the index")
	assert.True(t, s.Remove(0, 10))
	assert.False(t, s.Remove(0, 10), "already removed")
	assert.False(t, s.NoAddedLibraries)
	assert.True(t, s.RemoveByID(2))
	assert.True(t, s.NoAddedLibraries)
	assert.True(t, s.Pending())

	s.Cancel()
	require.Len(t, s.Entries, 1)
	assert.Equal(t, int64(10), s.Entries[0].ID)
	assert.False(t, bool(s.Entries[0].Remove))
	assert.False(t, bool(s.Entries[0].Updated))
	assert.False(t, s.Pending())
	assert.False(t, s.NoAddedLibraries)
}

func TestStagingAddRequiresValues(t *testing.T) {
	s := StageProject(models.Project{})
	assert.True(t, s.NoAddedLibraries)

	err := s.Add(0, "1.0", nil)
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, BodyLibraryFields, ae.Body)
	assert.Error(t, s.Add(3, "  ", nil))
	assert.Empty(t, s.Entries)
}

func TestAlerts(t *testing.T) {
	var a Alerts
	a.Add(AlertSuccess, "one")
	a.Add(AlertWarning, "two")
	a.Close(0)
	a.Close(5)
	assert.Equal(t, []Alert{{AlertWarning, "two"}}, a.List())
	assert.Equal(t, []Alert{{AlertWarning, "two"}}, a.Drain())
	assert.Empty(t, a.List())
}
