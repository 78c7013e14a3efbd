package catalog

import (
	"strings"

	"library-catalog/internal/models"
)

// Staging is the pending list of a project's library relations. Existing
// relations carry their relation id; added ones carry the library id and
// New.
type Staging struct {
	Entries          []models.LibraryEntry
	NoAddedLibraries bool
}

// StageProject annotates p's relations with cleared flags.
func StageProject(p models.Project) *Staging {
	s := &Staging{Entries: make([]models.LibraryEntry, 0, len(p.Libraries))}
	for _, rel := range p.Libraries {
		s.Entries = append(s.Entries, models.LibraryEntry{
			ID:          rel.ID,
			Description: rel.Description,
			Version:     rel.Version,
		})
	}
	s.NoAddedLibraries = len(p.Libraries) == 0
	return s
}

// Add stages a new relation for libraryID. The description is looked up in
// libraries, normally the active ones.
func (s *Staging) Add(libraryID int64, version string, libraries []models.Library) error {
	version = strings.TrimSpace(version)
	if libraryID <= 0 || version == "" {
		return actionError(TitleSaveLibrary, BodyLibraryFields, nil)
	}
	var description string
	for _, l := range libraries {
		if l.ID == libraryID {
			description = l.Description
		}
	}
	s.Entries = append(s.Entries, models.LibraryEntry{
		ID:          libraryID,
		Description: description,
		Version:     version,
		New:         true,
	})
	s.NoAddedLibraries = false
	return nil
}

// Remove marks the entry at index for removal when its id matches and it is
// not already marked.
func (s *Staging) Remove(index int, id int64) bool {
	if index < 0 || index >= len(s.Entries) {
		return false
	}
	e := &s.Entries[index]
	if e.ID != id || bool(e.Remove) {
		return false
	}
	e.Remove = true
	e.Updated = true
	s.recompute()
	return true
}

// RemoveByID marks the first unremoved entry with id for removal.
func (s *Staging) RemoveByID(id int64) bool {
	for i, e := range s.Entries {
		if e.ID == id && !bool(e.Remove) {
			return s.Remove(i, id)
		}
	}
	return false
}

func (s *Staging) recompute() {
	s.NoAddedLibraries = true
	for _, e := range s.Entries {
		if !bool(e.Remove) {
			s.NoAddedLibraries = false
			return
		}
	}
}

// Cancel drops staged additions and reverts staged removals.
func (s *Staging) Cancel() {
	kept := s.Entries[:0]
	for _, e := range s.Entries {
		if bool(e.New) {
			continue
		}
		if bool(e.Updated) {
			e.Remove = !e.Remove
			e.Updated = false
		}
		kept = append(kept, e)
	}
	s.Entries = kept
	s.recompute()
}

// Pending reports whether anything was added or removed.
func (s *Staging) Pending() bool {
	for _, e := range s.Entries {
		if bool(e.New) || bool(e.Updated) {
			return true
		}
	}
	return false
}

// Submission returns the entries to send. Additions removed before saving
// are dropped, since they were never persisted.
func (s *Staging) Submission() []models.LibraryEntry {
	out := make([]models.LibraryEntry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if bool(e.New) && bool(e.Remove) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ProjectRow is a listed project with its staging state.
type ProjectRow struct {
	models.Project
	Staged *Staging
}
