package catalog

import "library-catalog/internal/models"

// Status is a library's standing as derived from the inactive list.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// LibraryRow is a listed library with its status.
type LibraryRow struct {
	models.Library
	Status Status `json:"status"`
}

// MergeStatus marks each library inactive when its id is in inactive, and
// active otherwise. Order follows all.
func MergeStatus(all, inactive []models.Library) []LibraryRow {
	gone := make(map[int64]struct{}, len(inactive))
	for _, l := range inactive {
		gone[l.ID] = struct{}{}
	}
	rows := make([]LibraryRow, 0, len(all))
	for _, l := range all {
		st := StatusActive
		if _, ok := gone[l.ID]; ok {
			st = StatusInactive
		}
		rows = append(rows, LibraryRow{Library: l, Status: st})
	}
	return rows
}
