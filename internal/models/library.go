package models

// Library is a reusable software component tracked by the catalog.
type Library struct {
	ID              int64  `json:"id"`
	Description     string `json:"description"`
	ActiveStartDate Date   `json:"active_start_date"`
	ActiveEndDate   *Date  `json:"active_end_date"`
}

// ActiveOn reports whether the library is active on day.
// A library is active once its start date has passed and until its end date, inclusive.
func (l Library) ActiveOn(day Date) bool {
	if l.ActiveStartDate.After(day) {
		return false
	}
	return l.ActiveEndDate == nil || l.ActiveEndDate.IsZero() || !l.ActiveEndDate.Before(day)
}

// LibraryInput is the body of a library create request.
type LibraryInput struct {
	Description     string  `json:"description"`
	ActiveStartDate string  `json:"active_start_date"`
	ActiveEndDate   *string `json:"active_end_date"`
}
