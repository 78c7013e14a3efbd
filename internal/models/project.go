package models

type Project struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	ActiveStartDate Date             `json:"active_start_date"`
	ActiveEndDate   *Date            `json:"active_end_date"`
	Description     string           `json:"description"`
	ClientName      string           `json:"client_name"`
	GitURL          string           `json:"git_url"`
	TestingURL      string           `json:"testing_url"`
	ProductionURL   string           `json:"production_url"`
	Libraries       []ProjectLibrary `json:"libraries"`
}

// ProjectLibrary associates a library with a project at a given version.
// ID is the relation id, not the library id.
type ProjectLibrary struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id,omitempty"`
	LibraryID   int64  `json:"library_id"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// LibraryEntry is one element of the "libraries" array on project writes.
//
// With New set, ID is a library id and a relation is created. Otherwise ID is a
// relation id: Remove deletes it, and anything else updates its version.
// Remove takes precedence over New.
type LibraryEntry struct {
	ID          int64  `json:"id"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
	New         Flag   `json:"new"`
	Remove      Flag   `json:"remove"`
	Updated     Flag   `json:"updated,omitempty"`
}

// ProjectInput is the body of a project create request.
type ProjectInput struct {
	Name            string         `json:"name"`
	ActiveStartDate string         `json:"active_start_date"`
	ActiveEndDate   *string        `json:"active_end_date"`
	ClientName      string         `json:"client_name"`
	Description     string         `json:"description"`
	GitURL          string         `json:"git_url"`
	TestingURL      string         `json:"testing_url"`
	ProductionURL   string         `json:"production_url"`
	Libraries       []LibraryEntry `json:"libraries,omitempty"`
}

// ProjectLibraryInput creates or updates a relation through the project_libraries resource.
type ProjectLibraryInput struct {
	ProjectID int64  `json:"project_id"`
	LibraryID int64  `json:"library_id"`
	Version   string `json:"version"`
}
