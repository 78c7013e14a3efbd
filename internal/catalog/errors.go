package catalog

import (
	"errors"
	"fmt"
)

// Dialog titles and bodies shown when an action fails.
const (
	TitleLogin       = "Login Error"
	TitleSaveLibrary = "Save Library Error"
	TitleSaveProject = "Save Project Error"

	BodyBadCredentials = "Unrecognized credentials. Please try again."
	BodyUnableToSave   = "Error: unable to save information."
	BodyLibraryFields  = "Error: please provide values for the library fields."
	BodyUnableToDelete = "Error: unable to delete record."
	BodyEndBeforeStart = "Error: a library cannot end before it starts."
)

var (
	// ErrNotConfirmed is returned when the user declines a destructive action.
	ErrNotConfirmed = errors.New("action not confirmed")
	// ErrNothingToSave is returned when an edit carries no changes.
	ErrNothingToSave = errors.New("nothing to save")
	// ErrNotStarted is returned when retiring a library that starts today or later.
	ErrNotStarted = errors.New("library has not started")
)

// ActionError is a failed user action, rendered as a dialog with a fixed
// title and body. Err keeps the underlying cause.
type ActionError struct {
	Title string
	Body  string
	Err   error
}

func (e *ActionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Title, e.Body)
	}
	return fmt.Sprintf("%s: %s: %v", e.Title, e.Body, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

func actionError(title, body string, err error) *ActionError {
	return &ActionError{Title: title, Body: body, Err: err}
}
