package catalog

// DeletePrompt is asked before a project is removed.
const DeletePrompt = "The record will be gone forever. Do you wish to proceed?"

// Confirmer asks the user to consent to a destructive action.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) (bool, error)

func (f ConfirmFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

// Always consents without asking.
var Always Confirmer = ConfirmFunc(func(string) (bool, error) { return true, nil })

// Never declines without asking.
var Never Confirmer = ConfirmFunc(func(string) (bool, error) { return false, nil })
