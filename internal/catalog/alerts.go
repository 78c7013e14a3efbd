package catalog

import "sync"

// AlertType is the severity of a banner message.
type AlertType string

const (
	AlertSuccess AlertType = "success"
	AlertWarning AlertType = "warning"
	AlertDanger  AlertType = "danger"
)

// Banner messages for completed actions.
const (
	MsgLoggedIn       = "You are now logged in."
	MsgLoggedOut      = "You are now logged out."
	MsgLibraryAdded   = "You have added a new library record."
	MsgLibrarySaved   = "Changes were saved to the library record."
	MsgProjectAdded   = "You have added a new Project record."
	MsgProjectSaved   = "Changes to the Project record were saved."
	MsgProjectDeleted = "You have deleted a Project record."
	MsgNoChanges      = "There are no changes to save."
)

// Alert is one banner message.
type Alert struct {
	Type AlertType `json:"type"`
	Msg  string    `json:"msg"`
}

// Alerts is an ordered list of banner messages.
type Alerts struct {
	mu    sync.Mutex
	items []Alert
}

// Add appends a message.
func (a *Alerts) Add(t AlertType, msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, Alert{Type: t, Msg: msg})
}

// Replace clears the list and adds a single message.
func (a *Alerts) Replace(t AlertType, msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = []Alert{{Type: t, Msg: msg}}
}

// Close removes the message at index. Out of range indexes are ignored.
func (a *Alerts) Close(index int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.items) {
		return
	}
	a.items = append(a.items[:index], a.items[index+1:]...)
}

// Clear removes every message.
func (a *Alerts) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = nil
}

// List returns a copy of the current messages.
func (a *Alerts) List() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Alert(nil), a.items...)
}

// Drain returns the current messages and clears the list.
func (a *Alerts) Drain() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.items
	a.items = nil
	return out
}
