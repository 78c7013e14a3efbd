package catalog

// State is what the front end knows about the logged in user.
type State struct {
	User               string
	Staff              bool
	ProjectPermissions bool
}

// LoggedIn reports whether a user is set.
func (s State) LoggedIn() bool { return s.User != "" }
