package models

import "time"

// ProjectPermissions must all be held for a user to manage projects.
var ProjectPermissions = []string{
	"api.add_project",
	"api.change_project",
	"api.delete_project",
}

// User represents an account that can log in to the catalog.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	IsStaff      bool       `json:"is_staff"`
	IsActive     bool       `json:"-"`
	Permissions  []string   `json:"-"`
	LastLoginAt  *time.Time `json:"-"`
}

// HasPermission checks for a single permission code.
func (u *User) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// HasProjectPermissions reports whether the user holds every project permission.
func (u *User) HasProjectPermissions() bool {
	return HasAllPermissions(u.Permissions, ProjectPermissions)
}

// HasAllPermissions reports whether granted contains every required permission.
func HasAllPermissions(granted, required []string) bool {
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}

// LoginRequest carries credentials when they are not sent as HTTP Basic.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Profile describes the logged-in user and what the UI may offer them.
type Profile struct {
	AppName            string `json:"app_name"`
	Username           string `json:"username"`
	IsStaff            bool   `json:"is_staff"`
	ProjectPermissions bool   `json:"project_permissions"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}
