package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"library-catalog/internal/models"
)

type contextKey string

const claimsKey contextKey = "claims"

// Challenge is sent with 401 responses. The "x" prefix keeps browsers from
// showing their native credentials dialog.
const Challenge = `xBasic realm="api"`

// ErrInvalidCredentials is returned by an Authenticator for a bad username or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator verifies a username and password.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

// ClaimsFromContext returns the authenticated caller, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// ContextWithClaims attaches claims to ctx.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// WriteError sends the standard JSON error body.
func WriteError(w http.ResponseWriter, status int, code, detail string) {
	WriteErrorResponse(w, status, models.ErrorResponse{Detail: detail, Code: code})
}

// WriteErrorResponse sends resp with the given status.
func WriteErrorResponse(w http.ResponseWriter, status int, resp models.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func notAuthenticated(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", Challenge)
	WriteError(w, http.StatusUnauthorized, "NOT_AUTHENTICATED", detail)
}

// Middleware authenticates each request by HTTP Basic credentials or by the
// session cookie. A cookie session must still be live in store, and its
// claims are rebuilt from the stored user. Cookie-authenticated unsafe
// requests must carry a matching CSRF header; Basic requests are exempt.
func Middleware(sessions *SessionManager, store SessionStore, authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username, password, ok := r.BasicAuth(); ok {
				user, err := authn.Authenticate(r.Context(), username, password)
				if err != nil {
					if errors.Is(err, ErrInvalidCredentials) {
						notAuthenticated(w, "Invalid username/password.")
						return
					}
					WriteError(w, http.StatusInternalServerError, "INTERNAL", "Authentication failed.")
					return
				}
				next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), ClaimsFor(user))))
				return
			}

			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				notAuthenticated(w, "Authentication credentials were not provided.")
				return
			}
			token, err := sessions.Validate(cookie.Value)
			if err != nil {
				notAuthenticated(w, "Session is invalid or has expired.")
				return
			}
			user, err := store.Lookup(r.Context(), token.ID)
			if errors.Is(err, ErrSessionEnded) {
				notAuthenticated(w, "Session is invalid or has expired.")
				return
			}
			if err != nil {
				WriteError(w, http.StatusInternalServerError, "INTERNAL", "Authentication failed.")
				return
			}
			claims := ClaimsFor(user)
			claims.RegisteredClaims = token.RegisteredClaims
			if !IsSafeMethod(r.Method) && !CheckCSRF(r) {
				WriteError(w, http.StatusForbidden, "CSRF_FAILED", "CSRF Failed: CSRF token missing or incorrect.")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// MustProjectPermissions requires the add, change and delete project permissions.
func MustProjectPermissions() func(http.Handler) http.Handler {
	return gate(func(c *Claims) bool { return c.HasProjectPermissions() })
}

// MustStaff requires a staff account.
func MustStaff() func(http.Handler) http.Handler {
	return gate(func(c *Claims) bool { return c.Staff })
}

func gate(allowed func(*Claims) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				notAuthenticated(w, "Authentication credentials were not provided.")
				return
			}
			if !allowed(claims) {
				WriteError(w, http.StatusForbidden, "PERMISSION_DENIED", "You do not have permission to perform this action.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
