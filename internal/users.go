package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"library-catalog/internal/auth"
	"library-catalog/internal/models"
)

const userColumns = `id, username, password_hash, first_name, last_name, email, is_staff, is_active, permissions, last_login_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u           models.User
		perms       pq.StringArray
		lastLoginAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Email,
		&u.IsStaff, &u.IsActive, &perms, &lastLoginAt)
	if err != nil {
		return nil, err
	}
	u.Permissions = perms
	if lastLoginAt.Valid {
		u.LastLoginAt = &lastLoginAt.Time
	}
	return &u, nil
}

// Authenticate checks username and password against active accounts.
func (s *Server) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, auth.ErrInvalidCredentials
	}
	user, err := scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND is_active = true`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, auth.ErrInvalidCredentials
	}
	return user, nil
}

// login accepts HTTP Basic credentials, or a JSON body as a fallback, and
// starts a cookie session.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		var req models.LoginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err == nil {
			username, password = strings.TrimSpace(req.Username), req.Password
		}
	}

	user, err := s.Authenticate(r.Context(), username, password)
	if err != nil {
		s.Metrics.ObserveLogin(false)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.Logger.Info("login rejected", zap.String("username", username))
			auth.WriteError(w, http.StatusForbidden, "INVALID_CREDENTIALS", "Unrecognized credentials.")
			return
		}
		s.internalError(w, r, "login lookup failed", err)
		return
	}

	sess, err := s.startSession(r.Context(), user)
	if err != nil {
		s.internalError(w, r, "start session", err)
		return
	}
	if _, err := s.DB.ExecContext(r.Context(), "UPDATE users SET last_login_at = now() WHERE id = $1", user.ID); err != nil {
		s.Logger.Warn("failed to update last_login_at", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	auth.SetSessionCookies(w, sess.Token, auth.NewCSRFToken(), sess.Expires, s.Config.SecureCookies)
	s.Metrics.ObserveLogin(true)
	writeJSON(w, http.StatusOK, user)
}

// startSession signs a session for u and records it so logout can end it.
func (s *Server) startSession(ctx context.Context, u *models.User) (auth.Session, error) {
	sess, err := s.Sessions.Issue(u)
	if err != nil {
		return auth.Session{}, err
	}
	if err := s.Store.Create(ctx, sess, u); err != nil {
		return auth.Session{}, err
	}
	return sess, nil
}

// logout ends the cookie's session on the server, then clears the cookie.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil && cookie.Value != "" {
		if claims, err := s.Sessions.Validate(cookie.Value); err == nil {
			if err := s.Store.Revoke(r.Context(), claims.ID); err != nil {
				s.internalError(w, r, "revoke session", err)
				return
			}
		}
	}
	auth.ClearSessionCookie(w, s.Config.SecureCookies)
	writeJSON(w, http.StatusOK, map[string]any{})
}

// profile reports who is logged in and what the UI may offer them.
func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, models.Profile{
		AppName:            s.Config.AppName,
		Username:           claims.Username,
		IsStaff:            claims.Staff,
		ProjectPermissions: claims.HasProjectPermissions(),
	})
}
