package internal

import (
	"context"
	"database/sql"
	"errors"

	"library-catalog/internal/auth"
	"library-catalog/internal/models"
)

const sessionUserColumns = `u.id, u.username, u.password_hash, u.first_name, u.last_name, u.email, u.is_staff, u.is_active, u.permissions, u.last_login_at`

// sessionStore keeps sessions in the sessions table. Lookups join the user
// so deactivation and permission changes apply to live sessions.
type sessionStore struct {
	db *sql.DB
}

func (st *sessionStore) Create(ctx context.Context, sess auth.Session, u *models.User) error {
	if _, err := st.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1 AND (expires_at <= now() OR revoked_at IS NOT NULL)`, u.ID); err != nil {
		return err
	}
	_, err := st.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)`,
		sess.ID, u.ID, sess.Expires)
	return err
}

func (st *sessionStore) Lookup(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(st.db.QueryRowContext(ctx, `
		SELECT `+sessionUserColumns+`
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.revoked_at IS NULL AND s.expires_at > now() AND u.is_active`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrSessionEnded
	}
	return u, err
}

func (st *sessionStore) Revoke(ctx context.Context, id string) error {
	_, err := st.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	return err
}
