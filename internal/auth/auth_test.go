package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-catalog/internal/models"
)

const testSecret = "test-secret-key-that-is-long-enough-for-testing"

type fakeAuthenticator struct {
	users map[string]string
}

func (f fakeAuthenticator) Authenticate(_ context.Context, username, password string) (*models.User, error) {
	if pw, ok := f.users[username]; ok && pw == password {
		return &models.User{ID: 7, Username: username, Permissions: models.ProjectPermissions}, nil
	}
	return nil, ErrInvalidCredentials
}

func newManager() *SessionManager {
	return NewSessionManager(testSecret, "catalog-test", time.Hour)
}

func TestSessionManagerValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		issuer  string
		expiry  time.Duration
		wantErr bool
	}{
		{"valid", testSecret, "iss", time.Hour, false},
		{"short secret", "short", "iss", time.Hour, true},
		{"empty issuer", testSecret, "", time.Hour, true},
		{"zero expiry", testSecret, "iss", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSessionManager(tt.secret, tt.issuer, tt.expiry).ValidateConfig()
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestIssueAndValidate(t *testing.T) {
	m := newManager()
	user := &models.User{ID: 3, Username: "alice", IsStaff: true, Permissions: models.ProjectPermissions}

	sess, err := m.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.Expires, time.Minute)
	assert.NotEmpty(t, sess.ID)

	claims, err := m.Validate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, claims.ID)
	assert.Equal(t, int64(3), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.Staff)
	assert.True(t, claims.HasProjectPermissions())
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	m := newManager()
	user := &models.User{ID: 3, Username: "alice"}

	other := NewSessionManager(testSecret, "someone-else", time.Hour)
	sess, err := other.Issue(user)
	require.NoError(t, err)
	_, err = m.Validate(sess.Token)
	assert.Error(t, err, "issuer must match")

	resigned := NewSessionManager("another-secret-that-is-also-long-enough", "catalog-test", time.Hour)
	sess, err = resigned.Issue(user)
	require.NoError(t, err)
	_, err = m.Validate(sess.Token)
	assert.Error(t, err, "signature must match")

	anonymous := &Claims{UserID: 3, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "catalog-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, anonymous).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = m.Validate(token)
	assert.Error(t, err, "session id is required")

	expired := &Claims{UserID: 3, RegisteredClaims: jwt.RegisteredClaims{
		ID:        "a",
		Issuer:    "catalog-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = m.Validate(token)
	assert.Error(t, err)
}

func protected(t *testing.T, store SessionStore) http.Handler {
	t.Helper()
	if store == nil {
		store = NewMemoryStore()
	}
	authn := fakeAuthenticator{users: map[string]string{"bob": "secret"}}
	return Middleware(newManager(), store, authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		require.NotNil(t, claims)
		_ = json.NewEncoder(w).Encode(map[string]string{"user": claims.Username})
	}))
}

// sessionRequest starts a session for carol in store and sends its cookie.
func sessionRequest(t *testing.T, store SessionStore, method string, csrfHeader string) *http.Request {
	t.Helper()
	user := &models.User{ID: 1, Username: "carol"}
	sess, err := newManager().Issue(user)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), sess, user))
	return withSession(sess.Token, method, csrfHeader)
}

func withSession(token, method, csrfHeader string) *http.Request {
	req := httptest.NewRequest(method, "/api/libraries", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	req.AddCookie(&http.Cookie{Name: CSRFCookie, Value: "tok123"})
	if csrfHeader != "" {
		req.Header.Set(CSRFHeader, csrfHeader)
	}
	return req
}

func TestMiddlewareWithoutCredentials(t *testing.T) {
	rr := httptest.NewRecorder()
	protected(t, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/libraries", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, Challenge, rr.Header().Get("WWW-Authenticate"))

	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "NOT_AUTHENTICATED", resp.Code)
}

func TestMiddlewareBasicAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/libraries", nil)
	req.SetBasicAuth("bob", "secret")
	rr := httptest.NewRecorder()
	protected(t, nil).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "basic requests skip CSRF")
	assert.Contains(t, rr.Body.String(), "bob")

	req = httptest.NewRequest(http.MethodGet, "/api/libraries", nil)
	req.SetBasicAuth("bob", "wrong")
	rr = httptest.NewRecorder()
	protected(t, nil).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddlewareSessionCSRF(t *testing.T) {
	tests := []struct {
		name   string
		method string
		header string
		want   int
	}{
		{"safe method needs no token", http.MethodGet, "", http.StatusOK},
		{"unsafe without token", http.MethodPut, "", http.StatusForbidden},
		{"unsafe with wrong token", http.MethodPost, "nope", http.StatusForbidden},
		{"unsafe with matching token", http.MethodDelete, "tok123", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			rr := httptest.NewRecorder()
			protected(t, store).ServeHTTP(rr, sessionRequest(t, store, tt.method, tt.header))
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestMiddlewareRejectsTamperedSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/libraries", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "not.a.token"})
	rr := httptest.NewRecorder()
	protected(t, nil).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddlewareRejectsEndedSession(t *testing.T) {
	store := NewMemoryStore()
	h := protected(t, store)

	req := sessionRequest(t, store, http.MethodGet, "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	token, err := newManager().Validate(req.Cookies()[0].Value)
	require.NoError(t, err)
	require.NoError(t, store.Revoke(context.Background(), token.ID))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, withSession(req.Cookies()[0].Value, http.MethodGet, ""))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddlewareRejectsUnrecordedSession(t *testing.T) {
	sess, err := newManager().Issue(&models.User{ID: 1, Username: "carol"})
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	protected(t, nil).ServeHTTP(rr, withSession(sess.Token, http.MethodGet, ""))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

type fixedStore struct{ user models.User }

func (f fixedStore) Create(context.Context, Session, *models.User) error { return nil }
func (f fixedStore) Lookup(context.Context, string) (*models.User, error) {
	u := f.user
	return &u, nil
}
func (f fixedStore) Revoke(context.Context, string) error { return nil }

func TestMiddlewareUsesStoredUser(t *testing.T) {
	store := fixedStore{user: models.User{ID: 1, Username: "carol", IsStaff: true}}
	var got *Claims
	h := Middleware(newManager(), store, fakeAuthenticator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromContext(r.Context())
	}))

	sess, err := newManager().Issue(&models.User{ID: 1, Username: "carol", Permissions: models.ProjectPermissions})
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withSession(sess.Token, http.MethodGet, ""))

	require.NotNil(t, got)
	assert.True(t, got.Staff)
	assert.False(t, got.HasProjectPermissions(), "revoked permissions apply to live sessions")
	assert.Equal(t, sess.ID, got.ID)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	sess := Session{ID: "s1", Expires: now.Add(time.Minute)}
	require.NoError(t, store.Create(context.Background(), sess, &models.User{ID: 1}))

	_, err := store.Lookup(context.Background(), "s1")
	require.NoError(t, err)

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = store.Lookup(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestPermissionGates(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name   string
		gate   func(http.Handler) http.Handler
		claims *Claims
		want   int
	}{
		{"no claims", MustProjectPermissions(), nil, http.StatusUnauthorized},
		{"partial permissions", MustProjectPermissions(), &Claims{Permissions: []string{"api.add_project"}}, http.StatusForbidden},
		{"all permissions", MustProjectPermissions(), &Claims{Permissions: models.ProjectPermissions}, http.StatusNoContent},
		{"not staff", MustStaff(), &Claims{}, http.StatusForbidden},
		{"staff", MustStaff(), &Claims{Staff: true}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/projects", nil)
			if tt.claims != nil {
				req = req.WithContext(ContextWithClaims(req.Context(), tt.claims))
			}
			rr := httptest.NewRecorder()
			tt.gate(ok).ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestSetSessionCookies(t *testing.T) {
	rr := httptest.NewRecorder()
	SetSessionCookies(rr, "sess", "csrf", time.Now().Add(time.Hour), false)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, CSRFCookie, cookies[1].Name)
	assert.False(t, cookies[1].HttpOnly)

	token := NewCSRFToken()
	assert.Len(t, token, 32)
	assert.NotEqual(t, token, NewCSRFToken())
}

func TestLoginLimiter(t *testing.T) {
	l := NewLoginLimiter(1, 2)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	assert.True(t, l.Allow("10.0.0.2"), "other addresses have their own bucket")
}

func TestLoginLimiterDropsIdleBuckets(t *testing.T) {
	l := NewLoginLimiter(60, 3)
	now := time.Now()
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("10.0.0.1"))
	}
	require.False(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.2"))
	assert.Len(t, l.limiters, 2)

	now = now.Add(l.idle)
	assert.True(t, l.Allow("10.0.0.3"))
	assert.Len(t, l.limiters, 1, "idle addresses are forgotten")
	assert.Contains(t, l.limiters, "10.0.0.3")
	assert.True(t, l.Allow("10.0.0.1"), "a forgotten address starts with a full bucket")
}
