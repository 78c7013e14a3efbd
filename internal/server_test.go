package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"library-catalog/internal/auth"
	"library-catalog/internal/config"
	"library-catalog/internal/models"
)

var (
	editor = &models.User{ID: 1, Username: "editor", Permissions: models.ProjectPermissions}
	viewer = &models.User{ID: 2, Username: "viewer"}
	staff  = &models.User{ID: 3, Username: "staff", IsStaff: true}
)

func testConfig() *config.Config {
	return &config.Config{
		AppName:       "Library Catalog",
		EnableMetrics: true,
		EnableSwagger: true,
		UploadMaxMB:   1,
		Session: config.SessionConfig{
			Secret: "test-secret-key-that-is-long-enough-for-testing",
			Issuer: "catalog-test",
			Expiry: time.Hour,
		},
		Login: config.LoginConfig{Rate: 1, Burst: 3},
	}
}

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := newServer(db, nil, testConfig(), zap.NewNop(), auth.NewMemoryStore())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2020, 6, 15, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

// do sends a cookie-authenticated request with a matching CSRF header.
// A nil user sends no credentials.
func do(t *testing.T, s *Server, method, path, body string, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var token string
	if user != nil {
		sess, err := s.startSession(context.Background(), user)
		require.NoError(t, err)
		token = sess.Token
	}
	return doWithToken(t, s, method, path, body, token)
}

// doWithToken sends the session token as a cookie. An empty token sends no
// credentials.
func doWithToken(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
		req.AddCookie(&http.Cookie{Name: auth.CSRFCookie, Value: "csrf-test"})
		req.Header.Set(auth.CSRFHeader, "csrf-test")
	}
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestDocsServed(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/api/libraries/")

	rr = do(t, s, http.MethodGet, "/docs", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Library Catalog")
}

func TestNewServerRejectsWeakSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Secret = "short"
	_, err := NewServer(nil, nil, cfg, nil)
	assert.Error(t, err)
}

func TestUnauthenticatedRequestsAreChallenged(t *testing.T) {
	s, _ := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/api/libraries/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, auth.Challenge, rr.Header().Get("WWW-Authenticate"))
}

func TestCSRFRequiredForSessionWrites(t *testing.T) {
	s, mock := newTestServer(t)

	sess, err := s.startSession(context.Background(), editor)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/libraries/", strings.NewReader(`{"description":"x","active_start_date":"2020-01-01"}`))
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: sess.Token})
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "CSRF")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportRequiresStaff(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/api/imports/excel/", "", editor)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, s, http.MethodPost, "/api/imports/excel/", "", staff)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code, "no pool in tests")
}

func TestBuildOrderBy(t *testing.T) {
	allowed := map[string]string{"id": "id", "name": "name"}
	assert.Equal(t, " ORDER BY id ASC", buildOrderBy("", allowed))
	assert.Equal(t, " ORDER BY name DESC, id ASC", buildOrderBy("-name,id", allowed))
	assert.Equal(t, " ORDER BY id ASC", buildOrderBy("password; DROP TABLE users", allowed))
}

func TestParseListParams(t *testing.T) {
	cases := map[string]activeFilter{
		"/x?active=true":  filterActive,
		"/x?active=false": filterInactive,
		"/x?active=1":     filterAll,
		"/x":              filterAll,
	}
	for target, want := range cases {
		p := parseListParams(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, want, p.active, target)
	}
}
