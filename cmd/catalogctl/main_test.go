package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-catalog/internal/auth"
	"library-catalog/internal/config"
)

type fakeServer struct {
	*httptest.Server
	mu      sync.Mutex
	deletes []string
	cookies []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		if u, p, ok := r.BasicAuth(); !ok || u != "ada" || p != "s3cret" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"detail":"Unrecognized credentials."}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: auth.SessionCookie, Value: "tok", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: auth.CSRFCookie, Value: "csrf", Path: "/"})
		_, _ = w.Write([]byte(`{"id":1,"username":"ada","is_staff":false}`))
	})
	mux.HandleFunc("/api/auth/profile/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"app_name":"Library Catalog","username":"ada","is_staff":false,"project_permissions":true}`))
	})
	mux.HandleFunc("/api/libraries/", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(auth.SessionCookie); err == nil {
			fs.mu.Lock()
			fs.cookies = append(fs.cookies, c.Value)
			fs.mu.Unlock()
		}
		if r.URL.Query().Get("active") == "false" {
			_, _ = w.Write([]byte(`[{"id":2,"description":"old-lib","active_start_date":"2010-01-01","active_end_date":"2011-01-01"}]`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"description":"new-lib","active_start_date":"2020-01-01","active_end_date":null},
			{"id":2,"description":"old-lib","active_start_date":"2010-01-01","active_end_date":"2011-01-01"}]`))
	})
	mux.HandleFunc("/api/projects/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			fs.mu.Lock()
			fs.deletes = append(fs.deletes, r.Header.Get(auth.CSRFHeader))
			fs.mu.Unlock()
		}
		_, _ = w.Write([]byte(`{}`))
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

type result struct {
	out, errOut string
	err         error
}

func run(t *testing.T, url, dir, stdin string, env map[string]string, args ...string) result {
	t.Helper()
	color.NoColor = true
	var out, errOut bytes.Buffer
	a := newApp()
	a.in = strings.NewReader(stdin)
	a.out = &out
	a.errOut = &errOut
	a.getenv = func(k string) string { return env[k] }

	root := a.rootCmd()
	root.SetArgs(append([]string{
		"--server", url,
		"--config", filepath.Join(dir, "config.yaml"),
		"--session", filepath.Join(dir, "session.yaml"),
	}, args...))
	err := root.ExecuteContext(context.Background())
	if err != nil {
		a.printError(err)
	}
	return result{out.String(), errOut.String(), err}
}

func TestLoginThenList(t *testing.T) {
	srv := newFakeServer(t)
	dir := t.TempDir()

	res := run(t, srv.URL, dir, "", map[string]string{"CATALOG_PASSWORD": "s3cret"}, "login", "-u", "ada")
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "You are now logged in.")

	sess, err := config.LoadSession(filepath.Join(dir, "session.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ada", sess.Username)
	assert.True(t, sess.ProjectPermissions)
	assert.Equal(t, srv.URL, sess.BaseURL)

	res = run(t, srv.URL, dir, "", nil, "library", "list")
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "new-lib")
	assert.Regexp(t, `2\s+old-lib\s+2010-01-01\s+2011-01-01\s+inactive`, res.out)
	assert.Regexp(t, `1\s+new-lib\s+2020-01-01\s+-\s+active`, res.out)

	res = run(t, srv.URL, dir, "", nil, "library", "list", "--inactive")
	require.NoError(t, res.err)
	assert.NotContains(t, res.out, "new-lib")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.NotEmpty(t, srv.cookies)
	assert.Equal(t, "tok", srv.cookies[0])
}

func TestLoginPromptsForPassword(t *testing.T) {
	srv := newFakeServer(t)
	dir := t.TempDir()

	res := run(t, srv.URL, dir, "ada\nwrong\n", nil, "login")
	require.Error(t, res.err)
	assert.Contains(t, res.errOut, "Login Error")
	assert.Contains(t, res.errOut, "Unrecognized credentials. Please try again.")
}

func TestCommandsNeedLogin(t *testing.T) {
	srv := newFakeServer(t)
	res := run(t, srv.URL, t.TempDir(), "", nil, "project", "list")
	assert.ErrorIs(t, res.err, errNotLoggedIn)
}

func TestDeleteAsksFirst(t *testing.T) {
	srv := newFakeServer(t)
	dir := t.TempDir()
	res := run(t, srv.URL, dir, "", map[string]string{"CATALOG_PASSWORD": "s3cret"}, "login", "-u", "ada")
	require.NoError(t, res.err)

	res = run(t, srv.URL, dir, "n\n", nil, "project", "delete", "5")
	require.NoError(t, res.err)
	assert.Contains(t, res.errOut, "The record will be gone forever. Do you wish to proceed?")
	assert.Contains(t, res.out, "Nothing was deleted.")

	res = run(t, srv.URL, dir, "", nil, "project", "delete", "5", "--yes")
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "You have deleted a Project record.")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"csrf"}, srv.deletes)
}

func TestParseLibraryArg(t *testing.T) {
	id, version, err := parseLibraryArg("4:1.2.3")
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
	assert.Equal(t, "1.2.3", version)

	_, _, err = parseLibraryArg("4")
	assert.Error(t, err)
	_, _, err = parseLibraryArg("x:1")
	assert.Error(t, err)
}
