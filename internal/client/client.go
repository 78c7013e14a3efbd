// Package client is a typed HTTP client for the catalog REST API.
//
// The client keeps the session and CSRF cookies set by Login in a cookie jar
// and pairs the csrftoken cookie with the X-CSRFToken header on every
// state-changing request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"library-catalog/internal/auth"
	"library-catalog/internal/models"
	"library-catalog/pkg/importer"
)

// Client talks to one catalog server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	base   *url.URL
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger logs each request at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client. A cookie jar is added
// when hc has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base_url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		BaseURL:    base.String(),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		base:       base,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.HTTPClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		c.HTTPClient.Jar = jar
	}
	return c, nil
}

// Cookies returns the cookies the jar holds for the server.
func (c *Client) Cookies() []*http.Cookie {
	return c.HTTPClient.Jar.Cookies(c.base)
}

// SetCookies restores previously saved cookies.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.HTTPClient.Jar.SetCookies(c.base, cookies)
}

func (c *Client) csrfToken() string {
	for _, ck := range c.Cookies() {
		if ck.Name == auth.CSRFCookie {
			return ck.Value
		}
	}
	return ""
}

// Login starts a session. Credentials travel as HTTP Basic and in the body.
func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	var out models.User
	body := models.LoginRequest{Username: username, Password: password}
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login/", body, &out, func(r *http.Request) {
		r.SetBasicAuth(username, password)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the session and drops the session cookie.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout/", nil, nil)
}

// Profile reports the logged in user and their flags.
func (c *Client) Profile(ctx context.Context) (*models.Profile, error) {
	var out models.Profile
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/profile/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Filter selects libraries by their status today.
type Filter int

const (
	All Filter = iota
	Active
	Inactive
)

func (f Filter) query() string {
	switch f {
	case Active:
		return "?active=true"
	case Inactive:
		return "?active=false"
	default:
		return ""
	}
}

// ListLibraries calls GET /api/libraries/.
func (c *Client) ListLibraries(ctx context.Context, f Filter) ([]models.Library, error) {
	var out []models.Library
	if err := c.doJSON(ctx, http.MethodGet, "/api/libraries/"+f.query(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateLibrary calls POST /api/libraries/.
func (c *Client) CreateLibrary(ctx context.Context, in models.LibraryInput) (*models.Library, error) {
	var out models.Library
	if err := c.doJSON(ctx, http.MethodPost, "/api/libraries/", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateLibrary sends a partial update. changes must carry "id".
func (c *Client) UpdateLibrary(ctx context.Context, changes map[string]any) (*models.Library, error) {
	var out models.Library
	if err := c.doJSON(ctx, http.MethodPut, "/api/libraries/edit/", changes, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProjects calls GET /api/projects/.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := c.doJSON(ctx, http.MethodGet, "/api/projects/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProject calls POST /api/projects/.
func (c *Client) CreateProject(ctx context.Context, in models.ProjectInput) (*models.Project, error) {
	var out models.Project
	if err := c.doJSON(ctx, http.MethodPost, "/api/projects/", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProject sends a partial update with optional "libraries" entries.
// changes must carry "id".
func (c *Client) UpdateProject(ctx context.Context, changes map[string]any) error {
	return c.doJSON(ctx, http.MethodPut, "/api/projects/edit/", changes, nil)
}

// DeleteProject calls DELETE /api/projects/ with the id in the body.
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/projects/", map[string]int64{"id": id}, nil)
}

// ListProjectLibraries lists relations, for one project when projectID is positive.
func (c *Client) ListProjectLibraries(ctx context.Context, projectID int64) ([]models.ProjectLibrary, error) {
	path := "/api/project_libraries/"
	if projectID > 0 {
		path += "?project_id=" + strconv.FormatInt(projectID, 10)
	}
	var out []models.ProjectLibrary
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ImportOptions are the form values of a spreadsheet upload.
type ImportOptions struct {
	DryRun    bool
	MaxErrors int
}

// ImportExcel uploads a workbook to POST /api/imports/excel/. A failed import
// returns the partial summary together with an *APIError.
func (c *Client) ImportExcel(ctx context.Context, filename string, r io.Reader, opts ImportOptions) (*importer.ImportSummary, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	_ = mw.WriteField("dry_run", strconv.FormatBool(opts.DryRun))
	if opts.MaxErrors > 0 {
		_ = mw.WriteField("max_errors", strconv.Itoa(opts.MaxErrors))
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/imports/excel/", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		Data *importer.ImportSummary `json:"data"`
	}
	respBody, err := c.send(req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && json.Unmarshal(apiErr.Body, &out) == nil {
			return out.Data, err
		}
		return nil, err
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Data == nil {
		return nil, errors.New("decode response: missing import summary")
	}
	return out.Data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, edit ...func(*http.Request)) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range edit {
		fn(req)
	}

	respBody, err := c.send(req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if !auth.IsSafeMethod(method) {
		if token := c.csrfToken(); token != "" {
			req.Header.Set(auth.CSRFHeader, token)
		}
	}
	return req, nil
}

// send performs req and returns the body of a 2xx response, or an *APIError.
func (c *Client) send(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("api request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode >= 300 {
		return nil, newAPIError(resp, respBody)
	}
	return respBody, nil
}
