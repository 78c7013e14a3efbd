package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	clientDir       = ".catalog"
	clientFile      = "config.yaml"
	sessionFile     = "session.yaml"
	DefaultBaseURL  = "http://localhost:8080"
	DefaultTimeout  = 30 * time.Second
	sessionFileMode = 0o600
)

// ClientConfig is the catalogctl configuration file.
type ClientConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Username string        `yaml:"username"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Session is what catalogctl remembers between invocations.
type Session struct {
	BaseURL            string          `yaml:"base_url"`
	Username           string          `yaml:"username"`
	IsStaff            bool            `yaml:"is_staff"`
	ProjectPermissions bool            `yaml:"project_permissions"`
	Cookies            []SessionCookie `yaml:"cookies"`
}

// SessionCookie is a persisted HTTP cookie.
type SessionCookie struct {
	Name    string    `yaml:"name"`
	Value   string    `yaml:"value"`
	Path    string    `yaml:"path,omitempty"`
	Expires time.Time `yaml:"expires,omitempty"`
}

// Dir returns the per-user catalogctl directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, clientDir), nil
}

// DefaultConfigPath returns ~/.catalog/config.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, clientFile), nil
}

// DefaultSessionPath returns ~/.catalog/session.yaml.
func DefaultSessionPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sessionFile), nil
}

// LoadClient reads the CLI config. A missing file yields the defaults.
func LoadClient(path string) (ClientConfig, error) {
	cfg := ClientConfig{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg, nil
}

// LoadSession reads the session file. A missing file yields an empty session.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Session{}, nil
		}
		return nil, err
	}
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &s, nil
}

// SaveSession writes the session file with owner-only permissions.
func SaveSession(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, sessionFileMode)
}

// HTTPCookies converts the persisted cookies, dropping expired ones.
func (s *Session) HTTPCookies(now time.Time) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range s.Cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: c.Expires})
	}
	return out
}

// SetCookies replaces the persisted cookies.
func (s *Session) SetCookies(cookies []*http.Cookie) {
	s.Cookies = s.Cookies[:0]
	for _, c := range cookies {
		s.Cookies = append(s.Cookies, SessionCookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: c.Expires})
	}
}

// Clear forgets the user and cookies but keeps the server URL.
func (s *Session) Clear() {
	*s = Session{BaseURL: s.BaseURL}
}
