package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Detail     string
	Code       string
	Fields     map[string]string
	Body       []byte
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	e := &APIError{StatusCode: resp.StatusCode, Body: body}
	var parsed struct {
		Detail string            `json:"detail"`
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		e.Detail, e.Code, e.Fields = parsed.Detail, parsed.Code, parsed.Fields
	}
	if e.Detail == "" {
		e.Detail = strings.TrimSpace(string(body))
	}
	if e.Detail == "" {
		e.Detail = resp.Status
	}
	return e
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %d (%s): %s", e.StatusCode, e.Code, e.Detail)
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Detail)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
