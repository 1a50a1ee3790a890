package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/desertthunder/xsx/internal/shared"
)

// ErrorKind classifies a failed call by its status family.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindAuth
	KindNotFound
	KindConflict
	KindValidation
	KindRateLimit
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "permission"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "duplicate"
	case KindValidation:
		return "validation"
	case KindRateLimit:
		return "rate_limit"
	case KindServer:
		return "server"
	default:
		return "transport"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindAuth:
		return shared.ErrAuth
	case KindNotFound:
		return shared.ErrNotFound
	case KindConflict:
		return shared.ErrConflict
	case KindValidation:
		return shared.ErrValidation
	case KindRateLimit:
		return shared.ErrRateLimitExceeded
	case KindServer:
		return shared.ErrServer
	default:
		return shared.ErrTransport
	}
}

// APIError is a failed call. It matches the shared sentinel for its kind with [errors.Is].
//
// Body holds the response body (truncated); request headers are never kept.
type APIError struct {
	Kind     ErrorKind
	Status   int
	Method   string
	Path     string
	Body     string
	Message  string
	Attempts int
	Err      error // underlying network error for KindTransport
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", e.Method, e.Path, e.Kind.sentinel())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	} else if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	return b.String()
}

// Is matches the sentinel of e's kind. A transport failure caused by the request deadline also
// matches [shared.ErrTimeout].
func (e *APIError) Is(target error) bool {
	if target == shared.ErrTimeout {
		return e.Kind == KindTransport && errors.Is(e.Err, context.DeadlineExceeded)
	}
	return target == e.Kind.sentinel()
}

func (e *APIError) Unwrap() error { return e.Err }

// kindForStatus maps a non-2xx status to its kind. 429 is handled before this is reached.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

const maxErrorBody = 2048

func newStatusError(plan RequestPlan, status int, body []byte) *APIError {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return &APIError{
		Kind:    kindForStatus(status),
		Status:  status,
		Method:  plan.Method,
		Path:    plan.Version.prefix() + plan.Path,
		Body:    text,
		Message: errorMessage(body),
	}
}

// errorMessage extracts a readable message from an error body of the form
// {"error": "...", "details": [...] | {...}}. Fields ending in _id are internal and dropped.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string          `json:"error"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
		Fields  json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(truncate(string(body), 200))
	}

	msg := payload.Error
	if msg == "" {
		msg = payload.Message
	}

	details := payload.Details
	if len(details) == 0 {
		details = payload.Fields
	}

	var parts []string
	var list []any
	var fields map[string]any
	switch {
	case json.Unmarshal(details, &list) == nil:
		for _, d := range list {
			parts = append(parts, fmt.Sprint(d))
		}
	case json.Unmarshal(details, &fields) == nil:
		for k, v := range fields {
			if strings.HasSuffix(k, "_id") {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
		sort.Strings(parts)
	}

	if len(parts) > 0 {
		if msg != "" {
			return msg + ": " + strings.Join(parts, "; ")
		}
		return strings.Join(parts, "; ")
	}
	return msg
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Classify returns the reporting category of err: dependency, permission, not_found, duplicate,
// validation, rate_limit, server, transport, canceled or unknown. It only looks at structured kinds.
func Classify(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrUnresolvedDependency):
		return "dependency"
	case errors.As(err, &apiErr):
		return apiErr.Kind.String()
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Redact returns a copy of h safe to log.
func Redact(h http.Header) http.Header {
	out := h.Clone()
	for _, key := range []string{"Authorization", "Cookie", "Set-Cookie", "Proxy-Authorization"} {
		if out.Get(key) != "" {
			out.Set(key, "[redacted]")
		}
	}
	return out
}
