package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIVersion selects an endpoint family. The API keeps several versions alive at once
// and some operations only exist in one of them.
type APIVersion string

const (
	V20 APIVersion = "2.0" // collections, creates, retailer
	V21 APIVersion = "2.1" // product updates (inventory, prices)
	V09 APIVersion = "0.9" // register_sales
)

// prefix returns the URL path prefix for the version.
func (v APIVersion) prefix() string {
	switch v {
	case V09:
		return "/api"
	case "":
		return "/api/" + string(V20)
	default:
		return "/api/" + string(v)
	}
}

// RequestPlan is an immutable description of one call. Retries re-send the same plan.
type RequestPlan struct {
	Method         string
	Path           string // relative to the version prefix, may carry a query string
	Version        APIVersion
	Body           any
	IdempotencyKey string
}

// Get plans a GET on the 2.0 API.
func Get(path string) RequestPlan {
	return RequestPlan{Method: http.MethodGet, Path: path, Version: V20}
}

// Post plans a POST on the 2.0 API.
func Post(path string, body any, idempotencyKey string) RequestPlan {
	return RequestPlan{Method: http.MethodPost, Path: path, Version: V20, Body: body, IdempotencyKey: idempotencyKey}
}

// Put plans a PUT on the given version.
func Put(version APIVersion, path string, body any) RequestPlan {
	return RequestPlan{Method: http.MethodPut, Path: path, Version: version, Body: body}
}

// URL joins base with the version prefix and path.
func (p RequestPlan) URL(base string) string {
	path := p.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(base, "/") + p.Version.prefix() + path
}

// encode renders the body once so every attempt sends the same bytes.
func (p RequestPlan) encode() ([]byte, error) {
	switch b := p.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.TrimSpace(data), nil
	}
}

func (p RequestPlan) String() string {
	return p.Method + " " + p.Version.prefix() + p.Path
}
