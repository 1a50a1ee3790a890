package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Recorded is one request seen by [XSeries].
type Recorded struct {
	Method         string
	Path           string
	Query          string
	Body           []byte
	IdempotencyKey string
}

// Hook intercepts a request before the default handlers. It returns true when it wrote a response.
type Hook func(w http.ResponseWriter, r *http.Request, body []byte) bool

type replay struct {
	status int
	body   []byte
}

// XSeries is an in-memory twin of the retail API: paged collections, creates with name/sku
// conflicts, product inventory and the 2.1 product update.
type XSeries struct {
	*httptest.Server

	Token    string
	Retailer map[string]any

	mu          sync.Mutex
	collections map[string][]map[string]any
	inventory   map[string][]map[string]any
	updates     map[string][]byte
	requests    []Recorded
	hooks       []Hook
	replays     map[string]replay
	seq         int
}

// NewXSeries starts a twin that accepts token and shuts down with t.
func NewXSeries(t *testing.T, token string) *XSeries {
	t.Helper()
	x := &XSeries{
		Token:       token,
		Retailer:    map[string]any{"name": "Twin Retail", "tax_exclusive": false, "currency": "USD"},
		collections: make(map[string][]map[string]any),
		inventory:   make(map[string][]map[string]any),
		updates:     make(map[string][]byte),
		replays:     make(map[string]replay),
	}
	x.Server = httptest.NewServer(http.HandlerFunc(x.serve))
	t.Cleanup(x.Close)
	return x
}

// Seed appends records to a collection. Records without an id get one.
func (x *XSeries) Seed(collection string, records ...map[string]any) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, r := range records {
		if _, ok := r["id"]; !ok {
			r["id"] = x.nextID(collection)
		}
		x.collections[collection] = append(x.collections[collection], r)
	}
}

// SeedInventory sets the inventory lines of one product.
func (x *XSeries) SeedInventory(productID string, lines ...map[string]any) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.inventory[productID] = append(x.inventory[productID], lines...)
}

// Hook registers h ahead of the default handlers.
func (x *XSeries) Hook(h Hook) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.hooks = append(x.hooks, h)
}

// Records returns a copy of a collection.
func (x *XSeries) Records(collection string) []map[string]any {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]map[string]any(nil), x.collections[collection]...)
}

// InventoryUpdate returns the last 2.1 update body sent for productID.
func (x *XSeries) InventoryUpdate(productID string) ([]byte, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	b, ok := x.updates[productID]
	return b, ok
}

// Requests returns every request seen so far.
func (x *XSeries) Requests() []Recorded {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]Recorded(nil), x.requests...)
}

// Count returns how many requests matched method and path prefix.
func (x *XSeries) Count(method, pathPrefix string) int {
	n := 0
	for _, r := range x.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			n++
		}
	}
	return n
}

func (x *XSeries) nextID(collection string) string {
	x.seq++
	return fmt.Sprintf("%s-%d", strings.TrimSuffix(collection, "s"), x.seq)
}

func (x *XSeries) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	x.mu.Lock()
	x.requests = append(x.requests, Recorded{
		Method:         r.Method,
		Path:           r.URL.Path,
		Query:          r.URL.RawQuery,
		Body:           body,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	hooks := append([]Hook(nil), x.hooks...)
	x.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+x.Token {
		WriteJSON(w, http.StatusUnauthorized, `{"error":"invalid token"}`)
		return
	}

	for _, h := range hooks {
		if h(w, r, body) {
			return
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if key := r.Header.Get("Idempotency-Key"); key != "" && r.Method == http.MethodPost {
		if rp, ok := x.replays[key]; ok {
			w.Header().Set("Idempotent-Replayed", "true")
			WriteJSON(w, rp.status, string(rp.body))
			return
		}
		rec := &bodyRecorder{ResponseWriter: w, status: http.StatusOK}
		x.route(rec, r, body)
		x.replays[key] = replay{status: rec.status, body: rec.buf.Bytes()}
		return
	}
	x.route(w, r, body)
}

func (x *XSeries) route(w http.ResponseWriter, r *http.Request, body []byte) {
	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == "/api/2.0/retailer":
		data, _ := json.Marshal(map[string]any{"data": x.Retailer})
		WriteJSON(w, http.StatusOK, string(data))

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/api/2.0/products/") && strings.HasSuffix(path, "/inventory"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/2.0/products/"), "/inventory")
		x.page(w, r, x.inventory[id])

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/api/2.0/"):
		x.page(w, r, x.collections[strings.TrimPrefix(path, "/api/2.0/")])

	case r.Method == http.MethodPost && strings.HasPrefix(path, "/api/2.0/"):
		x.create(w, strings.TrimPrefix(path, "/api/2.0/"), body)

	case r.Method == http.MethodPut && strings.HasPrefix(path, "/api/2.1/products/"):
		id := strings.TrimPrefix(path, "/api/2.1/products/")
		x.updates[id] = body
		WriteJSON(w, http.StatusOK, `{"data":{"id":"`+id+`"}}`)

	default:
		WriteJSON(w, http.StatusNotFound, `{"error":"not found"}`)
	}
}

// page serves records using their position (1-based) as the version cursor.
func (x *XSeries) page(w http.ResponseWriter, r *http.Request, records []map[string]any) {
	size, err := strconv.Atoi(r.URL.Query().Get("page_size"))
	if err != nil || size <= 0 {
		size = 100
	}
	after, _ := strconv.Atoi(r.URL.Query().Get("after"))

	data := []map[string]any{}
	last := 0
	for i := after; i < len(records) && len(data) < size; i++ {
		data = append(data, records[i])
		last = i + 1
	}

	out, _ := json.Marshal(map[string]any{
		"data":    data,
		"version": map[string]int{"min": after + 1, "max": last},
	})
	WriteJSON(w, http.StatusOK, string(out))
}

func (x *XSeries) create(w http.ResponseWriter, collection string, body []byte) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		WriteJSON(w, http.StatusBadRequest, `{"error":"invalid json"}`)
		return
	}

	unique := "name"
	if collection == "products" || collection == "customers" {
		unique = ""
		if collection == "products" {
			unique = "sku"
		}
	}
	if unique != "" {
		if v, _ := payload[unique].(string); v != "" {
			for _, rec := range x.collections[collection] {
				if rec[unique] == v {
					WriteJSON(w, http.StatusConflict, `{"error":"`+unique+` already exists"}`)
					return
				}
			}
		}
	}

	id := x.nextID(collection)
	payload["id"] = id
	x.collections[collection] = append(x.collections[collection], payload)

	if collection == "products" {
		WriteJSON(w, http.StatusOK, `{"data":["`+id+`"]}`)
		return
	}
	out, _ := json.Marshal(map[string]any{"data": payload})
	WriteJSON(w, http.StatusOK, string(out))
}

type bodyRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *bodyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// WriteJSON writes body with status and a JSON content type.
func WriteJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
