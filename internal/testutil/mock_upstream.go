// Package testutil provides a scriptable stand-in for the upstream product API.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// SearchPath is the path the mock serves; it matches the production default.
const SearchPath = "/api/product/shared/product-search-popular"

// MockResponse defines one scripted answer.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is a configurable mock upstream server for testing.
// Responses are scripted per nvMid; once a script runs out, its last response
// repeats. Unscripted identifiers get a healthy product.
type MockUpstream struct {
	server *httptest.Server

	mu          sync.Mutex
	scripts     map[string][]MockResponse
	attempts    map[string]int
	inflight    int
	maxInflight int
	lastHeader  http.Header
	lastQuery   map[string]string
}

// NewMockUpstream starts a new mock server.
func NewMockUpstream() *MockUpstream {
	m := &MockUpstream{
		scripts:  make(map[string][]MockResponse),
		attempts: make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the mock server base URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears scripts and counters.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = make(map[string][]MockResponse)
	m.attempts = make(map[string]int)
	m.maxInflight = 0
	m.lastHeader = nil
	m.lastQuery = nil
}

// Script sets the responses returned for nvmid, in order.
func (m *MockUpstream) Script(nvmid string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[nvmid] = responses
}

// Attempts returns how many requests were made for nvmid.
func (m *MockUpstream) Attempts(nvmid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[nvmid]
}

// TotalAttempts returns the number of requests over all identifiers.
func (m *MockUpstream) TotalAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.attempts {
		total += n
	}
	return total
}

// MaxInflight returns the highest number of concurrently served requests.
func (m *MockUpstream) MaxInflight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInflight
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockUpstream) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

// LastQuery returns the query parameters of the most recent request.
func (m *MockUpstream) LastQuery() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

func (m *MockUpstream) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != SearchPath {
		http.NotFound(w, r)
		return
	}

	nvmid := r.URL.Query().Get("nvMid")

	m.mu.Lock()
	m.attempts[nvmid]++
	n := m.attempts[nvmid]
	m.inflight++
	if m.inflight > m.maxInflight {
		m.maxInflight = m.inflight
	}
	m.lastHeader = r.Header.Clone()
	m.lastQuery = map[string]string{
		"_action": r.URL.Query().Get("_action"),
		"nvMid":   nvmid,
	}
	resp := NewProductResponse(nvmid, "2024-01-02T03:04:05.000+09:00")
	if script := m.scripts[nvmid]; len(script) > 0 {
		resp = script[min(n, len(script))-1]
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
	}()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// NewProductResponse creates a 200 response carrying a product for nvmid.
func NewProductResponse(nvmid, openDate string) MockResponse {
	result := map[string]any{
		"nvMid":        nvmid,
		"productTitle": "product " + nvmid,
		"mallName":     "test mall",
		"salePrice":    12900,
	}
	if openDate != "" {
		result["openDate"] = openDate
	}
	body, _ := json.Marshal(map[string]any{"result": result})
	return MockResponse{StatusCode: http.StatusOK, Body: string(body)}
}

// NewStatusResponse creates a rejection with the given status.
func NewStatusResponse(status int) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       `{"error":"rejected"}`,
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>login required</html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}

// NewEmptyResultResponse creates a 200 response with an empty result object.
func NewEmptyResultResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: `{"result":{}}`}
}

// NewSlowResponse delays a healthy product response by d.
func NewSlowResponse(nvmid string, d time.Duration) MockResponse {
	resp := NewProductResponse(nvmid, "")
	resp.Delay = d
	return resp
}
