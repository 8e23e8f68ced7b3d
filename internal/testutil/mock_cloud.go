// Package testutil provides testing utilities for the API cache.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// TokenPath is the path the mock serves IAM token exchanges on.
const TokenPath = "/identity/token"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCloud is a configurable stand-in for IAM and the resource APIs.
type MockCloud struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	PathCounts        map[string]int
	LastRequestHeader http.Header
	LastForm          map[string]string
}

// NewMockCloud creates a new mock server. Unconfigured paths answer 404.
func NewMockCloud() *MockCloud {
	mock := &MockCloud{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		PathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		if r.Method == http.MethodPost && r.ParseForm() == nil {
			mock.LastForm = make(map[string]string, len(r.PostForm))
			for k := range r.PostForm {
				mock.LastForm[k] = r.PostForm.Get(k)
			}
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCloud) URL() string {
	return m.server.URL
}

// TokenURL returns the full URL of the mock token endpoint.
func (m *MockCloud) TokenURL() string {
	return m.server.URL + TokenPath
}

// Close shuts down the mock server.
func (m *MockCloud) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCloud) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PathCounts = make(map[string]int)
	m.LastRequestHeader = nil
	m.LastForm = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCloud) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockCloud) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetToken makes the token endpoint hand out accessToken.
func (m *MockCloud) SetToken(accessToken string) {
	m.SetResponse(TokenPath, NewJSONResponse(fmt.Sprintf(
		`{"access_token":%q,"refresh_token":"not_supported","token_type":"Bearer","expires_in":3600,"expiration":1760000000,"scope":"ibm openid"}`,
		accessToken)))
}

// SetPages serves bodies as a chain of pages on path: page N links to
// page N+1 via a Link rel="next" header using a page query parameter.
func (m *MockCloud) SetPages(path string, bodies ...string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			fmt.Sscanf(p, "%d", &page)
		}
		if page < 1 || page > len(bodies) {
			http.NotFound(w, r)
			return
		}
		if page < len(bodies) {
			w.Header().Set("Link", fmt.Sprintf(`<%s?page=%d>; rel="next"`, path, page+1))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(bodies[page-1]))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCloud) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to path.
func (m *MockCloud) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockCloud) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// GetLastForm returns the form fields of the most recent POST.
func (m *MockCloud) GetLastForm() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastForm
}

// NewJSONResponse creates a standard 200 OK JSON response.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewIAMErrorResponse creates the 400 IAM answers for an unknown API key.
func NewIAMErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"errorCode":"BXNIM0415E","errorMessage":"Provided API key could not be found.","context":{"requestId":"test"}}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
