// Package testutil provides testing utilities for the catalog client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines a canned response for one page.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockCatalog is a configurable mock catalog server serving one paginated
// listing whose ordering can change between requests.
type MockCatalog struct {
	server *httptest.Server

	mu        sync.RWMutex
	items     []string
	pageSize  int
	delay     time.Duration
	overrides map[int]MockResponse

	// Tracking
	RequestCount      int
	PageRequests      map[int]int
	LastRequestHeader http.Header
	LastVariables     map[string]any
}

// NewMockCatalog creates a mock catalog with the given page size and items.
func NewMockCatalog(pageSize int, items ...string) *MockCatalog {
	if pageSize <= 0 {
		pageSize = 2
	}
	mock := &MockCatalog{
		items:        append([]string(nil), items...),
		pageSize:     pageSize,
		overrides:    make(map[int]MockResponse),
		PageRequests: make(map[int]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PageRequests = make(map[int]int)
	m.LastRequestHeader = nil
	m.LastVariables = nil
}

// SetItems replaces the upstream ordering.
func (m *MockCatalog) SetItems(items ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]string(nil), items...)
}

// SetDelay delays every response. Cancelled requests return early.
func (m *MockCatalog) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetPageResponse overrides the response for one page.
func (m *MockCatalog) SetPageResponse(page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[page] = resp
}

// ClearPageResponse removes a page override.
func (m *MockCatalog) ClearPageResponse(page int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, page)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPageRequests returns how often a page was requested.
func (m *MockCatalog) GetPageRequests(page int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PageRequests[page]
}

// GetLastRequestHeader returns the headers of the latest request.
func (m *MockCatalog) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

type mockRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

type mockManga struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (m *MockCatalog) handle(w http.ResponseWriter, r *http.Request) {
	var req mockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "bad request"}`, http.StatusBadRequest)
		return
	}
	page := pageOf(req.Variables)

	m.mu.Lock()
	m.RequestCount++
	m.PageRequests[page]++
	m.LastRequestHeader = r.Header.Clone()
	m.LastVariables = req.Variables
	delay := m.delay
	override, hasOverride := m.overrides[page]
	items := append([]string(nil), m.items...)
	pageSize := m.pageSize
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if hasOverride {
		for key, value := range override.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(override.StatusCode)
		if override.Body != "" {
			w.Write([]byte(override.Body))
		}
		return
	}

	start := (page - 1) * pageSize
	mangas := []mockManga{}
	for i := start; i >= 0 && i < len(items) && i < start+pageSize; i++ {
		mangas = append(mangas, mockManga{ID: items[i], Title: "Title " + items[i]})
	}

	payload := map[string]any{
		"data": map[string]any{
			"fetchSourceManga": map[string]any{
				"hasNextPage": start+pageSize < len(items),
				"mangas":      mangas,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(payload)
}

// pageOf reads the page from {"input": {"page": N}} or {"page": N}.
func pageOf(vars map[string]any) int {
	if input, ok := vars["input"].(map[string]any); ok {
		vars = input
	}
	if page, ok := vars["page"].(float64); ok {
		return int(page)
	}
	return 1
}

// NewUpstreamErrorResponse creates an operation-level error response.
func NewUpstreamErrorResponse(message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data": null, "errors": [{"message": "` + message + `"}]}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
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
