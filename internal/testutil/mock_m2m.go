// Package testutil provides testing utilities for the harvester.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines one mock catalog API response. When ErrorCode is
// set the response carries an API-level error envelope; otherwise Data is
// marshalled into the envelope's data field.
type MockResponse struct {
	StatusCode int
	Data       any
	ErrorCode  string
	ErrorMsg   string
	Headers    map[string]string
	Delay      time.Duration
}

// MockM2M is a configurable mock catalog API server. Every response is
// wrapped in the {errorCode, errorMessage, data} envelope unless a raw
// handler is installed for the path.
type MockM2M struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	queues   map[string][]MockResponse

	// Tracking
	requests      map[string]int
	lastAuthToken string
	lastBody      []byte
}

// NewMockM2M creates a mock catalog server. By default it answers login
// with a fixed token and logout with an empty envelope.
func NewMockM2M() *MockM2M {
	mock := &MockM2M{
		handlers: make(map[string]http.HandlerFunc),
		queues:   make(map[string][]MockResponse),
		requests: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.dispatch))

	mock.SetResponse("/login", MockResponse{Data: "mock-token"})
	mock.SetResponse("/logout", MockResponse{})
	return mock
}

func (m *MockM2M) dispatch(w http.ResponseWriter, r *http.Request) {
	body, _ := readBody(r)

	m.mu.Lock()
	m.requests[r.URL.Path]++
	m.lastAuthToken = r.Header.Get("X-Auth-Token")
	m.lastBody = body
	handler, hasHandler := m.handlers[r.URL.Path]
	var resp MockResponse
	hasQueue := false
	if queue := m.queues[r.URL.Path]; len(queue) > 0 {
		resp = queue[0]
		hasQueue = true
		// The last queued response repeats forever.
		if len(queue) > 1 {
			m.queues[r.URL.Path] = queue[1:]
		}
	}
	m.mu.Unlock()

	if hasHandler {
		handler(w, r)
		return
	}
	if !hasQueue {
		WriteEnvelopeError(w, http.StatusNotFound, "NOT_FOUND", "no mock for "+r.URL.Path)
		return
	}

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if resp.ErrorCode != "" {
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		WriteEnvelopeError(w, status, resp.ErrorCode, resp.ErrorMsg)
		return
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	WriteEnvelope(w, status, resp.Data)
}

// URL returns the mock server base URL with a trailing slash, ready to
// use as a client service URL.
func (m *MockM2M) URL() string {
	return m.server.URL + "/"
}

// Close shuts down the mock server.
func (m *MockM2M) Close() {
	m.server.Close()
}

// SetHandler installs a raw handler for a path, bypassing the envelope.
func (m *MockM2M) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a single response for a path. It replaces any
// previously queued responses.
func (m *MockM2M) SetResponse(path string, resp MockResponse) {
	m.SetSequence(path, resp)
}

// SetSequence configures a series of responses for a path. Responses are
// served in order; the last one repeats once the series is exhausted.
func (m *MockM2M) SetSequence(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[path] = append([]MockResponse(nil), responses...)
}

// RequestCount returns the number of requests served for a path.
func (m *MockM2M) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[path]
}

// LastAuthToken returns the X-Auth-Token header of the latest request.
func (m *MockM2M) LastAuthToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAuthToken
}

// LastBody returns the body of the latest request.
func (m *MockM2M) LastBody() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBody
}

// WriteEnvelope writes a successful catalog envelope with the given data.
func WriteEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"errorCode":    nil,
		"errorMessage": nil,
		"data":         data,
	})
}

// WriteEnvelopeError writes a catalog envelope carrying an API error.
func WriteEnvelopeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"errorCode":    code,
		"errorMessage": msg,
		"data":         nil,
	})
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
