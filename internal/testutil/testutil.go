// Package testutil provides testing utilities and helpers for the
// integration-oauth library.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockTime provides a controllable time source for deterministic testing.
type MockTime struct {
	now time.Time
}

// NewMockTime creates a new mock time provider.
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time.
func (m *MockTime) Now() time.Time {
	return m.now
}

// Advance moves the mock time forward by the given duration.
func (m *MockTime) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// TokenEndpoint is a fake provider token endpoint. It records every request
// it receives and answers with a fixed status and body.
type TokenEndpoint struct {
	Server *httptest.Server

	// Status and Body configure the response. ContentType defaults to
	// application/json.
	Status      int
	Body        string
	ContentType string

	mu                sync.Mutex
	calls             int
	lastForm          url.Values
	lastAuthorization string
	lastContentType   string
}

// NewTokenEndpoint starts a fake token endpoint answering with the given
// status and body. Callers must Close it.
func NewTokenEndpoint(status int, body string) *TokenEndpoint {
	e := &TokenEndpoint{Status: status, Body: body}
	e.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()

		e.mu.Lock()
		e.calls++
		e.lastForm = r.PostForm
		e.lastAuthorization = r.Header.Get("Authorization")
		e.lastContentType = r.Header.Get("Content-Type")
		status, body, contentType := e.Status, e.Body, e.ContentType
		e.mu.Unlock()

		if contentType == "" {
			contentType = "application/json"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	return e
}

// URL returns the endpoint URL.
func (e *TokenEndpoint) URL() string {
	return e.Server.URL
}

// Close shuts the fake endpoint down.
func (e *TokenEndpoint) Close() {
	e.Server.Close()
}

// Respond changes the response for subsequent requests.
func (e *TokenEndpoint) Respond(status int, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Status = status
	e.Body = body
}

// Calls returns how many requests the endpoint has received.
func (e *TokenEndpoint) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// LastForm returns the form body of the most recent request.
func (e *TokenEndpoint) LastForm() url.Values {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastForm
}

// LastAuthorization returns the Authorization header of the most recent
// request.
func (e *TokenEndpoint) LastAuthorization() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAuthorization
}

// LastContentType returns the Content-Type header of the most recent request.
func (e *TokenEndpoint) LastContentType() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastContentType
}

// LogRecorder is a slog.Handler collecting records for assertions.
type LogRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

// NewLogger returns a slog.Logger writing into the returned recorder.
func NewLogger() (*slog.Logger, *LogRecorder) {
	rec := &LogRecorder{}
	return slog.New(rec), rec
}

// Enabled implements slog.Handler.
func (r *LogRecorder) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler.
func (r *LogRecorder) Handle(_ context.Context, record slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

// WithAttrs implements slog.Handler.
func (r *LogRecorder) WithAttrs([]slog.Attr) slog.Handler { return r }

// WithGroup implements slog.Handler.
func (r *LogRecorder) WithGroup(string) slog.Handler { return r }

// Records returns a snapshot of the collected records.
func (r *LogRecorder) Records() []slog.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]slog.Record, len(r.records))
	copy(out, r.records)
	return out
}

// MessagesAt returns the messages of records at the given level.
func (r *LogRecorder) MessagesAt(level slog.Level) []string {
	var out []string
	for _, rec := range r.Records() {
		if rec.Level == level {
			out = append(out, rec.Message)
		}
	}
	return out
}

// GenerateRandomString generates a random base64-encoded string.
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

// AssertEqual fails the test if got != want.
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertStringContains fails the test if s does not contain substr.
func AssertStringContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("string %q does not contain %q", s, substr)
	}
}

// AssertStringNotContains fails the test if s contains substr.
func AssertStringNotContains(t *testing.T, s, substr string) {
	t.Helper()
	if strings.Contains(s, substr) {
		t.Errorf("string %q must not contain %q", s, substr)
	}
}

// AssertTrue fails the test if condition is false.
func AssertTrue(t *testing.T, condition bool, message string) {
	t.Helper()
	if !condition {
		t.Errorf("assertion failed: %s", message)
	}
}
