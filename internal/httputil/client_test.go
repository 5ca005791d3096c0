package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(ClientConfig{})
	if client.maxRetries != defaultMaxRetries {
		t.Errorf("maxRetries = %d, want %d", client.maxRetries, defaultMaxRetries)
	}
	if client.httpClient.Timeout != defaultTimeout {
		t.Errorf("timeout = %s, want %s", client.httpClient.Timeout, defaultTimeout)
	}
	if NewClient(ClientConfig{MaxRetries: -1}).maxRetries != 0 {
		t.Error("negative MaxRetries should disable retries")
	}
}

func TestGetJSONSetsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{HTTPClient: srv.Client(), UserAgent: "test-agent"})
	body, err := client.GetJSON(context.Background(), srv.URL, 1024)
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{HTTPClient: srv.Client(), Backoff: time.Millisecond})
	if _, err := client.GetJSON(context.Background(), srv.URL, 1024); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{HTTPClient: srv.Client(), Backoff: time.Millisecond})
	_, err := client.GetJSON(context.Background(), srv.URL, 1024)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if !strings.Contains(statusErr.Body, "missing") {
		t.Errorf("body = %q", statusErr.Body)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestGetJSONRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{HTTPClient: srv.Client()})
	if _, err := client.GetJSON(context.Background(), srv.URL, 16); err == nil {
		t.Fatal("expected size error")
	}
}

func TestGetJSONStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := NewClient(ClientConfig{HTTPClient: srv.Client(), Backoff: time.Hour})
	if _, err := client.GetJSON(ctx, srv.URL, 1024); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestReadAllWithLimit(t *testing.T) {
	body, truncated, err := ReadAllWithLimit(strings.NewReader("abcdef"), 4)
	if err != nil || !truncated || string(body) != "abcd" {
		t.Fatalf("got %q truncated=%v err=%v", body, truncated, err)
	}
	body, truncated, err = ReadAllWithLimit(strings.NewReader("ab"), 4)
	if err != nil || truncated || string(body) != "ab" {
		t.Fatalf("got %q truncated=%v err=%v", body, truncated, err)
	}
}
