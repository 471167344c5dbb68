package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeTarget mimics the chat endpoint: NDJSON body with a token frame first.
type fakeTarget struct {
	calls     int
	lastToken string
	lastFP    string
	failNext  bool
	reject    bool
}

func (f *fakeTarget) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
		return
	}

	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	f.calls++
	f.lastToken = payload.Token
	f.lastFP = payload.BrowserFingerprint

	if f.reject {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"Invalid or expired token"}`)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "{\"token\":\"tok-%d.sig\"}\n", f.calls)
	if f.failNext {
		fmt.Fprint(w, "{\"error\":\"upstream error: boom\"}\n")
		return
	}
	fmt.Fprint(w, "{\"content\":\"Hello\"}\n")
	fmt.Fprint(w, "{\"content\":\" world\"}\n")
}

func TestClientAssemblesAnswer(t *testing.T) {
	target := &fakeTarget{}
	srv := httptest.NewServer(target)
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}

	answer, err := c.Ask(context.Background(), "hi")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer != "Hello world" {
		t.Fatalf("answer: %q", answer)
	}
	if target.lastFP == "" {
		t.Fatal("expected a fingerprint on the request")
	}
}

func TestClientChainsTokens(t *testing.T) {
	target := &fakeTarget{}
	srv := httptest.NewServer(target)
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Ask(context.Background(), "first"); err != nil {
		t.Fatalf("first ask: %v", err)
	}
	if target.lastToken != "" {
		t.Fatalf("first request must carry no token, got %q", target.lastToken)
	}

	if _, err := c.Ask(context.Background(), "second"); err != nil {
		t.Fatalf("second ask: %v", err)
	}
	if target.lastToken != "tok-1.sig" {
		t.Fatalf("expected first response token on second request, got %q", target.lastToken)
	}
}

func TestClientKeepsTokenOnStreamError(t *testing.T) {
	target := &fakeTarget{failNext: true}
	srv := httptest.NewServer(target)
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Ask(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "upstream error") {
		t.Fatalf("expected stream error, got %v", err)
	}

	target.failNext = false
	if _, err := c.Ask(context.Background(), "again"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if target.lastToken != "tok-1.sig" {
		t.Fatalf("token from the failed stream must still be chained, got %q", target.lastToken)
	}
}

func TestClientDropsTokenOnRejection(t *testing.T) {
	target := &fakeTarget{}
	srv := httptest.NewServer(target)
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Ask(context.Background(), "first"); err != nil {
		t.Fatalf("first ask: %v", err)
	}

	target.reject = true
	if _, err := c.Ask(context.Background(), "second"); err == nil {
		t.Fatal("expected rejection error")
	}

	target.reject = false
	if _, err := c.Ask(context.Background(), "third"); err != nil {
		t.Fatalf("third ask: %v", err)
	}
	if target.lastToken != "" {
		t.Fatalf("rejected token must not be re-sent, got %q", target.lastToken)
	}
}

func TestClientHealthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.Health(context.Background()); err == nil {
		t.Fatal("expected health check failure")
	}
}
