package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkorolev/sitegate/pkg/config"
)

func sseHandler(chunks []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func testClient(srvURL, persona string) *Client {
	return NewClient(config.UpstreamConfig{
		BaseURL:        srvURL,
		APIKey:         "sk-test",
		Model:          "gpt-4o-mini",
		TimeoutSeconds: 5,
		MaxTokens:      100,
		Temperature:    0.7,
	}, persona)
}

func TestOpenStreamsDeltas(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{"Hello", "", " world"}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	src, err := c.Open(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	var got []string
	for {
		text, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got = append(got, text)
	}
	// Empty deltas are skipped.
	if len(got) != 2 || got[0] != "Hello" || got[1] != " world" {
		t.Fatalf("unexpected deltas: %v", got)
	}
}

func TestWithPersona(t *testing.T) {
	c := testClient("http://unused", "I am the site persona.")

	msgs := c.withPersona([]Message{{Role: "user", Content: "hi"}})
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[0].Content != "I am the site persona." {
		t.Fatalf("expected persona system message first, got %+v", msgs)
	}

	// A caller-supplied system message wins.
	own := []Message{{Role: "system", Content: "custom"}, {Role: "user", Content: "hi"}}
	msgs = c.withPersona(own)
	if len(msgs) != 2 || msgs[0].Content != "custom" {
		t.Fatalf("expected caller system message to be kept, got %+v", msgs)
	}

	// Empty persona leaves messages untouched.
	c = testClient("http://unused", "")
	msgs = c.withPersona([]Message{{Role: "user", Content: "hi"}})
	if len(msgs) != 1 {
		t.Fatalf("expected no system message, got %+v", msgs)
	}
}
