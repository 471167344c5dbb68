// Package relay turns an upstream completion stream into the proxy's own
// line-delimited JSON frame sequence. The provider-specific framing lives
// behind the Source interface so the relay can be driven by a scripted fake
// in tests.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/charmbracelet/log"
)

// Frame is one line of the streamed response body. Exactly one of the fields
// is set: a token frame (always first), a content frame per upstream
// increment, or a terminal error frame.
type Frame struct {
	Token   string `json:"token,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Source yields ordered text increments from the upstream completion.
// Next returns io.EOF when the upstream signals completion.
type Source interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Opener starts the upstream completion request. It is not called until the
// token frame has been written, so the client keeps its next credential even
// when the upstream is down.
type Opener func(ctx context.Context) (Source, error)

// Stream writes the frame sequence to w: token frame, zero or more content
// frames forwarded as they arrive, and at most one terminal error frame.
// Upstream failures never propagate to the transport layer; the token frame
// has already been flushed by then. A canceled ctx (client disconnect) stops
// the pull loop and releases the upstream connection.
func Stream(ctx context.Context, w io.Writer, tok string, open Opener) {
	enc := json.NewEncoder(w)
	flush := flusherFor(w)

	_ = enc.Encode(Frame{Token: tok})
	flush()

	src, err := open(ctx)
	if err != nil {
		log.Error("upstream open failed", "err", err)
		_ = enc.Encode(Frame{Error: "upstream error: " + err.Error()})
		flush()
		return
	}
	defer src.Close()

	for {
		if ctx.Err() != nil {
			return
		}
		text, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("upstream stream failed", "err", err)
			_ = enc.Encode(Frame{Error: "upstream error: " + err.Error()})
			flush()
			return
		}
		if text == "" {
			continue
		}
		if err := enc.Encode(Frame{Content: text}); err != nil {
			return
		}
		flush()
	}
}

func flusherFor(w io.Writer) func() {
	if f, ok := w.(http.Flusher); ok {
		return f.Flush
	}
	return func() {}
}
