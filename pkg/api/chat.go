package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	log "github.com/charmbracelet/log"

	"github.com/mkorolev/sitegate/pkg/relay"
	"github.com/mkorolev/sitegate/pkg/upstream"
)

// maxTimestampSkew is the inclusive freshness window for the client-supplied
// request timestamp, in milliseconds.
const maxTimestampSkew = 60_000

var nowUTC = func() time.Time { return time.Now().UTC() }

type chatRequest struct {
	Messages           []upstream.Message `json:"messages"`
	BrowserFingerprint string             `json:"browser_fingerprint"`
	Timestamp          int64              `json:"timestamp"`
	Token              string             `json:"token,omitempty"`
	MaxTokens          int                `json:"max_tokens,omitempty"`
	Temperature        float32            `json:"temperature,omitempty"`
}

// handleChat runs the ordered admission checks and then streams the response.
// Order matters: rate check, then token check, then timestamp check, then
// token issuance. The counter increment and the issuance are the only state
// mutations, and issuance may not happen on a request rejected earlier.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}
	defer r.Body.Close()

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Messages) == 0 || strings.TrimSpace(req.BrowserFingerprint) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages and browser_fingerprint are required"})
		return
	}

	ip := clientIP(r)

	allowed, err := s.limiter.Allow(r.Context(), ip)
	if err != nil {
		log.Error("rate limit check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service unavailable"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded. Try again later."})
		return
	}

	if req.Token != "" {
		ok, err := s.tokens.Consume(r.Context(), req.Token, req.BrowserFingerprint, ip)
		if err != nil {
			log.Error("token validation failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service unavailable"})
			return
		}
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
			return
		}
	}

	skew := nowUTC().UnixMilli() - req.Timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > maxTimestampSkew {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid timestamp"})
		return
	}

	// Every accepted request gets the credential for the next one, first
	// request included.
	nextToken, err := s.tokens.Issue(r.Context(), req.BrowserFingerprint, ip)
	if err != nil {
		log.Error("token issuance failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service unavailable"})
		return
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.cfg.Upstream.MaxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = s.cfg.Upstream.Temperature
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	// Nginx would otherwise buffer the whole stream.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	relay.Stream(r.Context(), w, nextToken, func(ctx context.Context) (relay.Source, error) {
		return s.upstream.Open(ctx, upstream.Request{
			Messages:    req.Messages,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
	})
}

// clientIP trusts RemoteAddr, which middleware.RealIP has already rewritten
// from X-Forwarded-For / X-Real-IP when present.
func clientIP(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
