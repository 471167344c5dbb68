package eval

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client talks to the chat endpoint the way the browser does: a stable
// fingerprint for the session, a timestamp per request, and the one-time
// token from each response chained into the next request.
type Client struct {
	baseURL     string
	http        *http.Client
	fingerprint string
	token       string
}

func NewClient(baseURL string) *Client {
	sum := sha256.Sum256([]byte(uuid.NewString()))
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: 120 * time.Second},
		fingerprint: hex.EncodeToString(sum[:]),
	}
}

// Health checks the target before the run starts.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	return nil
}

type chatPayload struct {
	Messages           []chatMessage `json:"messages"`
	BrowserFingerprint string        `json:"browser_fingerprint"`
	Timestamp          int64         `json:"timestamp"`
	Token              string        `json:"token,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type frame struct {
	Token   string `json:"token"`
	Content string `json:"content"`
	Error   string `json:"error"`
}

// Ask sends one question and assembles the streamed answer. The token frame
// is captured for the next call even when the rest of the stream fails.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	payload := chatPayload{
		Messages:           []chatMessage{{Role: "user", Content: question}},
		BrowserFingerprint: c.fingerprint,
		Timestamp:          time.Now().UTC().UnixMilli(),
		Token:              c.token,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		// A rejected token would wedge every following request, so drop it.
		if resp.StatusCode == http.StatusUnauthorized {
			c.token = ""
		}
		return "", fmt.Errorf("chat request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var answer strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var f frame
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			return answer.String(), fmt.Errorf("bad frame %q: %w", line, err)
		}
		switch {
		case f.Token != "":
			c.token = f.Token
		case f.Error != "":
			return answer.String(), fmt.Errorf("stream error: %s", f.Error)
		default:
			answer.WriteString(f.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return answer.String(), fmt.Errorf("read stream: %w", err)
	}
	if answer.Len() == 0 {
		return "", fmt.Errorf("empty answer")
	}
	return answer.String(), nil
}
