// Package transmission sends magnet links to a Transmission daemon over its
// JSON RPC interface.
package transmission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const sessionHeader = "X-Transmission-Session-Id"

// ErrNoSession is returned when the daemon answers 409 without a session id
var ErrNoSession = errors.New("transmission returned 409 Conflict but no session ID")

// Client talks to one Transmission RPC endpoint
type Client struct {
	URL        string
	User       string
	Pass       string
	HTTPClient *http.Client

	mu        sync.Mutex
	sessionID string
}

type rpcRequest struct {
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments"`
}

type rpcResponse struct {
	Result string `json:"result"`
}

// NewClient creates a client from a URL of the form
// "user:pass@http://host:9091/transmission/rpc"; credentials are optional
func NewClient(rawURL string) *Client {
	u, user, pass := ParseURL(rawURL)
	return &Client{
		URL:        u,
		User:       user,
		Pass:       pass,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// AddMagnet asks the daemon to start downloading a magnet link
func (c *Client) AddMagnet(ctx context.Context, magnet string) error {
	payload, err := json.Marshal(rpcRequest{
		Method:    "torrent-add",
		Arguments: map[string]any{"filename": magnet},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal JSON payload: %w", err)
	}

	resp, err := c.post(ctx, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// A 409 hands out the session id the daemon expects; retry once with it
	if resp.StatusCode == http.StatusConflict {
		sessionID := resp.Header.Get(sessionHeader)
		if sessionID == "" {
			return ErrNoSession
		}
		c.mu.Lock()
		c.sessionID = sessionID
		c.mu.Unlock()

		resp.Body.Close()
		resp, err = c.post(ctx, payload)
		if err != nil {
			return fmt.Errorf("retry with session id: %w", err)
		}
		defer resp.Body.Close()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transmission returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result rpcResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if result.Result != "success" {
		return fmt.Errorf("transmission returned result: %s", result.Result)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.User != "" && c.Pass != "" {
		req.SetBasicAuth(c.User, c.Pass)
	}
	c.mu.Lock()
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}
	c.mu.Unlock()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to Transmission: %w", err)
	}
	return resp, nil
}

// ParseURL splits credentials written in front of the scheme, as in
// "user:pass@http://host:port/path", from the URL. Anything else is
// returned unchanged with empty credentials
func ParseURL(rawURL string) (u, user, pass string) {
	atIndex := strings.Index(rawURL, "@")
	protoIndex := strings.Index(rawURL, "://")
	if atIndex < 0 || protoIndex < 0 || atIndex > protoIndex {
		return rawURL, "", ""
	}

	credentials, rest, _ := strings.Cut(rawURL, "@")
	user, pass, ok := strings.Cut(credentials, ":")
	if !ok {
		return rawURL, "", ""
	}
	return rest, user, pass
}
