// Package nexus provides a thin Go client for the Gravity Nexus REST API.
package nexus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the Gravity Nexus REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// ActionRecord mirrors one automation run as recorded by the daemon.
type ActionRecord struct {
	ID         string `json:"id"`
	ActionType string `json:"action_type"`
	Trigger    string `json:"trigger"`
	EventID    string `json:"event_id,omitempty"`
	Ledger     string `json:"ledger,omitempty"`
	FromIndex  int    `json:"from_index"`
	ToIndex    int    `json:"to_index"`
	Amount     string `json:"amount,omitempty"`
	RateGap    uint64 `json:"rate_gap,omitempty"`
	OK         bool   `json:"ok"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// ActionStats summarizes the action log.
type ActionStats struct {
	Total      int   `json:"total"`
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	NoAction   int   `json:"no_action"`
	OldestAt   int64 `json:"oldest_at,omitempty"`
	NewestAt   int64 `json:"newest_at,omitempty"`
	LastFailed int64 `json:"last_failed_at,omitempty"`
}

// PoolView describes one yield pool inside the vault.
type PoolView struct {
	Index   int    `json:"index"`
	Rate    uint64 `json:"rate"`
	Balance string `json:"balance"`
}

// VaultView describes the vault state.
type VaultView struct {
	Asset  string     `json:"asset"`
	Paused bool       `json:"paused"`
	Pools  []PoolView `json:"pools"`
	Total  string     `json:"total"`
}

// Subscription mirrors a registered event subscription.
type Subscription struct {
	ID         string `json:"id"`
	Ledger     string `json:"ledger"`
	Source     string `json:"source"`
	Selector   string `json:"selector"`
	Subscriber string `json:"subscriber"`
	CreatedAt  int64  `json:"created_at"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("nexus api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the Gravity Nexus API. When httpClient
// is nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetToken stores the bearer token used for subsequent calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the currently stored token string.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// TriggerRebalance asks the daemon to run one manual evaluation.
func (c *Client) TriggerRebalance(ctx context.Context) (ActionRecord, error) {
	var record ActionRecord
	payload := map[string]string{"action_type": "REBALANCE"}
	if err := c.post(ctx, "/api/v1/actions", payload, &record); err != nil {
		return ActionRecord{}, err
	}
	return record, nil
}

// ListActions fetches recent action records, newest first.
func (c *Client) ListActions(ctx context.Context, limit int) ([]ActionRecord, error) {
	endpoint := "/api/v1/actions"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var records []ActionRecord
	if err := c.get(ctx, endpoint, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ActionStats fetches aggregated statistics about the action log.
func (c *Client) ActionStats(ctx context.Context) (ActionStats, error) {
	var stats ActionStats
	if err := c.get(ctx, "/api/v1/actions/stats", &stats); err != nil {
		return ActionStats{}, err
	}
	return stats, nil
}

// Vault fetches the current vault snapshot.
func (c *Client) Vault(ctx context.Context) (VaultView, error) {
	var view VaultView
	if err := c.get(ctx, "/api/v1/vault", &view); err != nil {
		return VaultView{}, err
	}
	return view, nil
}

// Subscribe registers an event subscription. Re-registering the same
// (ledger, source, selector) triple returns the existing record.
func (c *Client) Subscribe(ctx context.Context, sub Subscription) (Subscription, error) {
	var created Subscription
	if err := c.post(ctx, "/api/v1/subscriptions", sub, &created); err != nil {
		return Subscription{}, err
	}
	return created, nil
}

// ListSubscriptions fetches all registered subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	var subs []Subscription
	if err := c.get(ctx, "/api/v1/subscriptions", &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
