package metastore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/syntrixbase/metasync/internal/hms"
)

// HTTPClient is a Client over the metastore's JSON notification API.
type HTTPClient struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	httpClient *http.Client
}

// NewHTTPClient creates a disconnected HTTP client.
func NewHTTPClient(cfg Config, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		cfg:    cfg,
		logger: logger.With("component", "metastore-client"),
	}
}

// Connect establishes the transport and verifies the endpoint is reachable.
func (c *HTTPClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.httpClient != nil {
		c.mu.Unlock()
		return nil
	}
	c.httpClient = &http.Client{Timeout: c.cfg.RequestTimeout}
	c.mu.Unlock()

	if _, err := c.CurrentNotificationID(ctx); err != nil {
		c.mu.Lock()
		c.httpClient = nil
		c.mu.Unlock()
		return fmt.Errorf("failed to connect to metastore at %s: %w", c.cfg.BaseURL, err)
	}
	c.logger.Info("connected to metastore", "base_url", c.cfg.BaseURL)
	return nil
}

// Disconnect drops the transport.
func (c *HTTPClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
		c.httpClient = nil
	}
	return nil
}

func (c *HTTPClient) client() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient == nil {
		return nil, fmt.Errorf("metastore client is not connected")
	}
	return c.httpClient, nil
}

func (c *HTTPClient) CurrentNotificationID(ctx context.Context) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.get(ctx, "/api/v1/notifications/current", nil, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *HTTPClient) FetchNotifications(ctx context.Context, after int64, max int) ([]hms.Event, error) {
	if max <= 0 {
		max = c.cfg.FetchBatchSize
	}
	query := url.Values{
		"after": {strconv.FormatInt(after, 10)},
		"max":   {strconv.Itoa(max)},
	}
	var out struct {
		Events []hms.Event `json:"events"`
	}
	if err := c.get(ctx, "/api/v1/notifications", query, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *HTTPClient) FullSnapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := c.get(ctx, "/api/v1/snapshot", nil, &snap); err != nil {
		return nil, err
	}
	if snap.Paths == nil {
		snap.Paths = map[string][]string{}
	}
	return &snap, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	httpClient, err := c.client()
	if err != nil {
		return err
	}

	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("metastore request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode metastore response: %w", err)
		}
		return nil
	case http.StatusGone:
		// The metastore purged the requested range.
		return ErrOutOfSync
	default:
		return fmt.Errorf("metastore request %s: unexpected status code %d", path, resp.StatusCode)
	}
}
