// internal/client/query_client.go
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/util"
)

// DefaultTimeout bounds one round trip to the Query Service.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of an upstream response is relayed.
const maxBodyBytes = 4 << 20

// Response is an upstream reply, relayed to the caller without interpretation.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// QueryClient fetches a user's purchase history from the Query Service.
type QueryClient interface {
	GetAllUserBuys(ctx context.Context, username string) (*Response, error)
}

// HTTPQueryClient implements QueryClient over HTTP.
type HTTPQueryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPQueryClient creates a client for the Query Service at baseURL.
// A nil httpClient gets one with DefaultTimeout.
func NewHTTPQueryClient(baseURL string, httpClient *http.Client) (*HTTPQueryClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid query service url %q: %w", baseURL, util.ErrInvalidInput)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPQueryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// GetAllUserBuys calls GET /getAllUserBuys?username=<username>. Any HTTP status
// is returned as a Response; only transport failures are errors (wrapping util.ErrUpstream).
func (c *HTTPQueryClient) GetAllUserBuys(ctx context.Context, username string) (*Response, error) {
	endpoint := c.baseURL + "/getAllUserBuys?" + url.Values{"username": {username}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query service request failed: %v: %w", err, util.ErrUpstream)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read query service response: %v: %w", err, util.ErrUpstream)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
