package lookup

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Client fetches master CSVs over HTTP. There is deliberately no retry
// layer: a failed fetch disables the lookup for the run rather than
// delaying it.
type Client struct {
	httpClient *http.Client
}

// NewClient constructs a Client. A custom RoundTripper can be injected for
// tests; nil uses the default transport.
func NewClient(transport http.RoundTripper) *Client {
	hc := &http.Client{}
	if transport != nil {
		hc.Transport = transport
	}
	return &Client{httpClient: hc}
}

// FetchCSV performs a single GET and returns the body bytes. Non-2xx
// responses are errors.
func (c *Client) FetchCSV(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("lookup: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("lookup: fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lookup: read %s: %w", url, err)
	}
	return body, nil
}
