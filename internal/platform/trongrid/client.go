// Package trongrid is an HTTP client for the TronGrid contract-events API,
// used to fetch confirmed TradeOpen / TradeClosed events with cursor-based
// pagination.
package trongrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chainops/tronledger/internal/domain"
)

// defaultPageSize bounds a single events request.
const defaultPageSize = 200

// defaultTimeout bounds every request; expiry is treated as a transient
// failure by callers.
const defaultTimeout = 20 * time.Second

// Client fetches contract event pages from a TronGrid-compatible endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL, e.g.
// "https://nile.trongrid.io". The API key is optional on testnets and
// required on mainnet; pageSize and timeout fall back to defaults when
// non-positive.
func NewClient(baseURL, apiKey string, pageSize int, timeout time.Duration) *Client {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   strings.TrimSpace(apiKey),
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// eventsResponse is the TronGrid response envelope. The pagination cursor
// has been observed in several places across API versions; nextFingerprint
// probes them in one spot.
type eventsResponse struct {
	Data        []domain.RawEvent `json:"data"`
	Success     bool              `json:"success"`
	Fingerprint string            `json:"fingerprint"`
	Meta        struct {
		Fingerprint string `json:"fingerprint"`
		Links       struct {
			Next string `json:"next"`
		} `json:"links"`
	} `json:"meta"`
}

// FetchPage requests one page of confirmed events for the contract. A
// non-empty fingerprint resumes pagination from a previous page. Events
// within a page are not sorted; callers must order them by
// (block_number, event_index) before applying.
//
// A 404 response means the contract does not exist on this network and is
// returned as domain.ErrContractNotFound; transport failures, timeouts and
// 5xx responses wrap domain.ErrUnavailable and may be retried.
func (c *Client) FetchPage(ctx context.Context, contract, fingerprint string) (domain.EventPage, error) {
	endpoint := fmt.Sprintf("%s/v1/contracts/%s/events", c.baseURL, url.PathEscape(contract))

	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("only_confirmed", "true")
	if fingerprint != "" {
		q.Set("fingerprint", fingerprint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return domain.EventPage{}, fmt.Errorf("trongrid: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.EventPage{}, ctx.Err()
		}
		return domain.EventPage{}, fmt.Errorf("trongrid: %v: %w", err, domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return domain.EventPage{}, fmt.Errorf("trongrid: read response: %w", domain.ErrUnavailable)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.EventPage{}, fmt.Errorf("trongrid: contract %s on %s: %w",
			contract, c.baseURL, domain.ErrContractNotFound)
	case resp.StatusCode >= 500:
		return domain.EventPage{}, fmt.Errorf("trongrid: HTTP %d: %s: %w",
			resp.StatusCode, truncate(body, 256), domain.ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		return domain.EventPage{}, fmt.Errorf("trongrid: HTTP %d: %s",
			resp.StatusCode, truncate(body, 256))
	}

	var envelope eventsResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.EventPage{}, fmt.Errorf("trongrid: decode response: %w", err)
	}

	return domain.EventPage{
		Events:      envelope.Data,
		Fingerprint: nextFingerprint(envelope),
	}, nil
}

// nextFingerprint extracts the cursor for the following page. Observed
// response shapes, in probe order: meta.fingerprint, a top-level
// fingerprint field, and a meta.links.next URL carrying the cursor as a
// query parameter. An empty return means the feed is exhausted.
func nextFingerprint(resp eventsResponse) string {
	if resp.Meta.Fingerprint != "" {
		return resp.Meta.Fingerprint
	}
	if resp.Fingerprint != "" {
		return resp.Fingerprint
	}
	if next := resp.Meta.Links.Next; next != "" {
		u, err := url.Parse(next)
		if err != nil {
			return ""
		}
		return u.Query().Get("fingerprint")
	}
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
