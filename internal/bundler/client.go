// Package bundler is an HTTP client for the bundling network: the service
// that sells prepaid storage credit and accepts signed data items.
package bundler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/netx"
)

// DefaultToken is the payment token path segment used in bundler URLs.
const DefaultToken = "solana"

// Client talks to one bundler node. It holds no per-upload state and is
// safe for concurrent use.
type Client struct {
	node    string
	gateway string
	token   string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithGateway sets the base URL used by Download.
func WithGateway(u string) Option {
	return func(c *Client) { c.gateway = strings.TrimRight(u, "/") }
}

// WithToken selects the payment token path segment.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient returns a client for the node at nodeURL.
func NewClient(nodeURL string, opts ...Option) *Client {
	node := strings.TrimRight(nodeURL, "/")
	c := &Client{
		node:    node,
		gateway: node,
		token:   DefaultToken,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Price returns the cost in atomic units of storing n bytes.
func (c *Client) Price(ctx context.Context, n int64) (uint64, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: negative byte length %d", common.ErrValidation, n)
	}
	body, err := c.get(ctx, fmt.Sprintf("%s/price/%s/%d", c.node, c.token, n))
	if err != nil {
		return 0, fmt.Errorf("price: %w", err)
	}
	v, err := parseAtomic(body)
	if err != nil {
		return 0, fmt.Errorf("price: %w", err)
	}
	return v, nil
}

// Balance returns the prepaid balance held by the bundler for address.
func (c *Client) Balance(ctx context.Context, address string) (uint64, error) {
	u := fmt.Sprintf("%s/account/balance/%s?address=%s", c.node, c.token, url.QueryEscape(address))
	body, err := c.get(ctx, u)
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}

	var resp struct {
		Balance json.RawMessage `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("balance: %w: %w", common.ErrNetwork, err)
	}
	v, err := parseAtomic(resp.Balance)
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return v, nil
}

// ReceivingAddress returns the address deposits for the token must go to.
func (c *Client) ReceivingAddress(ctx context.Context) (string, error) {
	body, err := c.get(ctx, c.node+"/info")
	if err != nil {
		return "", fmt.Errorf("info: %w", err)
	}

	var info struct {
		Addresses map[string]string `json:"addresses"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("info: %w: %w", common.ErrNetwork, err)
	}
	addr := info.Addresses[c.token]
	if addr == "" {
		return "", fmt.Errorf("info: %w: no receiving address for %s", common.ErrValidation, c.token)
	}
	return addr, nil
}

// RegisterFunding asks the bundler to credit a confirmed deposit now rather
// than when it next scans the chain.
func (c *Client) RegisterFunding(ctx context.Context, txID string) error {
	req, err := netx.NewJSONRequest(ctx, http.MethodPost,
		fmt.Sprintf("%s/account/balance/%s", c.node, c.token),
		map[string]string{"tx_id": txID})
	if err != nil {
		return err
	}
	if _, _, err := netx.Do(c.http, req); err != nil {
		return fmt.Errorf("register funding: %w", err)
	}
	return nil
}

// Upload posts a serialized data item. A 402 answer becomes common.ErrQuota.
// The returned id is the one the bundler reports, or empty if it sent none.
func (c *Client) Upload(ctx context.Context, item []byte) (string, error) {
	req, err := netx.NewOctetRequest(ctx, http.MethodPost, fmt.Sprintf("%s/tx/%s", c.node, c.token), item)
	if err != nil {
		return "", err
	}

	body, _, err := netx.Do(c.http, req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if len(bytes.TrimSpace(body)) > 0 {
		// some nodes answer 202 with a plain-text note for known items
		_ = json.Unmarshal(body, &resp)
	}
	return resp.ID, nil
}

// Download fetches the stored data of an item from the gateway.
func (c *Client) Download(ctx context.Context, id string) ([]byte, error) {
	body, err := c.get(ctx, c.gateway+"/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	body, _, err := netx.Do(c.http, req)
	return body, err
}

// parseAtomic accepts a bare or quoted unsigned integer.
func parseAtomic(b []byte) (uint64, error) {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad amount %q", common.ErrNetwork, s)
	}
	return v, nil
}
