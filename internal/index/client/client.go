// Package client is the HTTP client for the metadata index. It logs in by
// signing the index's challenge with the wallet and keeps the access token
// for later calls.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/dmitrijs2005/helix/internal/netx"
	"github.com/gagliardetto/solana-go"
)

// Signer is the part of wallet.Signer the login flow needs.
type Signer interface {
	PublicKey() solana.PublicKey
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// ResolvedShare is what a share key opens.
type ResolvedShare struct {
	Share models.ShareLink    `json:"share"`
	File  models.UploadRecord `json:"file"`
}

type Client struct {
	base   string
	signer Signer
	http   *http.Client

	mu    sync.Mutex
	token string
}

func New(baseURL string, signer Signer, h *http.Client) *Client {
	if h == nil {
		h = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), signer: signer, http: h}
}

// Wallet is the identity this client logs in as.
func (c *Client) Wallet() string {
	return c.signer.PublicKey().String()
}

// Login runs the challenge flow and stores the token.
func (c *Client) Login(ctx context.Context) error {
	wallet := c.Wallet()

	var ch struct {
		Challenge string `json:"challenge"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/auth/challenge", "", map[string]string{"wallet": wallet}, &ch); err != nil {
		return fmt.Errorf("challenge: %w", err)
	}

	sig, err := c.signer.SignMessage(ctx, []byte(ch.Challenge))
	if err != nil {
		return fmt.Errorf("sign challenge: %w", err)
	}

	var resp struct {
		Token string `json:"token"`
	}
	req := map[string]string{"wallet": wallet, "signature": solana.SignatureFromBytes(sig).String()}
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", "", req, &resp); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("login: %w: empty token", common.ErrUnauthorized)
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

// InsertFile records an upload. owner must be this client's wallet.
func (c *Client) InsertFile(ctx context.Context, owner string, in models.NewUpload) (models.UploadRecord, error) {
	if owner != c.Wallet() {
		return models.UploadRecord{}, fmt.Errorf("%w: owner %s is not the signed-in wallet", common.ErrValidation, owner)
	}
	var resp struct {
		File models.UploadRecord `json:"file"`
	}
	if err := c.authed(ctx, http.MethodPost, "/api/files", in, &resp); err != nil {
		return models.UploadRecord{}, fmt.Errorf("insert file: %w", err)
	}
	return resp.File, nil
}

func (c *Client) List(ctx context.Context, limit, offset int) ([]models.UploadRecord, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/files"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Files []models.UploadRecord `json:"files"`
	}
	if err := c.authed(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return resp.Files, nil
}

func (c *Client) Get(ctx context.Context, id string) (models.UploadRecord, error) {
	var resp struct {
		File models.UploadRecord `json:"file"`
	}
	if err := c.authed(ctx, http.MethodGet, "/api/files/"+url.PathEscape(id), nil, &resp); err != nil {
		return models.UploadRecord{}, fmt.Errorf("get file: %w", err)
	}
	return resp.File, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.authed(ctx, http.MethodDelete, "/api/files/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (c *Client) Stats(ctx context.Context) (models.Stats, error) {
	var resp struct {
		Stats models.Stats `json:"stats"`
	}
	if err := c.authed(ctx, http.MethodGet, "/api/stats", nil, &resp); err != nil {
		return models.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return resp.Stats, nil
}

func (c *Client) CreateShare(ctx context.Context, in models.NewShareLink) (models.ShareLink, error) {
	var resp struct {
		Share models.ShareLink `json:"share"`
	}
	if err := c.authed(ctx, http.MethodPost, "/api/share", in, &resp); err != nil {
		return models.ShareLink{}, fmt.Errorf("create share: %w", err)
	}
	return resp.Share, nil
}

func (c *Client) ListShares(ctx context.Context, fileID string) ([]models.ShareLink, error) {
	var resp struct {
		Shares []models.ShareLink `json:"shares"`
	}
	if err := c.authed(ctx, http.MethodGet, "/api/files/"+url.PathEscape(fileID)+"/shares", nil, &resp); err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	return resp.Shares, nil
}

func (c *Client) DeleteShare(ctx context.Context, shareID string) error {
	if err := c.authed(ctx, http.MethodDelete, "/api/share/"+url.PathEscape(shareID), nil, nil); err != nil {
		return fmt.Errorf("delete share: %w", err)
	}
	return nil
}

// ResolveShare opens a share link. It needs no login.
func (c *Client) ResolveShare(ctx context.Context, key, password string) (ResolvedShare, error) {
	q := url.Values{"key": {key}}
	if password != "" {
		q.Set("password", password)
	}
	var out ResolvedShare
	if err := c.call(ctx, http.MethodGet, "/api/share?"+q.Encode(), "", nil, &out); err != nil {
		return ResolvedShare{}, fmt.Errorf("resolve share: %w", err)
	}
	return out, nil
}

// authed calls an endpoint with the access token, logging in first when
// there is none and once more when the index rejects the token.
func (c *Client) authed(ctx context.Context, method, path string, in, out any) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
		return c.call(ctx, method, path, c.currentToken(), in, out)
	}

	err := c.call(ctx, method, path, token, in, out)
	if !errors.Is(err, common.ErrUnauthorized) {
		return err
	}
	if err := c.Login(ctx); err != nil {
		return err
	}
	return c.call(ctx, method, path, c.currentToken(), in, out)
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) call(ctx context.Context, method, path, token string, in, out any) error {
	req, err := netx.NewJSONRequest(ctx, method, c.base+path, in)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	body, _, err := netx.Do(c.http, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", common.ErrNetwork, err)
	}
	return nil
}
