package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Transaction mirrors the server's transaction JSON.
type Transaction struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	CreatedAt int64  `json:"created_at"`
	Signature []byte `json:"signature,omitempty"`
}

// Block mirrors the server's block JSON.
type Block struct {
	Index        uint64        `json:"index"`
	CreatedAt    int64         `json:"created_at"`
	PreviousHash string        `json:"previous_hash"`
	Transactions []Transaction `json:"transactions"`
	MerkleRoot   string        `json:"merkle_root"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`
}

// Overview is the chain summary returned by GET /api/v1/ledger.
type Overview struct {
	Blocks     int    `json:"blocks"`
	Root       string `json:"root"`
	Pending    int    `json:"pending"`
	Difficulty int    `json:"difficulty"`
}

// SubmitResult is the server's acknowledgement of a pooled transaction.
type SubmitResult struct {
	Digest    string `json:"digest"`
	CreatedAt int64  `json:"created_at"`
	Verified  bool   `json:"verified"`
	Pending   int    `json:"pending"`
}

// Failure is one broken rule reported by a chain validation.
type Failure struct {
	BlockIndex int    `json:"block_index"`
	Check      string `json:"check"`
	Detail     string `json:"detail"`
}

// ValidationReport is returned by Validate.
type ValidationReport struct {
	Valid         bool      `json:"valid"`
	BlocksChecked int       `json:"blocks_checked"`
	First         *Failure  `json:"first_failure,omitempty"`
	Failures      []Failure `json:"failures,omitempty"`
}

// Client is the trust-fabric SDK entry point.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	adminSecret string

	// token state, guarded by mu
	mu          sync.Mutex
	bearerToken string
	tokenExpiry time.Time // zero = token was set manually (no auto-refresh)
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{Timeout: d}
		return nil
	}
}

// WithBearerToken attaches a pre-obtained admin token to every request.
// The token is treated as long-lived and will not be auto-refreshed.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		c.tokenExpiry = time.Time{}
		return nil
	}
}

// WithAdminSecret makes the client exchange secret for an admin token on the
// first call that needs one, and again shortly before each token expires.
func WithAdminSecret(secret string) Option {
	return func(c *Client) error {
		c.adminSecret = secret
		return nil
	}
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Overview returns the chain height, tip hash, pool size and difficulty.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger", nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBlock returns the block at index.
func (c *Client) GetBlock(ctx context.Context, index int) (*Block, error) {
	var out Block
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/api/v1/ledger/blocks/%d", index), nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chain returns every block from genesis to the tip.
func (c *Client) Chain(ctx context.Context) ([]Block, error) {
	ov, err := c.Overview(ctx)
	if err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, ov.Blocks)
	for i := 0; i < ov.Blocks; i++ {
		b, err := c.GetBlock(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		blocks = append(blocks, *b)
	}
	return blocks, nil
}

// Validate asks the server to walk the whole chain.
func (c *Client) Validate(ctx context.Context) (*ValidationReport, error) {
	var out ValidationReport
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/validate", nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pending returns the transactions waiting to be sealed, in pool order.
func (c *Client) Pending(ctx context.Context) ([]Transaction, error) {
	var out struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/transactions/pending", nil, false, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// SubmitTransaction adds tx to the server's pending pool. When publicKey is
// non-nil the server verifies the signature first; a mismatch comes back as
// ErrInvalidSignature.
func (c *Client) SubmitTransaction(ctx context.Context, tx Transaction, publicKey []byte) (*SubmitResult, error) {
	body := struct {
		Transaction
		PublicKey []byte `json:"public_key,omitempty"`
	}{Transaction: tx, PublicKey: publicKey}

	var out SubmitResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/transactions", body, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SealBlock seals the pending pool into a new block. It blocks until the
// server finishes the nonce search.
func (c *Client) SealBlock(ctx context.Context) (*Block, error) {
	var out Block
	if err := c.call(ctx, http.MethodPost, "/api/v1/blocks", nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchToken exchanges the configured admin secret for a token, caches it
// and returns it. Requires WithAdminSecret.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	token, expiry, err := c.fetchTokenRaw(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.bearerToken = token
	c.tokenExpiry = expiry
	c.mu.Unlock()
	return token, nil
}

func (c *Client) fetchTokenRaw(ctx context.Context) (token string, expiry time.Time, err error) {
	if c.adminSecret == "" {
		return "", time.Time{}, fmt.Errorf("no admin secret configured")
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/auth/token", map[string]string{"secret": c.adminSecret})
	if err != nil {
		return "", time.Time{}, err
	}

	var payload struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := c.do(req, &payload); err != nil {
		return "", time.Time{}, fmt.Errorf("token exchange: %w", err)
	}

	// Refresh a little before actual expiry to avoid clock-skew failures.
	ttl := time.Duration(payload.ExpiresIn) * time.Second
	refreshBuffer := min(60*time.Second, ttl/10)
	return payload.Token, time.Now().Add(ttl - refreshBuffer), nil
}

// ensureToken returns the bearer token to send, fetching a new one when an
// admin secret is configured and the cached token is absent or stale.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bearerToken != "" && (c.tokenExpiry.IsZero() || time.Now().Before(c.tokenExpiry)) {
		return c.bearerToken, nil
	}
	if c.adminSecret == "" {
		return c.bearerToken, nil
	}

	token, expiry, err := c.fetchTokenRaw(ctx)
	if err != nil {
		return "", err
	}
	c.bearerToken = token
	c.tokenExpiry = expiry
	return token, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any, auth bool, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if auth {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return fmt.Errorf("obtain admin token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes req and decodes a 2xx JSON body into out. Non-2xx responses
// become *APIError.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
