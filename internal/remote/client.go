// Package remote is the HTTP client for the authoritative sync server. It
// implements the engine's RemoteStore and Identity contracts.
package remote

import (
	"bytes"         // Request body buffers
	"context"       // Cancellable requests
	"encoding/json" // Wire encoding
	"errors"        // Sentinel errors
	"fmt"           // Error wrapping
	"io"            // Response draining
	"net/http"      // HTTP transport
	"strconv"       // Principal id formatting
	gosync "sync"   // Session state guard
	"time"          // Request timeout, watermark formatting

	"capital_flux/internal/sync"  // Wire record shapes
	"capital_flux/internal/utils" // JWT claim decoding
)

// ErrNotFound marks a 404 from the server
var ErrNotFound = errors.New("remote row not found")

// Client talks to the sync server. It holds the session token issued at
// login and attaches it to every call.
type Client struct {
	baseURL string
	httpc   *http.Client

	mu     gosync.Mutex // Guards token and userID
	token  string       // Bearer token, "" when not logged in
	userID uint         // Principal id from the login response
}

// NewClient constructs a client for the server at baseURL
func NewClient(baseURL string) *Client {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// credentials is the register/login payload
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authResponse mirrors the server's login reply
type authResponse struct {
	Token  string `json:"token"`
	UserID uint   `json:"user_id"`
}

// Register creates an account on the server
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, "/user", credentials{Username: username, Password: password}, nil)
}

// Login authenticates and stores the session token
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp authResponse
	if err := c.do(ctx, http.MethodGet, "/user", credentials{Username: username, Password: password}, &resp); err != nil {
		return err
	}
	userID := resp.UserID
	if userID == 0 {
		// Older servers omit user_id; fall back to the token's claim
		claims, err := utils.DecodeJWT(resp.Token)
		if err != nil {
			return fmt.Errorf("decoding session token: %w", err)
		}
		userID = claims.UserID
	}
	c.mu.Lock()
	c.token = resp.Token
	c.userID = userID
	c.mu.Unlock()
	return nil
}

// Logout drops the session
func (c *Client) Logout() {
	c.mu.Lock()
	c.token = ""
	c.userID = 0
	c.mu.Unlock()
}

// CurrentUserID returns the authenticated principal id, or ok=false when
// no session is active
func (c *Client) CurrentUserID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return "", false
	}
	return strconv.FormatUint(uint64(c.userID), 10), true
}

// WalletsUpdatedSince returns the caller's wallets changed after since, or
// all of them when since is nil
func (c *Client) WalletsUpdatedSince(ctx context.Context, since *time.Time) ([]sync.WalletRecord, error) {
	var resp struct {
		Wallets []sync.WalletRecord `json:"wallets"`
	}
	if err := c.do(ctx, http.MethodGet, "/sync/wallets"+sinceQuery(since), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Wallets, nil
}

// TransactionsUpdatedSince returns the caller's transactions changed after
// since, or all of them when since is nil
func (c *Client) TransactionsUpdatedSince(ctx context.Context, since *time.Time) ([]sync.TransactionRecord, error) {
	var resp struct {
		Transactions []sync.TransactionRecord `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodGet, "/sync/transactions"+sinceQuery(since), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// WalletUpdatedAt reads the remote wallet's current stamp. A missing row
// returns nil, nil: the push path treats that as "nothing to conflict with".
func (c *Client) WalletUpdatedAt(ctx context.Context, serverID string) (*time.Time, error) {
	var resp struct {
		Wallet sync.WalletRecord `json:"wallet"`
	}
	err := c.do(ctx, http.MethodGet, "/sync/wallets/"+serverID, nil, &resp)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	stamp := resp.Wallet.UpdatedAt
	return &stamp, nil
}

// InsertWallet pushes a new wallet and returns the server-assigned id
func (c *Client) InsertWallet(ctx context.Context, rec sync.WalletRecord) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/sync/wallets", rec, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateWallet pushes an edit to an already-synced wallet
func (c *Client) UpdateWallet(ctx context.Context, serverID string, rec sync.WalletRecord) error {
	return c.do(ctx, http.MethodPut, "/sync/wallets/"+serverID, rec, nil)
}

// InsertTransaction pushes a new transaction and returns the server-assigned id
func (c *Client) InsertTransaction(ctx context.Context, rec sync.TransactionRecord) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/sync/transactions", rec, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateTransaction pushes an edit to an already-synced transaction
func (c *Client) UpdateTransaction(ctx context.Context, serverID string, rec sync.TransactionRecord) error {
	return c.do(ctx, http.MethodPut, "/sync/transactions/"+serverID, rec, nil)
}

// do performs one JSON request/response round-trip
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// sinceQuery formats the updated_since query string
func sinceQuery(since *time.Time) string {
	if since == nil {
		return ""
	}
	return "?updated_since=" + since.UTC().Format(time.RFC3339Nano)
}
