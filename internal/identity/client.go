package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Client implements Provider against the managed backend's accounts API.
// It is also the single source of credential-change notifications: it fans
// out to subscribers after every local sign-in/sign-up/sign-out and once at
// subscription time with the current state.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	creds   CredentialStore
	logger  zerolog.Logger

	mu      sync.Mutex
	idToken string
	current *Handle
	subs    map[int]Callback
	nextSub int
}

// NewClient creates a backend client. creds may be nil, in which case no
// credential survives a restart.
func NewClient(baseURL, apiKey string, creds CredentialStore, logger zerolog.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		creds:   creds,
		logger:  logger,
		subs:    make(map[int]Callback),
	}

	c.restoreCredential()

	return c
}

// restoreCredential loads a persisted session token, if any, so the first
// subscription callback reflects the signed-in principal from the last run
func (c *Client) restoreCredential() {
	if c.creds == nil {
		return
	}

	token, err := c.creds.LoadCredential()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to load persisted credential")
		return
	}
	if token == "" {
		return
	}

	handle, err := handleFromToken(token)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Persisted credential is not usable, discarding")
		_ = c.creds.ClearCredential()
		return
	}

	c.idToken = token
	c.current = handle
	c.logger.Debug().Str("uid", handle.UID).Msg("Restored persisted credential")
}

// Subscribe registers cb and invokes it immediately with the current state
func (c *Client) Subscribe(cb Callback) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = cb
	current := c.current
	c.mu.Unlock()

	cb(current)

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// setCurrent replaces the current principal and notifies all subscribers
func (c *Client) setCurrent(idToken string, handle *Handle) {
	c.mu.Lock()
	c.idToken = idToken
	c.current = handle
	subs := make([]Callback, 0, len(c.subs))
	for _, cb := range c.subs {
		subs = append(subs, cb)
	}
	c.mu.Unlock()

	for _, cb := range subs {
		cb(handle)
	}
}

// SignInWithPassword verifies the credential against the backend
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	var resp struct {
		IDToken string `json:"idToken"`
	}

	err := c.post(ctx, "/v1/accounts:signInWithPassword", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return err
	}

	handle, err := handleFromToken(resp.IDToken)
	if err != nil {
		return err
	}

	c.persistCredential(resp.IDToken)
	c.setCurrent(resp.IDToken, handle)

	return nil
}

// SignUp creates a new credential and signs it in
func (c *Client) SignUp(ctx context.Context, email, password string) (*Handle, error) {
	var resp struct {
		IDToken string `json:"idToken"`
	}

	err := c.post(ctx, "/v1/accounts:signUp", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}

	handle, err := handleFromToken(resp.IDToken)
	if err != nil {
		return nil, err
	}

	c.persistCredential(resp.IDToken)
	c.setCurrent(resp.IDToken, handle)

	return handle, nil
}

// UpdateProfile sets the display name on the current credential.
// No notification is emitted; profile edits are not credential changes.
func (c *Client) UpdateProfile(ctx context.Context, displayName string) error {
	c.mu.Lock()
	token := c.idToken
	c.mu.Unlock()

	if token == "" {
		return fmt.Errorf("no signed-in credential")
	}

	err := c.post(ctx, "/v1/accounts:update", map[string]string{
		"idToken":     token,
		"displayName": displayName,
	}, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.current != nil {
		c.current.DisplayName = displayName
	}
	c.mu.Unlock()

	return nil
}

// SignOut invalidates the credential and notifies subscribers with absence
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.idToken
	c.mu.Unlock()

	if token != "" {
		if err := c.post(ctx, "/v1/accounts:signOut", map[string]string{"idToken": token}, nil); err != nil {
			return err
		}
	}

	if c.creds != nil {
		if err := c.creds.ClearCredential(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to clear persisted credential")
		}
	}
	c.setCurrent("", nil)

	return nil
}

func (c *Client) persistCredential(token string) {
	if c.creds == nil {
		return
	}
	if err := c.creds.SaveCredential(token); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist credential")
	}
}

// post sends a JSON request to the backend and decodes the response into out.
// Backend failures are returned as *ProviderError with the message verbatim.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return &ProviderError{Code: resp.StatusCode, Message: errResp.Error.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
