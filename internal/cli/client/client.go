package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client represents an HTTP client for the Studyhall gateway API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client. The gateway URL comes from STUDYHALL_URL,
// defaulting to the local gateway.
func New() *Client {
	baseURL := os.Getenv("STUDYHALL_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// SetBaseURL overrides the gateway URL
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// SignInRequest represents the sign-in request body
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse represents the gateway's session snapshot
type SessionResponse struct {
	User *struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		Role        string `json:"role"`
		DisplayName string `json:"display_name"`
	} `json:"user"`
	Loading   bool   `json:"loading"`
	Error     string `json:"error"`
	IsTeacher bool   `json:"is_teacher"`
	IsStudent bool   `json:"is_student"`
}

// SignIn authenticates against the gateway
func (c *Client) SignIn(email, password string) (*SessionResponse, error) {
	reqBody := SignInRequest{
		Email:    email,
		Password: password,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.httpClient.Post(
		fmt.Sprintf("%s/api/auth/signin", c.baseURL),
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sign-in failed (status %d): %s", resp.StatusCode, string(body))
	}

	var session SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &session, nil
}

// SignOut invalidates the gateway's session
func (c *Client) SignOut() error {
	resp, err := c.httpClient.Post(
		fmt.Sprintf("%s/api/auth/signout", c.baseURL),
		"application/json",
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sign-out failed (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// Session fetches the current session snapshot
func (c *Client) Session() (*SessionResponse, error) {
	resp, err := c.httpClient.Get(fmt.Sprintf("%s/api/auth/session", c.baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("session fetch failed (status %d): %s", resp.StatusCode, string(body))
	}

	var session SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &session, nil
}
