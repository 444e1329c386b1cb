package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client implements Store against the managed backend's documents API
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a document store client for the given backend
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GetDocument fetches a document. A missing document is not an error; it is
// reported through the existence flag.
func (c *Client) GetDocument(ctx context.Context, collection, key string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.docURL(collection, key), nil)
	if err != nil {
		return Document{}, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("document read failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Document{Exists: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("document read failed: status %d", resp.StatusCode)
	}

	var fields map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		return Document{}, fmt.Errorf("failed to decode document: %w", err)
	}

	return Document{Exists: true, Fields: fields}, nil
}

// SetDocument writes a full document, replacing any previous content
func (c *Client) SetDocument(ctx context.Context, collection, key string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.docURL(collection, key), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("document write failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("document write failed: status %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) docURL(collection, key string) string {
	return fmt.Sprintf("%s/v1/documents/%s/%s", c.baseURL, collection, key)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}
