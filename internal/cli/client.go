package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	// trainTimeout matches the server's default write timeout.
	trainTimeout = 10 * time.Minute
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client is an HTTP client for the tabml API
type Client struct {
	baseURL  string
	client   *http.Client
	user     string
	password string
}

func NewClient() *Client {
	return newClient(GetServerURL(), defaultTimeout)
}

func newClient(baseURL string, timeout time.Duration) *Client {
	u, p := GetAuth()
	return &Client{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		user:     u,
		password: p,
	}
}

// WithTimeout returns a copy of c using timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	clone := *c
	clone.client = &http.Client{Timeout: timeout}
	return &clone
}

// GetJSON issues a GET and decodes a 200 response into out.
func (c *Client) GetJSON(path string, out any) error {
	return c.doJSON(http.MethodGet, path, nil, out)
}

// PostJSON posts body as JSON and decodes a 200 response into out.
func (c *Client) PostJSON(path string, body, out any) error {
	return c.doJSON(http.MethodPost, path, body, out)
}

func (c *Client) DeleteJSON(path string, out any) error {
	return c.doJSON(http.MethodDelete, path, nil, out)
}

func (c *Client) doJSON(method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		r = &buf
	}

	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	data, status, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return decodeAPIError(status, data)
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return &APIError{Status: status, Message: string(bytes.TrimSpace(data))}
	}
	return &APIError{Status: status, Message: body.Error}
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	if c.user != "" && c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return data, resp.StatusCode, nil
}

// Health checks if server is running
func (c *Client) Health() error {
	return c.GetJSON("/health", nil)
}
