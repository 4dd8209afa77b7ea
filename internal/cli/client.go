package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/lobbyd/internal/api/apierr"
)

// AdminClient reads the lobby server's admin API
type AdminClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAdminClient creates an admin API client. An empty token sends no
// Authorization header.
func NewAdminClient(baseURL, token string, timeout time.Duration) *AdminClient {
	return &AdminClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StatusError is a non-2xx admin API response
type StatusError struct {
	Status  int
	Code    string // Empty when the body was not an API error
	Message string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Get fetches path and decodes the JSON body into result
func (c *AdminClient) Get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, body)
	}

	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var errResp apierr.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Code != "" {
		return &StatusError{Status: status, Code: errResp.Error.Code, Message: errResp.Error.Message}
	}
	return &StatusError{Status: status, Message: strings.TrimSpace(string(body))}
}
