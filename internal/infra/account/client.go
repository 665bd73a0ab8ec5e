// Package account provides a client for the user-account service.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/echomood/player/internal/domain/user"
)

// Client is a user-account service client.
type Client struct {
	baseURL    string
	sessionID  string // Per-process client session id
	httpClient *http.Client
}

// Config represents account client configuration.
type Config struct {
	BaseURL string
}

// Response represents an account-service mutation response. The backend
// attaches the updated profile when the mutation succeeds.
type Response struct {
	Message string     `json:"message"`
	User    *user.User `json:"user"`
}

// errorBody represents a structured error payload from the backend.
type errorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// New creates a new account client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("account base URL is required")
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		sessionID:  uuid.New().String(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// SessionID returns the per-process client session id attached to requests.
func (c *Client) SessionID() string {
	return c.sessionID
}

// GetUser retrieves a user profile.
func (c *Client) GetUser(ctx context.Context, userID string) (*user.User, error) {
	var u user.User
	if err := c.do(ctx, "GET", fmt.Sprintf("/users/%s", userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// AddLike records a liked song for the user.
// songID must already be normalized to the backend's 24-hex key format.
func (c *Client) AddLike(ctx context.Context, userID, songID string) (*Response, error) {
	var resp Response
	path := fmt.Sprintf("/users/liked_songs/add/%s", userID)
	if err := c.do(ctx, "PUT", path, map[string]string{"song_id": songID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveLike removes a liked song for the user.
func (c *Client) RemoveLike(ctx context.Context, userID, songID string) (*Response, error) {
	var resp Response
	path := fmt.Sprintf("/users/liked_songs/remove/%s", userID)
	if err := c.do(ctx, "PUT", path, map[string]string{"song_id": songID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateMood records a mood observation on the user's profile.
func (c *Client) UpdateMood(ctx context.Context, userID, mood string) (*Response, error) {
	var resp Response
	path := fmt.Sprintf("/users/update_mood/%s", userID)
	if err := c.do(ctx, "PUT", path, map[string]string{"mood": mood}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs a JSON request and decodes the response into out.
// Non-2xx responses become errors carrying the backend's message when the
// body is structured, falling back to the transport-level status.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Session", c.sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorBody
		if jsonErr := json.Unmarshal(data, &apiErr); jsonErr == nil {
			if apiErr.Message != "" {
				return errors.Errorf("account API error (status %d): %s", resp.StatusCode, apiErr.Message)
			}
			if apiErr.Detail != "" {
				return errors.Errorf("account API error (status %d): %s", resp.StatusCode, apiErr.Detail)
			}
		}
		return errors.Errorf("account API returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrap(err, "failed to parse response")
		}
	}
	return nil
}
