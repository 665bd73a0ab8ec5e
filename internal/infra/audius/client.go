// Package audius provides a client for the Audius-style streaming catalog API.
package audius

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/echomood/player/internal/domain/track"
)

// Client is a streaming catalog API client.
type Client struct {
	host       string
	appName    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// Config represents catalog client configuration.
type Config struct {
	Host    string // e.g. https://api.audius.co
	AppName string // registered client identifier, sent on every request
}

// listResponse represents the catalog's envelope for track lists.
// Entries are kept loosely typed; optional fields are frequently absent.
type listResponse struct {
	Data []map[string]any `json:"data"`
}

// apiError represents an error body from the catalog.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("catalog host is required")
	}
	if cfg.AppName == "" {
		return nil, errors.New("catalog app name is required")
	}

	return &Client{
		host:       cfg.Host,
		appName:    cfg.AppName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// StreamURL constructs the stream URL for a track id.
// The shape is fixed by the catalog's stream endpoint contract.
func (c *Client) StreamURL(trackID string) string {
	return fmt.Sprintf("%s/v1/tracks/%s/stream?app_name=%s", c.host, trackID, c.appName)
}

// Trending retrieves trending tracks for a time range.
func (c *Client) Trending(ctx context.Context, timeRange string, limit int) ([]track.Track, error) {
	if timeRange == "" {
		timeRange = "week"
	}
	params := url.Values{}
	params.Set("timeRange", timeRange)
	params.Set("limit", fmt.Sprintf("%d", clampLimit(limit, 20)))

	return c.fetchTracks(ctx, "/v1/tracks/trending", params)
}

// Search searches the catalog for tracks.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if query == "" {
		return nil, errors.New("search query is required")
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", fmt.Sprintf("%d", clampLimit(limit, 20)))

	return c.fetchTracks(ctx, "/v1/tracks/search", params)
}

// TopLiked fetches a trending pool and returns the topLimit tracks with the
// most favorites. Streams are not probed here; unplayable entries surface at
// play time and land in the bad-track registry instead.
func (c *Client) TopLiked(ctx context.Context, timeRange string, poolLimit, topLimit int) ([]track.Track, error) {
	pool, err := c.Trending(ctx, timeRange, clampLimit(poolLimit, 100))
	if err != nil {
		return nil, err
	}

	sorted := make([]track.Track, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FavoriteCount > sorted[j].FavoriteCount
	})

	if topLimit > 0 && topLimit < len(sorted) {
		sorted = sorted[:topLimit]
	}
	return sorted, nil
}

// fetchTracks performs a GET against a track-list endpoint and decodes the result.
func (c *Client) fetchTracks(ctx context.Context, path string, params url.Values) ([]track.Track, error) {
	params.Set("app_name", c.appName)
	reqURL := c.host + path + "?" + params.Encode()

	var body []byte
	err := c.retry(func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return errors.Wrap(err, "failed to create request")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.Wrap(err, "failed to send request")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "failed to read response body")
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr apiError
			if jsonErr := json.Unmarshal(data, &apiErr); jsonErr == nil && (apiErr.Error != "" || apiErr.Message != "") {
				msg := apiErr.Message
				if msg == "" {
					msg = apiErr.Error
				}
				return errors.Errorf("catalog API error (status %d): %s", resp.StatusCode, msg)
			}
			return errors.Errorf("catalog API returned status %d", resp.StatusCode)
		}

		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	var envelope listResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}

	tracks := make([]track.Track, 0, len(envelope.Data))
	for _, raw := range envelope.Data {
		trk, err := decodeTrack(raw)
		if err != nil {
			// A malformed entry is skipped, not fatal
			zlog.Warn().Msgf("catalog: skipping undecodable track entry: %v", err)
			continue
		}
		if trk.ID == "" {
			continue
		}
		tracks = append(tracks, trk)
	}

	return tracks, nil
}

// decodeTrack maps a loosely-typed catalog entry onto Track, keeping
// unmapped fields in Extra.
func decodeTrack(raw map[string]any) (track.Track, error) {
	var trk track.Track
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &trk,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return track.Track{}, errors.Wrap(err, "failed to build track decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return track.Track{}, errors.Wrap(err, "failed to decode track")
	}
	return trk, nil
}

// retry executes fn with retries on transient failures.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			zlog.Debug().Msgf("catalog: retrying request (attempt %d/%d): %v", i+1, c.maxRetries, err)
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors, server errors and transport failures are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "failed to send request")
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 100 {
		return 100
	}
	return limit
}
