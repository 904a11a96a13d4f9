// Package notion talks to the Notion API for the studio's project and
// task databases.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type ClientOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	APIVersion string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Client is a minimal Notion API client with retry on rate limits and
// server errors.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	apiVersion string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.notion.com"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "2022-06-28"
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		httpClient: httpClient,
		apiVersion: apiVersion,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// Page is a Notion page with its raw property map.
type Page struct {
	ID             string              `json:"id"`
	LastEditedTime string              `json:"last_edited_time"`
	Properties     map[string]property `json:"properties"`
}

type queryResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// QueryDatabase fetches every page of a database, following pagination.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string) ([]Page, error) {
	var pages []Page
	var cursor *string
	for {
		payload := map[string]any{}
		if cursor != nil {
			payload["start_cursor"] = *cursor
		}
		body, err := c.do(ctx, http.MethodPost, "/v1/databases/"+databaseID+"/query", payload)
		if err != nil {
			return nil, err
		}
		var resp queryResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode query response: %w", err)
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == nil {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

// UpdatePage patches a page's properties and returns the updated page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]any) (Page, error) {
	body, err := c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, map[string]any{"properties": properties})
	if err != nil {
		return Page{}, err
	}
	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return Page{}, fmt.Errorf("decode page: %w", err)
	}
	return page, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if c.token == "" {
		return nil, fmt.Errorf("notion token is empty")
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + path

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Notion-Version", c.apiVersion)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return respBody, nil
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		errCode := ""
		errMessage := strings.TrimSpace(string(respBody))
		var parsed map[string]any
		if json.Unmarshal(respBody, &parsed) == nil {
			if code, ok := parsed["code"].(string); ok {
				errCode = code
			}
			if message, ok := parsed["message"].(string); ok && strings.TrimSpace(message) != "" {
				errMessage = message
			}
		}
		if errCode != "" {
			return nil, fmt.Errorf("notion request failed: status=%d code=%s message=%s", resp.StatusCode, errCode, errMessage)
		}
		return nil, fmt.Errorf("notion request failed: status=%d message=%s", resp.StatusCode, errMessage)
	}
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
