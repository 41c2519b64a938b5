package seeder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// maxErrorBody bounds how much of an error response is quoted back.
const maxErrorBody = 512

// client wraps http.Client with JSON helpers bound to one base URL.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

func (c *client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// getJSON decodes a 200 response from path into out.
func (c *client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: GET %s: HTTP %d: %s", ErrUnexpectedStatus, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *client) health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("connect to service: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	// /healthz serves Prometheus metrics; any 200 counts as healthy.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeDuplicate
	outcomeFailed
)

func (c *client) submit(ctx context.Context, sub Submission) outcome {
	resp, err := c.do(ctx, http.MethodPost, "/submissions", sub)
	if err != nil {
		return outcomeFailed
	}
	defer func() { _ = resp.Body.Close() }()

	var ack ackResponse
	_ = json.NewDecoder(resp.Body).Decode(&ack)
	switch resp.StatusCode {
	case http.StatusAccepted:
		return outcomeAccepted
	case http.StatusOK:
		if !ack.Duplicate {
			return outcomeFailed
		}
		return outcomeDuplicate
	default:
		return outcomeFailed
	}
}

func (c *client) rank(ctx context.Context, scheme, crewID string) (Entry, error) {
	var e Entry
	err := c.getJSON(ctx, "/rank/"+url.PathEscape(crewID)+"?scheme="+url.QueryEscape(scheme), &e)
	return e, err
}

func (c *client) leaderboard(ctx context.Context, scheme string, limit int) ([]Entry, error) {
	var entries []Entry
	err := c.getJSON(ctx, "/leaderboard?scheme="+url.QueryEscape(scheme)+"&limit="+strconv.Itoa(limit), &entries)
	return entries, err
}

// ranked reads the per-scheme crew count from /stats.
func (c *client) ranked(ctx context.Context, scheme string) (int, error) {
	var stats struct {
		CrewsByScheme map[string]int `json:"crewsByScheme"`
	}
	if err := c.getJSON(ctx, "/stats", &stats); err != nil {
		return 0, err
	}
	return stats.CrewsByScheme[scheme], nil
}
