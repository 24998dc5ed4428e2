// Package client talks to the guardrail HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/guardrail/internal/domain/model"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 200 * time.Millisecond
	maxErrorBody        = 64 << 10
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithPollInterval sets how often Wait polls a run.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// Client is a typed wrapper over the runs API.
type Client struct {
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
}

// New creates a client for the server at baseURL, e.g. "http://localhost:9080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: defaultTimeout},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts m to /runs. A non-empty key is sent as the Idempotency-Key header.
func (c *Client) Submit(ctx context.Context, m model.Manifest, key string) (model.Submission, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return model.Submission{}, fmt.Errorf("marshal manifest: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/runs", bytes.NewReader(body))
	if err != nil {
		return model.Submission{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	var sub model.Submission
	if err := c.do(req, http.StatusAccepted, &sub); err != nil {
		return model.Submission{}, err
	}
	return sub, nil
}

// Report fetches the report of one run.
func (c *Client) Report(ctx context.Context, runID string) (model.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/runs/"+url.PathEscape(runID), nil)
	if err != nil {
		return model.Report{}, fmt.Errorf("create request: %w", err)
	}
	var rep model.Report
	if err := c.do(req, http.StatusOK, &rep); err != nil {
		return model.Report{}, err
	}
	return rep, nil
}

// Reports lists up to limit recent reports.
func (c *Client) Reports(ctx context.Context, limit int) ([]model.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/runs?limit="+strconv.Itoa(limit), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	var out struct {
		Runs []model.Report `json:"runs"`
	}
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// Wait polls a run until it reaches a terminal status or ctx is done.
func (c *Client) Wait(ctx context.Context, runID string) (model.Report, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		rep, err := c.Report(ctx, runID)
		if err != nil {
			return model.Report{}, err
		}
		if rep.Status.Terminal() {
			return rep, nil
		}
		select {
		case <-ctx.Done():
			return rep, fmt.Errorf("wait for run %s: %w", runID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Result pairs a submitted manifest with its outcome.
type Result struct {
	Name       string
	Submission model.Submission
	Err        error
}

// SubmitAll submits manifests with at most workers requests in flight.
// Results keep the order of ms; per-manifest failures land in Result.Err.
func (c *Client) SubmitAll(ctx context.Context, ms []model.Manifest, workers int) []Result {
	results := make([]Result, len(ms))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range ms {
		g.Go(func() error {
			sub, err := c.Submit(gctx, ms[i], ms[i].IdempotencyKey)
			results[i] = Result{Name: ms[i].Name, Submission: sub, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Code != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
