package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// HTTPClient is an ExecutionClient over plain HTTP/JSON. A submission POSTs to
// {endpoint}/tasks; an asynchronous result is polled with GET {endpoint}/tasks/{handle}.
type HTTPClient struct {
	client *http.Client
}

func NewHTTPClient(client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPClient{client: client}
}

func (c *HTTPClient) Submit(ctx context.Context, ep Endpoint, req SubmitRequest) (SubmitResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("encode submit request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, taskURL(ep, ""), bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit to worker '%s': %w", ep.WorkerID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return SubmitResult{}, fmt.Errorf("worker '%s' returned HTTP %d: %s", ep.WorkerID, resp.StatusCode, readBody(resp.Body))
	}

	var out SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SubmitResult{}, fmt.Errorf("decode submit response from worker '%s': %w", ep.WorkerID, err)
	}
	return out, nil
}

func (c *HTTPClient) Poll(ctx context.Context, ep Endpoint, handle string) (PollResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, taskURL(ep, handle), nil)
	if err != nil {
		return PollResult{}, err
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return PollResult{}, fmt.Errorf("poll worker '%s': %w", ep.WorkerID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return PollResult{}, fmt.Errorf("worker '%s' returned HTTP %d: %s", ep.WorkerID, resp.StatusCode, readBody(resp.Body))
	}

	var out PollResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PollResult{}, fmt.Errorf("decode poll response from worker '%s': %w", ep.WorkerID, err)
	}
	return out, nil
}

func taskURL(ep Endpoint, handle string) string {
	base := strings.TrimRight(ep.URL, "/") + "/tasks"
	if handle == "" {
		return base
	}
	return base + "/" + handle
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
