// Package manus is a small client for the Manus agent task API: submit a
// research prompt, poll the task, and download the files it produced.
package manus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/resilience"
)

const (
	defaultBaseURL = "https://api.manus.ai/v1"
	maxFileBytes   = 10 << 20
)

// ErrMissingTaskID is returned when task creation answers 2xx without any
// task identifier in the body.
var ErrMissingTaskID = eris.New("manus: task created without id")

// Client defines the agent task operations used by the enrichment workflow.
type Client interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (*CreateTaskResponse, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	FetchFile(ctx context.Context, fileURL string) ([]byte, error)
}

// CreateTaskRequest is the body for POST /tasks.
type CreateTaskRequest struct {
	Prompt       string `json:"prompt"`
	AgentProfile string `json:"agentProfile,omitempty"`
	TaskMode     string `json:"taskMode,omitempty"`
}

// CreateTaskResponse is the response from POST /tasks. Deployments answer
// with either id or task_id.
type CreateTaskResponse struct {
	ID      string `json:"id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	TaskURL string `json:"task_url,omitempty"`
	Raw     string `json:"-"`
}

// Identifier returns whichever id field the server filled.
func (r CreateTaskResponse) Identifier() string {
	if r.ID != "" {
		return r.ID
	}
	return r.TaskID
}

// Task statuses reported by GET /tasks/{id}.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Task is the response from GET /tasks/{id}. Output is kept raw because its
// shape varies: message array, string, or object.
type Task struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// IsFinished reports whether the task reached a terminal status.
func (t Task) IsFinished() bool {
	switch strings.ToLower(t.Status) {
	case StatusCompleted, StatusFailed, StatusError, StatusCancelled, "canceled", "stopped":
		return true
	}
	return false
}

// IsFailed reports whether the task ended without completing.
func (t Task) IsFailed() bool {
	return t.IsFinished() && !strings.EqualFold(t.Status, StatusCompleted)
}

// APIError is returned when the agent API responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("manus: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the agent API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new agent API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CreateTask(ctx context.Context, req CreateTaskRequest) (*CreateTaskResponse, error) {
	var resp CreateTaskResponse
	raw, err := c.post(ctx, "/tasks", req, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "manus: create task")
	}
	resp.Raw = string(raw)
	if resp.Identifier() == "" {
		return &resp, ErrMissingTaskID
	}
	return &resp, nil
}

func (c *httpClient) GetTask(ctx context.Context, id string) (*Task, error) {
	var task Task
	if _, err := c.get(ctx, "/tasks/"+url.PathEscape(id), true, &task); err != nil {
		return nil, eris.Wrapf(err, "manus: get task %s", id)
	}
	if task.ID == "" {
		task.ID = id
	}
	return &task, nil
}

// FetchFile downloads an output file. File URLs are pre-signed, so the API
// key is not sent.
func (c *httpClient) FetchFile(ctx context.Context, fileURL string) ([]byte, error) {
	data, err := c.get(ctx, fileURL, false, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "manus: fetch file %s", fileURL)
	}
	return data, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) ([]byte, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API_KEY", c.apiKey)

	return c.do(req, out)
}

// get requests an API path, or an absolute URL when authed is false.
func (c *httpClient) get(ctx context.Context, target string, authed bool, out any) ([]byte, error) {
	if authed {
		target = c.baseURL + target
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	if authed {
		req.Header.Set("API_KEY", c.apiKey)
	}
	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, eris.Wrap(err, "rate limit wait")
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, eris.Wrap(err, "decode response")
		}
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
