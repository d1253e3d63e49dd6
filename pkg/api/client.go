// Package api is the HTTP client of the sculpture job service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

const (
	maxErrorBody = 64 * 1024
	// RequestIDHeader carries a per request correlation id
	RequestIDHeader = "X-Request-ID"
)

type (
	Option func(*Client)

	Client struct {
		baseURL *url.URL
		http    *http.Client
		l       *log.Logger
	}

	// HTTPError is returned for non-2xx responses. Detail holds the
	// error description of the service if present.
	HTTPError struct {
		Method     string
		Path       string
		StatusCode int
		Detail     string
		// RequestID is the correlation id sent as X-Request-ID
		RequestID string
	}
)

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// IsNotFound reports whether err is an HTTPError with status 404
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.http.Timeout = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(cl *Client) {
		cl.l = l
	}
}

func NewClient(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: unsupported scheme %q", base, u.Scheme)
	}
	ret := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		l:       log.Default().Named("api"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret, nil
}

func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// StreamURL returns the websocket url of the streaming channel of a task
func (c *Client) StreamURL(taskID string) string {
	u := c.BaseURL()
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/tasks/" + url.PathEscape(taskID)
	return u.String()
}

// SubmitSculpture requests a single driver sculpture.
// Validation and transport errors wrap model.ErrSubmission.
//
//nolint:whitespace // editor/linter issue
func (c *Client) SubmitSculpture(
	ctx context.Context,
	req model.SculptureRequest,
) (*model.TaskResponse, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSubmission, err)
	}
	return c.submit(ctx, "/api/tasks/sculpture", req)
}

// SubmitCompare requests a comparison of 2 to 5 drivers
//
//nolint:whitespace // editor/linter issue
func (c *Client) SubmitCompare(
	ctx context.Context,
	req model.CompareRequest,
) (*model.TaskResponse, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSubmission, err)
	}
	return c.submit(ctx, "/api/tasks/compare", req)
}

func (c *Client) submit(ctx context.Context, path string, body any) (*model.TaskResponse, error) {
	var ret model.TaskResponse
	if err := c.do(ctx, http.MethodPost, path, nil, body, &ret); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSubmission, err)
	}
	if ret.TaskID == "" {
		return nil, fmt.Errorf("%w: response without task id", model.ErrSubmission)
	}
	c.l.Debug("job submitted",
		log.String("path", path),
		log.String("taskID", ret.TaskID),
		log.String("status", string(ret.Status)))
	return &ret, nil
}

func (c *Client) Status(ctx context.Context, taskID string) (*model.TaskStatus, error) {
	var ret model.TaskStatus
	if err := c.do(ctx, http.MethodGet, taskPath(taskID), nil, nil, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

type resultResponse struct {
	TaskID string           `json:"task_id"`
	Status model.TaskState  `json:"status"`
	Result *model.JobResult `json:"result"`
}

func (c *Client) Result(ctx context.Context, taskID string) (*model.JobResult, error) {
	var ret resultResponse
	if err := c.do(ctx, http.MethodGet, taskPath(taskID)+"/result", nil, nil, &ret); err != nil {
		return nil, err
	}
	if ret.Result == nil {
		return nil, fmt.Errorf("task %s: %w: empty result", taskID, model.ErrInvalidDataset)
	}
	return ret.Result, nil
}

// CachedResult fetches an already computed result for the request parameters.
//
//nolint:whitespace // editor/linter issue
func (c *Client) CachedResult(
	ctx context.Context,
	req model.SculptureRequest,
) (*model.JobResult, error) {
	req = req.Normalize()
	q := url.Values{}
	q.Set("year", strconv.Itoa(req.Year))
	q.Set("round", strconv.Itoa(req.Round))
	q.Set("session", req.Session)
	q.Set("driver", req.Driver)
	var ret resultResponse
	path := taskPath(model.CachedTaskID) + "/result"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &ret); err != nil {
		return nil, err
	}
	if ret.Result == nil {
		return nil, fmt.Errorf("cached result: %w: empty result", model.ErrInvalidDataset)
	}
	return ret.Result, nil
}

// Cancel revokes a task. Unknown tasks are not reported as error.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	err := c.do(ctx, http.MethodDelete, taskPath(taskID), nil, nil, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// Health queries the side channel health endpoint.
// An unhealthy service answers with 503 but still reports the details.
func (c *Client) Health(ctx context.Context) (*model.HealthStatus, error) {
	var ret model.HealthStatus
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, &ret)
	var he *HTTPError
	if errors.As(err, &he) && he.StatusCode == http.StatusServiceUnavailable && ret.API != "" {
		return &ret, nil
	}
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) Events(ctx context.Context, year int) ([]model.EventInfo, error) {
	var ret struct {
		Year   int               `json:"year"`
		Events []model.EventInfo `json:"events"`
	}
	path := fmt.Sprintf("/api/events/%d", year)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &ret); err != nil {
		return nil, err
	}
	return ret.Events, nil
}

func (c *Client) Sessions(ctx context.Context, year, round int) (*model.EventSessions, error) {
	var ret model.EventSessions
	path := fmt.Sprintf("/api/sessions/%d/%d", year, round)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

// Drivers lists the participants of a session. The service loads the
// session synchronously, so this may take a while on first access.
//
//nolint:whitespace // editor/linter issue
func (c *Client) Drivers(
	ctx context.Context,
	year, round int,
	session string,
) ([]model.SessionDriver, error) {
	var ret struct {
		Drivers []model.SessionDriver `json:"drivers"`
	}
	path := fmt.Sprintf("/api/drivers/%d/%d/%s", year, round, url.PathEscape(session))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &ret); err != nil {
		return nil, err
	}
	return ret.Drivers, nil
}

func (c *Client) CacheStats(ctx context.Context) (*model.CacheStats, error) {
	var ret model.CacheStats
	if err := c.do(ctx, http.MethodGet, "/api/cache/stats", nil, nil, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

// ClearCache removes all cached sculptures on the service side
func (c *Client) ClearCache(ctx context.Context) error {
	var ret struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/cache/sculptures", nil, nil, &ret); err != nil {
		return err
	}
	c.l.Debug("cache cleared", log.String("message", ret.Message))
	return nil
}

func taskPath(taskID string) string {
	return "/api/tasks/" + url.PathEscape(taskID)
}

// do performs the request. On non-2xx status the body is still decoded into
// out (if possible) and an *HTTPError is returned.
//
//nolint:whitespace,funlen // editor/linter issue
func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body, out any,
) error {
	u := c.BaseURL()
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	var reqBody io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024*1024))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     extractDetail(data),
			RequestID:  requestID,
		}
		if out != nil {
			_ = json.Unmarshal(data, out)
		}
		c.l.Debug("request failed",
			log.String("method", method),
			log.String("path", path),
			log.Int("status", resp.StatusCode),
			log.String("detail", he.Detail),
			log.String("requestID", requestID))
		return he
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

// extractDetail reads the "detail" attribute of an error response. Validation
// errors carry a list of entries with a "msg" attribute.
func extractDetail(data []byte) string {
	var resp struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &resp); err != nil || len(resp.Detail) == 0 {
		s := strings.TrimSpace(string(data))
		if len(s) > maxErrorBody {
			s = s[:maxErrorBody]
		}
		return s
	}
	var s string
	if json.Unmarshal(resp.Detail, &s) == nil {
		return s
	}
	var entries []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(resp.Detail, &entries) == nil && len(entries) > 0 {
		msgs := make([]string, 0, len(entries))
		for _, e := range entries {
			msgs = append(msgs, e.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return string(resp.Detail)
}
