package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 30 * time.Second

// Client wraps resty for JSON calls to the payment gateway.
type Client struct {
	r       *resty.Client
	timeout time.Duration
	// idempotencyHeader marks a non-GET request as safe to replay.
	idempotencyHeader string
}

// Response is a completed HTTP exchange. Non-2xx statuses are not errors at
// this layer; callers classify them.
type Response struct {
	StatusCode int
	Body       []byte
}

// New creates a new HTTP client with sensible defaults. Transport failures and
// 5xx responses are retried for replayable requests only.
func New() *Client {
	c := &Client{timeout: defaultTimeout}
	c.r = resty.New().
		SetTimeout(defaultTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json").
		AddRetryCondition(c.shouldRetry)

	return c
}

// WithTimeout bounds each call, retries and waits included.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	c.r.SetTimeout(d)
	return c
}

// WithBaseURL prefixes every request path.
func (c *Client) WithBaseURL(url string) *Client {
	c.r.SetBaseURL(url)
	return c
}

// WithBasicAuth authenticates every request.
func (c *Client) WithBasicAuth(user, password string) *Client {
	c.r.SetBasicAuth(user, password)
	return c
}

// WithRetry overrides the retry count and wait bounds.
func (c *Client) WithRetry(count int, wait, maxWait time.Duration) *Client {
	c.r.SetRetryCount(count).SetRetryWaitTime(wait).SetRetryMaxWaitTime(maxWait)
	return c
}

// WithIdempotencyHeader lets POST requests carrying header be retried.
func (c *Client) WithIdempotencyHeader(header string) *Client {
	c.idempotencyHeader = header
	return c
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, resty.MethodGet, path, nil, nil)
}

// Post sends a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}, headers map[string]string) (*Response, error) {
	return c.Do(ctx, resty.MethodPost, path, body, headers)
}

// Do sends a request. body is JSON-encoded when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := c.r.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	for k, v := range headers {
		req.SetHeader(k, v)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

func (c *Client) shouldRetry(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || !c.replayable(resp.Request) {
		return false
	}
	return err != nil || resp.StatusCode() >= 500
}

func (c *Client) replayable(req *resty.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		return true
	}
	return c.idempotencyHeader != "" && req.Header.Get(c.idempotencyHeader) != ""
}
