// Package panel is the HTTP client for the upstream 3x-ui style panel.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every outbound call when the caller sets none.
const DefaultTimeout = 15 * time.Second

// maxResponseBytes caps how much of an upstream body is buffered.
const maxResponseBytes = 16 << 20

// ErrResponseTooLarge is wrapped in a TransportError when an upstream body
// exceeds the buffer cap. A truncated body is never relayed.
var ErrResponseTooLarge = errors.New("upstream response body too large")

// Doer is the subset of *http.Client the panel client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportError wraps a failure that produced no upstream response at all.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("panel %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewHTTPClient returns an http.Client that keeps Set-Cookie visible to the
// caller: no cookie jar, and redirects are returned instead of followed.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Jar:     nil,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Response is a fully buffered upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client talks to one panel per call; the base URL is passed in every time
// because it is read fresh from settings by the caller.
type Client struct {
	http          Doer
	sessionCookie string
	maxBody       int64
}

// NewClient wraps doer. sessionCookie is the name the panel issues its session under.
func NewClient(doer Doer, sessionCookie string) *Client {
	if sessionCookie == "" {
		sessionCookie = "session"
	}
	return &Client{http: doer, sessionCookie: sessionCookie, maxBody: maxResponseBytes}
}

// SessionCookieName returns the panel's session cookie name.
func (c *Client) SessionCookieName() string {
	return c.sessionCookie
}

// Credentials is the panel login form.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login posts credentials to panelURL + "/login" and returns the raw response.
func (c *Client) Login(ctx context.Context, panelURL string, creds Credentials) (*Response, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("encode login body: %w", err)
	}
	return c.do(ctx, "login", http.MethodPost, panelURL+"/login", bytes.NewReader(body), "")
}

// Forward sends one gateway call upstream with the bridged session token attached.
func (c *Client) Forward(ctx context.Context, method, url string, body io.Reader, token string) (*Response, error) {
	return c.do(ctx, "forward", method, url, body, token)
}

func (c *Client) do(ctx context.Context, op, method, url string, body io.Reader, token string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Cookie", c.sessionCookie+"="+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}
	if int64(len(data)) > c.maxBody {
		return nil, &TransportError{Op: op, URL: url, Err: ErrResponseTooLarge}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// SessionToken returns the value of the panel session cookie from the
// response's Set-Cookie headers, or "" when the panel granted none.
func (c *Client) SessionToken(resp *Response) string {
	parsed := &http.Response{Header: resp.Header}
	for _, ck := range parsed.Cookies() {
		if ck.Name == c.sessionCookie && ck.Value != "" {
			return ck.Value
		}
	}
	return ""
}

// Envelope is the panel's standard result wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj,omitempty"`
}

// ParseEnvelope decodes the success flag and message, accepting both the
// flat form and one wrapped in "data".
func ParseEnvelope(body []byte) (*Envelope, error) {
	var raw struct {
		Envelope
		Data *Envelope `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode panel envelope: %w", err)
	}
	if raw.Data != nil {
		return raw.Data, nil
	}
	return &raw.Envelope, nil
}

// IsTimeout reports whether err is a deadline or client timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
