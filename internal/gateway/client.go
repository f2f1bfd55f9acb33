// Package gateway talks to the Discord bot that posts banshares, executes bans
// and keeps its messages in sync with the state recorded here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tcn-network/banshare-api/internal/metrics"
)

// ErrUnavailable means the bot could not be reached at all.
var ErrUnavailable = errors.New("discord bot is offline")

// Error is a non-2xx answer from the bot.
type Error struct {
	Status  int
	Route   string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("bot %s returned %d: %s", e.Route, e.Status, e.Message)
	}
	return fmt.Sprintf("bot %s returned %d", e.Route, e.Status)
}

// Rejected reports whether the bot refused the request as malformed.
func (e *Error) Rejected() bool {
	return e.Status == http.StatusBadRequest
}

// Kind names a notification sent to the bot after a committed transition.
type Kind string

const (
	KindSeverity Kind = "severity"
	KindReject   Kind = "reject"
	KindPublish  Kind = "publish"
	KindRescind  Kind = "rescind"
	KindExecute  Kind = "execute"
	KindReport   Kind = "report"
)

// CreateRequest is the report the bot posts for review.
type CreateRequest struct {
	Author         string   `json:"author"`
	IDs            string   `json:"ids"`
	IDList         []string `json:"idList"`
	Reason         string   `json:"reason"`
	Evidence       string   `json:"evidence"`
	Severity       string   `json:"severity"`
	Urgent         bool     `json:"urgent"`
	SkipValidation bool     `json:"skipValidation"`
	ServerName     string   `json:"serverName"`
}

// Payload carries the optional parameters of a notification.
type Payload struct {
	Severity string `json:"-"`
	Guild    string `json:"-"`
	User     string `json:"user,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	// create is never retried: a retried POST /banshares could post twice.
	create *http.Client
	notify *http.Client
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("subsystem", "gateway")

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		timeout: opts.Timeout,
		create:  newHTTPClient(0, logger),
		notify:  newHTTPClient(opts.MaxRetries, logger),
	}
}

func newHTTPClient(maxRetries int, logger *slog.Logger) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = maxRetries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: logger})
	retryClient.CheckRetry = retryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return retryClient.StandardClient()
}

// retryPolicy retries transport errors and gateway-level 5xx only. A 500 from
// the bot means the action itself failed and is reported back as-is.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// Create posts a new banshare for review and returns the message ID the bot
// assigned to it.
func (c *Client) Create(ctx context.Context, req CreateRequest) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, c.create, http.MethodPost, "/banshares", req, &out); err != nil {
		return "", err
	}
	if out.Message == "" {
		return "", &Error{Status: http.StatusBadGateway, Route: "POST /banshares", Message: "missing message id"}
	}
	return out.Message, nil
}

// Notify tells the bot about a committed transition.
func (c *Client) Notify(ctx context.Context, kind Kind, message string, payload Payload) error {
	m := url.PathEscape(message)

	var method, path string
	var body interface{}
	switch kind {
	case KindSeverity:
		method, path = http.MethodPatch, "/banshares/"+m+"/severity/"+url.PathEscape(payload.Severity)
	case KindExecute:
		method, path = http.MethodPost, "/banshares/"+m+"/execute/"+url.PathEscape(payload.Guild)
	case KindReport:
		method, path, body = http.MethodPost, "/banshares/"+m+"/report", payload
	case KindReject, KindPublish, KindRescind:
		method, path = http.MethodPost, "/banshares/"+m+"/"+string(kind)
	default:
		return fmt.Errorf("unknown notification kind %q", kind)
	}

	return c.do(ctx, c.notify, method, path, body, nil)
}

// Remind asks the bot to ping reviewers about overdue banshares.
func (c *Client) Remind(ctx context.Context) error {
	return c.do(ctx, c.notify, http.MethodPost, "/banshares/remind", nil, nil)
}

// ValidateChannel checks that channel is a valid banshare destination in guild.
// A refusal is returned as an *Error with status 400.
func (c *Client) ValidateChannel(ctx context.Context, guild, channel string) error {
	path := "/channels/" + url.PathEscape(channel) + "/banshare-valid/" + url.PathEscape(guild)

	var out struct {
		Error string `json:"error"`
	}
	if err := c.do(ctx, c.notify, http.MethodGet, path, nil, &out); err != nil {
		return err
	}
	if out.Error != "" {
		return &Error{Status: http.StatusBadRequest, Route: "GET " + path, Message: out.Error}
	}
	return nil
}

// MessageExists reports whether the bot still sees the banshare's message.
func (c *Client) MessageExists(ctx context.Context, message string) (bool, error) {
	err := c.do(ctx, c.notify, http.MethodGet, "/banshares/"+url.PathEscape(message)+"/message", nil, nil)
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, method, path string, in, out interface{}) error {
	route := method + " " + path
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode bot request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build bot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := client.Do(req)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues(method, "unavailable").Inc()
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, route, err)
	}
	defer resp.Body.Close()

	metrics.GatewayRequests.WithLabelValues(method, statusClass(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, route, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &payload)
		return &Error{Status: resp.StatusCode, Route: route, Message: payload.Message}
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode bot response for %s: %w", route, err)
		}
	}
	return nil
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// leveledSlog downgrades retry errors to warnings; the final outcome is
// reported by the caller.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Debug(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debug(msg, keysAndValues...)
}
