// Package client talks to a chat thread's HTTP endpoints.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/omochice/threadchat/pkg/protocol"
	"github.com/rs/zerolog"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

var (
	// ErrMalformedResponse is returned when a response cannot be decoded or
	// reports success without a message.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrInvalidBaseURL is returned by New for a base URL that is not http(s).
	ErrInvalidBaseURL = errors.New("invalid base url")
)

// ResponseError is a response that decoded but did not report success.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// ServerMessage returns the error text the server sent.
func (e *ResponseError) ServerMessage() string {
	return e.Message
}

// Options configures a Client.
type Options struct {
	// BaseURL is the site root, e.g. https://example.org.
	BaseURL  string
	ThreadID protocol.ThreadID
	// CSRFToken is sent as both header and form field when set.
	CSRFToken string
	// Header is added to every request (cookies, identity headers).
	Header http.Header
	// Timeout bounds each request; zero means no timeout.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client calls the message-creation and mark-read endpoints of one thread.
type Client struct {
	base      *url.URL
	threadID  protocol.ThreadID
	csrfToken string
	header    http.Header
	timeout   time.Duration
	http      *http.Client
	log       zerolog.Logger
}

// New creates a Client for the thread in opts.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, opts.BaseURL)
	}
	if opts.ThreadID == "" {
		return nil, errors.New("thread id is required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		base:      base,
		threadID:  opts.ThreadID,
		csrfToken: opts.CSRFToken,
		header:    opts.Header.Clone(),
		timeout:   opts.Timeout,
		http:      hc,
		log:       opts.Logger.With().Str("component", "client").Str("thread", string(opts.ThreadID)).Logger(),
	}, nil
}

// MessageURL returns the message-creation endpoint.
func (c *Client) MessageURL() string {
	return c.resolve("/chat/thread/" + url.PathEscape(string(c.threadID)) + "/")
}

// MarkReadURL returns the mark-thread-read endpoint.
func (c *Client) MarkReadURL() string {
	return c.resolve("/chat/api/mark-thread-read/" + url.PathEscape(string(c.threadID)) + "/")
}

// HistoryURL returns the endpoint listing the thread's messages.
func (c *Client) HistoryURL() string {
	return c.resolve("/chat/api/thread/" + url.PathEscape(string(c.threadID)) + "/messages/")
}

// CreateMessage posts body to the thread and returns the stored message.
func (c *Client) CreateMessage(ctx context.Context, body, requestID string) (protocol.Message, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("body", body); err != nil {
		return protocol.Message{}, fmt.Errorf("failed to encode form: %w", err)
	}
	if c.csrfToken != "" {
		if err := w.WriteField("csrfmiddlewaretoken", c.csrfToken); err != nil {
			return protocol.Message{}, fmt.Errorf("failed to encode form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return protocol.Message{}, fmt.Errorf("failed to encode form: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.MessageURL(), w.FormDataContentType(), &buf, requestID)
	if err != nil {
		return protocol.Message{}, err
	}
	if resp.Message == nil {
		return protocol.Message{}, fmt.Errorf("%w: success without message", ErrMalformedResponse)
	}
	c.log.Debug().Str("request_id", requestID).Int64("message_id", resp.Message.ID).Msg("message created")
	return *resp.Message, nil
}

// MarkThreadRead asks the server to mark the thread's messages read for the
// current user.
func (c *Client) MarkThreadRead(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, c.MarkReadURL(), "", nil, "")
	return err
}

// History returns the messages already in the thread, oldest first.
func (c *Client) History(ctx context.Context) ([]protocol.Message, error) {
	resp, err := c.do(ctx, http.MethodGet, c.HistoryURL(), "", nil, "")
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) do(ctx context.Context, method, target, contentType string, body io.Reader, requestID string) (*protocol.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.csrfToken != "" {
		req.Header.Set("X-CSRFToken", c.csrfToken)
	}
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp protocol.Response
	if err := resp.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: status %d: %v", ErrMalformedResponse, res.StatusCode, err)
	}
	if !resp.Success || res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &ResponseError{StatusCode: res.StatusCode, Message: resp.Error}
	}
	return &resp, nil
}

func (c *Client) resolve(path string) string {
	u := *c.base
	u.Path = strings.TrimSuffix(c.base.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
