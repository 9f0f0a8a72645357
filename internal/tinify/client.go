// Package tinify is a client for the TinyPNG image compression API.
package tinify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"dzactions/internal/httputil"
)

// Version is reported in the user agent.
const Version = "1.6.0"

// DefaultEndpoint is the production API.
const DefaultEndpoint = "https://api.tinify.com"

// retryDelay is the pause before the single retry of a failed request.
var retryDelay = 500 * time.Millisecond

// Client signs requests with an API key.
type Client struct {
	Endpoint string
	Key      string
	HTTP     httputil.Doer
	Log      *zap.Logger

	compressionCount atomic.Int64
}

// NewClient returns a Client for key using hc for transport.
func NewClient(key string, hc httputil.Doer, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{Endpoint: DefaultEndpoint, Key: key, HTTP: hc, Log: log}
}

// CompressionCount is the number of compressions this month as last reported by the API.
func (c *Client) CompressionCount() int64 {
	return c.compressionCount.Load()
}

func userAgent() string {
	return fmt.Sprintf("Tinify/%s Go/%s (dzactions)", Version, strings.TrimPrefix(runtime.Version(), "go"))
}

// response is a fully read API response.
type response struct {
	header http.Header
	body   []byte
}

// request sends method to path (or an absolute https URL) with an optional body,
// retrying once after a server or connection failure. An image response is
// read in full; any other body is capped.
func (c *Client) request(ctx context.Context, method, path string, body []byte, contentType string, image bool) (*response, error) {
	resp, err := c.do(ctx, method, path, body, contentType, image)
	if err == nil || !retryable(err) {
		return resp, err
	}

	c.Log.Debug("retrying tinify request", zap.String("path", path), zap.Error(err))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryDelay):
	}
	return c.do(ctx, method, path, body, contentType, image)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, image bool) (*response, error) {
	if c.Key == "" {
		return nil, &Error{Kind: KindAccount, Message: "Provide an API key"}
	}

	target := path
	if !strings.HasPrefix(strings.ToLower(path), "https://") && !strings.HasPrefix(strings.ToLower(path), "http://") {
		target = strings.TrimRight(c.Endpoint, "/") + path
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth("api", c.Key)
	req.Header.Set("User-Agent", userAgent())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		msg := "Error while connecting: " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			msg = "Timeout while connecting"
		}
		return nil, &Error{Kind: KindConnection, Message: msg, Err: err}
	}

	data, err := readBody(resp, image)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Message: "Error while reading response: " + err.Error(), Err: err}
	}

	if count := resp.Header.Get("Compression-Count"); count != "" {
		if n, err := strconv.ParseInt(count, 10, 64); err == nil {
			c.compressionCount.Store(n)
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &response{header: resp.Header, body: data}, nil
	}

	if !gjson.ValidBytes(data) {
		return nil, newStatusError("Error while parsing response: invalid JSON", "ParseError", resp.StatusCode)
	}
	details := gjson.ParseBytes(data)
	return nil, newStatusError(details.Get("message").String(), details.Get("error").String(), resp.StatusCode)
}

// readBody reads a successful image response without a size cap. JSON and
// error bodies go through httputil.ReadBody.
func readBody(resp *http.Response, image bool) ([]byte, error) {
	if !image || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httputil.ReadBody(resp)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return data, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func (c *Client) shrink(ctx context.Context, body []byte, contentType string) (*Source, error) {
	resp, err := c.request(ctx, http.MethodPost, "/shrink", body, contentType, false)
	if err != nil {
		return nil, err
	}
	loc := resp.header.Get("Location")
	if loc == "" {
		return nil, &Error{Kind: KindUnknown, Message: "response has no Location header"}
	}
	return &Source{client: c, url: loc}, nil
}

// FromFile uploads the image at path.
func (c *Client) FromFile(ctx context.Context, path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return c.FromBuffer(ctx, data)
}

// FromBuffer uploads raw image bytes.
func (c *Client) FromBuffer(ctx context.Context, data []byte) (*Source, error) {
	return c.shrink(ctx, data, "")
}

// FromURL asks the API to fetch and compress the image at imageURL.
func (c *Client) FromURL(ctx context.Context, imageURL string) (*Source, error) {
	body, err := json.Marshal(map[string]any{"source": map[string]string{"url": imageURL}})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return c.shrink(ctx, body, "application/json")
}

// Validate checks the API key. A key that is over its monthly limit still
// counts as valid.
func (c *Client) Validate(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodPost, "/shrink", nil, "", false)
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindAccount && e.Status == http.StatusTooManyRequests {
			return nil
		}
		if e.Kind == KindClient {
			return nil
		}
	}
	return err
}
