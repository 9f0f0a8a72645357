// Package shortio shortens URLs through the Short.io links API.
package shortio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"dzactions/internal/dz"
	"dzactions/internal/httputil"
	"dzactions/internal/ui"
)

// ErrNoShortURL is returned when the API answers without a shortURL field.
var ErrNoShortURL = errors.New("response has no shortURL")

// Client creates short links on one Short.io domain.
type Client struct {
	Endpoint  string
	APIKey    string
	Domain    string
	UserAgent string
	HTTP      httputil.Doer
}

type createRequest struct {
	Domain      string `json:"domain"`
	OriginalURL string `json:"originalURL"`
}

// Shorten returns the short link for originalURL.
func (c *Client) Shorten(ctx context.Context, originalURL string) (string, error) {
	payload, err := json.Marshal(createRequest{Domain: c.Domain, OriginalURL: originalURL})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := httputil.NewRequest(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload), c.UserAgent)
	if err != nil {
		return "", err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("authorization", c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("shortening %s: %w", originalURL, err)
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return "", err
	}

	short := gjson.GetBytes(body, "shortURL").String()
	if short == "" {
		return "", fmt.Errorf("%w (HTTP %d)", ErrNoShortURL, resp.StatusCode)
	}
	return short, nil
}

// Shortener is the part of Client the action uses.
type Shortener interface {
	Shorten(ctx context.Context, originalURL string) (string, error)
}

// Action shortens a dragged URL or the URL on the clipboard.
type Action struct {
	Shortener Shortener
	DZ        *dz.Client
	Dialogs   ui.Dialogs
	Log       *zap.Logger
}

// validURL mirrors a permissive parse: any scheme with a host.
func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Dragged shortens the first dragged item.
func (a *Action) Dragged(ctx context.Context, items []string) error {
	a.DZ.Begin("Shortening URL...")
	a.DZ.Determinate(false)

	var long string
	if len(items) > 0 {
		long = items[0]
	}
	if !validURL(long) {
		return a.DZ.Fail("Invalid URL")
	}
	return a.shorten(ctx, long)
}

// Clicked shortens the clipboard URL after the user confirms.
func (a *Action) Clicked(ctx context.Context) error {
	a.DZ.Begin("Shortening URL...")
	a.DZ.Determinate(false)

	long, err := a.Dialogs.ReadClipboard()
	if err != nil {
		return err
	}
	if !validURL(long) {
		return a.DZ.Fail("Invalid URL")
	}

	result, err := a.Dialogs.Pashua(confirmDialog(long))
	if err != nil {
		return err
	}
	if result["cb"] == "1" {
		return a.DZ.Fail("Cancelled")
	}

	a.DZ.Begin("Getting shortened URL...")
	return a.shorten(ctx, long)
}

func (a *Action) shorten(ctx context.Context, long string) error {
	short, err := a.Shortener.Shorten(ctx, long)
	if err != nil {
		a.Log.Warn("shorten failed", zap.String("url", long), zap.Error(err))
		return a.DZ.Fail("Failed to shorten URL.\nCheck your API key and domain.")
	}

	a.DZ.Finish("URL Shortened")
	a.DZ.URL(short, "")
	return nil
}

func confirmDialog(long string) string {
	return "*.title = Confirm Shorten URL\n" +
		"cb.type = cancelbutton\n" +
		"txt.type = text\n" +
		fmt.Sprintf("txt.default = Shorten '%s' using Short.io?\n", long)
}
