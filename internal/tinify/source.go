package tinify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
)

// ResizeOptions selects how the result is scaled.
type ResizeOptions struct {
	Method string `json:"method"` // scale, fit, cover or thumb
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Source is a compressed image held by the API, plus the transformations
// to apply when fetching it.
type Source struct {
	client *Client
	url    string

	resize   *ResizeOptions
	preserve []string
}

// URL is the location of the compressed image.
func (s *Source) URL() string { return s.url }

// Resize returns a copy of s that will be resized.
func (s *Source) Resize(opts ResizeOptions) *Source {
	cp := *s
	cp.resize = &opts
	return &cp
}

// Preserve returns a copy of s that keeps the given metadata
// (copyright, creation, location).
func (s *Source) Preserve(options ...string) *Source {
	cp := *s
	cp.preserve = append(append([]string(nil), s.preserve...), options...)
	return &cp
}

func (s *Source) commands() ([]byte, error) {
	cmds := map[string]any{}
	if s.resize != nil {
		cmds["resize"] = s.resize
	}
	if len(s.preserve) > 0 {
		cmds["preserve"] = s.preserve
	}
	if len(cmds) == 0 {
		return nil, nil
	}
	return json.Marshal(cmds)
}

// Result downloads the compressed image. Without commands the location is
// fetched with GET; with commands they are POSTed as JSON.
func (s *Source) Result(ctx context.Context) (*Result, error) {
	body, err := s.commands()
	if err != nil {
		return nil, fmt.Errorf("encoding commands: %w", err)
	}

	method, contentType := http.MethodGet, ""
	if body != nil {
		method, contentType = http.MethodPost, "application/json"
	}

	resp, err := s.client.request(ctx, method, s.url, body, contentType, true)
	if err != nil {
		return nil, err
	}
	return &Result{header: resp.header, Data: resp.body}, nil
}

// ToFile writes the compressed image to path.
func (s *Source) ToFile(ctx context.Context, path string) error {
	r, err := s.Result(ctx)
	if err != nil {
		return err
	}
	return r.ToFile(path)
}

// Result is a downloaded image and its metadata headers.
type Result struct {
	header http.Header
	Data   []byte
}

// ToFile writes the image to path.
func (r *Result) ToFile(path string) error {
	if err := os.WriteFile(path, r.Data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Size is the image size in bytes.
func (r *Result) Size() int { return len(r.Data) }

// MediaType is the Content-Type of the image.
func (r *Result) MediaType() string { return r.header.Get("Content-Type") }

// Width is the Image-Width header, or 0.
func (r *Result) Width() int { return headerInt(r.header, "Image-Width") }

// Height is the Image-Height header, or 0.
func (r *Result) Height() int { return headerInt(r.header, "Image-Height") }

func headerInt(h http.Header, key string) int {
	n, _ := strconv.Atoi(h.Get(key))
	return n
}
