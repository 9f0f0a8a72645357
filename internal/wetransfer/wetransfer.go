// Package wetransfer uploads files to WeTransfer as anonymous link transfers.
package wetransfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"dzactions/internal/httputil"
)

// DefaultChunkSize is the size of each uploaded part.
const DefaultChunkSize = 5 * 1024 * 1024

// Client drives the WeTransfer web API. The CSRF token and session cookie
// are obtained on first use.
type Client struct {
	BaseURL   string
	UserAgent string
	ChunkSize int64
	Language  string

	http *http.Client
	csrf string
	log  *zap.Logger
}

// NewClient returns a Client for baseURL with its own cookie jar.
func NewClient(baseURL string, opts httputil.Options, userAgent string, log *zap.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	opts.Jar = jar
	hc, err := httputil.NewClient(opts)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: userAgent,
		ChunkSize: DefaultChunkSize,
		Language:  "en",
		http:      hc,
		log:       log,
	}, nil
}

// Transfer is the result of a finished upload.
type Transfer struct {
	ID           string `json:"id"`
	ShortenedURL string `json:"shortened_url"`
}

type fileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type linkRequest struct {
	Message    string    `json:"message"`
	UILanguage string    `json:"ui_language"`
	Files      []fileRef `json:"files"`
}

type linkResponse struct {
	ID    string    `json:"id"`
	Files []fileRef `json:"files"`
}

type chunkRequest struct {
	ChunkNumber int    `json:"chunk_number"`
	ChunkSize   int    `json:"chunk_size"`
	ChunkCRC    uint32 `json:"chunk_crc"`
}

type uploadURLResponse struct {
	URL string `json:"url"`
}

type completeRequest struct {
	ChunkCount int `json:"chunk_count"`
}

// prepare fetches the landing page and extracts the CSRF token.
func (c *Client) prepare(ctx context.Context) error {
	if c.csrf != "" {
		return nil
	}

	req, err := httputil.NewRequest(ctx, http.MethodGet, c.BaseURL+"/", nil, c.UserAgent)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching wetransfer.com: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching wetransfer.com: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parsing landing page: %w", err)
	}
	token, ok := doc.Find(`meta[name="csrf-token"]`).Attr("content")
	if !ok || token == "" {
		return fmt.Errorf("parsing landing page: no csrf token")
	}
	c.csrf = token
	return nil
}

// call sends a JSON request to the API and decodes the JSON reply into out.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := httputil.NewRequest(ctx, method, c.BaseURL+path, body, c.UserAgent)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-csrf-token", c.csrf)
	req.Header.Set("x-requested-with", "XMLHttpRequest")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	data, err := httputil.ReadBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// Upload sends the file at path under name and returns the finished transfer.
func (c *Client) Upload(ctx context.Context, path, name, message string) (*Transfer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if name == "" {
		name = filepath.Base(path)
	}

	if err := c.prepare(ctx); err != nil {
		return nil, err
	}

	var link linkResponse
	err = c.call(ctx, http.MethodPost, "/api/v4/transfers/link", linkRequest{
		Message:    message,
		UILanguage: c.Language,
		Files:      []fileRef{{Name: name, Size: info.Size()}},
	}, &link)
	if err != nil {
		return nil, fmt.Errorf("creating transfer: %w", err)
	}
	if link.ID == "" || len(link.Files) == 0 {
		return nil, fmt.Errorf("creating transfer: response has no transfer or file id")
	}

	c.log.Debug("transfer created",
		zap.String("transfer", link.ID),
		zap.String("file", name),
		zap.String("size", humanize.Bytes(uint64(info.Size()))))

	chunks, err := c.uploadChunks(ctx, link.ID, link.Files[0].ID, f)
	if err != nil {
		return nil, err
	}

	filePath := "/api/v4/transfers/" + link.ID + "/files/" + link.Files[0].ID
	if err := c.call(ctx, http.MethodPut, filePath+"/upload-complete", completeRequest{ChunkCount: chunks}, nil); err != nil {
		return nil, fmt.Errorf("completing upload: %w", err)
	}

	var t Transfer
	if err := c.call(ctx, http.MethodPut, "/api/v4/transfers/"+link.ID+"/finalize", struct{}{}, &t); err != nil {
		return nil, fmt.Errorf("finalizing transfer: %w", err)
	}
	if t.ShortenedURL == "" {
		return nil, fmt.Errorf("finalizing transfer: response has no shortened_url")
	}
	return &t, nil
}

// uploadChunks streams r in ChunkSize parts and returns how many were sent.
func (c *Client) uploadChunks(ctx context.Context, transferID, fileID string, r io.Reader) (int, error) {
	size := c.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	buf := make([]byte, size)
	urlPath := "/api/v4/transfers/" + transferID + "/files/" + fileID + "/upload-url"

	n := 0
	for {
		read, readErr := io.ReadFull(r, buf)
		if readErr == io.EOF && n > 0 {
			break
		}
		if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			return n, fmt.Errorf("reading chunk %d: %w", n+1, readErr)
		}
		chunk := buf[:read]
		n++

		var up uploadURLResponse
		err := c.call(ctx, http.MethodPost, urlPath, chunkRequest{
			ChunkNumber: n,
			ChunkSize:   len(chunk),
			ChunkCRC:    crc32.ChecksumIEEE(chunk),
		}, &up)
		if err != nil {
			return n, fmt.Errorf("requesting upload url for chunk %d: %w", n, err)
		}
		if err := c.putChunk(ctx, up.URL, chunk); err != nil {
			return n, fmt.Errorf("uploading chunk %d: %w", n, err)
		}

		// A short read was the last chunk.
		if readErr != nil {
			break
		}
	}
	return n, nil
}

func (c *Client) putChunk(ctx context.Context, uploadURL string, chunk []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(chunk))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.ContentLength = int64(len(chunk))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("PUT chunk: %s", resp.Status)
	}
	return nil
}
