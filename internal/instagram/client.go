// Package instagram downloads single Instagram posts using a logged-in web session.
package instagram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"dzactions/internal/httputil"
	"dzactions/internal/media"
)

// testLoginHash is the GraphQL query that returns the logged-in user.
const testLoginHash = "d6f4427fbe92d846298cf93df0b937d3"

// ErrNotLoggedIn is returned by TestLogin when the session is anonymous.
var ErrNotLoggedIn = errors.New("not logged in")

// Client talks to the Instagram web API. Cookies are kept in an in-memory jar
// and can be exported for persistence.
type Client struct {
	BaseURL   string
	UserAgent string

	http *http.Client
	jar  http.CookieJar
	base *url.URL
	log  *zap.Logger
}

// NewClient returns a Client for baseURL. opts.Jar is replaced with a fresh jar.
func NewClient(baseURL string, opts httputil.Options, userAgent string, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
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
		BaseURL:   base.String(),
		UserAgent: userAgent,
		http:      hc,
		jar:       jar,
		base:      base,
		log:       log,
	}, nil
}

// Cookies returns the session cookies for the Instagram host.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.base)
}

// SetCookies seeds the jar, typically from a saved session.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.jar.SetCookies(c.base, cookies)
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.Cookies() {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := httputil.NewRequest(ctx, method, c.BaseURL+path, body, c.UserAgent)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Referer", c.BaseURL+"/")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if tok := c.cookie("csrftoken"); tok != "" {
		req.Header.Set("X-CSRFToken", tok)
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, msg)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s %s: response is not JSON", req.Method, req.URL.Path)
	}
	return body, nil
}

// TestLogin returns the username of the logged-in session, or ErrNotLoggedIn.
func (c *Client) TestLogin(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("query_hash", testLoginHash)
	q.Set("variables", "{}")

	req, err := c.newRequest(ctx, http.MethodGet, "/graphql/query/?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	body, err := c.doJSON(req)
	if err != nil {
		return "", fmt.Errorf("testing login: %w", err)
	}

	user := gjson.GetBytes(body, "data.user")
	if !user.Exists() || user.Type == gjson.Null {
		return "", ErrNotLoggedIn
	}
	return user.Get("username").String(), nil
}

// Login authenticates with username and password, leaving the session
// cookies in the jar.
func (c *Client) Login(ctx context.Context, username, password string) error {
	// The landing page sets the csrftoken cookie.
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching csrf token: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if c.cookie("csrftoken") == "" {
		return fmt.Errorf("login: no csrf token received")
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	form := url.Values{}
	form.Set("enc_password", "#PWD_INSTAGRAM_BROWSER:0:"+ts+":"+password)
	form.Set("username", username)
	form.Set("queryParams", "{}")
	form.Set("optIntoOneTap", "false")

	req, err = c.newRequest(ctx, http.MethodPost, "/api/v1/web/accounts/login/ajax/", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err = c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	res := gjson.ParseBytes(body)
	switch {
	case res.Get("two_factor_required").Bool():
		return fmt.Errorf("login: two-factor authentication is not supported")
	case res.Get("checkpoint_url").Exists():
		return fmt.Errorf("login: checkpoint required, log in through a browser first")
	case res.Get("authenticated").Bool():
		c.log.Debug("logged in", zap.String("username", username))
		return nil
	case res.Get("user").Exists() && !res.Get("user").Bool():
		return fmt.Errorf("login: user %s does not exist", username)
	case res.Get("authenticated").Exists():
		return fmt.Errorf("login: wrong password")
	}

	msg := res.Get("message").String()
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("login: %s", msg)
}

// Post fetches the metadata of the post identified by shortcode.
func (c *Client) Post(ctx context.Context, shortcode string) (*media.Post, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/p/"+url.PathEscape(shortcode)+"/?__a=1&__d=dis", nil)
	if err != nil {
		return nil, err
	}
	body, err := c.doJSON(req)
	if err != nil {
		return nil, fmt.Errorf("fetching post %s: %w", shortcode, err)
	}

	post, ok := parsePost(body)
	if !ok {
		return nil, fmt.Errorf("fetching post %s: no media in response", shortcode)
	}
	if post.Shortcode == "" {
		post.Shortcode = shortcode
	}
	return post, nil
}

// parsePost reads either the graphql or the items payload shape.
func parsePost(body []byte) (*media.Post, bool) {
	if node := gjson.GetBytes(body, "graphql.shortcode_media"); node.Exists() {
		post := &media.Post{
			Shortcode: node.Get("shortcode").String(),
			Caption:   node.Get("edge_media_to_caption.edges.0.node.text").String(),
			Owner:     node.Get("owner.username").String(),
			URL:       node.Get("display_url").String(),
		}
		if node.Get("is_video").Bool() {
			post.Kind = media.Video
			post.URL = node.Get("video_url").String()
		}
		return post, post.URL != ""
	}

	if item := gjson.GetBytes(body, "items.0"); item.Exists() {
		post := &media.Post{
			Shortcode: item.Get("code").String(),
			Caption:   item.Get("caption.text").String(),
			Owner:     item.Get("user.username").String(),
			URL:       item.Get("image_versions2.candidates.0.url").String(),
		}
		if item.Get("media_type").Int() == 2 {
			post.Kind = media.Video
			post.URL = item.Get("video_versions.0.url").String()
		}
		return post, post.URL != ""
	}

	return nil, false
}

// Download saves mediaURL to dest through a .part file.
func (c *Client) Download(ctx context.Context, mediaURL, dest string) error {
	if err := httputil.ValidateURL(mediaURL); err != nil {
		return fmt.Errorf("media URL: %w", err)
	}
	req, err := httputil.NewRequest(ctx, http.MethodGet, mediaURL, nil, c.UserAgent)
	if err != nil {
		return err
	}
	req.Header.Set("Referer", c.BaseURL+"/")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", mediaURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("GET %s: %s", mediaURL, resp.Status)
	}

	tmpPath := dest + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file %s: %w", tmpPath, err)
	}

	_, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, closeErr)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, dest, err)
	}
	c.log.Debug("downloaded", zap.String("url", mediaURL), zap.String("path", dest))
	return nil
}
