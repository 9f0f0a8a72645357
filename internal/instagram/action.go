package instagram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"dzactions/internal/dz"
	"dzactions/internal/httputil"
	"dzactions/internal/media"
	"dzactions/internal/session"
)

// postPattern extracts the shortcode from a post, reel or IGTV URL.
var postPattern = regexp.MustCompile(`instagram\.com/(?:p|reels?|tv)/([A-Za-z0-9_-]+)`)

// API is the part of Client the action uses.
type API interface {
	TestLogin(ctx context.Context) (string, error)
	Login(ctx context.Context, username, password string) error
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
	Post(ctx context.Context, shortcode string) (*media.Post, error)
	Download(ctx context.Context, mediaURL, dest string) error
}

// Action downloads a dragged Instagram post into OutputDir.
type Action struct {
	API         API
	DZ          *dz.Client
	Username    string
	Password    string
	OutputDir   string
	SessionPath string
	Log         *zap.Logger
}

// Shortcode returns the post shortcode in rawURL, or "" when it is not a post URL.
func Shortcode(rawURL string) string {
	m := postPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// Dragged handles a URL dropped onto the action.
func (a *Action) Dragged(ctx context.Context, items []string) error {
	var shortcode string
	if len(items) > 0 {
		shortcode = Shortcode(items[0])
	}
	if shortcode == "" {
		return a.DZ.Error("Invalid Instagram Post URL",
			"The URL was not valid. You must use this action with a URL like https://www.instagram.com/p/post")
	}

	a.DZ.Begin("Logging in to Instagram...")
	a.DZ.Determinate(false)

	if err := a.ensureLogin(ctx); err != nil {
		return err
	}

	a.DZ.Begin("Downloading Instagram post...")

	post, err := a.API.Post(ctx, shortcode)
	if err != nil {
		return err
	}

	name := strings.Trim(PrintableCaption(post.Caption), ". ")
	if name == "" {
		name = post.Shortcode
	}

	if err := os.MkdirAll(a.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	dest, err := httputil.SafeDownloadPath(a.OutputDir, name+post.Kind.Ext())
	if err != nil {
		return err
	}
	dest = httputil.UniquePath(dest)

	a.Log.Info("downloading post",
		zap.String("shortcode", post.Shortcode),
		zap.Stringer("kind", post.Kind),
		zap.String("dest", dest))

	if err := a.API.Download(ctx, post.URL, dest); err != nil {
		return err
	}

	a.DZ.Finish("Download Complete")
	a.DZ.NoURL()
	return nil
}

// ensureLogin reuses the saved session when it is still valid and logs in
// with the configured credentials otherwise.
func (a *Action) ensureLogin(ctx context.Context) error {
	cookies, err := session.Load(a.SessionPath)
	if err != nil {
		a.Log.Warn("ignoring unreadable session", zap.Error(err))
	}
	if len(cookies) > 0 {
		a.API.SetCookies(cookies)
		user, err := a.API.TestLogin(ctx)
		if err == nil {
			a.Log.Debug("reusing session", zap.String("username", user))
			return nil
		}
		if errors.Is(err, ErrNotLoggedIn) {
			if err := session.Remove(a.SessionPath); err != nil {
				a.Log.Warn("could not remove stale session", zap.Error(err))
			}
		} else {
			a.Log.Warn("session test failed", zap.Error(err))
		}
	}

	if a.Username == "" || a.Password == "" {
		return fmt.Errorf("instagram username and password are required")
	}
	if err := a.API.Login(ctx, a.Username, a.Password); err != nil {
		return err
	}
	if err := session.Save(a.SessionPath, a.API.Cookies()); err != nil {
		a.Log.Warn("could not save session", zap.Error(err))
	}
	return nil
}

// PrintableCaption flattens caption to one line: lines are joined with
// spaces, slashes become U+2215 and anything over 31 characters is cut to 30
// plus an ellipsis.
func PrintableCaption(caption string) string {
	var parts []string
	for _, line := range strings.Split(caption, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		parts = append(parts, strings.ReplaceAll(line, "/", "∕"))
	}
	p := []rune(strings.TrimSpace(strings.Join(parts, " ")))
	if len(p) > 31 {
		return string(p[:30]) + "…"
	}
	return string(p)
}
