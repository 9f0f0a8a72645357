// Package ftpes zips the dragged files and uploads the archive to an FTP
// server over explicit TLS (FTPES).
package ftpes

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"dzactions/internal/archive"
	"dzactions/internal/dz"
	"dzactions/internal/httputil"
	"dzactions/internal/ui"
)

// DefaultPort is used when no port is configured.
const DefaultPort = "21"

// blockSize is the unit progress is counted in.
const blockSize = 1024

// Conn is the subset of *ftp.ServerConn the upload uses.
type Conn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

// Dialer opens a control connection to addr.
type Dialer func(ctx context.Context, addr string) (Conn, error)

// TLSDialer returns a Dialer that negotiates AUTH TLS on the control
// connection; the data channel is protected after login.
func TLSDialer(timeout time.Duration, insecure bool) Dialer {
	return func(ctx context.Context, addr string) (Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		cfg := &tls.Config{
			ServerName:         host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecure,
		}
		c, err := ftp.Dial(addr,
			ftp.DialWithContext(ctx),
			ftp.DialWithTimeout(timeout),
			ftp.DialWithExplicitTLS(cfg),
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Action uploads a zip of the dragged items.
type Action struct {
	Dial    Dialer
	DZ      *dz.Client
	Dialogs ui.Dialogs
	Log     *zap.Logger

	Server     string
	Port       string
	Username   string
	Password   string
	RemotePath string
	RootURL    string
	TempDir    string
}

// Dragged zips items, uploads the archive and cleans it up.
func (a *Action) Dragged(ctx context.Context, items []string) error {
	if a.Server == "" {
		return a.DZ.Error("Error", "You must specify a hostname!")
	}

	name, err := a.outputName()
	if err != nil {
		return a.dialogFail(err)
	}

	a.DZ.Begin(fmt.Sprintf("Running FTPES Task for \"%s\"!", name))
	a.DZ.Determinate(false)

	zipPath := filepath.Join(a.TempDir, name)
	if err := archive.Zip(zipPath, items); err != nil {
		return a.DZ.Error("Error", err.Error())
	}
	defer func() {
		if err := os.Remove(zipPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.Log.Warn("could not remove archive", zap.String("path", zipPath), zap.Error(err))
		}
	}()

	if err := a.upload(ctx, zipPath, name); err != nil {
		a.Log.Error("upload failed", zap.String("server", a.Server), zap.Error(err))
		return a.DZ.Error("Error", err.Error())
	}

	u := httputil.JoinURL(a.RootURL, a.remoteDir(), name)
	a.DZ.Finish(fmt.Sprintf("FTPES upload for \"%s\" done!", u))
	a.DZ.URL(u, "")
	return nil
}

// outputName asks whether to randomise the archive name.
func (a *Action) outputName() (string, error) {
	secure, err := a.Dialogs.YesNo("Are you want to make the filename secure?",
		"This will create a filename like: QW23trU.zip")
	if err != nil {
		return "", err
	}
	if secure {
		return RandomName(), nil
	}

	name, err := a.Dialogs.InputBox("Please enter the filename for the zip file!", "Filename:", "Filename")
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(name, ".zip", "") + ".zip", nil
}

// RandomName returns twelve hex characters of a random UUID plus ".zip".
func RandomName() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:12] + ".zip"
}

// remoteDir prefixes relative remote paths with "./".
func (a *Action) remoteDir() string {
	p := a.RemotePath
	if p == "" || strings.HasPrefix(p, ".") || strings.HasPrefix(p, "/") {
		return p
	}
	return "./" + p
}

func (a *Action) upload(ctx context.Context, zipPath, name string) error {
	f, err := os.Open(zipPath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	port := a.Port
	if port == "" {
		port = DefaultPort
	}
	conn, err := a.Dial(ctx, net.JoinHostPort(a.Server, port))
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", a.Server, err)
	}
	defer conn.Quit()

	user := a.Username
	if user == "" {
		user = "anonymous"
	}
	if err := conn.Login(user, a.Password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if dir := a.remoteDir(); dir != "" {
		if err := changeDir(conn, dir); err != nil {
			return err
		}
	}

	a.DZ.Determinate(true)
	a.Log.Debug("storing", zap.String("file", name), zap.Int64("size", info.Size()))

	r := &progressReader{r: f, total: info.Size(), report: a.DZ.Percent}
	if err := conn.Stor(name, r); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

// changeDir enters dir, creating each missing component on the way.
func changeDir(conn Conn, dir string) error {
	if conn.ChangeDir(dir) == nil {
		return nil
	}
	if strings.HasPrefix(dir, "/") {
		if err := conn.ChangeDir("/"); err != nil {
			return fmt.Errorf("changing to /: %w", err)
		}
	}
	for _, part := range strings.Split(dir, "/") {
		if part == "" || part == "." {
			continue
		}
		if conn.ChangeDir(part) == nil {
			continue
		}
		if err := conn.MakeDir(part); err != nil {
			return fmt.Errorf("creating %s: %w", part, err)
		}
		if err := conn.ChangeDir(part); err != nil {
			return fmt.Errorf("changing to %s: %w", part, err)
		}
	}
	return nil
}

func (a *Action) dialogFail(err error) error {
	var empty *ui.EmptyInputError
	switch {
	case errors.Is(err, ui.ErrCancelled):
		return a.DZ.Fail("Cancelled")
	case errors.As(err, &empty):
		return a.DZ.Fail(empty.Error())
	}
	return err
}

// progressReader reports whole-percent progress per 1024-byte block, only
// when the value grows.
type progressReader struct {
	r      io.Reader
	total  int64
	sent   int64
	last   int
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	if len(b) > blockSize {
		b = b[:blockSize]
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		pct := 100
		if p.total > 0 {
			pct = int(p.sent * 100 / p.total)
		}
		if pct > p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
