package qiniu

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"dzactions/internal/dz"
	"dzactions/internal/httputil"
	"dzactions/internal/media"
	"dzactions/internal/ui"
)

// Action uploads a dragged file, or the clipboard image when clicked.
type Action struct {
	Store   Store
	DZ      *dz.Client
	Dialogs ui.Dialogs
	Log     *zap.Logger

	// RootURL is the bucket domain used to build the public link.
	RootURL string
	// BackupDir receives a copy of every uploaded file when set.
	BackupDir string
	// CheckCollision renames the key to name-N.ext while it already exists.
	CheckCollision bool
	// Pngpaste is the pngpaste binary used to dump the clipboard image.
	Pngpaste string
	// TempDir is where the clipboard image is staged.
	TempDir string
}

// Dragged uploads the first dragged file under its own name.
func (a *Action) Dragged(ctx context.Context, items []string) error {
	if len(items) == 0 {
		return a.DZ.Fail("Upload Failed")
	}

	a.DZ.Begin("Starting uploading...")
	a.DZ.Determinate(true)
	a.DZ.Percent(10)

	path := items[0]
	return a.upload(ctx, path, filepath.Base(path))
}

// Clicked uploads the image currently on the clipboard under a name the user enters.
func (a *Action) Clicked(ctx context.Context) error {
	a.DZ.Percent(10)

	cache := filepath.Join(a.TempDir, "qiniu_img_cache")
	if err := a.pasteImage(ctx, cache); err != nil {
		return a.DZ.Fail(err.Error())
	}
	defer os.Remove(cache)

	name, err := a.Dialogs.InputBox("Filename Required", "Enter filename without suffix:", "Filename")
	if err != nil {
		return a.dialogFail(err)
	}

	ext, err := sniffImage(cache)
	if err != nil {
		return err
	}
	if ext == "" {
		return a.DZ.Fail("Clipboard does not contain an image")
	}

	dest, err := httputil.SafeDownloadPath(a.TempDir, name+"."+ext)
	if err != nil {
		return err
	}
	key := filepath.Base(dest)
	if err := os.Rename(cache, dest); err != nil {
		return fmt.Errorf("moving clipboard image: %w", err)
	}

	a.DZ.Begin("Starting uploading...")
	a.DZ.Determinate(true)

	return a.upload(ctx, dest, key)
}

func (a *Action) upload(ctx context.Context, path, key string) error {
	if a.CheckCollision {
		free, err := a.freeKey(ctx, key)
		if err != nil {
			a.Log.Warn("collision check failed", zap.String("key", key), zap.Error(err))
		} else {
			key = free
		}
	}

	a.Log.Info("uploading", zap.String("path", path), zap.String("key", key))
	if err := a.Store.Upload(ctx, path, key); err != nil {
		a.Log.Error("upload failed", zap.Error(err))
		return a.DZ.Fail("Upload Failed")
	}

	if a.BackupDir != "" {
		if err := copyFile(path, filepath.Join(a.BackupDir, key)); err != nil {
			a.Log.Warn("backup copy failed", zap.String("dir", a.BackupDir), zap.Error(err))
		}
	}

	a.DZ.Finish("Upload Completed")
	a.DZ.Percent(100)
	a.DZ.URL(PublicURL(a.RootURL, key), "")
	return nil
}

// freeKey returns key, or the first name-N.ext variant not yet in the bucket.
func (a *Action) freeKey(ctx context.Context, key string) (string, error) {
	var statErr error
	free := httputil.UniqueName(key, func(k string) bool {
		if statErr != nil {
			return false
		}
		ok, err := a.Store.Exists(ctx, k)
		if err != nil {
			statErr = err
			return false
		}
		return ok
	})
	if statErr != nil {
		return "", statErr
	}
	return free, nil
}

// PublicURL is the link to key on the bucket domain.
func PublicURL(rootURL, key string) string {
	return "http://" + strings.TrimRight(rootURL, "/") + "/" + key
}

func (a *Action) pasteImage(ctx context.Context, dest string) error {
	bin := a.Pngpaste
	if bin == "" {
		bin = "pngpaste"
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, dest)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			msg = err.Error()
		}
		return errors.New(msg)
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

func sniffImage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening clipboard image: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading clipboard image: %w", err)
	}
	return media.ImageExt(head[:n]), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
