package tinify

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"dzactions/internal/dz"
	"dzactions/internal/httputil"
	"dzactions/internal/ui"
)

var validExts = []string{".png", ".jpg", ".jpeg", ".webp"}

// Output folder choices offered by the action's options sheet.
const (
	OutputSameFolder = "0"
	OutputAsk        = "1"
	OutputPreset     = "2"
)

// Action compresses dragged images and writes them next to the originals or
// into a chosen folder.
type Action struct {
	Client  *Client
	DZ      *dz.Client
	Dialogs ui.Dialogs
	Log     *zap.Logger

	// OutputOption is one of the Output* constants; empty picks a default
	// based on Sandboxed.
	OutputOption string
	Sandboxed    bool
	// PresetDir is used with OutputPreset.
	PresetDir string

	Resize   *ResizeOptions
	Preserve []string
}

// ValidImages reports whether every path has a supported image extension.
func ValidImages(paths []string) bool {
	for _, p := range paths {
		name := strings.ToLower(filepath.Base(p))
		ok := false
		for _, ext := range validExts {
			if strings.HasSuffix(name, ext) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Dragged compresses every dragged image.
func (a *Action) Dragged(ctx context.Context, items []string) error {
	a.DZ.Determinate(false)

	if len(items) == 0 || !ValidImages(items) {
		return a.DZ.Fail("You must drag PNG, JPG or WEBP files to convert")
	}

	out, err := a.outputFolder(items)
	if err != nil {
		return err
	}

	s := ""
	if len(items) > 1 {
		s = "s"
	}

	written := 0
	for i, path := range items {
		name := filepath.Base(path)
		a.DZ.Begin(fmt.Sprintf("(%d/%d) Compressing: %s...", i+1, len(items), name))

		dest := httputil.UniquePath(filepath.Join(out, name))
		size, err := a.compress(ctx, path, dest)
		if err != nil {
			a.Log.Error("compression failed", zap.String("path", path), zap.Error(err))
			continue
		}
		a.Log.Info("compressed",
			zap.String("path", path),
			zap.String("dest", dest),
			zap.String("size", humanize.Bytes(uint64(size))),
			zap.Int64("compression_count", a.Client.CompressionCount()))
		written++
	}

	if written != len(items) {
		return a.DZ.Fail("Image" + s + " Failed to Compress")
	}

	a.DZ.Finish("Image" + s + " Successfully Compressed")
	a.DZ.NoURL()
	return nil
}

func (a *Action) outputFolder(items []string) (string, error) {
	opt := a.OutputOption
	if opt == "" {
		opt = OutputSameFolder
		if a.Sandboxed {
			opt = OutputAsk
		}
	}

	switch opt {
	case OutputSameFolder:
		return filepath.Dir(items[0]), nil
	case OutputAsk:
		s := ""
		if len(items) > 1 {
			s = "s"
		}
		dir, err := a.Dialogs.SelectFolder(fmt.Sprintf("Choose a folder to save the converted image%s to.", s))
		if errors.Is(err, ui.ErrCancelled) || (err == nil && (dir == "" || dir == "0")) {
			return "", a.DZ.Fail("You must select an output folder")
		}
		if err != nil {
			return "", err
		}
		return dir, nil
	case OutputPreset:
		if a.PresetDir == "" {
			return "", a.DZ.Fail("You must select an output folder")
		}
		return a.PresetDir, nil
	}
	return "", fmt.Errorf("unknown output folder option %q", opt)
}

func (a *Action) compress(ctx context.Context, path, dest string) (int, error) {
	src, err := a.Client.FromFile(ctx, path)
	if err != nil {
		return 0, err
	}
	if a.Resize != nil {
		src = src.Resize(*a.Resize)
	}
	if len(a.Preserve) > 0 {
		src = src.Preserve(a.Preserve...)
	}
	res, err := src.Result(ctx)
	if err != nil {
		return 0, err
	}
	if err := res.ToFile(dest); err != nil {
		return 0, err
	}
	return res.Size(), nil
}
