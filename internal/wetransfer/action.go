package wetransfer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"dzactions/internal/dz"
	"dzactions/internal/ui"
)

// Uploader is the part of Client the action uses.
type Uploader interface {
	Upload(ctx context.Context, path, name, message string) (*Transfer, error)
}

// Action uploads every dragged file and hands the share links to the host.
type Action struct {
	Uploader Uploader
	DZ       *dz.Client
	Dialogs  ui.Dialogs
	Log      *zap.Logger

	Message string
	SiteURL string
}

// Dragged uploads each item as its own transfer.
func (a *Action) Dragged(ctx context.Context, items []string) error {
	a.DZ.Begin("Uploading...")
	a.DZ.Determinate(false)

	var links []string
	for _, item := range items {
		name := filepath.Base(item)
		a.DZ.Begin(fmt.Sprintf("Uploading %s...", name))

		t, err := a.Uploader.Upload(ctx, item, name, a.Message)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", name, err)
		}
		a.Log.Info("uploaded", zap.String("file", name), zap.String("url", t.ShortenedURL))
		links = append(links, t.ShortenedURL)
	}

	if len(links) > 1 {
		a.DZ.Finish("URLs now on clipboard")
		a.DZ.Text(strings.Join(links, "\n"))
		return nil
	}
	a.DZ.Finish("URL is now on clipboard")
	a.DZ.URL(strings.Join(links, "\n"), "")
	return nil
}

// Clicked opens the WeTransfer site.
func (a *Action) Clicked(ctx context.Context) error {
	site := a.SiteURL
	if site == "" {
		site = "https://wetransfer.com/"
	}
	return a.Dialogs.OpenURL(site)
}
