package qiniu

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dzactions/internal/dz"
	"dzactions/internal/ui"
)

type fakeStore struct {
	existing map[string]bool
	uploads  map[string]string
	err      error
}

func (f *fakeStore) Upload(ctx context.Context, localPath, key string) error {
	if f.err != nil {
		return f.err
	}
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	f.uploads[key] = localPath
	return nil
}

func (f *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	return f.existing[key], nil
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "http://cdn.example.com/a.png", PublicURL("cdn.example.com", "a.png"))
	assert.Equal(t, "http://cdn.example.com/a.png", PublicURL("cdn.example.com/", "a.png"))
}

func TestDragged(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "shot.png")
	require.NoError(t, os.WriteFile(src, []byte("png"), 0644))
	backup := filepath.Join(dir, "backup")
	require.NoError(t, os.Mkdir(backup, 0755))

	store := &fakeStore{}
	rec := &dz.Recorder{}
	a := &Action{Store: store, DZ: dz.New(rec), Log: zap.NewNop(), RootURL: "cdn.example.com", BackupDir: backup}

	require.NoError(t, a.Dragged(context.Background(), []string{src}))

	assert.Equal(t, src, store.uploads["shot.png"])
	assert.FileExists(t, filepath.Join(backup, "shot.png"))
	assert.Equal(t, []string{
		"Begin_Message: Starting uploading...",
		"Determinate: 1",
		"Progress: 10",
		"Finish_Message: Upload Completed",
		"Progress: 100",
		"URL: http://cdn.example.com/shot.png",
	}, rec.Lines())
}

func TestDraggedCollision(t *testing.T) {
	store := &fakeStore{existing: map[string]bool{"shot.png": true, "shot-1.png": true}}
	a := &Action{Store: store, DZ: dz.New(&dz.Recorder{}), Log: zap.NewNop(), RootURL: "cdn", CheckCollision: true}

	require.NoError(t, a.Dragged(context.Background(), []string{"/tmp/shot.png"}))
	assert.Contains(t, store.uploads, "shot-2.png")
}

func TestDraggedUploadFails(t *testing.T) {
	rec := &dz.Recorder{}
	a := &Action{Store: &fakeStore{err: errors.New("401 bad token")}, DZ: dz.New(rec), Log: zap.NewNop()}

	err := a.Dragged(context.Background(), []string{"/tmp/shot.png"})
	assert.True(t, dz.IsAbort(err))
	last, _ := rec.Last(dz.KeyFail)
	assert.Equal(t, "Upload Failed", last)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "pngpaste")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestClicked(t *testing.T) {
	paste := writeScript(t, `printf '\211PNG\r\n\032\n0000' > "$1"`)
	tmp := t.TempDir()

	store := &fakeStore{}
	rec := &dz.Recorder{}
	a := &Action{
		Store:    store,
		DZ:       dz.New(rec),
		Dialogs:  &ui.Fake{Input: "diagram"},
		Log:      zap.NewNop(),
		RootURL:  "cdn.example.com",
		Pngpaste: paste,
		TempDir:  tmp,
	}

	require.NoError(t, a.Clicked(context.Background()))
	assert.Equal(t, filepath.Join(tmp, "diagram.png"), store.uploads["diagram.png"])

	url, _ := rec.Last(dz.KeyURL)
	assert.Equal(t, "http://cdn.example.com/diagram.png", url)
}

func TestClickedKeepsNameInTempDir(t *testing.T) {
	paste := writeScript(t, `printf '\211PNG\r\n\032\n0000' > "$1"`)
	tmp := t.TempDir()
	store := &fakeStore{}
	a := &Action{
		Store:    store,
		DZ:       dz.New(&dz.Recorder{}),
		Dialogs:  &ui.Fake{Input: "../../etc/diagram"},
		Log:      zap.NewNop(),
		Pngpaste: paste,
		TempDir:  tmp,
	}

	require.NoError(t, a.Clicked(context.Background()))
	assert.Equal(t, filepath.Join(tmp, "diagram.png"), store.uploads["diagram.png"])
}

func TestClickedNoImage(t *testing.T) {
	paste := writeScript(t, `echo "No image data found on the clipboard" >&2; exit 1`)
	rec := &dz.Recorder{}
	a := &Action{Store: &fakeStore{}, DZ: dz.New(rec), Dialogs: &ui.Fake{}, Log: zap.NewNop(), Pngpaste: paste, TempDir: t.TempDir()}

	err := a.Clicked(context.Background())
	assert.True(t, dz.IsAbort(err))
	last, _ := rec.Last(dz.KeyFail)
	assert.Equal(t, "No image data found on the clipboard", last)
}

func TestClickedCancelled(t *testing.T) {
	paste := writeScript(t, `printf '\211PNG\r\n\032\n0000' > "$1"`)
	rec := &dz.Recorder{}
	a := &Action{Store: &fakeStore{}, DZ: dz.New(rec), Dialogs: &ui.Fake{InputErr: ui.ErrCancelled}, Log: zap.NewNop(), Pngpaste: paste, TempDir: t.TempDir()}

	err := a.Clicked(context.Background())
	assert.True(t, dz.IsAbort(err))
	last, _ := rec.Last(dz.KeyFail)
	assert.Equal(t, "Cancelled", last)
}
