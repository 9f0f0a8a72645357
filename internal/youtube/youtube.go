// Package youtube downloads videos with yt-dlp and optionally re-encodes them
// to H.264 for QuickTime.
package youtube

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"dzactions/internal/dz"
	"dzactions/internal/transcode"
	"dzactions/internal/ui"
)

// urlPattern accepts http(s) URLs with a domain or IPv4 host and an optional port.
var urlPattern = regexp.MustCompile(`(?i)^(?:http)s?://` +
	`(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+(?:[A-Z]{2,6}\.?|[A-Z0-9-]{2,}\.?)|` +
	`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
	`(?::\d+)?` +
	`(?:/?|[/?]\S+)$`)

// originalSuffix marks the download that is re-encoded and then removed.
const originalSuffix = "_original"

// ValidURL reports whether raw looks like a downloadable video URL.
func ValidURL(raw string) bool {
	return urlPattern.MatchString(raw)
}

// State is the phase a progress report belongs to.
type State int

const (
	StateOther State = iota
	StateDownloading
	StateFinished
)

// Progress is one yt-dlp progress report.
type Progress struct {
	State    State
	Filename string
	Fragment int
	Total    int64
	Percent  float64
	Speed    float64 // bytes per second
	ETA      time.Duration
}

// Request describes one download.
type Request struct {
	URL           string
	Format        string
	Output        string
	ExtractorArgs string
	AudioOnly     bool
	AudioFormat   string
}

// Downloader runs yt-dlp.
type Downloader interface {
	Ensure(ctx context.Context) error
	Download(ctx context.Context, req Request, progress func(Progress)) (string, error)
}

// Converter re-encodes a file.
type Converter interface {
	Convert(ctx context.Context, input, output string, progress func(transcode.Progress)) error
}

// Action downloads the dragged or copied video URL into OutputDir.
type Action struct {
	Downloader Downloader
	Converter  Converter
	DZ         *dz.Client
	Dialogs    ui.Dialogs
	Log        *zap.Logger

	OutputDir     string
	Format        string
	ExtractorArgs string
	ConvertH264   bool
	AudioOnly     bool
	AudioFormat   string
	AutoUpdate    bool
	// FFmpegDir is appended to PATH so yt-dlp can merge streams.
	FFmpegDir string
}

// Dragged downloads the first dragged URL.
func (a *Action) Dragged(ctx context.Context, items []string) error {
	var u string
	if len(items) > 0 {
		u = strings.TrimSpace(items[0])
	}
	return a.download(ctx, u)
}

// Clicked downloads the URL on the clipboard.
func (a *Action) Clicked(ctx context.Context) error {
	u, err := a.Dialogs.ReadClipboard()
	if err != nil {
		return err
	}
	return a.download(ctx, u)
}

func (a *Action) download(ctx context.Context, u string) error {
	if !ValidURL(u) {
		return a.DZ.Fail("Not a valid video URL")
	}

	a.DZ.Begin("Checking youtube-dl library is up to date...")
	a.DZ.Determinate(false)

	if a.AutoUpdate {
		if err := a.Downloader.Ensure(ctx); err != nil {
			// A stale copy can usually still download.
			a.Log.Warn("yt-dlp update failed", zap.Error(err))
		}
	}

	a.DZ.Begin("Preparing to download video...")
	a.DZ.Determinate(false)
	a.DZ.Percent(0)

	if a.FFmpegDir != "" {
		os.Setenv("PATH", os.Getenv("PATH")+string(os.PathListSeparator)+a.FFmpegDir)
	}

	convert := a.ConvertH264 && !a.AudioOnly
	suffix := ""
	if convert {
		suffix = originalSuffix
	}

	req := Request{
		URL:           u,
		Format:        a.Format,
		Output:        filepath.Join(a.OutputDir, "%(title)s"+suffix+".%(ext)s"),
		ExtractorArgs: a.ExtractorArgs,
		AudioOnly:     a.AudioOnly,
		AudioFormat:   a.AudioFormat,
	}
	if a.AudioOnly {
		req.Format = "bestaudio/best"
	}

	path, err := a.Downloader.Download(ctx, req, a.reportDownload)
	if err != nil {
		a.Log.Error("download failed", zap.String("url", u), zap.Error(err))
		return a.DZ.Error("Video Download Failed", "Downloading video failed with the error:\n\n"+err.Error())
	}
	a.Log.Info("downloaded", zap.String("path", path))

	if convert {
		a.convert(ctx, path)
	}

	if a.AudioOnly {
		a.DZ.Finish("Audio Download Complete")
	} else {
		a.DZ.Finish("Video Download Complete")
	}
	a.DZ.NoURL()
	return nil
}

func (a *Action) reportDownload(p Progress) {
	switch p.State {
	case StateDownloading:
		name := asciiOnly(filepath.Base(p.Filename))
		info := ""
		if p.Speed > 0 && p.ETA > 0 {
			info = fmt.Sprintf(" (%s/s ETA: %s)", humanize.Bytes(uint64(p.Speed)), formatETA(p.ETA))
		}
		a.DZ.Begin("Downloading " + name + info + "...")

		if p.Fragment > 0 || p.Total > 0 {
			pct := int(p.Percent)
			if pct > 0 && pct <= 100 {
				a.DZ.Determinate(true)
				a.DZ.Percent(pct)
			} else {
				a.DZ.Determinate(false)
				a.DZ.Percent(0)
			}
		}
	case StateFinished:
		a.DZ.Determinate(false)
		a.DZ.Percent(0)
	}
}

// convert re-encodes path to H.264 next to it, dropping the _original suffix.
// The original is removed only when ffmpeg succeeds.
func (a *Action) convert(ctx context.Context, path string) {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	out := filepath.Join(a.OutputDir, strings.TrimSuffix(strings.TrimSuffix(name, ext), originalSuffix)+ext)

	err := a.Converter.Convert(ctx, path, out, func(p transcode.Progress) {
		if p.Current == "" {
			a.DZ.Determinate(true)
			return
		}
		a.DZ.Begin(fmt.Sprintf("Converting %s to H264, %s / %s...", name, p.Current, p.Duration))
		a.DZ.Percent(p.Percent)
	})
	if err != nil {
		a.Log.Error("conversion failed", zap.String("path", path), zap.Error(err))
		return
	}
	if err := os.Remove(path); err != nil {
		a.Log.Warn("could not remove original", zap.String("path", path), zap.Error(err))
	}
}

func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formatETA(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
