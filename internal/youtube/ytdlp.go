package youtube

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

// Ytdlp drives the yt-dlp binary through go-ytdlp.
type Ytdlp struct {
	Log *zap.Logger
}

// Ensure installs yt-dlp when missing, or updates the cached copy to the
// version go-ytdlp was built against.
func (y *Ytdlp) Ensure(ctx context.Context) error {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return fmt.Errorf("installing yt-dlp: %w", err)
	}
	y.Log.Debug("yt-dlp ready",
		zap.String("path", resolved.Executable),
		zap.String("version", resolved.Version))
	return nil
}

// Download runs yt-dlp for req and returns the path of the final file.
func (y *Ytdlp) Download(ctx context.Context, req Request, progress func(Progress)) (string, error) {
	cmd := ytdlp.New().
		Format(req.Format).
		Output(req.Output).
		Print("after_move:filepath").
		NoSimulate().
		ProgressFunc(250*time.Millisecond, func(u ytdlp.ProgressUpdate) {
			progress(fromUpdate(u))
		})

	if req.ExtractorArgs != "" {
		cmd = cmd.ExtractorArgs(req.ExtractorArgs)
	}
	if req.AudioOnly {
		cmd = cmd.ExtractAudio().AudioFormat(req.AudioFormat)
	}

	y.Log.Debug("running yt-dlp", zap.String("url", req.URL), zap.String("output", req.Output))

	res, err := cmd.Run(ctx, req.URL)
	if err != nil {
		return "", err
	}

	// The printed file path is the last non-empty stdout line.
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	path := strings.TrimSpace(lines[len(lines)-1])
	if path == "" {
		return "", fmt.Errorf("yt-dlp did not report an output file")
	}
	return path, nil
}

func fromUpdate(u ytdlp.ProgressUpdate) Progress {
	p := Progress{
		Filename: u.Filename,
		Fragment: u.FragmentIndex,
		Total:    int64(u.TotalBytes),
		Percent:  u.Percent(),
		ETA:      u.ETA(),
	}
	switch u.Status {
	case ytdlp.ProgressStatusDownloading:
		p.State = StateDownloading
	case ytdlp.ProgressStatusFinished:
		p.State = StateFinished
	}
	if !u.Started.IsZero() {
		if elapsed := time.Since(u.Started).Seconds(); elapsed > 0 {
			p.Speed = float64(u.DownloadedBytes) / elapsed
		}
	}
	return p
}
