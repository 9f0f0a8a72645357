// Package transcode re-encodes media with ffmpeg.
// Uses exec.Command with explicit argument slices and reports progress
// scraped from ffmpeg's stderr.
package transcode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	durationPattern = regexp.MustCompile(`Duration: (\d{2}):(\d{2}):(\d{2})\.(\d{2})`)
	timePattern     = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2})\.(\d{2})`)
)

// Progress is one position report while converting.
// Current is empty for the first report, sent once the duration is known.
type Progress struct {
	Duration string
	Current  string
	Percent  int
}

// FFmpeg converts files to H.264/AAC MP4.
type FFmpeg struct {
	// Path is the ffmpeg binary, looked up in PATH when not absolute.
	Path string
	Log  *zap.Logger
}

// Args returns the ffmpeg arguments for converting input to output.
func Args(input, output string) []string {
	return []string{
		"-i", input,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-y",
		"-movflags", "+faststart",
		output,
	}
}

// Convert runs ffmpeg and calls progress as the encode advances. The
// partial output is removed when ffmpeg fails.
func (f *FFmpeg) Convert(ctx context.Context, input, output string, progress func(Progress)) error {
	name := f.Path
	if name == "" {
		name = "ffmpeg"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, Args(input, output)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("opening ffmpeg stderr: %w", err)
	}

	if f.Log != nil {
		f.Log.Debug("running ffmpeg", zap.String("input", input), zap.String("output", output))
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	tail := Scan(stderr, progress)

	if err := cmd.Wait(); err != nil {
		os.Remove(output)
		if tail != "" {
			return fmt.Errorf("ffmpeg conversion failed: %w: %s", err, tail)
		}
		return fmt.Errorf("ffmpeg conversion failed: %w", err)
	}
	return nil
}

// Scan reads ffmpeg output split on carriage returns and newlines, calling
// progress for the duration header and every time= position. It returns the
// last non-empty line. r is always read to EOF.
func Scan(r io.Reader, progress func(Progress)) string {
	sc := bufio.NewScanner(r)
	sc.Split(splitLines)

	var (
		total    float64
		duration string
		last     string
	)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) != "" {
			last = line
		}

		if duration == "" {
			if m := durationPattern.FindStringSubmatch(line); m != nil {
				duration = m[1] + ":" + m[2] + ":" + m[3] + "." + m[4]
				total = seconds(m)
				if progress != nil {
					progress(Progress{Duration: duration})
				}
			}
			continue
		}

		if m := timePattern.FindStringSubmatch(line); m != nil && progress != nil {
			p := Progress{
				Duration: duration,
				Current:  m[1] + ":" + m[2] + ":" + m[3] + "." + m[4],
			}
			if total > 0 {
				p.Percent = min(int(seconds(m)/total*100), 100)
			}
			progress(p)
		}
	}
	if sc.Err() != nil {
		// ffmpeg blocks on a full pipe if stderr stops being read.
		io.Copy(io.Discard, r)
	}
	return last
}

// seconds converts an HH, MM, SS, cc submatch to seconds.
func seconds(m []string) float64 {
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	cs, _ := strconv.Atoi(m[4])
	return float64(h*3600+mi*60+s) + float64(cs)/100
}

// splitLines is bufio.ScanLines that also breaks on a bare '\r'.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
