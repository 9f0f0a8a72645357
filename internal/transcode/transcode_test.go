package transcode

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStderr = "ffmpeg version 6.1\n" +
	"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'clip_original.mp4':\n" +
	"  Duration: 00:01:40.00, start: 0.000000, bitrate: 1205 kb/s\n" +
	"frame=  100 fps=0.0 q=28.0 size=     256kB time=00:00:10.00 bitrate= 209.7kbits/s\r" +
	"frame=  500 fps=210 q=28.0 size=    1024kB time=00:00:50.00 bitrate= 167.8kbits/s\r" +
	"frame= 1000 fps=220 q=-1.0 Lsize=    2048kB time=00:01:40.00 bitrate= 167.8kbits/s\n" +
	"video:1900kB audio:140kB\n"

func TestScan(t *testing.T) {
	var got []Progress
	last := Scan(strings.NewReader(sampleStderr), func(p Progress) {
		got = append(got, p)
	})

	require.Len(t, got, 4)
	assert.Equal(t, Progress{Duration: "00:01:40.00"}, got[0])
	assert.Equal(t, Progress{Duration: "00:01:40.00", Current: "00:00:10.00", Percent: 10}, got[1])
	assert.Equal(t, 50, got[2].Percent)
	assert.Equal(t, 100, got[3].Percent)
	assert.Equal(t, "video:1900kB audio:140kB", last)
}

func TestScanIgnoresTimeBeforeDuration(t *testing.T) {
	var got []Progress
	Scan(strings.NewReader("time=00:00:05.00\rDuration: 00:00:10.00\rtime=00:00:05.00\r"), func(p Progress) {
		got = append(got, p)
	})

	require.Len(t, got, 2)
	assert.Equal(t, 50, got[1].Percent)
}

func TestScanNilProgress(t *testing.T) {
	assert.Equal(t, "video:1900kB audio:140kB", Scan(strings.NewReader(sampleStderr), nil))
}

func TestScanDrainsAfterLongLine(t *testing.T) {
	r := strings.NewReader(strings.Repeat("x", 70*1024) + "\n" + sampleStderr)
	Scan(r, nil)
	assert.Zero(t, r.Len())
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a\rb\nc", []string{"a", "b", "c"}},
		{"a\r\nb", []string{"a", "", "b"}},
		{"", nil},
	}
	for _, tt := range tests {
		var got []string
		data := []byte(tt.in)
		for len(data) > 0 {
			adv, tok, err := splitLines(data, true)
			require.NoError(t, err)
			got = append(got, string(tok))
			data = data[adv:]
		}
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestArgs(t *testing.T) {
	assert.Equal(t, []string{
		"-i", "in.mp4", "-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k", "-y", "-movflags", "+faststart", "out.mp4",
	}, Args("in.mp4", "out.mp4"))
}

// fakeFFmpeg writes a shell script that prints sampleStderr-like output and
// exits non-zero when fail is set.
func fakeFFmpeg(t *testing.T, fail bool) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\n" +
		"for last; do :; done\n" +
		"printf 'Duration: 00:00:10.00, start\\n' >&2\n" +
		"printf 'time=00:00:05.00 bitrate\\r' >&2\n" +
		"echo converted > \"$last\"\n"
	if fail {
		script += "echo 'Conversion failed!' >&2\nexit 1\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "clip.mp4")
	f := &FFmpeg{Path: fakeFFmpeg(t, false)}

	var got []Progress
	err := f.Convert(context.Background(), filepath.Join(dir, "clip_original.mp4"), out, func(p Progress) {
		got = append(got, p)
	})
	require.NoError(t, err)
	assert.FileExists(t, out)
	require.Len(t, got, 2)
	assert.Equal(t, 50, got[1].Percent)
}

func TestConvertFailureRemovesOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "clip.mp4")
	f := &FFmpeg{Path: fakeFFmpeg(t, true)}

	err := f.Convert(context.Background(), "in.mp4", out, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Conversion failed!")
	assert.NoFileExists(t, out)
}

func TestConvertMissingBinary(t *testing.T) {
	f := &FFmpeg{Path: filepath.Join(t.TempDir(), "nope")}
	err := f.Convert(context.Background(), "a", "b", nil)
	assert.ErrorContains(t, err, "ffmpeg not found")
}
