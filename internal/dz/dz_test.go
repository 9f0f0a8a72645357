package dz

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		key, value string
		want       string
	}{
		{KeyBegin, "Uploading...", "Begin_Message: Uploading..."},
		{KeyText, "a\nb", "Text: a[;nb"},
		{KeyError, "line one\n\nline two", "Error: line one[;n[;nline two"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLine(tt.key, tt.value))
		})
	}
}

func TestClientWritesProtocol(t *testing.T) {
	var buf bytes.Buffer
	c := New(NewLineSink(&buf, nil))

	c.Begin("Starting uploading...")
	c.Determinate(true)
	c.Percent(10)
	c.Finish("Upload Completed")
	c.URL("http://cdn.example.com/a.png", "")
	c.NoURL()
	c.Text("")

	want := strings.Join([]string{
		"Begin_Message: Starting uploading...",
		"Determinate: 1",
		"Progress: 10",
		"Finish_Message: Upload Completed",
		"URL: http://cdn.example.com/a.png",
		"URL: 0",
		"Text: 0",
	}, "\n") + "\n"

	assert.Equal(t, want, buf.String())
	assert.NoError(t, c.Err())
}

func TestURLWithTitle(t *testing.T) {
	rec := &Recorder{}
	c := New(rec)

	c.URL("https://short.io/x", "Short link")

	assert.Equal(t, []string{"URL_Title: Short link", "URL: https://short.io/x"}, rec.Lines())
}

func TestErrorAndFailReturnAbort(t *testing.T) {
	rec := &Recorder{}
	c := New(rec)

	err := c.Error("Video Download Failed", "boom")
	require.Error(t, err)
	assert.True(t, IsAbort(err))
	assert.Equal(t, "Video Download Failed: boom", err.Error())

	err = c.Fail("Invalid URL")
	assert.True(t, IsAbort(err))
	assert.Equal(t, "Invalid URL", err.Error())

	assert.Equal(t, []string{
		"Error_Title: Video Download Failed",
		"Error: boom",
		"Fail: Invalid URL",
	}, rec.Lines())
}

func TestIsAbortWrapped(t *testing.T) {
	wrapped := errors.Join(errors.New("other"), &Abort{Message: "x"})
	assert.True(t, IsAbort(wrapped))
	assert.False(t, IsAbort(errors.New("plain")))
}

func TestHandshakeReadsAck(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("\n\n")
	c := New(NewLineSink(&out, in))

	c.Begin("one")
	c.Begin("two")
	c.Begin("three") // stdin exhausted: EOF is tolerated

	assert.NoError(t, c.Err())
	assert.Equal(t, "Begin_Message: one\nBegin_Message: two\nBegin_Message: three\n", out.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestClientErrIsSticky(t *testing.T) {
	c := New(NewLineSink(failingWriter{}, nil))

	c.Begin("a")
	c.Begin("b")

	require.Error(t, c.Err())
	assert.Contains(t, c.Err().Error(), "Begin_Message")
}

func TestRecorderQueries(t *testing.T) {
	rec := &Recorder{}
	c := New(rec)
	c.Percent(10)
	c.Percent(55)

	last, ok := rec.Last(KeyProgress)
	assert.True(t, ok)
	assert.Equal(t, "55", last)
	assert.Equal(t, []string{"10", "55"}, rec.Values(KeyProgress))

	_, ok = rec.Last(KeyFinish)
	assert.False(t, ok)
}
