package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dzactions/internal/config"
	"dzactions/internal/dz"
)

func TestReport(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		lines []string
	}{
		{"success", nil, nil},
		{"already reported", &dz.Abort{Message: "Cancelled"}, nil},
		{"unreported", errors.New("uploading a.pdf: 403 Forbidden"), []string{
			"Error_Title: Error",
			"Error: uploading a.pdf: 403 Forbidden",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &dz.Recorder{}
			d := &deps{DZ: dz.New(rec), Log: zap.NewNop()}
			assert.NoError(t, report(d, tt.err))
			if tt.lines == nil {
				assert.Empty(t, rec.Lines())
				return
			}
			assert.Equal(t, tt.lines, rec.Lines())
		})
	}
}

func TestNewSinkProtocol(t *testing.T) {
	cfg = config.Default()
	flagUI = "protocol"
	t.Cleanup(func() { flagUI = "auto" })

	out, err := os.Create(filepath.Join(t.TempDir(), "stdout"))
	require.NoError(t, err)
	defer out.Close()

	sink, closeSink := newSink(nil, out)
	require.IsType(t, &dz.LineSink{}, sink)
	require.NoError(t, sink.Emit(dz.KeyFinish, "done\nok"))
	closeSink()

	data, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, "Finish_Message: done[;nok\n", string(data))
}

func TestNewSinkAutoNotTerminal(t *testing.T) {
	cfg = config.Default()
	flagUI = "auto"

	out, err := os.Create(filepath.Join(t.TempDir(), "stdout"))
	require.NoError(t, err)
	defer out.Close()

	sink, closeSink := newSink(nil, out)
	defer closeSink()
	assert.IsType(t, &dz.LineSink{}, sink, "a regular file is not a terminal")
}

func TestRunActionUnknownEvent(t *testing.T) {
	err := runAction(context.Background(), "tinify", "hovered", nil, nil)
	assert.ErrorContains(t, err, `unknown event "hovered"`)
}

type dragOnly struct{ got []string }

func (d *dragOnly) Dragged(ctx context.Context, items []string) error {
	d.got = items
	return nil
}

func TestRunActionDispatch(t *testing.T) {
	cfg = config.Default()
	env = config.LoadEnv(func(string) (string, bool) { return "", false })
	flagUI = "protocol"
	t.Cleanup(func() { flagUI = "auto" })

	a := &dragOnly{}
	build := func(d *deps) (dragger, error) { return a, nil }

	require.NoError(t, runAction(context.Background(), "test", "dragged", []string{"/a", "/b"}, build))
	assert.Equal(t, []string{"/a", "/b"}, a.got)

	err := runAction(context.Background(), "test", "clicked", nil, build)
	assert.ErrorContains(t, err, "does not handle clicks")
}
