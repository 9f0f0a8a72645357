package termui

import (
	"bytes"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dzactions/internal/dz"
)

func feed(m model, events ...dz.Event) model {
	for _, e := range events {
		m = m.apply(e)
	}
	return m
}

func TestApplyProgress(t *testing.T) {
	m := feed(newModel(),
		dz.Event{Key: dz.KeyBegin, Value: "Uploading..."},
		dz.Event{Key: dz.KeyDeterminate, Value: "1"},
		dz.Event{Key: dz.KeyProgress, Value: "50"},
	)

	assert.True(t, m.determinate)
	assert.Equal(t, 0.5, m.percent)
	view := m.View()
	assert.Contains(t, view, "Uploading...")
	assert.Contains(t, view, "50%")
}

func TestApplyClampsProgress(t *testing.T) {
	m := feed(newModel(), dz.Event{Key: dz.KeyProgress, Value: "250"})
	assert.Equal(t, 1.0, m.percent)

	m = feed(m, dz.Event{Key: dz.KeyProgress, Value: "bogus"})
	assert.Equal(t, 1.0, m.percent)
}

func TestApplyFinish(t *testing.T) {
	m := feed(newModel(),
		dz.Event{Key: dz.KeyBegin, Value: "Shortening URL..."},
		dz.Event{Key: dz.KeyFinish, Value: "URL Shortened"},
		dz.Event{Key: dz.KeyURLTitle, Value: "Short link"},
		dz.Event{Key: dz.KeyURL, Value: "https://sho.rt/x"},
	)

	assert.Empty(t, m.status)
	require.Len(t, m.lines, 2)
	assert.Contains(t, m.lines[0], "URL Shortened")
	assert.Contains(t, m.lines[1], "Short link: ")
	assert.Contains(t, m.lines[1], "https://sho.rt/x")
	assert.NotContains(t, m.View(), "Shortening")
}

func TestApplyNoURL(t *testing.T) {
	m := feed(newModel(),
		dz.Event{Key: dz.KeyURL, Value: "0"},
		dz.Event{Key: dz.KeyText, Value: "0"},
	)
	assert.Empty(t, m.lines)
}

func TestApplyError(t *testing.T) {
	m := feed(newModel(),
		dz.Event{Key: dz.KeyBegin, Value: "Preparing..."},
		dz.Event{Key: dz.KeyErrorTitle, Value: "Video Download Failed"},
		dz.Event{Key: dz.KeyError, Value: "boom"},
		dz.Event{Key: dz.KeyFail, Value: "Cancelled"},
	)

	require.Len(t, m.lines, 2)
	assert.Contains(t, m.lines[0], "Video Download Failed")
	assert.True(t, strings.HasSuffix(m.lines[0], "\nboom"))
	assert.Contains(t, m.lines[1], "Cancelled")
	assert.Empty(t, m.errorTitle)
}

func TestApplyAlertAndSave(t *testing.T) {
	m := feed(newModel(),
		dz.Event{Key: dz.KeyAlertTitle, Value: "Heads up"},
		dz.Event{Key: dz.KeyAlert, Value: "quota low"},
		dz.Event{Key: dz.KeySaveValueName, Value: "token"},
		dz.Event{Key: dz.KeySaveValue, Value: "abc"},
	)

	require.Len(t, m.lines, 2)
	assert.Contains(t, m.lines[0], "quota low")
	assert.Contains(t, m.lines[1], "saved token=abc")
}

func TestUpdateWindowSize(t *testing.T) {
	next, _ := newModel().Update(tea.WindowSizeMsg{Width: 200, Height: 40})
	assert.Equal(t, 80, next.(model).progress.Width)

	next, _ = newModel().Update(tea.WindowSizeMsg{Width: 8, Height: 40})
	assert.Equal(t, 10, next.(model).progress.Width)
}

func TestSinkRendersFinalState(t *testing.T) {
	var out bytes.Buffer
	s := Start(&out)
	c := dz.New(s)

	c.Begin("Compressing...")
	c.Finish("Image Successfully Compressed")
	require.NoError(t, s.Close())

	assert.Contains(t, out.String(), "Image Successfully Compressed")
}
