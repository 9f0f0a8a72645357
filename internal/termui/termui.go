// Package termui renders protocol events in a terminal for running actions
// outside Dropzone.
package termui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dzactions/internal/dz"
)

var (
	statusStyle = lipgloss.NewStyle().Bold(true)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	urlStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type eventMsg dz.Event

type model struct {
	spinner  spinner.Model
	progress progress.Model

	status      string
	determinate bool
	percent     float64
	lines       []string
	errorTitle  string
	alertTitle  string
	urlTitle    string
	saveName    string
}

func newModel() model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return model{
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m = m.apply(dz.Event(msg))
		return m, nil
	case tea.WindowSizeMsg:
		m.progress.Width = min(max(msg.Width-4, 10), 80)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// apply folds one protocol event into the view state.
func (m model) apply(e dz.Event) model {
	switch e.Key {
	case dz.KeyBegin:
		m.status = e.Value
	case dz.KeyDeterminate:
		m.determinate = e.Value == "1"
	case dz.KeyProgress:
		if n, err := strconv.Atoi(e.Value); err == nil {
			m.percent = float64(min(max(n, 0), 100)) / 100
		}
	case dz.KeyFinish:
		m.status = ""
		m.lines = append(m.lines, doneStyle.Render("✓ "+e.Value))
	case dz.KeyURLTitle:
		m.urlTitle = e.Value
	case dz.KeyURL:
		if e.Value != "0" {
			line := urlStyle.Render(e.Value)
			if m.urlTitle != "" {
				line = m.urlTitle + ": " + line
			}
			m.lines = append(m.lines, line)
		}
		m.urlTitle = ""
	case dz.KeyText:
		if e.Value != "0" {
			m.lines = append(m.lines, e.Value)
		}
	case dz.KeyAlertTitle:
		m.alertTitle = e.Value
	case dz.KeyAlert:
		m.lines = append(m.lines, statusStyle.Render(m.alertTitle)+" "+e.Value)
		m.alertTitle = ""
	case dz.KeyErrorTitle:
		m.errorTitle = e.Value
	case dz.KeyError:
		m.status = ""
		m.lines = append(m.lines, errorStyle.Render("✗ "+m.errorTitle)+"\n"+e.Value)
		m.errorTitle = ""
	case dz.KeyFail:
		m.status = ""
		m.lines = append(m.lines, errorStyle.Render("✗ "+e.Value))
	case dz.KeySaveValueName:
		m.saveName = e.Value
	case dz.KeySaveValue:
		m.lines = append(m.lines, dimStyle.Render(fmt.Sprintf("saved %s=%s", m.saveName, e.Value)))
		m.saveName = ""
	}
	return m
}

func (m model) View() string {
	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(l + "\n")
	}
	if m.status == "" {
		return b.String()
	}

	if m.determinate {
		b.WriteString(m.progress.ViewAs(m.percent) + "\n")
		b.WriteString(statusStyle.Render(m.status) + "\n")
	} else {
		b.WriteString(m.spinner.View() + " " + statusStyle.Render(m.status) + "\n")
	}
	return b.String()
}

// Sink forwards events to a running bubbletea program.
type Sink struct {
	p    *tea.Program
	done chan struct{}
	err  error
}

// Start runs the program on out and returns a Sink feeding it.
func Start(out io.Writer) *Sink {
	s := &Sink{
		p:    tea.NewProgram(newModel(), tea.WithOutput(out), tea.WithInput(nil)),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		_, s.err = s.p.Run()
	}()
	return s
}

// Emit queues the event for rendering.
func (s *Sink) Emit(key, value string) error {
	s.p.Send(eventMsg{Key: key, Value: value})
	return nil
}

// Close stops the program after every queued event is drawn.
func (s *Sink) Close() error {
	s.p.Quit()
	<-s.done
	return s.err
}
