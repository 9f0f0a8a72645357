// Package ui launches the dialogs the Dropzone runner ships with
// (CocoaDialog, Pashua) and wraps the clipboard.
// Every dialog is started with exec.Command and an explicit argument slice;
// user text never passes through a shell.
package ui

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
)

// ErrCancelled is returned when the user dismisses a dialog.
var ErrCancelled = errors.New("Cancelled")

// EmptyInputError is returned when an input box is confirmed with no text.
type EmptyInputError struct {
	Field string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s cannot be empty", e.Field)
}

// Dialogs is the set of host interactions an action may need.
type Dialogs interface {
	ReadClipboard() (string, error)
	InputBox(title, prompt, field string) (string, error)
	YesNo(title, text string) (bool, error)
	SelectFolder(prompt string) (string, error)
	Pashua(config string) (map[string]string, error)
	OpenURL(url string) error
}

// Host runs dialogs bundled in the Dropzone runner directory.
type Host struct {
	// RunnerPath is the directory holding CocoaDialog and Pashua.app.
	RunnerPath string
}

// NewHost returns a Host rooted at runnerPath.
func NewHost(runnerPath string) *Host {
	return &Host{RunnerPath: runnerPath}
}

// ReadClipboard returns the current clipboard text.
func (h *Host) ReadClipboard() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("reading clipboard: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// InputBox asks for a single line of text.
func (h *Host) InputBox(title, prompt, field string) (string, error) {
	if field == "" {
		field = "Filename"
	}
	out, err := h.cocoaDialog("inputbox",
		"--button1", "OK",
		"--button2", "Cancel",
		"--title", title,
		"--e",
		"--informative-text", prompt,
	)
	if err != nil {
		return "", err
	}
	return parseInputBox(out, field)
}

// YesNo shows a yes/no message box and reports whether "Yes" was pressed.
func (h *Host) YesNo(title, text string) (bool, error) {
	out, err := h.cocoaDialog("yesno-msgbox", "--no-cancel", "--title", title, "--text", text)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "1", nil
}

// SelectFolder lets the user choose a directory.
func (h *Host) SelectFolder(prompt string) (string, error) {
	out, err := h.cocoaDialog("fileselect",
		"--title", "Select Folder",
		"--text", prompt,
		"--select-directories",
		"--select-only-directories",
	)
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	if dir == "" || dir == "0" {
		return "", ErrCancelled
	}
	return dir, nil
}

// Pashua renders a Pashua window described by config and returns its results.
func (h *Host) Pashua(config string) (map[string]string, error) {
	f, err := os.CreateTemp("", "dzactions-pashua-*.conf")
	if err != nil {
		return nil, fmt.Errorf("creating pashua config: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(config); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing pashua config: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing pashua config: %w", err)
	}

	bin := filepath.Join(h.RunnerPath, "Pashua.app", "Contents", "MacOS", "Pashua")
	out, err := run(bin, f.Name())
	if err != nil {
		return nil, fmt.Errorf("pashua failed: %w", err)
	}
	return parsePashua(out), nil
}

// OpenURL opens url with the default handler.
func (h *Host) OpenURL(url string) error {
	if err := exec.Command("open", url).Run(); err != nil {
		return fmt.Errorf("opening %s: %w", url, err)
	}
	return nil
}

func (h *Host) cocoaDialog(args ...string) (string, error) {
	bin := filepath.Join(h.RunnerPath, "CocoaDialog")
	out, err := run(bin, args...)
	if err != nil {
		return "", fmt.Errorf("cocoadialog %s failed: %w", args[0], err)
	}
	return out, nil
}

func run(bin string, args ...string) (string, error) {
	cmd := exec.Command(bin, args...)
	cmd.Stderr = os.Stderr

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}

// parseInputBox reads CocoaDialog inputbox output: the pressed button on the
// first line, the entered text on the second.
func parseInputBox(out, field string) (string, error) {
	button, input, _ := strings.Cut(strings.TrimSpace(out), "\n")
	if strings.TrimSpace(button) == "2" {
		return "", ErrCancelled
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return "", &EmptyInputError{Field: field}
	}
	return input, nil
}

// parsePashua reads key=value result lines.
func parsePashua(out string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		result[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return result
}
