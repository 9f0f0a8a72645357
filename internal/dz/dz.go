// Package dz implements the line protocol Dropzone uses to receive status
// updates from an action process. Each update is a "Key: value" line written
// to stdout and flushed immediately; the host reads stdout line by line.
package dz

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Protocol keys understood by the host.
const (
	KeyBegin         = "Begin_Message"
	KeyDeterminate   = "Determinate"
	KeyProgress      = "Progress"
	KeyText          = "Text"
	KeyURL           = "URL"
	KeyURLTitle      = "URL_Title"
	KeyFinish        = "Finish_Message"
	KeyAlertTitle    = "Alert_Title"
	KeyAlert         = "Alert"
	KeyErrorTitle    = "Error_Title"
	KeyError         = "Error"
	KeyFail          = "Fail"
	KeySaveValueName = "Save_Value_Name"
	KeySaveValue     = "Save_Value"
)

// newlineEscape is what the host expects in place of a literal newline.
const newlineEscape = "[;n"

// Sink receives protocol events.
type Sink interface {
	Emit(key, value string) error
}

// LineSink writes events in the host line format.
type LineSink struct {
	mu  sync.Mutex
	w   *bufio.Writer
	ack *bufio.Reader
}

// NewLineSink returns a sink writing to w. When ack is non-nil, one line is
// read from it after every write, which is how older Python runners pace the
// script.
func NewLineSink(w io.Writer, ack io.Reader) *LineSink {
	s := &LineSink{w: bufio.NewWriter(w)}
	if ack != nil {
		s.ack = bufio.NewReader(ack)
	}
	return s
}

// Emit writes a single "Key: value" line and flushes it.
func (s *LineSink) Emit(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := FormatLine(key, value)
	if _, err := s.w.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", key, err)
	}

	if s.ack != nil {
		if _, err := s.ack.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading acknowledgement: %w", err)
		}
	}
	return nil
}

// FormatLine renders an event the way the host expects it on the wire.
func FormatLine(key, value string) string {
	line := key + ": " + value
	return strings.ReplaceAll(line, "\n", newlineEscape)
}

// Abort is returned by Error and Fail. The failure has already been reported
// to the host, so callers only need to stop and exit cleanly.
type Abort struct {
	Title   string
	Message string
}

func (a *Abort) Error() string {
	if a.Title != "" {
		return a.Title + ": " + a.Message
	}
	return a.Message
}

// IsAbort reports whether err carries an already-reported failure.
func IsAbort(err error) bool {
	var a *Abort
	return errors.As(err, &a)
}

// Client reports the progress of a single action run.
// Write errors are sticky; the first one is returned by Err.
type Client struct {
	sink Sink

	mu  sync.Mutex
	err error
}

// New returns a Client that sends events to sink.
func New(sink Sink) *Client {
	return &Client{sink: sink}
}

func (c *Client) emit(key, value string) {
	err := c.sink.Emit(key, value)
	if err == nil {
		return
	}
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

// Err returns the first error encountered while writing events.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Begin sets the status text shown under the action.
func (c *Client) Begin(msg string) {
	c.emit(KeyBegin, msg)
}

// Determinate switches between a progress bar and an indeterminate spinner.
func (c *Client) Determinate(v bool) {
	c.emit(KeyDeterminate, boolValue(v))
}

// Percent sets the progress bar value.
func (c *Client) Percent(v int) {
	c.emit(KeyProgress, strconv.Itoa(v))
}

// Text puts t on the clipboard when the action finishes.
func (c *Client) Text(t string) {
	c.emit(KeyText, orZero(t))
}

// URL puts u on the clipboard when the action finishes. An empty title is omitted.
func (c *Client) URL(u, title string) {
	if title != "" {
		c.emit(KeyURLTitle, title)
	}
	c.emit(KeyURL, orZero(u))
}

// NoURL tells the host there is nothing to copy.
func (c *Client) NoURL() {
	c.emit(KeyURL, "0")
}

// Finish sets the notification shown when the action completes.
func (c *Client) Finish(msg string) {
	c.emit(KeyFinish, msg)
}

// Alert shows a modal alert without stopping the action.
func (c *Client) Alert(title, msg string) {
	c.emit(KeyAlertTitle, title)
	c.emit(KeyAlert, msg)
}

// SaveValue asks the host to persist a value for later runs.
func (c *Client) SaveValue(name, value string) {
	c.emit(KeySaveValueName, name)
	c.emit(KeySaveValue, value)
}

// Error reports an error with a title and returns an *Abort.
func (c *Client) Error(title, msg string) error {
	c.emit(KeyErrorTitle, title)
	c.emit(KeyError, msg)
	return &Abort{Title: title, Message: msg}
}

// Fail reports a short failure notification and returns an *Abort.
func (c *Client) Fail(msg string) error {
	c.emit(KeyFail, msg)
	return &Abort{Message: msg}
}

func boolValue(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
