package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"dzactions/internal/dz"
	"dzactions/internal/httputil"
	"dzactions/internal/termui"
	"dzactions/internal/ui"
)

// dragger handles the "dragged" event.
type dragger interface {
	Dragged(ctx context.Context, items []string) error
}

// clicker handles the "clicked" event.
type clicker interface {
	Clicked(ctx context.Context) error
}

// deps is what an action constructor gets to work with.
type deps struct {
	DZ      *dz.Client
	Dialogs ui.Dialogs
	Log     *zap.Logger
	HTTP    httputil.Options
}

type buildFunc func(d *deps) (dragger, error)

// actionCommand wires an action into a cobra command taking
// "<dragged|clicked> [items...]".
func actionCommand(name, short string, build buildFunc) *cobra.Command {
	return &cobra.Command{
		Use:       name + " <dragged|clicked> [items...]",
		Short:     short,
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"dragged", "clicked"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd.Context(), name, args[0], args[1:], build)
		},
	}
}

func runAction(ctx context.Context, name, event string, items []string, build buildFunc) error {
	if event != "dragged" && event != "clicked" {
		return fmt.Errorf("unknown event %q (valid: dragged, clicked)", event)
	}

	sink, closeSink := newSink(os.Stdin, os.Stdout)
	defer closeSink()

	log := logger.With(zap.String("action", name), zap.String("event", event))
	d := &deps{
		DZ:      dz.New(sink),
		Dialogs: ui.NewHost(env.RunnerPath),
		Log:     log,
		HTTP:    httputil.Options{Timeout: cfg.Timeout.Duration, Proxy: cfg.Proxy},
	}

	action, err := build(d)
	if err != nil {
		return report(d, err)
	}

	switch event {
	case "dragged":
		log.Debug("dragged", zap.Strings("items", items))
		err = action.Dragged(ctx, items)
	case "clicked":
		c, ok := action.(clicker)
		if !ok {
			return fmt.Errorf("%s does not handle clicks", name)
		}
		err = c.Clicked(ctx)
	}
	return report(d, err)
}

// report turns an unreported error into an Error line. A run that reached the
// host exits cleanly either way.
func report(d *deps, err error) error {
	if err != nil && !dz.IsAbort(err) {
		d.Log.Error("action failed", zap.Error(err))
		d.DZ.Error("Error", err.Error())
	}
	if werr := d.DZ.Err(); werr != nil {
		return fmt.Errorf("writing progress: %w", werr)
	}
	return nil
}

// newSink picks the protocol writer or the terminal renderer per --ui.
func newSink(in io.Reader, out *os.File) (dz.Sink, func()) {
	useTUI := flagUI == "tui" || (flagUI == "auto" && term.IsTerminal(int(out.Fd())))
	if useTUI {
		s := termui.Start(out)
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("terminal ui", zap.Error(err))
			}
		}
	}

	var ack io.Reader
	if cfg.Handshake {
		ack = in
	}
	return dz.NewLineSink(out, ack), func() {}
}
