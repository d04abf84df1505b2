package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"imbridge/internal/compose"
	"imbridge/internal/engine"
	"imbridge/internal/hotkey"
	"imbridge/internal/keysym"
	"imbridge/internal/loop"
	"imbridge/internal/session"
)

// printHost writes what a session asks of its widget, one line per call.
type printHost struct {
	w       io.Writer
	session *session.Session
}

func (h *printHost) Commit(text string) { fmt.Fprintf(h.w, "commit %q\n", text) }

func (h *printHost) PreeditChanged() {
	if h.session == nil {
		return
	}
	p := h.session.Preedit()
	fmt.Fprintf(h.w, "preedit %q cursor=%d\n", p.Text, p.Cursor)
}

func (h *printHost) PreeditStart()        { fmt.Fprintln(h.w, "preedit-start") }
func (h *printHost) PreeditEnd()          { fmt.Fprintln(h.w, "preedit-end") }
func (h *printHost) RetrieveSurrounding() { fmt.Fprintln(h.w, "surrounding requested") }

func (h *printHost) DeleteSurrounding(offset, nchars int) {
	fmt.Fprintf(h.w, "delete offset=%d n=%d\n", offset, nchars)
}

func (h *printHost) ForwardKey(ev session.KeyEvent) {
	fmt.Fprintf(h.w, "forward %s\n", hotkey.Chord{Keyval: ev.Keyval, Mask: ev.State})
}

func (h *printHost) Hotkey(ev hotkey.EventID) { fmt.Fprintf(h.w, "hotkey %s\n", ev) }

func newProbeCmd(a *app) *cobra.Command {
	var (
		keys    string
		wait    time.Duration
		format  string
		offline bool
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Send keys through a live IBus session",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch format {
			case "", "prometheus", "json":
			default:
				return fmt.Errorf("unknown metrics format %q", format)
			}
			var chords []hotkey.Chord
			if keys != "" {
				for _, s := range strings.Split(keys, ",") {
					c, err := hotkey.ParseChord(s)
					if err != nil {
						return fmt.Errorf("chord %q: %w", s, err)
					}
					chords = append(chords, c)
				}
			}
			return a.probe(cmd.OutOrStdout(), chords, probeOptions{wait: wait, metrics: format, offline: offline})
		},
	}
	cmd.Flags().StringVarP(&keys, "keys", "k", "", "comma-separated chords to send, e.g. a,Shift+b,Control+space")
	cmd.Flags().DurationVar(&wait, "wait", 500*time.Millisecond, "how long to wait for late replies")
	cmd.Flags().StringVar(&format, "metrics", "", "print metrics afterwards: prometheus or json")
	cmd.Flags().BoolVar(&offline, "offline", false, "do not connect to ibus")
	return cmd
}

type probeOptions struct {
	wait    time.Duration
	metrics string
	offline bool
}

func (a *app) probe(out io.Writer, chords []hotkey.Chord, opts probeOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := engine.New(a.cfg, a.logger.Logger)
	if err != nil {
		return err
	}
	if !opts.offline {
		if err := e.Connect(ctx); err != nil {
			e.Close()
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := e.Run(ctx)
		e.Loop().Stop()
		if errors.Is(err, loop.ErrStopped) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	host := &printHost{w: out}
	id := "probe-" + uuid.NewString()
	var openErr error
	ok := e.Loop().Call(ctx, func() {
		var s *session.Session
		s, openErr = e.OpenSession(ctx, id, host, compose.NewSimple(host.Commit))
		if openErr != nil {
			return
		}
		host.session = s
		s.FocusIn()
		if !s.Connected() {
			fmt.Fprintln(out, "session running without input context")
		}
	})
	if !ok || openErr != nil {
		e.Close()
		if err := g.Wait(); err != nil {
			return err
		}
		if openErr != nil {
			return openErr
		}
		return errors.New("event loop stopped")
	}
	a.logger.Debug("probe session open", "session", id)

send:
	for _, c := range chords {
		for _, ev := range keyEvents(c) {
			var handled bool
			if !e.Loop().Call(ctx, func() { handled = host.session.ProcessKey(ev) }) {
				break send
			}
			chord := hotkey.Chord{Keyval: ev.Keyval, Mask: ev.State}
			a.logger.Debug("key sent", "chord", chord.String(), "handled", handled)
			if !handled && !ev.IsRelease() {
				fmt.Fprintf(out, "unhandled %s\n", chord)
			}
		}
	}

	select {
	case <-time.After(opts.wait):
	case <-ctx.Done():
	}

	closeErr := e.Close()
	if err := g.Wait(); err != nil {
		return err
	}
	switch opts.metrics {
	case "prometheus":
		err = e.Metrics().Registry().WritePrometheus(out)
	case "json":
		err = e.Metrics().Registry().WriteJSON(out)
	}
	if err != nil {
		return err
	}
	return closeErr
}

// keyEvents turns a chord into the press and release a keyboard would
// send. Release chords are sent alone.
func keyEvents(c hotkey.Chord) []session.KeyEvent {
	if c.Mask.IsRelease() {
		return []session.KeyEvent{{Keyval: c.Keyval, State: c.Mask}}
	}
	return []session.KeyEvent{
		{Keyval: c.Keyval, State: c.Mask},
		{Keyval: c.Keyval, State: c.Mask | keysym.ReleaseMask},
	}
}
