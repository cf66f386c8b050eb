// Package headless runs the danmaku session without a terminal UI. Each
// placed caption is printed as one line, which suits pipes and logs.
package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/praise-danmaku/danmaku/internal/client"
	"github.com/praise-danmaku/danmaku/internal/clock"
	"github.com/praise-danmaku/danmaku/internal/config"
	"github.com/praise-danmaku/danmaku/internal/danmaku"
	"github.com/praise-danmaku/danmaku/internal/loop"
	"github.com/praise-danmaku/danmaku/internal/metrics"
	"github.com/praise-danmaku/danmaku/internal/session"
	"github.com/praise-danmaku/danmaku/internal/stats"
)

// ErrConnectionLost is returned when the stream gave up and no offline
// fallback is configured.
var ErrConnectionLost = errors.New("connection lost")

const checkInterval = 200 * time.Millisecond

// Printer is a danmaku.Surface that writes a line per mounted caption.
type Printer struct {
	w     io.Writer
	count int
}

func NewPrinter(w io.Writer) *Printer { return &Printer{w: w} }

func (p *Printer) Mount(it *danmaku.Item) {
	p.count++
	fmt.Fprintf(p.w, "[lane %d] %s  (%s tokens, %s)\n",
		it.Track, it.Text, stats.FormatTokens(it.Tokens), it.Duration.Round(100*time.Millisecond))
}

func (p *Printer) Unmount(string) {}

func (p *Printer) Clear() {}

// Count is the number of captions printed.
func (p *Printer) Count() int { return p.count }

// Options configure Run. Config and Out are required.
type Options struct {
	Config  *config.Config
	Out     io.Writer
	Dialer  client.Dialer
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Run connects and prints captions until ctx ends, the server closes the
// stream cleanly, or the stream is lost for good.
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	lp := loop.New(64)
	clk := clock.NewReal(lp)
	printer := NewPrinter(opts.Out)

	sess, err := session.New(session.Options{
		Config:     opts.Config,
		Surface:    printer,
		Clock:      clk,
		Dispatcher: lp,
		Dialer:     opts.Dialer,
		Metrics:    opts.Metrics,
		Logger:     opts.Logger,
		OnEvent: func(kind, msg string) {
			if kind != session.KindCaption {
				fmt.Fprintf(opts.Out, "# %s %s\n", kind, msg)
			}
		},
	})
	if err != nil {
		return err
	}
	// 800px keeps travel times close to a typical browser window.
	sess.Engine().SetViewportWidth(800)

	var check func()
	check = func() {
		if sess.Stopped() {
			return
		}
		sess.Tracker().Tick(clk.Now())
		switch sess.Mode() {
		case session.ModeLost:
			cancel(ErrConnectionLost)
			return
		case client.StateClosed.String():
			// Only a clean server close leaves a started stream closed.
			cancel(nil)
			return
		}
		clk.AfterFunc(checkInterval, check)
	}
	lp.Post(func() {
		sess.Start(opts.Config.Stream.Demand)
		clk.AfterFunc(checkInterval, check)
	})

	lp.Run(ctx)
	sess.Stop()

	tr := sess.Tracker()
	fmt.Fprintf(opts.Out, "# %d praises, %s tokens, %d dropped in %s\n",
		printer.Count(), stats.FormatTokens(tr.Tokens()), tr.Dropped(), stats.FormatElapsed(tr.Elapsed()))

	if cause := context.Cause(ctx); errors.Is(cause, ErrConnectionLost) {
		return cause
	}
	return nil
}
