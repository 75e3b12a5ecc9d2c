package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

const (
	defaultRetries = 15
	defaultDelay   = 2 * time.Second
)

// runCommand executes an external command and returns its stdout. Overridable
// in tests.
type runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// RouterOption is a functional option for Router.
type RouterOption func(*Router)

// WithRetryPolicy overrides how often and how long the router polls for the
// browser's sink input to appear.
func WithRetryPolicy(retries int, delay time.Duration) RouterOption {
	return func(r *Router) {
		r.retries = retries
		r.delay = delay
	}
}

// WithRunner overrides command execution. Test hook.
func WithRunner(run runCommand) RouterOption {
	return func(r *Router) { r.run = run }
}

// Router moves the browser's PulseAudio stream into a named virtual sink so
// the sink monitor carries only meeting audio.
type Router struct {
	sinkName string
	retries  int
	delay    time.Duration
	run      runCommand
}

// NewRouter creates a Router targeting sinkName.
func NewRouter(sinkName string, opts ...RouterOption) *Router {
	r := &Router{
		sinkName: sinkName,
		retries:  defaultRetries,
		delay:    defaultDelay,
		run:      execRun,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// MoveBrowserInput polls `pactl list sink-inputs` until the browser's stream
// appears, then moves it into the virtual sink. The browser joins the call
// asynchronously, so the stream may take several seconds to show up.
//
// Returns an error when the stream never appears within the retry budget or
// ctx is cancelled first.
func (r *Router) MoveBrowserInput(ctx context.Context) error {
	for attempt := 0; attempt < r.retries; attempt++ {
		out, err := r.run(ctx, "pactl", "list", "sink-inputs")
		if err != nil {
			return fmt.Errorf("sink: list sink-inputs: %w", err)
		}

		if index := FindBrowserInput(string(out)); index != "" {
			if _, err := r.run(ctx, "pactl", "move-sink-input", index, r.sinkName); err != nil {
				return fmt.Errorf("sink: move sink-input %s to %s: %w", index, r.sinkName, err)
			}
			slog.Info("browser stream routed to virtual sink", "index", index, "sink", r.sinkName)
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("sink: waiting for browser stream: %w", ctx.Err())
		case <-time.After(r.delay):
		}
	}
	return fmt.Errorf("sink: no browser sink-input appeared after %d attempts", r.retries)
}
