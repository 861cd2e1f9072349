// Package proc runs external tools and captures their output.
//
// Capture reads stdout and stderr concurrently so neither pipe can fill up
// and stall the child. Stderr lines are folded into an error summary together
// with the stdout lines that preceded them, which keeps compiler diagnostics
// next to the progress output that produced them.
package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// DefaultIgnore is the stderr substring that does not count as an error.
// Linkers print position-independent-executable notices on stderr.
const DefaultIgnore = "PIE"

const (
	contextLines  = 3
	fallbackLines = 10
)

// Stream identifies which pipe a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Options configures Capture.
type Options struct {
	// Ignore is the stderr substring that excludes a line from the error
	// summary. Empty means DefaultIgnore.
	Ignore string
	// Echo receives every line as it arrives.
	Echo io.Writer
	// KeepOutput retains the interleaved output in Result.Output.
	KeepOutput bool
	// Timeout bounds the run. Zero means no limit.
	Timeout time.Duration
}

// Result is the outcome of one captured process.
type Result struct {
	Output string
	Stdout string
	Stderr string
	Errors string
	Status Status
}

// Failed reports whether the process exited nonzero or was killed.
func (r *Result) Failed() bool {
	return r.Status.ReturnCode != 0 || r.Status.TimedOut || r.Status.Canceled
}

// Capture starts cmd and waits for it, collecting its output.
//
// A nonzero exit is not an error: it is recorded in Result.Status and in the
// error summary. An error is returned only when the process cannot be started.
// The child runs in its own process group where the platform supports it, and
// the whole group is killed when ctx is done or the timeout expires.
func Capture(ctx context.Context, cmd *exec.Cmd, opts Options) (*Result, error) {
	return captureWith(ctx, cmd, opts, capture)
}

// backend starts cmd and calls emit for every output line, in arrival order,
// on the calling goroutine. It returns once both pipes are drained. When ctx
// is done it kills the process group and keeps draining.
type backend func(ctx context.Context, cmd *exec.Cmd, emit func(Stream, string)) error

func captureWith(ctx context.Context, cmd *exec.Cmd, opts Options, read backend) (*Result, error) {
	if cmd.Stdout != nil || cmd.Stderr != nil {
		return nil, errors.New("proc: Stdout and Stderr must not be set")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	setProcessGroup(cmd)

	acc := newAccumulator(opts)
	readErr := read(ctx, cmd, acc.add)
	if cmd.Process == nil {
		if readErr == nil {
			readErr = errors.New("process not started")
		}
		return nil, fmt.Errorf("start %s: %w", cmd.Path, readErr)
	}

	waitErr := cmd.Wait()
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && readErr == nil {
		readErr = waitErr
	}

	status := statusOf(cmd)
	switch ctx.Err() {
	case context.DeadlineExceeded:
		status.TimedOut = true
	case context.Canceled:
		status.Canceled = true
	}

	res := acc.finish(status, opts.Timeout)
	if readErr != nil {
		res.Errors += fmt.Sprintf("output capture failed: %v\n", readErr)
	}
	return res, nil
}

// Run is Capture for commands whose output only matters on failure. It
// returns the error summary, which is empty on success.
func Run(ctx context.Context, cmd *exec.Cmd, opts Options) (string, error) {
	res, err := Capture(ctx, cmd, opts)
	if err != nil {
		return "", err
	}
	return res.Errors, nil
}

// accumulator builds the error summary from lines in arrival order.
type accumulator struct {
	opts   Options
	output strings.Builder
	stdout strings.Builder
	stderr strings.Builder
	errs   strings.Builder
	window []string
}

func newAccumulator(opts Options) *accumulator {
	if opts.Ignore == "" {
		opts.Ignore = DefaultIgnore
	}
	return &accumulator{opts: opts}
}

func (a *accumulator) add(s Stream, line string) {
	if a.opts.KeepOutput {
		a.output.WriteString(line)
	}
	if a.opts.Echo != nil {
		io.WriteString(a.opts.Echo, line)
	}

	if s == Stdout {
		a.stdout.WriteString(line)
		a.window = append(a.window, line)
		if len(a.window) > fallbackLines {
			a.window = a.window[len(a.window)-fallbackLines:]
		}
		return
	}

	a.stderr.WriteString(line)
	if strings.Contains(line, a.opts.Ignore) {
		return
	}
	a.errs.WriteString(strings.Join(tail(a.window, contextLines), ""))
	a.window = a.window[:0]
	a.errs.WriteString(line)
	if !strings.HasSuffix(line, "\n") {
		a.errs.WriteByte('\n')
	}
}

func (a *accumulator) finish(status Status, timeout time.Duration) *Result {
	errs := a.errs.String()
	if status.ReturnCode != 0 && errs == "" {
		errs = strings.Join(tail(a.window, fallbackLines), "")
		if errs != "" && !strings.HasSuffix(errs, "\n") {
			errs += "\n"
		}
	}

	switch {
	case status.TimedOut:
		errs += fmt.Sprintf("timed out after %s\n", timeout)
	case status.Canceled:
		errs += "interrupted\n"
	case status.ReturnCode != 0:
		errs += status.String() + "\n"
	}

	return &Result{
		Output: a.output.String(),
		Stdout: a.stdout.String(),
		Stderr: a.stderr.String(),
		Errors: errs,
		Status: status,
	}
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
