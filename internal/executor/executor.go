// Package executor runs a decoder build against one test case and verifies
// its output checksum.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/vvdec/smoketest/internal/build"
	"github.com/vvdec/smoketest/internal/checksum"
	"github.com/vvdec/smoketest/internal/manifest"
	"github.com/vvdec/smoketest/internal/proc"
)

// Outcome is the verdict for one build and test case pair.
type Outcome int

const (
	Passed Outcome = iota
	Mismatched
	Faulted
	MissingAsset
	Skipped
	Interrupted
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Mismatched:
		return "mismatched"
	case Faulted:
		return "faulted"
	case MissingAsset:
		return "missing asset"
	case Skipped:
		return "skipped"
	case Interrupted:
		return "interrupted"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result describes one executed test.
type Result struct {
	Build       string
	Case        manifest.TestCase
	Command     string
	Fingerprint string
	Checksum    string
	Outcome     Outcome
	Status      proc.Status
	// Detail is the classification of a failure, e.g. "vvdec encountered SIGSEGV".
	Detail string
	Logs   string
}

// Failed reports whether the result counts as an error.
func (r *Result) Failed() bool {
	switch r.Outcome {
	case Mismatched, Faulted, MissingAsset:
		return true
	}
	return false
}

// Recorder receives test progress and verdicts.
type Recorder interface {
	BeginTest(key, seq, command, fingerprint string) int
	RecordPass(key, seq, sum string)
	RecordMismatch(key, seq, expected, observed, logs string)
	RecordFailure(prefix, detail, logs string)
	RecordSkip(key, seq, reason string)
	Warn(msg string)
}

// Options configures an Executor.
type Options struct {
	Report Recorder
	// Assets locates sequences named by test cases.
	Assets manifest.Source
	// Temp is the parent of per-test scratch directories.
	Temp    string
	Mode    checksum.Mode
	Label   string
	Ignore  string
	Timeout time.Duration
	Echo    io.Writer
}

// Executor runs tests one at a time.
type Executor struct {
	opts     Options
	coreOnce sync.Once
}

// New creates an Executor.
func New(opts Options) *Executor {
	if opts.Mode == "" {
		opts.Mode = checksum.Stdout
	}
	if opts.Label == "" {
		opts.Label = checksum.DefaultLabel
	}
	return &Executor{opts: opts}
}

// Run executes tc against b. It always returns a result; everything worth
// reporting has been recorded by the time it returns.
func (e *Executor) Run(ctx context.Context, b *build.Build, tc manifest.TestCase) *Result {
	rep := e.opts.Report
	key := b.Key()
	project := build.ProjectName(b.Decoder())
	seqPath := e.opts.Assets.Path(tc.Sequence)
	res := &Result{Build: key, Case: tc}

	if reason := skipReason(b); reason != "" {
		res.Command = strings.Join(e.args(b, seqPath, "<scratch>"), " ")
		res.Fingerprint = checksum.Fingerprint(res.Command)
		res.Outcome = Skipped
		res.Detail = reason
		rep.BeginTest(key, tc.Sequence, res.Command, res.Fingerprint)
		rep.RecordSkip(key, tc.Sequence, reason)
		return res
	}

	scratch, err := os.MkdirTemp(e.opts.Temp, project+"-tmp")
	if err != nil {
		res.Command = strings.Join(e.args(b, seqPath, "<scratch>"), " ")
		res.Fingerprint = checksum.Fingerprint(res.Command)
		rep.BeginTest(key, tc.Sequence, res.Command, res.Fingerprint)
		return e.fail(res, Faulted, "unable to create scratch directory", err.Error(), "")
	}
	defer os.RemoveAll(scratch)

	args := e.args(b, seqPath, scratch)
	res.Command = strings.Join(args, " ")
	res.Fingerprint = checksum.Fingerprint(res.Command)
	rep.BeginTest(key, tc.Sequence, res.Command, res.Fingerprint)

	if info, err := os.Stat(seqPath); err != nil || info.IsDir() {
		return e.fail(res, MissingAsset, fmt.Sprintf("sequence <%s> not found", seqPath), "", "")
	}

	e.coreOnce.Do(func() {
		if err := proc.EnableCoreDumps(); err != nil {
			rep.Warn(fmt.Sprintf("core dumps not enabled: %v", err))
		}
	})

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = scratch
	cmd.Env = b.Environ()
	out, err := proc.Capture(ctx, cmd, proc.Options{
		Ignore:  e.opts.Ignore,
		Echo:    e.opts.Echo,
		Timeout: e.opts.Timeout,
	})
	if err != nil {
		return e.fail(res, Faulted, project+" could not be started", err.Error(), "")
	}
	res.Status = out.Status
	res.Logs = DecoderLogs(project, out.Stderr, out.Stdout)

	if ctx.Err() != nil {
		res.Outcome = Interrupted
		res.Detail = "interrupted"
		return res
	}
	if out.Failed() {
		return e.fail(res, Faulted, classify(project, out.Status, e.opts.Timeout), out.Status.String(), res.Logs)
	}

	var sum string
	if e.opts.Mode == checksum.File {
		sum, err = checksum.FromFile(filepath.Join(scratch, "tmp.yuv"))
	} else {
		sum, err = checksum.FromStdout(out.Stdout, e.opts.Label)
	}
	if err != nil {
		return e.fail(res, Faulted, project+" produced no checksum", err.Error(), res.Logs)
	}
	res.Checksum = sum

	if !checksum.Equal(sum, tc.Checksum) {
		res.Outcome = Mismatched
		res.Detail = "hash mismatch"
		rep.RecordMismatch(key, tc.Sequence, tc.Checksum, sum, res.Logs)
		return res
	}
	res.Outcome = Passed
	rep.RecordPass(key, tc.Sequence, sum)
	return res
}

func (e *Executor) args(b *build.Build, seqPath, scratch string) []string {
	args := []string{b.Executable(), "-b", seqPath}
	if e.opts.Mode == checksum.File {
		return append(args, "-o", filepath.Join(scratch, "tmp.yuv"))
	}
	return append(args, "--md5")
}

func (e *Executor) fail(res *Result, outcome Outcome, prefix, detail, logs string) *Result {
	res.Outcome = outcome
	res.Detail = prefix
	e.opts.Report.RecordFailure(prefix, detail, logs)
	return res
}

func skipReason(b *build.Build) string {
	switch {
	case !b.RunsOnHost():
		return fmt.Sprintf("%s builds do not run on this host", b.Kind())
	case !b.Usable():
		return "build failed"
	}
	return ""
}

// returnCodes are the decoder's documented exit codes.
var returnCodes = map[int]string{
	1: "unable to parse command line",
	2: "unable to open decoder",
	3: "unable to open/generate stream headers",
	4: "decoder abort",
}

func classify(project string, st proc.Status, timeout time.Duration) string {
	if st.TimedOut {
		return fmt.Sprintf("%s timed out after %s", project, timeout)
	}
	if sig, ok := st.Signal(); ok {
		switch sig {
		case syscall.SIGABRT:
			return project + " encountered SIGABRT (usually check failure)"
		case syscall.SIGILL:
			return project + " encountered SIGILL (usually -ftrapv)"
		}
		if name := proc.ClassifySignal(st.ReturnCode); name != "" {
			return project + " encountered " + name
		}
		return fmt.Sprintf("%s killed by %v", project, sig)
	}
	if msg, ok := returnCodes[st.ReturnCode]; ok {
		return fmt.Sprintf("%s return code %d (%s)", project, st.ReturnCode, msg)
	}
	return fmt.Sprintf("%s return code %d", project, st.ReturnCode)
}

// DecoderLogs assembles the log text attached to a failure: stderr without
// progress reports and debug/full level lines, followed by stdout.
func DecoderLogs(project, stderr, stdout string) string {
	var b strings.Builder
	b.WriteString("Full decoder logs without progress reports or debug/full logs:\n")
	debug, full := project+" [debug]:", project+" [full]:"
	for _, line := range splitKeepEnds(stderr) {
		if strings.HasSuffix(line, "\r") {
			continue
		}
		if strings.HasPrefix(line, debug) || strings.HasPrefix(line, full) {
			continue
		}
		b.WriteString(line)
	}
	b.WriteString(stdout)
	return b.String()
}

// splitKeepEnds splits s after every "\n", "\r\n" or lone "\r".
func splitKeepEnds(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			lines = append(lines, s[start:i+1])
			start = i + 1
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				continue
			}
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
