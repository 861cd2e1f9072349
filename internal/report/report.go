// Package report writes the timestamped run log and the console summary.
//
// A Report is created once per run and closed by the caller with defer, so
// the summary is written on every exit path including interrupts. It is used
// from a single goroutine.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vvdec/smoketest/internal/output"
)

// Header identifies the run at the top of the log.
type Header struct {
	RunID        string
	Machine      string
	Hardware     string
	Revision     string
	RevisionInfo string
	Dirty        bool
}

// Options configures Open.
type Options struct {
	// Dir receives the log file.
	Dir string
	// Manifest is the manifest path; its stem names the log file.
	Manifest string
	Header   Header
	Clock    clock.Clock
	Console  *output.Writer
}

// BuildInfo describes the build whose results follow in the log.
type BuildInfo struct {
	Key       string
	Group     string
	Generator string
	Options   string
	Overrides []string
}

// Outcome tallies in the console summary.
const (
	outcomePassed     = "passed"
	outcomeMismatched = "mismatched"
	outcomeFailed     = "failed"
	outcomeSkipped    = "skipped"
	outcomeBuild      = "build errors"
)

var outcomeOrder = []string{outcomePassed, outcomeMismatched, outcomeFailed, outcomeSkipped, outcomeBuild}

// Report is the state of one run.
type Report struct {
	clock    clock.Clock
	out      *output.Writer
	header   Header
	manifest string
	path     string
	host     string
	f        *os.File
	started  time.Time

	total    int
	executed int
	errors   int
	tally    map[string]int

	build       string // key of the build being compiled
	test        string // current test block, repeated in failure records
	lineOpen    bool
	interrupted bool
	closed      bool
}

// Open creates the log file and writes the run header.
func Open(opts Options) (*Report, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	out := opts.Console
	if out == nil {
		out = output.New()
	}

	now := clk.Now()
	stem := strings.TrimSuffix(filepath.Base(opts.Manifest), filepath.Ext(opts.Manifest))
	name := fmt.Sprintf("log-%s-%s.txt", now.Format("0601021504"), stem)
	path := filepath.Join(opts.Dir, name)

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	host, _ := os.Hostname()
	r := &Report{
		clock:    clk,
		out:      out,
		header:   opts.Header,
		manifest: opts.Manifest,
		path:     path,
		host:     host,
		f:        f,
		started:  now,
		tally:    make(map[string]int),
	}

	out.Info("Logging test results to %s", path)
	r.writeHeader()
	return r, nil
}

func (r *Report) writeHeader() {
	h := r.header
	var b strings.Builder
	fmt.Fprintf(&b, "\nsystem:      %s\n", h.Machine)
	fmt.Fprintf(&b, "hardware:    %s\n", h.Hardware)
	fmt.Fprintf(&b, "run id:      %s\n", h.RunID)
	fmt.Fprintf(&b, "started:     %s\n", r.started.Format(time.RFC3339))
	if h.RevisionInfo != "" {
		b.WriteString(strings.TrimRight(h.RevisionInfo, "\n"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Running %s\n\n", r.manifest)
	r.write(b.String())

	if h.Dirty {
		r.out.Warning("revision under test has uncommitted changes")
		r.write("NOTE: Revision under test has uncommitted changes.\n\n")
	}
}

// Path is the log file location.
func (r *Report) Path() string { return r.path }

// SetTotal records how many tests the run will attempt.
func (r *Report) SetTotal(n int) { r.total = n }

// Total is the number of tests the run will attempt.
func (r *Report) Total() int { return r.total }

// Executed is the number of tests begun so far.
func (r *Report) Executed() int { return r.executed }

// Errors is the number of recorded errors.
func (r *Report) Errors() int { return r.errors }

// BeginBuild writes the block that introduces a build's results.
func (r *Report) BeginBuild(b BuildInfo) {
	r.endLine()
	var s strings.Builder
	fmt.Fprintf(&s, "cur build: %s group=%s\n", b.Key, b.Group)
	fmt.Fprintf(&s, "generator: %s\n", b.Generator)
	fmt.Fprintf(&s, "options  : %s (%s)\n\n", b.Options, strings.Join(b.Overrides, " "))
	r.write(s.String())
	r.build = b.Key
	r.out.BuildStart(b.Key, b.Generator)
}

// EndBuild reports a build that produced a usable decoder.
func (r *Report) EndBuild(key string) {
	r.endLine()
	r.out.BuildSuccess(key)
}

// BeginTest counts a test as executed and announces it. It returns the
// 1-based index of the test in the run.
func (r *Report) BeginTest(key, seq, command, fingerprint string) int {
	r.endLine()
	r.executed++
	r.test = fmt.Sprintf("command: %s %s\n   hash: %s\n\n", seq, command, fingerprint)
	r.SetProgressTitle(fmt.Sprintf("[%d/%d] %s %s", r.executed, r.total, seq, command))
	r.out.TestStart(r.executed, r.total, key, seq)
	r.lineOpen = true
	return r.executed
}

// RecordPass logs a matching checksum.
func (r *Report) RecordPass(key, seq, sum string) {
	r.tally[outcomePassed]++
	r.write(fmt.Sprintf("[%d/%d] [%s] %s (%s)\n", r.executed, r.total, key, seq, sum))
	if r.lineOpen {
		r.out.TestPassed()
		r.lineOpen = false
	}
}

// RecordMismatch logs a checksum that differs from the golden value and
// records it as a failure.
func (r *Report) RecordMismatch(key, seq, expected, observed, logs string) {
	r.tally[outcomeMismatched]++
	r.write(fmt.Sprintf("[%d/%d] [%s] %s (%s -> %s)\n", r.executed, r.total, key, seq, expected, observed))
	r.fail("hash mismatch", "yuv is mismatched with reference yuv", logs)
}

// RecordFailure logs a decoder failure with its context and counts an error.
func (r *Report) RecordFailure(prefix, detail, logs string) {
	r.tally[outcomeFailed]++
	r.fail(prefix, detail, logs)
}

func (r *Report) fail(prefix, detail, logs string) {
	r.write("**\n\n" + r.test + strings.Join([]string{prefix, detail, logs}, "\n") + "\n")
	r.errors++
	r.console(prefix)
}

// RecordError logs a build or harness error and counts it.
func (r *Report) RecordError(msg string) {
	r.write(msg + "\n")
	r.errors++
	first, _, _ := strings.Cut(strings.TrimSpace(msg), "\n")
	r.console(first)
}

// RecordBuildError is RecordError for a build phase.
func (r *Report) RecordBuildError(msg string) {
	r.tally[outcomeBuild]++
	r.write(msg + "\n")
	r.errors++
	r.endLine()
	first, _, _ := strings.Cut(strings.TrimSpace(msg), "\n")
	r.out.BuildFailed(r.build, first)
}

// RecordSkip notes a test that was not run. It is not an error.
func (r *Report) RecordSkip(key, seq, reason string) {
	r.tally[outcomeSkipped]++
	r.write(fmt.Sprintf("[%d/%d] [%s] %s skipped (%s)\n", r.executed, r.total, key, seq, reason))
	if r.lineOpen {
		r.out.TestSkipped(reason)
		r.lineOpen = false
	}
}

// Warn prints a non-fatal problem on the console.
func (r *Report) Warn(msg string) {
	r.endLine()
	r.out.Warning("%s", msg)
}

// Note prints a progress message on the console.
func (r *Report) Note(format string, args ...interface{}) {
	r.endLine()
	r.out.Info(format, args...)
}

// SetProgressTitle shows text in the terminal title.
func (r *Report) SetProgressTitle(text string) {
	r.out.SetTitle(fmt.Sprintf("%s: %s", r.host, text))
}

// Interrupted marks the run as cut short.
func (r *Report) Interrupted() {
	r.interrupted = true
}

// Close writes the summary and closes the log. Only the first call has an
// effect.
func (r *Report) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.endLine()

	switch {
	case r.interrupted:
		msg := fmt.Sprintf("Run interrupted after %d/%d tests", r.executed, r.total)
		r.write("\n" + msg + "\n")
		r.printSummary()
		r.out.FinalFailure("%s; log written to %s", msg, r.path)
	case r.errors > 0:
		r.write(fmt.Sprintf("\n%d errors recorded\n", r.errors))
		r.printSummary()
		r.out.FinalFailure("Errors written to %s", r.path)
	default:
		msg := "All tests passed on " + r.header.Machine
		if r.header.Revision != "" {
			msg = fmt.Sprintf("All tests passed for %s on %s", r.header.Revision, r.header.Machine)
		}
		r.write("\n" + msg + "\n")
		r.printSummary()
		r.out.FinalSuccess("%s", msg)
	}

	syncErr := r.f.Sync()
	closeErr := r.f.Close()
	r.f = nil
	r.SetProgressTitle(filepath.Base(r.manifest) + " complete")
	if closeErr != nil {
		return closeErr
	}
	return syncErr
}

func (r *Report) printSummary() {
	if r.executed == 0 && len(r.tally) == 0 {
		return
	}
	title := cases.Title(language.English)
	r.out.SummaryHeader("Summary")
	r.out.SummaryItem("Tests", fmt.Sprintf("%d/%d", r.executed, r.total))
	for _, o := range outcomeOrder {
		n := r.tally[o]
		if n == 0 {
			continue
		}
		if o == outcomePassed {
			r.out.SummaryPassed(title.String(o), fmt.Sprint(n))
		} else {
			r.out.SummaryFailed(title.String(o), fmt.Sprint(n))
		}
	}
	r.out.SummaryItem("Duration", strings.TrimSpace(humanize.RelTime(r.started, r.clock.Now(), "", "")))
	if info, err := r.f.Stat(); err == nil {
		r.out.SummaryItem("Log", fmt.Sprintf("%s (%s)", r.path, humanize.Bytes(uint64(info.Size()))))
	}
}

func (r *Report) console(msg string) {
	if r.lineOpen {
		r.out.TestFailed(msg)
		r.lineOpen = false
		return
	}
	r.out.Errorln("%s", msg)
}

func (r *Report) endLine() {
	if r.lineOpen {
		r.out.Info("")
		r.lineOpen = false
	}
}

// write appends to the log; line endings are normalized to \n.
func (r *Report) write(s string) {
	if r.f == nil {
		return
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if _, err := r.f.WriteString(s); err != nil {
		r.out.Warning("write log: %v", err)
	}
}
