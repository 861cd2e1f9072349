// Package runner orchestrates a smoke test run: setup checks, building the
// selected decoder builds, and executing every test case against each build.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"code.cloudfoundry.org/clock"

	"github.com/vvdec/smoketest/internal/build"
	"github.com/vvdec/smoketest/internal/checksum"
	"github.com/vvdec/smoketest/internal/config"
	"github.com/vvdec/smoketest/internal/errors"
	"github.com/vvdec/smoketest/internal/executor"
	"github.com/vvdec/smoketest/internal/manifest"
	"github.com/vvdec/smoketest/internal/output"
	"github.com/vvdec/smoketest/internal/report"
	"github.com/vvdec/smoketest/internal/revision"
	"github.com/vvdec/smoketest/internal/sysinfo"
)

// DefaultManifest is the manifest used when none is selected.
const DefaultManifest = "smoke-tests.txt"

// Runner executes runs for one configuration.
type Runner struct {
	cfg *config.Config

	// Console, Clock and LookPath default to the process terminal, the wall
	// clock and exec.LookPath.
	Console  *output.Writer
	Clock    clock.Clock
	LookPath func(file string) (string, error)
}

// RunOptions selects what a run covers.
type RunOptions struct {
	Builds   []string // build keys; empty selects all
	Manifest string   // manifest name or path; empty selects DefaultManifest
	Only     string
	Skip     string
	NoMake   bool
	Rebuild  bool
}

// Summary is the outcome of a run.
type Summary struct {
	LogPath     string
	Total       int
	Executed    int
	Errors      int
	Interrupted bool
	Results     []*executor.Result
}

// ExitCode maps the summary to the process exit status.
func (s *Summary) ExitCode() int {
	if s.Errors > 0 || s.Interrupted {
		return errors.ExitRuntimeError
	}
	return errors.ExitSuccess
}

// Count returns how many results had the given outcome.
func (s *Summary) Count(o executor.Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// New creates a Runner for a loaded and validated configuration.
func New(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg}
}

func (r *Runner) console() *output.Writer {
	if r.Console == nil {
		r.Console = output.New()
	}
	return r.Console
}

func (r *Runner) lookPath(file string) (string, error) {
	if r.LookPath != nil {
		return r.LookPath(file)
	}
	return exec.LookPath(file)
}

// setup holds what the checks before a run resolve.
type setup struct {
	builds   *build.Registry
	manifest string
	git      string
	mode     checksum.Mode
	echo     io.Writer
}

// check performs every setup check. Any failure here aborts the run before
// a report is opened.
func (r *Runner) check(opts RunOptions) (*setup, error) {
	cfg := r.cfg
	s := &setup{}

	mode, err := checksum.ParseMode(cfg.Checksum.Mode)
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "checksum")
	}
	s.mode = mode

	if cfg.Progress {
		s.echo = r.console().Stdout()
	}
	env := build.EnvFromConfig(cfg)
	env.Echo = s.echo
	all, err := build.NewRegistryWithEnv(cfg.Builds, env)
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "builds")
	}
	s.builds, err = all.Select(opts.Builds)
	if err != nil {
		return nil, errors.Configf("%v (configured: %s)", err, strings.Join(all.Keys(), ", "))
	}

	if cfg.VersionControl == "git" {
		if s.git, err = r.lookPath("git"); err != nil {
			return nil, errors.Environmentf("git not found in PATH; set version_control: none to skip revision info")
		}
	}
	if !opts.NoMake {
		tool := "cmake"
		if cfg.Shell != "" {
			tool = cfg.Shell
		}
		if _, err := r.lookPath(tool); err != nil {
			return nil, errors.Environmentf("%s not found in PATH", tool)
		}
	}

	if err := config.ValidateSource(cfg.Source); err != nil {
		return nil, errors.WrapKind(errors.KindEnvironment, err, "invalid source")
	}
	if info, err := os.Stat(cfg.Sequences); err != nil || !info.IsDir() {
		return nil, errors.Environmentf("sequences folder %q does not exist", cfg.Sequences)
	}

	name := opts.Manifest
	if name == "" {
		name = DefaultManifest
	}
	if s.manifest, err = manifest.Resolve(name, cfg.Source); err != nil {
		return nil, errors.WrapKind(errors.KindNotFound, err, "manifest")
	}
	return s, nil
}

// Run performs a full run. The returned error is non-nil only for setup
// failures; everything after the report is opened ends up in the summary.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	cfg := r.cfg
	s, err := r.check(opts)
	if err != nil {
		return nil, err
	}

	header := r.header(ctx, s.git)
	rep, err := report.Open(report.Options{
		Dir:      cfg.Logs,
		Manifest: s.manifest,
		Header:   header,
		Clock:    r.Clock,
		Console:  r.console(),
	})
	if err != nil {
		return nil, errors.WrapKind(errors.KindEnvironment, err, "open report")
	}

	sum := &Summary{LogPath: rep.Path()}
	defer func() {
		if sum.Interrupted {
			rep.Interrupted()
		}
		sum.Total, sum.Executed, sum.Errors = rep.Total(), rep.Executed(), rep.Errors()
		if cerr := rep.Close(); cerr != nil {
			r.console().Warning("close report: %v", cerr)
		}
	}()

	builds := s.builds.All()
	if err := r.buildAll(ctx, builds, opts, rep); err != nil {
		rep.Warn(err.Error())
		sum.Interrupted = true
		return sum, nil
	}

	cases, err := manifest.ParseFile(s.manifest, manifest.Source{AssetDir: cfg.Sequences, Warn: rep.Warn})
	if err != nil {
		rep.RecordError(fmt.Sprintf("unable to read test list %s: %v", s.manifest, err))
		return sum, nil
	}
	cases = manifest.Filter(cases, opts.Only, opts.Skip)
	if len(cases) == 0 {
		rep.Warn("no test cases selected")
	}
	rep.SetTotal(len(builds) * len(cases))

	ex := executor.New(executor.Options{
		Report:  rep,
		Assets:  manifest.Source{AssetDir: cfg.Sequences},
		Temp:    cfg.Temp,
		Mode:    s.mode,
		Label:   cfg.Checksum.Label,
		Ignore:  cfg.Ignore,
		Timeout: cfg.Timeout.Std(),
		Echo:    s.echo,
	})

	for _, b := range builds {
		for _, tc := range cases {
			if ctx.Err() != nil {
				sum.Interrupted = true
				return sum, nil
			}
			res := ex.Run(ctx, b, tc)
			sum.Results = append(sum.Results, res)
			if res.Outcome == executor.Interrupted {
				sum.Interrupted = true
				return sum, nil
			}
		}
	}
	return sum, nil
}

// buildAll compiles each build, or only checks for its executable with
// NoMake. It returns ctx's error when the run is interrupted.
func (r *Runner) buildAll(ctx context.Context, builds []*build.Build, opts RunOptions, rep *report.Report) error {
	for _, b := range builds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.NoMake {
			if b.RunsOnHost() {
				b.Verify(rep)
			}
			continue
		}
		if err := b.Build(ctx, opts.Rebuild, rep); err != nil {
			return errors.BuildError(b.Key(), "build", err)
		}
		if b.Usable() {
			rep.EndBuild(b.Key())
		}
	}
	return nil
}

// header collects the run identity. Revision and hardware probing are best
// effort: failures leave the fields empty.
func (r *Runner) header(ctx context.Context, git string) report.Header {
	m := sysinfo.Describe(ctx, r.cfg.Machine.Name, r.cfg.Machine.Description)
	h := report.Header{
		RunID:    m.RunID,
		Machine:  m.Name,
		Hardware: m.Hardware,
	}
	if git == "" {
		return h
	}
	info, err := revision.Probe(ctx, git, r.cfg.Source)
	if err != nil {
		r.console().Warning("revision unavailable: %v", err)
		return h
	}
	h.Revision = info.Short()
	h.RevisionInfo = info.String()
	h.Dirty = info.Dirty()
	return h
}
