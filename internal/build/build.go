// Package build describes the configured decoder builds and compiles them.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/vvdec/smoketest/internal/config"
	"github.com/vvdec/smoketest/internal/proc"
	"github.com/vvdec/smoketest/internal/report"
	"github.com/vvdec/smoketest/internal/toolchain"
)

// envOverrides go to the child environment instead of the cmake command line.
var envOverrides = map[string]bool{
	"CC":              true,
	"CXX":             true,
	"LD_LIBRARY_PATH": true,
	"PKG_CONFIG_PATH": true,
	"PATH":            true,
	"CFLAGS":          true,
}

// Env is the run-wide context shared by every build.
type Env struct {
	Source    string
	Temp      string
	Decoder   string
	Shell     string
	MakeFlags []string
	// Options maps symbolic option tokens to configure flags.
	Options map[string]string
	Ignore  string
	// Echo mirrors tool output as it arrives.
	Echo io.Writer
	// Environ is the base child environment. Nil means os.Environ().
	Environ []string
	// Timeout bounds each cmake and compiler invocation. Zero means no limit.
	Timeout time.Duration
}

// EnvFromConfig derives the shared build context from configuration.
func EnvFromConfig(cfg *config.Config) Env {
	return Env{
		Source:    cfg.Source,
		Temp:      cfg.Temp,
		Decoder:   cfg.Decoder,
		Shell:     cfg.Shell,
		MakeFlags: cfg.MakeFlags,
		Options:   cfg.Options,
		Ignore:    cfg.Ignore,
		Timeout:   cfg.Timeout.Std(),
	}
}

// Recorder receives build progress and errors.
type Recorder interface {
	BeginBuild(info report.BuildInfo)
	RecordBuildError(msg string)
	Warn(msg string)
	Note(format string, args ...interface{})
	SetProgressTitle(text string)
}

// Build is one configured decoder build. Everything but its usability is
// fixed at construction.
type Build struct {
	cfg     config.BuildConfig
	env     Env
	tc      toolchain.Toolchain
	target  string
	workDir string
	exe     string
	usable  bool
}

// ProjectName is the decoder project name: the executable name without its
// "app" suffix ("vvdecapp" -> "vvdec").
func ProjectName(decoder string) string {
	if p := strings.TrimSuffix(decoder, "app"); p != "" {
		return p
	}
	return decoder
}

// New creates a Build from its configuration.
func New(cfg config.BuildConfig, env Env) (*Build, error) {
	kind := toolchain.Detect(cfg.Key, cfg.Generator)
	if cfg.Kind != "" {
		k, err := toolchain.ParseKind(cfg.Kind)
		if err != nil {
			return nil, err
		}
		kind = k
	}
	if env.Decoder == "" {
		env.Decoder = config.DefaultDecoder
	}

	b := &Build{
		cfg:    cfg,
		env:    env,
		tc:     toolchain.For(kind),
		usable: true,
	}
	b.target = b.tc.Target(strings.Fields(cfg.Options))
	b.workDir = filepath.Join(b.folder(), "default")

	switch {
	case cfg.Executable == "":
		b.exe = b.tc.Artifact(b.request())
	case filepath.IsAbs(cfg.Executable):
		b.exe = cfg.Executable
	default:
		b.exe = filepath.Join(env.Source, cfg.Executable)
	}
	return b, nil
}

func (b *Build) folder() string {
	return filepath.Join(b.env.Temp, b.env.Decoder, b.cfg.Folder)
}

// Key is the build's configuration key.
func (b *Build) Key() string { return b.cfg.Key }

// Group is the build's reporting group.
func (b *Build) Group() string { return b.cfg.Group }

// Generator is the cmake generator.
func (b *Build) Generator() string { return b.cfg.Generator }

// Options are the symbolic option tokens.
func (b *Build) Options() string { return b.cfg.Options }

// Kind is the toolchain kind.
func (b *Build) Kind() toolchain.Kind { return b.tc.Kind() }

// Target is the configuration label, empty for single-config generators.
func (b *Build) Target() string { return b.target }

// WorkDir is the cmake binary directory.
func (b *Build) WorkDir() string { return b.workDir }

// Executable is where the decoder is expected after compiling.
func (b *Build) Executable() string { return b.exe }

// Decoder is the decoder executable base name.
func (b *Build) Decoder() string { return b.env.Decoder }

// RunsOnHost reports whether the decoder can execute on this machine.
func (b *Build) RunsOnHost() bool { return b.tc.RunsOnHost() }

// Usable is false once compiling failed to produce the executable.
func (b *Build) Usable() bool { return b.usable }

// Info is the build description for the run log.
func (b *Build) Info() report.BuildInfo {
	return report.BuildInfo{
		Key:       b.cfg.Key,
		Group:     b.cfg.Group,
		Generator: b.cfg.Generator,
		Options:   b.cfg.Options,
		Overrides: b.overrideArgs(true),
	}
}

// Environ returns the environment for running the decoder: the base
// environment with the build's PATH additions appended.
func (b *Build) Environ() []string {
	env := b.baseEnviron()
	if extra, ok := b.cfg.Overrides.Lookup("PATH"); ok && extra != "" {
		env = appendPath(env, extra)
	}
	return env
}

func (b *Build) baseEnviron() []string {
	if b.env.Environ != nil {
		return append([]string(nil), b.env.Environ...)
	}
	return os.Environ()
}

func (b *Build) request() toolchain.Request {
	return toolchain.Request{
		Key:       b.cfg.Key,
		Project:   ProjectName(b.env.Decoder),
		Decoder:   b.env.Decoder,
		Source:    b.env.Source,
		WorkDir:   b.workDir,
		Generator: b.cfg.Generator,
		Target:    b.target,
		Profile:   b.cfg.Profile,
		MakeFlags: b.env.MakeFlags,
		Env:       b.configureEnviron(),
	}
}

// ConfigureOptions expands the build's option tokens and appends the flags
// every build gets. Unknown tokens are reported through warn and skipped.
func (b *Build) ConfigureOptions(warn func(string)) ([]string, error) {
	var opts []string
	for _, token := range strings.Fields(b.cfg.Options) {
		flags, ok := b.env.Options[token]
		if !ok {
			if warn != nil {
				warn(fmt.Sprintf("unknown cmake option %s", token))
			}
			continue
		}
		opts = append(opts, strings.Fields(flags)...)
	}

	kindFlags, err := b.tc.ConfigureFlags(b.request())
	if err != nil {
		return nil, err
	}
	opts = append(opts, kindFlags...)
	opts = append(opts, "-DBUILD_SHARED_LIBS=OFF")

	if !hasBuildType(opts) {
		opts = append(opts, "-DCMAKE_BUILD_TYPE=Release")
	}
	opts = append(opts, "--no-warn-unused-cli")
	return opts, nil
}

func hasBuildType(opts []string) bool {
	for _, o := range opts {
		if strings.HasPrefix(o, "-DCMAKE_BUILD_TYPE=") {
			return true
		}
	}
	return false
}

// ConfigureCommand returns the configure step. With a shell configured it
// runs the source tree's configure script; otherwise it runs cmake in the
// work folder.
func (b *Build) ConfigureCommand(ctx context.Context, opts []string) *exec.Cmd {
	var cmd *exec.Cmd
	if b.env.Shell != "" {
		script := strings.Join(append([]string{"./configure"}, opts...), " ")
		cmd = exec.CommandContext(ctx, b.env.Shell, "-c", script)
		cmd.Dir = b.env.Source
	} else {
		source, err := filepath.Abs(b.env.Source)
		if err != nil {
			source = b.env.Source
		}
		args := []string{"-Wno-dev", source}
		if b.cfg.Generator != "" {
			args = append(args, "-G", b.cfg.Generator)
			args = append(args, b.overrideArgs(false)...)
		}
		args = append(args, opts...)
		cmd = exec.CommandContext(ctx, "cmake", args...)
		cmd.Dir = b.workDir
	}
	cmd.Env = b.configureEnviron()
	return cmd
}

// overrideArgs renders overrides as cmake arguments. Keys containing "-"
// are passed as "key value"; the rest as -Dkey=value. Environment keys are
// left out unless all is set.
func (b *Build) overrideArgs(all bool) []string {
	var args []string
	if cflags, ok := b.cfg.Overrides.Lookup("CFLAGS"); ok && !all {
		args = append(args, "-DCMAKE_C_COMPILER_ARG1="+cflags, "-DCMAKE_CXX_COMPILER_ARG1="+cflags)
	}
	for _, ov := range b.cfg.Overrides {
		switch {
		case envOverrides[ov.Key] && !all:
			continue
		case strings.Contains(ov.Key, "-"):
			if all {
				args = append(args, ov.Key+" "+ov.Value)
			} else {
				args = append(args, ov.Key, ov.Value)
			}
		default:
			args = append(args, fmt.Sprintf("-D%s=%s", ov.Key, ov.Value))
		}
	}
	return args
}

// configureEnviron is the toolchain environment: compiler overrides set,
// PATH additions appended.
func (b *Build) configureEnviron() []string {
	env := b.baseEnviron()
	for _, key := range []string{"CC", "CXX", "LD_LIBRARY_PATH", "PKG_CONFIG_PATH"} {
		if v, ok := b.cfg.Overrides.Lookup(key); ok {
			env = setEnv(env, key, v)
		}
	}
	if extra, ok := b.cfg.Overrides.Lookup("PATH"); ok && extra != "" {
		env = appendPath(env, extra)
	}
	return env
}

func setEnv(env []string, key, value string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if k, _, _ := strings.Cut(kv, "="); k == key {
			continue
		}
		out = append(out, kv)
	}
	return append(out, key+"="+value)
}

func appendPath(env []string, extra string) []string {
	current, _ := toolchain.LookupEnv(env, "PATH")
	if current == "" {
		return setEnv(env, "PATH", extra)
	}
	return setEnv(env, "PATH", current+string(os.PathListSeparator)+extra)
}

// Build prepares the work folder, configures and compiles. Failures are
// recorded, not returned; the build is marked unusable when no executable
// results. The only error returned is ctx's, when the run is interrupted.
func (b *Build) Build(ctx context.Context, rebuild bool, rec Recorder) error {
	key := b.cfg.Key
	rec.BeginBuild(b.Info())
	rec.Note("Building %s...", key)

	if rebuild {
		if err := os.RemoveAll(b.folder()); err != nil {
			rec.Warn(fmt.Sprintf("remove %s: %v", b.folder(), err))
		}
	}
	if err := os.MkdirAll(b.workDir, 0755); err != nil {
		b.fail(rec, fmt.Sprintf("cmake errors reported for %s:: \n%v\n", key, err))
		return nil
	}

	if b.configure(ctx, rec) {
		b.compile(ctx, rec)
	}
	if err := ctx.Err(); err != nil {
		b.usable = false
		return err
	}

	b.Verify(rec)
	return nil
}

// Verify checks that the executable exists, recording a build error and
// marking the build unusable when it does not.
func (b *Build) Verify(rec Recorder) bool {
	if info, err := os.Stat(b.exe); err != nil || info.IsDir() {
		b.fail(rec, fmt.Sprintf("%s <%s> cli not compiled\n", ProjectName(b.env.Decoder), b.exe))
		return false
	}
	return true
}

func (b *Build) configure(ctx context.Context, rec Recorder) bool {
	prefix := fmt.Sprintf("cmake errors reported for %s:: ", b.cfg.Key)
	opts, err := b.ConfigureOptions(rec.Warn)
	if err != nil {
		b.fail(rec, prefix+"\n"+err.Error()+"\n")
		return false
	}

	rec.SetProgressTitle("cmake " + b.folder())
	res, err := proc.Capture(ctx, b.ConfigureCommand(ctx, opts), b.procOptions())
	if err != nil {
		b.fail(rec, prefix+"\n"+err.Error()+"\n")
		return false
	}
	if res.Stderr != "" || res.Failed() {
		errs := res.Stdout + res.Stderr
		switch {
		case res.Status.TimedOut:
			errs += fmt.Sprintf("timed out after %s\n", b.env.Timeout)
		case res.Failed():
			errs += res.Status.String() + "\n"
		}
		rec.RecordBuildError(prefix + "\n" + errs + "\n")
		return false
	}
	return true
}

func (b *Build) compile(ctx context.Context, rec Recorder) {
	prefix := fmt.Sprintf("%s warnings or errors reported for %s:: ", b.tc.Phase(), b.cfg.Key)

	cmd, err := b.tc.BuildCommand(ctx, b.request())
	if err != nil {
		b.fail(rec, prefix+"\n"+err.Error()+"\n")
		return
	}
	rec.SetProgressTitle(b.tc.Phase() + " " + b.folder())
	res, err := proc.Capture(ctx, cmd, b.procOptions())
	if err != nil {
		b.fail(rec, prefix+"\n"+err.Error()+"\n")
		return
	}
	if errs := b.tc.FilterBuildOutput(res); errs != "" {
		rec.RecordBuildError(prefix + "\n" + errs + "\n")
	}
}

func (b *Build) fail(rec Recorder, msg string) {
	b.usable = false
	rec.RecordBuildError(msg)
}

func (b *Build) procOptions() proc.Options {
	return proc.Options{Ignore: b.env.Ignore, Echo: b.env.Echo, KeepOutput: true, Timeout: b.env.Timeout}
}
