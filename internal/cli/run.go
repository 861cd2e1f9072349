package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/vvdec/smoketest/internal/checksum"
	"github.com/vvdec/smoketest/internal/config"
	"github.com/vvdec/smoketest/internal/errors"
	"github.com/vvdec/smoketest/internal/output"
	"github.com/vvdec/smoketest/internal/runner"
)

// runFlags holds the flags of the run command.
type runFlags struct {
	runner.RunOptions
	YUV     bool
	Timeout time.Duration
	// TimeoutSet distinguishes --timeout 0 from no flag.
	TimeoutSet bool
}

// flagValue returns the value of a flag given as "--name value" or
// "--name=value", advancing i past what it consumed.
func flagValue(args []string, i *int, names ...string) (string, bool, error) {
	arg := args[*i]
	for _, name := range names {
		if arg == name {
			if *i+1 >= len(args) {
				return "", true, fmt.Errorf("%s requires a value", name)
			}
			*i++
			return args[*i], true, nil
		}
		if strings.HasPrefix(name, "--") && strings.HasPrefix(arg, name+"=") {
			return strings.TrimPrefix(arg, name+"="), true, nil
		}
	}
	return "", false, nil
}

func parseRunFlags(args []string) (*runFlags, error) {
	f := &runFlags{}
	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--no-make":
			f.NoMake = true
			continue
		case "--rebuild":
			f.Rebuild = true
			continue
		case "--yuv":
			f.YUV = true
			continue
		}

		if v, ok, err := flagValue(args, &i, "-b", "--builds"); ok {
			if err != nil {
				return nil, err
			}
			f.Builds = append(f.Builds, strings.Fields(v)...)
			continue
		}
		if v, ok, err := flagValue(args, &i, "-t", "--tests"); ok {
			if err != nil {
				return nil, err
			}
			f.Manifest = v
			continue
		}
		if v, ok, err := flagValue(args, &i, "--only"); ok {
			if err != nil {
				return nil, err
			}
			f.Only = v
			continue
		}
		if v, ok, err := flagValue(args, &i, "--skip"); ok {
			if err != nil {
				return nil, err
			}
			f.Skip = v
			continue
		}
		if v, ok, err := flagValue(args, &i, "--timeout"); ok {
			if err != nil {
				return nil, err
			}
			d, err := parseTimeout(v)
			if err != nil {
				return nil, err
			}
			f.Timeout, f.TimeoutSet = d, true
			continue
		}

		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("unknown flag: %s", arg)
		}
		return nil, fmt.Errorf("unexpected argument: %s", arg)
	}

	if f.NoMake && f.Rebuild {
		return nil, fmt.Errorf("--no-make and --rebuild are mutually exclusive")
	}
	return f, nil
}

// parseTimeout accepts a Go duration or a whole number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("invalid --timeout %q: must not be negative", v)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid --timeout %q: %w", v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid --timeout %q: must not be negative", v)
	}
	return d, nil
}

// apply folds command-line overrides into the configuration.
func (f *runFlags) apply(cfg *config.Config) {
	if f.YUV {
		cfg.Checksum.Mode = string(checksum.File)
	}
	if f.TimeoutSet {
		cfg.Timeout = config.Duration(f.Timeout)
	}
}

// cmdRun builds the selected decoders and runs the test list against them.
func cmdRun(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printRunUsage()
		return 0
	}

	flags, err := parseRunFlags(args)
	if err != nil {
		out.ErrorPrefix("%v", err)
		out.Hint("run 'smoketest --help' for usage")
		return errors.ExitConfigError
	}

	cfg, _, code := loadConfig(opts)
	if cfg == nil {
		return code
	}
	flags.apply(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(cfg)
	r.Console = out
	sum, err := r.Run(ctx, flags.RunOptions)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}
	return sum.ExitCode()
}

func printRunFlags(w *output.Writer) {
	w.HelpSection("Run Flags:")
	w.HelpFlag("-b, --builds \"<k1 k2>\"", "Only these build keys (repeatable)", helpFlagWidth)
	w.HelpFlag("-t, --tests <file>", "Test list (default: "+runner.DefaultManifest+")", helpFlagWidth)
	w.HelpFlag("--only <text>", "Only test cases whose name or comment contains text", helpFlagWidth)
	w.HelpFlag("--skip <text>", "Skip test cases whose name or comment contains text", helpFlagWidth)
	w.HelpFlag("--no-make", "Reuse existing builds", helpFlagWidth)
	w.HelpFlag("--rebuild", "Delete build folders before building", helpFlagWidth)
	w.HelpFlag("--yuv", "Verify the decoded YUV file instead of --md5 output", helpFlagWidth)
	w.HelpFlag("--timeout <dur>", "Kill decoders and tools running longer (0 = never)", helpFlagWidth)
}

func printRunUsage() {
	w := output.New()

	w.HelpTitle("smoketest run - build and test every configured decoder")

	w.HelpSection("Usage:")
	w.HelpUsage("smoketest [run] [flags]")

	w.HelpSection("Description:")
	w.Println("  Compiles every selected build, then decodes each sequence in the test")
	w.Println("  list with each build and compares the output checksum. Results go to")
	w.Println("  log-<YYMMDDHHMM>-<test list>.txt in the configured logs folder.")

	printRunFlags(w)
	printGlobalFlags(w)
	w.Println("")
}
