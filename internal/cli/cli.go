// Package cli provides the command-line interface for smoketest.
package cli

import (
	"fmt"
	"strings"

	"github.com/vvdec/smoketest/internal/errors"
	"github.com/vvdec/smoketest/internal/output"
)

// Version is set at build time.
var Version = "dev"

// wantsHelp returns true if args contain -h or --help.
func wantsHelp(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			return true
		}
	}
	return false
}

// Run executes the CLI with the given arguments and returns an exit code.
// Without a command, it performs a smoke test run.
func Run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "-h", "--help", "help":
			printUsage()
			return 0
		case "--version", "version":
			fmt.Printf("smoketest %s\n", Version)
			return 0
		}
	}

	opts, remaining, err := parseGlobalFlags(args)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}

	cmd := "run"
	if len(remaining) > 0 && !strings.HasPrefix(remaining[0], "-") {
		cmd = remaining[0]
		remaining = remaining[1:]
	}

	switch cmd {
	case "run":
		return cmdRun(remaining, opts)
	case "builds":
		return cmdBuilds(remaining, opts)
	case "config":
		return cmdConfig(remaining, opts)
	case "manifest":
		return cmdManifest(remaining)
	case "init":
		return cmdInit(remaining)
	case "completion":
		return cmdCompletion(remaining)
	default:
		out.ErrorPrefix("unknown command %q", cmd)
		out.Hint("run 'smoketest --help' for usage")
		return errors.ExitConfigError
	}
}

// GlobalOptions holds parsed global flags.
type GlobalOptions struct {
	Config  string
	Quiet   bool
	Verbose bool
}

// parseGlobalFlags pulls the flags every command accepts out of args.
// Flags may appear before or after the command name.
func parseGlobalFlags(args []string) (*GlobalOptions, []string, error) {
	opts := &GlobalOptions{}
	var remaining []string

	i := 0
	for i < len(args) {
		arg := args[i]

		switch {
		case arg == "-q" || arg == "--quiet":
			opts.Quiet = true
			i++
		case arg == "-v" || arg == "--verbose":
			opts.Verbose = true
			i++
		case arg == "-c" || arg == "--config":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("%s requires a value", arg)
			}
			opts.Config = args[i+1]
			i += 2
		case strings.HasPrefix(arg, "--config="):
			opts.Config = strings.TrimPrefix(arg, "--config=")
			i++
		default:
			remaining = append(remaining, arg)
			i++
		}
	}

	if opts.Quiet && opts.Verbose {
		return nil, nil, fmt.Errorf("--quiet and --verbose are mutually exclusive")
	}

	applyVerbosityToOutput(opts)
	return opts, remaining, nil
}

func printUsage() {
	w := output.New()

	w.HelpTitle("smoketest - decoder build and regression harness")

	w.HelpSection("Usage:")
	w.HelpUsage("smoketest [run] [flags]           Build every configured decoder and run the test list")
	w.HelpUsage("smoketest <command> [args]        Run a utility command")

	w.HelpSection("Commands:")
	w.HelpCommand("run", "Build and test (default)", 18)
	w.HelpCommand("builds", "List configured builds", 18)
	w.HelpCommand("config validate", "Validate smoketest.yaml", 18)
	w.HelpCommand("manifest <dir>", "Write a test list from bitstreams and md5 files", 18)
	w.HelpCommand("init", "Create a starter smoketest.yaml", 18)
	w.HelpCommand("completion <sh>", "Generate shell completion (bash, zsh, fish)", 18)
	w.HelpCommand("version", "Show version information", 18)

	printRunFlags(w)
	printGlobalFlags(w)

	w.HelpSection("Examples:")
	w.HelpExample("smoketest", "Build everything and run smoke-tests.txt")
	w.HelpExample("smoketest -b \"gcc clang\" --only 1080p", "Two builds, matching test cases only")
	w.HelpExample("smoketest --no-make -t regression.txt", "Reuse existing builds with another test list")
	w.HelpExample("smoketest manifest ~/bitstreams -o smoke-tests.txt", "Generate a test list")
	w.Println("")
}

func printGlobalFlags(w *output.Writer) {
	w.HelpSection("Global Flags:")
	w.HelpFlag("-c, --config <path>", "Configuration file (default: smoketest.yaml, searched upward)", helpFlagWidth)
	w.HelpFlag("-q, --quiet", "Minimal output (errors only)", helpFlagWidth)
	w.HelpFlag("-v, --verbose", "Maximum detail", helpFlagWidth)
	w.HelpFlag("-h, --help", "Show this help", helpFlagWidth)
	w.HelpFlag("--version", "Show version", helpFlagWidth)
}
