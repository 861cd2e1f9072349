package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vvdec/smoketest/internal/build"
	"github.com/vvdec/smoketest/internal/config"
	"github.com/vvdec/smoketest/internal/errors"
	"github.com/vvdec/smoketest/internal/manifest"
	"github.com/vvdec/smoketest/internal/output"
)

// out is the shared output writer for CLI commands.
var out = output.New()

// Help text alignment width for flags.
const helpFlagWidth = 22

// applyVerbosityToOutput configures the output writer based on verbosity settings.
func applyVerbosityToOutput(opts *GlobalOptions) {
	out.SetQuiet(opts.Quiet)
	out.SetVerbose(opts.Verbose)
}

// loadConfig finds, loads and validates smoketest.yaml, printing its
// warnings. On failure it returns nil and the exit code to use.
func loadConfig(opts *GlobalOptions) (*config.Config, []string, int) {
	path := opts.Config
	if path == "" {
		found, err := config.Find()
		if err != nil {
			out.ErrorPrefix("%v", err)
			out.Hint("run 'smoketest init' to create one, or pass --config")
			return nil, nil, errors.ExitConfigError
		}
		path = found
	}

	cfg, warnings, err := config.LoadAndValidate(path)
	if err != nil {
		out.ErrorPrefix("%s: %v", path, err)
		return nil, nil, errors.ExitConfigError
	}
	for _, w := range warnings {
		out.WarningSimple("%s", w)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		out.ErrorPrefix("%v", err)
		return nil, nil, errors.ExitRuntimeError
	}
	cfg.ResolvePaths(base)
	out.Debug("using %s", path)
	return cfg, warnings, 0
}

// cmdBuilds lists the configured builds.
func cmdBuilds(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printBuildsUsage()
		return 0
	}
	keysOnly, long := false, false
	for _, arg := range args {
		switch arg {
		case "--keys":
			keysOnly = true
		case "-l", "--long":
			long = true
		default:
			out.ErrorPrefix("builds: unexpected argument %q", arg)
			return errors.ExitConfigError
		}
	}

	cfg, _, code := loadConfig(opts)
	if cfg == nil {
		return code
	}
	registry, err := build.NewRegistry(cfg)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}

	if !keysOnly && !long {
		var rows [][]string
		for _, b := range registry.All() {
			tests := "run"
			if !b.RunsOnHost() {
				tests = "skipped"
			}
			rows = append(rows, []string{b.Key(), string(b.Kind()), b.Generator(), b.Options(), tests})
		}
		out.Table([]string{"KEY", "KIND", "GENERATOR", "OPTIONS", "TESTS"}, rows)
		return 0
	}

	for _, b := range registry.All() {
		if keysOnly {
			out.Println("%s", b.Key())
			continue
		}
		out.BuildInfo(b.Key(), string(b.Kind()), b.Generator())
		if b.Target() != "" {
			out.BuildDetail("target", b.Target())
		}
		if b.Options() != "" {
			out.BuildDetail("options", b.Options())
		}
		out.BuildDetail("work dir", b.WorkDir())
		out.BuildDetail("executable", b.Executable())
		if !b.RunsOnHost() {
			out.BuildDetail("tests", "skipped on this host")
		}
	}
	return 0
}

// cmdConfig handles configuration utilities.
func cmdConfig(args []string, opts *GlobalOptions) int {
	if len(args) == 0 {
		out.ErrorPrefix("config: subcommand required (validate)")
		return errors.ExitConfigError
	}

	switch args[0] {
	case "validate":
		return cmdConfigValidate(opts)
	case "-h", "--help":
		printConfigUsage()
		return 0
	default:
		out.ErrorPrefix("config: unknown subcommand %q", args[0])
		return errors.ExitConfigError
	}
}

func cmdConfigValidate(opts *GlobalOptions) int {
	cfg, warnings, code := loadConfig(opts)
	if cfg == nil {
		return code
	}

	registry, err := build.NewRegistry(cfg)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}

	out.ValidationSuccess("Configuration is valid.")
	out.SummaryItem("Source", cfg.Source)
	out.SummaryItem("Sequences", cfg.Sequences)
	out.SummaryItem("Decoder", cfg.Decoder)
	out.SummaryItem("Builds", fmt.Sprintf("%d (%s)", registry.Len(), strings.Join(registry.Keys(), ", ")))
	out.SummaryItem("Checksum", cfg.Checksum.Mode)
	if err := config.ValidateSource(cfg.Source); err != nil {
		out.WarningSimple("%v", err)
	}
	if len(warnings) > 0 {
		out.SummaryItem("Warnings", fmt.Sprintf("%d", len(warnings)))
	}
	return 0
}

// cmdManifest writes a test list from a directory of bitstreams and their
// golden md5 files.
func cmdManifest(args []string) int {
	if wantsHelp(args) {
		printManifestUsage()
		return 0
	}

	var dir, dest string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-o" || arg == "--output":
			if i+1 >= len(args) {
				out.ErrorPrefix("manifest: %s requires a value", arg)
				return errors.ExitConfigError
			}
			dest = args[i+1]
			i++
		case strings.HasPrefix(arg, "--output="):
			dest = strings.TrimPrefix(arg, "--output=")
		case strings.HasPrefix(arg, "-"):
			out.ErrorPrefix("manifest: unknown flag %s", arg)
			return errors.ExitConfigError
		default:
			if dir != "" {
				out.ErrorPrefix("manifest: unexpected argument %q", arg)
				return errors.ExitConfigError
			}
			dir = arg
		}
	}
	if dir == "" {
		out.ErrorPrefix("manifest: bitstream directory required")
		printManifestUsage()
		return errors.ExitConfigError
	}

	cases, err := manifest.Scan(config.ExpandHome(dir))
	if err != nil {
		out.ErrorPrefix("manifest: %v", err)
		return errors.ExitEnvironmentError
	}

	var w io.Writer = out.Stdout()
	if dest != "" {
		f, err := os.Create(dest)
		if err != nil {
			out.ErrorPrefix("manifest: %v", err)
			return errors.ExitRuntimeError
		}
		defer f.Close()
		w = f
	}
	if err := manifest.Write(w, cases); err != nil {
		out.ErrorPrefix("manifest: %v", err)
		return errors.ExitRuntimeError
	}
	if dest != "" {
		out.Success("Wrote %d test cases to %s", len(cases), dest)
	}
	return 0
}

func printBuildsUsage() {
	w := output.New()

	w.HelpTitle("smoketest builds - list configured builds")

	w.HelpSection("Usage:")
	w.HelpUsage("smoketest builds [--long | --keys]")

	w.HelpSection("Options:")
	w.HelpFlag("-l, --long", "Show folders and executables", helpFlagWidth)
	w.HelpFlag("--keys", "Print build keys only, one per line", helpFlagWidth)
	w.HelpFlag("-h, --help", "Show this help", helpFlagWidth)
	w.Println("")
}

func printConfigUsage() {
	w := output.New()

	w.HelpTitle("smoketest config - configuration utilities")

	w.HelpSection("Usage:")
	w.HelpUsage("smoketest config <subcommand>")

	w.HelpSection("Subcommands:")
	w.HelpCommand("validate", "Validate smoketest.yaml", 10)

	w.HelpSection("Options:")
	w.HelpFlag("-h, --help", "Show this help", 10)

	w.HelpSection("Examples:")
	w.HelpExample("smoketest config validate", "Validate the nearest smoketest.yaml")
	w.HelpExample("smoketest -c bench.yaml config validate", "Validate a specific file")
	w.Println("")
}

func printManifestUsage() {
	w := output.New()

	w.HelpTitle("smoketest manifest - generate a test list")

	w.HelpSection("Usage:")
	w.HelpUsage("smoketest manifest <dir> [-o <file>]")

	w.HelpSection("Description:")
	w.Println("  Pairs every <name>.bit in <dir> with <name>.yuv.md5 or <name>.md5")
	w.Println("  and writes one test case per bitstream.")

	w.HelpSection("Options:")
	w.HelpFlag("-o, --output <file>", "Write to file instead of stdout", helpFlagWidth)
	w.HelpFlag("-h, --help", "Show this help", helpFlagWidth)
	w.Println("")
}
