package cli

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"github.com/vvdec/smoketest/internal/config"
	"github.com/vvdec/smoketest/internal/errors"
	"github.com/vvdec/smoketest/internal/output"
)

//go:embed smoketest_template.yaml
var configTemplate string

var configTmpl = template.Must(template.New("smoketest.yaml").Parse(configTemplate))

type initBuild struct {
	Key       string
	Generator string
	Options   string
}

type initData struct {
	Machine   string
	Source    string
	Sequences string
	Builds    []initBuild
}

// initOptions holds parsed init command options.
type initOptions struct {
	Force     bool
	Source    string
	Sequences string
}

func parseInitFlags(args []string) (*initOptions, error) {
	opts := &initOptions{}
	for i := 0; i < len(args); i++ {
		if args[i] == "--force" {
			opts.Force = true
			continue
		}
		if v, ok, err := flagValue(args, &i, "--source"); ok {
			if err != nil {
				return nil, err
			}
			opts.Source = v
			continue
		}
		if v, ok, err := flagValue(args, &i, "--sequences"); ok {
			if err != nil {
				return nil, err
			}
			opts.Sequences = v
			continue
		}
		return nil, fmt.Errorf("init: unknown option %q", args[i])
	}
	return opts, nil
}

// defaultBuilds is the starter build matrix for the host platform.
func defaultBuilds() []initBuild {
	if runtime.GOOS == "windows" {
		return []initBuild{
			{Key: "msvc", Generator: "Visual Studio 17 2022"},
			{Key: "msvc-debug", Generator: "Visual Studio 17 2022", Options: "debug"},
		}
	}
	return []initBuild{
		{Key: "gcc", Generator: "Unix Makefiles"},
		{Key: "gcc-debug", Generator: "Unix Makefiles", Options: "debug"},
	}
}

// renderConfig renders the starter configuration.
func renderConfig(data initData) ([]byte, error) {
	var buf bytes.Buffer
	if err := configTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cmdInit writes a starter smoketest.yaml into the current directory.
func cmdInit(args []string) int {
	if wantsHelp(args) {
		printInitUsage()
		return 0
	}
	opts, err := parseInitFlags(args)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}

	cwd, err := os.Getwd()
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitRuntimeError
	}
	path := filepath.Join(cwd, config.FileName)
	if _, err := os.Stat(path); err == nil && !opts.Force {
		out.ErrorPrefix("%s already exists (use --force to overwrite)", config.FileName)
		return errors.ExitConfigError
	}

	data := initData{
		Machine:   "~",
		Source:    opts.Source,
		Sequences: opts.Sequences,
		Builds:    defaultBuilds(),
	}
	if host, err := os.Hostname(); err == nil {
		data.Machine = host
	}
	if data.Source == "" {
		data.Source = detectSource(cwd)
	}
	if data.Sequences == "" {
		data.Sequences = "~/bitstreams"
	}

	content, err := renderConfig(data)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitRuntimeError
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitEnvironmentError
	}
	updateGitignore(cwd)

	out.Println("")
	out.Success("Created %s", config.FileName)
	printNextSteps(out)
	return 0
}

// detectSource guesses the decoder checkout: the current directory or its
// parent when either holds CMakeLists.txt, otherwise a placeholder.
func detectSource(cwd string) string {
	for _, candidate := range []string{".", ".."} {
		if err := config.ValidateSource(filepath.Join(cwd, candidate)); err == nil {
			return candidate
		}
	}
	return "~/vvdec"
}

// updateGitignore adds the run logs to .gitignore.
func updateGitignore(root string) {
	gitignorePath := filepath.Join(root, ".gitignore")

	entries := []string{
		"# smoketest",
		"log-*.txt",
	}

	existingContent := ""
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}
	if strings.Contains(existingContent, "# smoketest") {
		return
	}

	var content strings.Builder
	if existingContent != "" {
		content.WriteString(existingContent)
		if !strings.HasSuffix(existingContent, "\n") {
			content.WriteString("\n")
		}
		content.WriteString("\n")
	}
	for _, entry := range entries {
		content.WriteString(entry)
		content.WriteString("\n")
	}

	if err := os.WriteFile(gitignorePath, []byte(content.String()), 0644); err != nil {
		out.WarningSimple("could not update .gitignore: %v", err)
	}
}

func printNextSteps(w *output.Writer) {
	w.HelpSection("Next steps:")
	w.Println("  1. Edit %s: point source and sequences at your checkout and bitstreams", config.FileName)
	w.Println("  2. Run 'smoketest config validate'")
	w.Println("  3. Run 'smoketest manifest <bitstreams> -o <source>/test-harness/smoke-tests.txt' if you have no test list")
	w.Println("  4. Run 'smoketest'")
	w.Println("")
}

func printInitUsage() {
	w := output.New()

	w.HelpTitle("smoketest init - create a starter configuration")

	w.HelpSection("Usage:")
	w.HelpUsage("smoketest init [--source <dir>] [--sequences <dir>] [--force]")

	w.HelpSection("Options:")
	w.HelpFlag("--source <dir>", "Decoder checkout (default: detected)", helpFlagWidth)
	w.HelpFlag("--sequences <dir>", "Bitstream folder", helpFlagWidth)
	w.HelpFlag("--force", "Overwrite an existing smoketest.yaml", helpFlagWidth)
	w.HelpFlag("-h, --help", "Show this help", helpFlagWidth)
	w.Println("")
}
