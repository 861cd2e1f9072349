package cli

import (
	"fmt"
	"strings"

	"github.com/vvdec/smoketest/internal/errors"
	"github.com/vvdec/smoketest/internal/output"
)

type completionItem struct {
	Name string
	Desc string
}

// cmdCompletion generates shell completion scripts.
func cmdCompletion(args []string) int {
	shell := ""
	alias := ""

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help":
			printCompletionUsage()
			return 0
		case strings.HasPrefix(arg, "--alias="):
			alias = strings.TrimPrefix(arg, "--alias=")
		case arg == "--alias":
			out.ErrorPrefix("completion: --alias requires a value (--alias=<name>)")
			return errors.ExitConfigError
		case strings.HasPrefix(arg, "-"):
			out.ErrorPrefix("completion: unknown flag: %s", arg)
			printCompletionUsage()
			return errors.ExitConfigError
		default:
			if shell != "" {
				out.ErrorPrefix("completion: unexpected argument: %s", arg)
				return errors.ExitConfigError
			}
			shell = arg
		}
	}

	if shell == "" {
		out.ErrorPrefix("completion: shell required (bash, zsh, fish)")
		printCompletionUsage()
		return errors.ExitConfigError
	}

	cmdName := "smoketest"
	if alias != "" {
		cmdName = alias
	}

	script, ok := completionScript(shell, cmdName)
	if !ok {
		out.ErrorPrefix("completion: unsupported shell %q (use bash, zsh, or fish)", shell)
		return errors.ExitConfigError
	}
	fmt.Fprint(out.Stdout(), script)
	return 0
}

func completionScript(shell, cmdName string) (string, bool) {
	switch shell {
	case "bash":
		return generateBashCompletion(cmdName), true
	case "zsh":
		return generateZshCompletion(cmdName), true
	case "fish":
		return generateFishCompletion(cmdName), true
	}
	return "", false
}

func printCompletionUsage() {
	w := output.New()

	w.HelpTitle("smoketest completion - generate shell completion scripts")

	w.HelpSection("Usage:")
	w.HelpUsage("smoketest completion <shell> [--alias=<name>]")

	w.HelpSection("Arguments:")
	w.HelpFlag("<shell>", "Shell type: bash, zsh, or fish", 10)

	w.HelpSection("Options:")
	w.HelpFlag("--alias=<name>", "Generate completion for command alias", 14)
	w.HelpFlag("-h, --help", "Show this help", 14)

	w.HelpSection("Installation:")
	w.Println("  Bash:  eval \"$(smoketest completion bash)\"")
	w.Println("  Zsh:   eval \"$(smoketest completion zsh)\"")
	w.Println("  Fish:  smoketest completion fish | source")
	w.Println("")
}

func builtinCommands() []completionItem {
	return []completionItem{
		{"run", "Build and test every configured decoder"},
		{"builds", "List configured builds"},
		{"config", "Configuration utilities"},
		{"manifest", "Write a test list from a bitstream folder"},
		{"init", "Create a starter smoketest.yaml"},
		{"completion", "Generate shell completion"},
		{"version", "Show version information"},
		{"help", "Show help"},
	}
}

// completionFlags lists the flags of run plus the global flags. Flags that
// take a value have Name ending in "=".
func completionFlags() []completionItem {
	return []completionItem{
		{"--builds=", "Only these build keys"},
		{"--tests=", "Test list file"},
		{"--only=", "Only matching test cases"},
		{"--skip=", "Skip matching test cases"},
		{"--timeout=", "Per-process timeout"},
		{"--no-make", "Reuse existing builds"},
		{"--rebuild", "Delete build folders first"},
		{"--yuv", "Verify decoded YUV files"},
		{"--config=", "Configuration file"},
		{"--quiet", "Minimal output"},
		{"--verbose", "Maximum detail"},
		{"--help", "Show help"},
		{"--version", "Show version"},
	}
}

func names(items []completionItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = strings.TrimSuffix(item.Name, "=")
	}
	return strings.Join(parts, " ")
}

func aliasNote(cmdName, bashLine, zshLine, fishLine, shell string) string {
	if cmdName != "smoketest" {
		return fmt.Sprintf(`
# This completion is generated for the alias "%s"
# Make sure you have the alias defined: alias %s="smoketest"
`, cmdName, cmdName)
	}
	line := map[string]string{"bash": bashLine, "zsh": zshLine, "fish": fishLine}[shell]
	return fmt.Sprintf(`
# Alias support:
# If you use an alias (e.g., alias st="smoketest"), add completion for it:
#   %s
`, line)
}

func generateBashCompletion(cmdName string) string {
	funcName := "_" + strings.ReplaceAll(cmdName, "-", "_") + "_completions"
	note := aliasNote(cmdName, "complete -F _smoketest_completions st", "", "", "bash")

	return fmt.Sprintf(`# smoketest bash completion
# Add to ~/.bashrc: eval "$(smoketest completion bash)"
%s
%s() {
    local cur prev words cword
    _init_completion || return

    local commands="%s"
    local flags="%s -b -t -c -q -v"

    case "${prev}" in
        config)
            COMPREPLY=($(compgen -W "validate" -- "${cur}"))
            return
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "${cur}"))
            return
            ;;
        -b|--builds)
            COMPREPLY=($(compgen -W "$(smoketest builds --keys 2>/dev/null)" -- "${cur}"))
            return
            ;;
        -t|--tests|-c|--config|-o|--output)
            _filedir
            return
            ;;
        manifest)
            _filedir -d
            return
            ;;
        --only|--skip|--timeout)
            return
            ;;
    esac

    if [[ "${cur}" == -* ]]; then
        COMPREPLY=($(compgen -W "${flags}" -- "${cur}"))
        return
    fi

    COMPREPLY=($(compgen -W "${commands}" -- "${cur}"))
}

complete -F %s %s
`, note, funcName, names(builtinCommands()), names(completionFlags()), funcName, cmdName)
}

func generateZshCompletion(cmdName string) string {
	funcName := "_" + strings.ReplaceAll(cmdName, "-", "_")
	note := aliasNote(cmdName, "", "compdef _smoketest st", "", "zsh")

	var commands, flags strings.Builder
	for _, c := range builtinCommands() {
		fmt.Fprintf(&commands, "        '%s:%s'\n", c.Name, c.Desc)
	}
	for _, f := range completionFlags() {
		name := strings.TrimSuffix(f.Name, "=")
		switch {
		case name == "--builds":
			fmt.Fprintf(&flags, "        '%s=[%s]:build:(${builds})'\n", name, f.Desc)
		case strings.HasSuffix(f.Name, "="):
			fmt.Fprintf(&flags, "        '%s=[%s]:value:_files'\n", name, f.Desc)
		default:
			fmt.Fprintf(&flags, "        '%s[%s]'\n", name, f.Desc)
		}
	}

	return fmt.Sprintf(`#compdef %s
# smoketest zsh completion
# Add to ~/.zshrc: eval "$(smoketest completion zsh)"
%s
%s() {
    local -a commands flags builds
    builds=(${(f)"$(smoketest builds --keys 2>/dev/null)"})

    commands=(
%s    )

    flags=(
%s    )

    if (( CURRENT == 2 )); then
        _describe -t commands 'command' commands
        _arguments -s $flags[@]
        return
    fi

    case "${words[2]}" in
        config)
            _values 'config subcommand' validate
            ;;
        completion)
            _values 'shell' bash zsh fish
            ;;
        manifest)
            _files -/
            ;;
        *)
            _arguments -s $flags[@]
            ;;
    esac
}

compdef %s %s
`, cmdName, note, funcName, commands.String(), flags.String(), funcName, cmdName)
}

func generateFishCompletion(cmdName string) string {
	var sb strings.Builder

	note := aliasNote(cmdName, "", "", "complete -c st -w smoketest", "fish")
	sb.WriteString(fmt.Sprintf(`# smoketest fish completion
# Add to config: smoketest completion fish | source
%s
complete -c %s -f

`, note, cmdName))

	for _, c := range builtinCommands() {
		sb.WriteString(fmt.Sprintf("complete -c %s -n '__fish_use_subcommand' -a '%s' -d '%s'\n", cmdName, c.Name, c.Desc))
	}

	short := map[string]string{"--builds": "b", "--tests": "t", "--config": "c", "--quiet": "q", "--verbose": "v"}
	sb.WriteString("\n# Flags\n")
	for _, f := range completionFlags() {
		long := strings.TrimSuffix(f.Name, "=")
		line := fmt.Sprintf("complete -c %s -l %s", cmdName, strings.TrimPrefix(long, "--"))
		if s, ok := short[long]; ok {
			line += " -s " + s
		}
		switch long {
		case "--builds":
			line += " -xa '(smoketest builds --keys 2>/dev/null)'"
		case "--tests", "--config":
			line += " -rF"
		default:
			if strings.HasSuffix(f.Name, "=") {
				line += " -x"
			}
		}
		sb.WriteString(fmt.Sprintf("%s -d '%s'\n", line, f.Desc))
	}

	sb.WriteString("\n# config subcommands\n")
	sb.WriteString(fmt.Sprintf("complete -c %s -n '__fish_seen_subcommand_from config' -a 'validate' -d 'Validate configuration'\n", cmdName))

	sb.WriteString("\n# completion subcommands\n")
	for _, shell := range []string{"bash", "zsh", "fish"} {
		sb.WriteString(fmt.Sprintf("complete -c %s -n '__fish_seen_subcommand_from completion' -a '%s' -d 'Generate %s completion'\n", cmdName, shell, shell))
	}
	return sb.String()
}
