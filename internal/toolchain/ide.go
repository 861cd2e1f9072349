package toolchain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/vvdec/smoketest/internal/proc"
)

// ideToolchain builds the Visual Studio solution cmake generated, using the
// compiler environment of the newest installed Visual Studio.
type ideToolchain struct{}

func (ideToolchain) Kind() Kind       { return IDE }
func (ideToolchain) Phase() string    { return "msbuild" }
func (ideToolchain) RunsOnHost() bool { return true }

func (ideToolchain) Target(tokens []string) string { return configTarget(tokens) }

// ConfigureFlags is empty: the build type is chosen at msbuild time and PGO
// is not supported for MSVC.
func (ideToolchain) ConfigureFlags(req Request) ([]string, error) {
	return nil, nil
}

func (ideToolchain) BuildCommand(ctx context.Context, req Request) (*exec.Cmd, error) {
	if runtime.GOOS != "windows" {
		return nil, errors.New("Visual Studio builds are only supported on Windows")
	}

	install, err := vsInstallPath(ctx)
	if err != nil {
		return nil, err
	}
	vcvars, err := vcvarsEnv(ctx, filepath.Join(install, "VC", "Auxiliary", "Build"), vsArch(req.Generator))
	if err != nil {
		return nil, err
	}
	msbuild, err := findMSBuild(install)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, msbuild,
		"/clp:disableconsolecolor",
		"/p:Configuration="+req.Target,
		req.Project+".sln")
	cmd.Dir = req.WorkDir
	cmd.Env = mergeEnv(req.Env, vcvars)
	return cmd, nil
}

// FilterBuildOutput reports msbuild errors, or failing that its compiler
// warnings. MSB and LNK warnings are noise.
func (ideToolchain) FilterBuildOutput(res *proc.Result) string {
	if res.Errors != "" {
		return res.Errors
	}
	return harvestWarnings(res.Output)
}

func (ideToolchain) Artifact(req Request) string {
	return filepath.Join(req.Source, "bin", req.Target+"-static", req.Decoder+".exe")
}

func harvestWarnings(output string) string {
	var warnings []string
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "warning MSB") || strings.Contains(line, "warning LNK") {
			continue
		}
		if strings.Contains(line, "warning") {
			warnings = append(warnings, strings.TrimSpace(line))
		}
	}
	return strings.Join(warnings, "\n")
}

var vsVersionPattern = regexp.MustCompile(`Visual Studio\s+(\d+)`)

// vsVersion extracts the major version from a generator name.
func vsVersion(generator string) int {
	m := vsVersionPattern.FindStringSubmatch(generator)
	if m == nil {
		return 0
	}
	v, _ := strconv.Atoi(m[1])
	return v
}

// vsArch picks the vcvarsall architecture. Generators from VS 2019 on no
// longer carry the Win64 suffix and default to 64-bit.
func vsArch(generator string) string {
	if strings.Contains(generator, "Win64") || vsVersion(generator) >= 16 {
		return "x86_amd64"
	}
	return "x86"
}

func vsInstallPath(ctx context.Context) (string, error) {
	vswhere := filepath.Join(os.Getenv("ProgramFiles(x86)"), "Microsoft Visual Studio", "Installer", "vswhere.exe")
	out, err := exec.CommandContext(ctx, vswhere, "-utf8", "-latest", "-property", "installationPath").Output()
	if err != nil {
		return "", fmt.Errorf("locate Visual Studio with vswhere: %w", err)
	}
	install := strings.TrimSpace(string(out))
	if install == "" {
		return "", errors.New("no Visual Studio installation found")
	}
	return install, nil
}

// vcvarsKeys are the variables copied from the vcvarsall environment.
var vcvarsKeys = map[string]bool{
	"include": true, "lib": true, "libpath": true, "mssdk": true, "path": true,
	"regkeypath": true, "sdksetupdir": true, "sdktools": true, "targetos": true,
	"vcinstalldir": true, "vcroot": true, "vsregkeypath": true,
	"windowssdkdir": true, "ucrtversion": true, "universalcrtsdkdir": true,
}

func vcvarsEnv(ctx context.Context, vcpath, arch string) (map[string]string, error) {
	vcvarsall := filepath.Join(vcpath, "vcvarsall.bat")
	if _, err := os.Stat(vcvarsall); err != nil {
		return nil, fmt.Errorf("%s not found", vcvarsall)
	}
	out, err := exec.CommandContext(ctx, "cmd", "/e:on", "/v:on", "/c",
		fmt.Sprintf(`call "%s" %s && set`, vcvarsall, arch)).Output()
	if err != nil {
		return nil, fmt.Errorf("run vcvarsall: %w", err)
	}
	return parseVCVars(string(out)), nil
}

// parseVCVars reads `set` output and keeps the compiler variables.
func parseVCVars(out string) map[string]string {
	env := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimRight(sc.Text(), "\r"), "=")
		if !ok || !vcvarsKeys[strings.ToLower(k)] {
			continue
		}
		env[strings.ToUpper(k)] = v
	}
	return env
}

func findMSBuild(install string) (string, error) {
	candidates := []string{
		filepath.Join(install, "MSBuild", "Current", "Bin", "amd64", "MSBuild.exe"),
		filepath.Join(install, "MSBuild", "Current", "Bin", "MSBuild.exe"),
		filepath.Join(install, "MSBuild", "15.0", "Bin", "MSBuild.exe"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	if p, err := exec.LookPath("msbuild"); err == nil {
		return p, nil
	}
	return "", errors.New("unable to find MSBuild.exe")
}

// mergeEnv overlays vars onto env, replacing keys case-insensitively.
func mergeEnv(env []string, vars map[string]string) []string {
	out := make([]string, 0, len(env)+len(vars))
	for _, kv := range env {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := vars[strings.ToUpper(k)]; ok {
			continue
		}
		out = append(out, kv)
	}
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	return out
}
