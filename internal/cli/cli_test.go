package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vvdec/smoketest/internal/config"
	"github.com/vvdec/smoketest/internal/runner"
)

const goodMD5 = "d41d8cd98f00b204e9800998ecf8427e"

func TestParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		want          GlobalOptions
		wantRemaining []string
		wantErr       bool
	}{
		{
			name:          "no flags",
			args:          []string{"builds"},
			wantRemaining: []string{"builds"},
		},
		{
			name:          "config with space",
			args:          []string{"-c", "bench.yaml", "run"},
			want:          GlobalOptions{Config: "bench.yaml"},
			wantRemaining: []string{"run"},
		},
		{
			name:          "config with equals",
			args:          []string{"--config=bench.yaml"},
			want:          GlobalOptions{Config: "bench.yaml"},
			wantRemaining: nil,
		},
		{
			name:          "flags after command",
			args:          []string{"run", "-b", "gcc", "-q"},
			want:          GlobalOptions{Quiet: true},
			wantRemaining: []string{"run", "-b", "gcc"},
		},
		{
			name:          "verbose",
			args:          []string{"--verbose", "--no-make"},
			want:          GlobalOptions{Verbose: true},
			wantRemaining: []string{"--no-make"},
		},
		{
			name:    "config without value",
			args:    []string{"--config"},
			wantErr: true,
		},
		{
			name:    "quiet and verbose",
			args:    []string{"-q", "-v"},
			wantErr: true,
		},
		{
			name: "empty args",
			args: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captureOutput(t)
			opts, remaining, err := parseGlobalFlags(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, *opts); diff != "" {
				t.Errorf("options mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantRemaining, remaining); diff != "" {
				t.Errorf("remaining mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRunFlags(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		args    []string
		want    runFlags
		wantErr string
	}{
		{
			name: "none",
		},
		{
			name: "builds split and repeated",
			args: []string{"-b", "gcc clang", "--builds=msvc", "--builds", "ndk"},
			want: runFlags{RunOptions: runner.RunOptions{Builds: []string{"gcc", "clang", "msvc", "ndk"}}},
		},
		{
			name: "test list and filters",
			args: []string{"-t", "regression.txt", "--only", "1080p", "--skip=10bit"},
			want: runFlags{RunOptions: runner.RunOptions{Manifest: "regression.txt", Only: "1080p", Skip: "10bit"}},
		},
		{
			name: "switches",
			args: []string{"--no-make", "--yuv"},
			want: runFlags{RunOptions: runner.RunOptions{NoMake: true}, YUV: true},
		},
		{
			name: "rebuild",
			args: []string{"--rebuild"},
			want: runFlags{RunOptions: runner.RunOptions{Rebuild: true}},
		},
		{
			name: "timeout seconds",
			args: []string{"--timeout", "90"},
			want: runFlags{Timeout: 90 * time.Second, TimeoutSet: true},
		},
		{
			name: "timeout zero",
			args: []string{"--timeout=0"},
			want: runFlags{TimeoutSet: true},
		},
		{
			name:    "no-make and rebuild",
			args:    []string{"--no-make", "--rebuild"},
			wantErr: "mutually exclusive",
		},
		{
			name:    "missing value",
			args:    []string{"-t"},
			wantErr: "-t requires a value",
		},
		{
			name:    "unknown flag",
			args:    []string{"--docker"},
			wantErr: "unknown flag: --docker",
		},
		{
			name:    "positional",
			args:    []string{"gcc"},
			wantErr: "unexpected argument: gcc",
		},
		{
			name:    "bad timeout",
			args:    []string{"--timeout", "soon"},
			wantErr: "invalid --timeout",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseRunFlags(tt.args)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, *got); diff != "" {
				t.Errorf("flags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseTimeout(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30", 30 * time.Second, false},
		{"0", 0, false},
		{"2m30s", 150 * time.Second, false},
		{"1h", time.Hour, false},
		{"-5", 0, true},
		{"-1m", 0, true},
		{"", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTimeout(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTimeout(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseTimeout(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRunFlags_Apply(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Checksum: config.ChecksumConfig{Mode: "stdout"}, Timeout: config.Duration(time.Minute)}

	(&runFlags{}).apply(cfg)
	if cfg.Checksum.Mode != "stdout" || cfg.Timeout.Std() != time.Minute {
		t.Fatalf("no flags changed config: %+v", cfg)
	}

	(&runFlags{YUV: true, TimeoutSet: true}).apply(cfg)
	if cfg.Checksum.Mode != "file" {
		t.Errorf("Checksum.Mode = %q, want file", cfg.Checksum.Mode)
	}
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", cfg.Timeout)
	}
}

func TestRun_Dispatch(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"--help"}, 0},
		{"help command", []string{"help"}, 0},
		{"version", []string{"--version"}, 0},
		{"version command", []string{"version"}, 0},
		{"run help", []string{"run", "-h"}, 0},
		{"builds help", []string{"builds", "--help"}, 0},
		{"manifest help", []string{"manifest", "-h"}, 0},
		{"init help", []string{"init", "-h"}, 0},
		{"config help", []string{"config", "--help"}, 0},
		{"unknown command", []string{"targets"}, 2},
		{"bad global flag", []string{"-q", "-v", "builds"}, 2},
		{"bad run flag", []string{"--docker"}, 2},
		{"config without subcommand", []string{"config"}, 2},
		{"config unknown subcommand", []string{"config", "edit"}, 2},
		{"manifest without dir", []string{"manifest"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captureOutput(t)
			if got := Run(tt.args); got != tt.want {
				t.Errorf("Run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

// withWorkingDir changes to dir, runs fn, then restores original directory
func withWorkingDir(t *testing.T, dir string, fn func()) {
	t.Helper()
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Chdir(originalWd)
	})
	fn()
}

func mustWrite(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
}

// createTestSetup writes a decoder checkout, a bitstream folder, fake build
// tools on PATH and a smoketest.yaml tying them together. It returns the
// directory holding the configuration.
func createTestSetup(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	bin := filepath.Join(root, "bin")
	decoder := filepath.Join(bin, "decoder.sh")
	mustWrite(t, decoder, "#!/bin/sh\necho \"YUV_MD5="+goodMD5+"\"\n", 0755)
	mustWrite(t, filepath.Join(bin, "cmake"), "#!/bin/sh\necho configured\n", 0755)
	mustWrite(t, filepath.Join(bin, "make"), fmt.Sprintf("#!/bin/sh\ncp %s vvdecapp\n", decoder), 0755)
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	mustWrite(t, filepath.Join(root, "vvdec", "CMakeLists.txt"), "project(vvdec)\n", 0644)
	mustWrite(t, filepath.Join(root, "vvdec", "test-harness", "smoke-tests.txt"),
		"#Sequence MD5 Comments\nintra.bit "+goodMD5+" all intra\n", 0644)
	mustWrite(t, filepath.Join(root, "bitstreams", "intra.bit"), "bits", 0644)
	mustWrite(t, filepath.Join(root, "bitstreams", "intra.yuv.md5"), goodMD5+"  intra.yuv\n", 0644)

	mustWrite(t, filepath.Join(root, config.FileName), `machine:
  name: bench01
source: vvdec
sequences: bitstreams
temp: tmp
logs: logs
version_control: none
options:
  debug: -DCMAKE_BUILD_TYPE=Debug
builds:
  gcc:
    generator: Unix Makefiles
  gcc-debug:
    generator: Unix Makefiles
    options: debug
`, 0644)
	for _, dir := range []string{"tmp", "logs"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestCmdBuilds_Keys(t *testing.T) {
	root := createTestSetup(t)
	stdout, _ := captureOutput(t)
	withWorkingDir(t, root, func() {
		if code := Run([]string{"builds", "--keys"}); code != 0 {
			t.Fatalf("exit code = %d", code)
		}
	})
	if diff := cmp.Diff("gcc\ngcc-debug\n", stdout.String()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestCmdBuilds_Details(t *testing.T) {
	root := createTestSetup(t)
	stdout, _ := captureOutput(t)
	withWorkingDir(t, root, func() {
		if code := Run([]string{"builds", "--long"}); code != 0 {
			t.Fatalf("exit code = %d", code)
		}
	})
	for _, want := range []string{"gcc-debug", "debug", filepath.Join(root, "tmp", "vvdecapp", "gcc", "default")} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("builds output missing %q:\n%s", want, stdout.String())
		}
	}
}

func TestCmdBuilds_Table(t *testing.T) {
	root := createTestSetup(t)
	stdout, _ := captureOutput(t)
	withWorkingDir(t, root, func() {
		if code := Run([]string{"builds"}); code != 0 {
			t.Fatalf("exit code = %d", code)
		}
	})
	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header, separator and 2 rows:\n%s", len(lines), stdout.String())
	}
	if !strings.HasPrefix(lines[0], "KEY") || !strings.HasPrefix(lines[3], "gcc-debug") {
		t.Errorf("unexpected table:\n%s", stdout.String())
	}
}

func TestCmdConfigValidate(t *testing.T) {
	root := createTestSetup(t)
	stdout, _ := captureOutput(t)
	withWorkingDir(t, filepath.Join(root, "vvdec"), func() {
		if code := Run([]string{"config", "validate"}); code != 0 {
			t.Fatalf("exit code = %d", code)
		}
	})
	if !strings.Contains(stdout.String(), "2 (gcc, gcc-debug)") {
		t.Errorf("summary missing builds:\n%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), filepath.Join(root, "bitstreams")) {
		t.Errorf("sequences not resolved against the config directory:\n%s", stdout.String())
	}
}

func TestCmdConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no builds", "source: .\nsequences: .\n"},
		{"bad checksum mode", "source: .\nsequences: .\nchecksum:\n  mode: sha1\nbuilds:\n  gcc:\n    generator: Ninja\n"},
		{"not yaml", "source: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			mustWrite(t, filepath.Join(dir, config.FileName), tt.content, 0644)
			captureOutput(t)
			withWorkingDir(t, dir, func() {
				if code := Run([]string{"config", "validate"}); code != 2 {
					t.Errorf("exit code = %d, want 2", code)
				}
			})
		})
	}
}

func TestCmdConfigValidate_NoConfig(t *testing.T) {
	stdout, stderr := captureOutput(t)
	withWorkingDir(t, t.TempDir(), func() {
		if code := Run([]string{"config", "validate"}); code != 2 {
			t.Errorf("exit code = %d, want 2", code)
		}
	})
	if !strings.Contains(stderr.String(), "not found") {
		t.Errorf("stderr missing not-found error:\n%s", stderr.String())
	}
	if !strings.Contains(stdout.String(), "smoketest init") {
		t.Errorf("stdout missing init hint:\n%s", stdout.String())
	}
}

func TestCmdManifest(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "b.bit"), "bits", 0644)
	mustWrite(t, filepath.Join(dir, "b.md5"), strings.ToUpper(goodMD5)+"\n", 0644)
	mustWrite(t, filepath.Join(dir, "a.bit"), "bits", 0644)
	mustWrite(t, filepath.Join(dir, "a.yuv.md5"), goodMD5+"  a.yuv\n", 0644)
	dest := filepath.Join(t.TempDir(), "smoke-tests.txt")

	captureOutput(t)
	if code := Run([]string{"manifest", dir, "-o", dest}); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), data)
	}
	for i, seq := range []string{"a.bit", "b.bit"} {
		fields := strings.Fields(lines[i+1])
		if diff := cmp.Diff([]string{seq, goodMD5}, fields); diff != "" {
			t.Errorf("line %d mismatch (-want +got):\n%s", i+1, diff)
		}
	}
}

func TestCmdManifest_Stdout(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.bit"), "bits", 0644)
	mustWrite(t, filepath.Join(dir, "a.md5"), goodMD5, 0644)

	stdout, _ := captureOutput(t)
	if code := Run([]string{"manifest", dir}); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "#Sequence") || !strings.Contains(stdout.String(), "a.bit") {
		t.Errorf("unexpected manifest:\n%s", stdout.String())
	}
}

func TestCmdManifest_MissingDigest(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.bit"), "bits", 0644)

	captureOutput(t)
	if code := Run([]string{"manifest", dir}); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestCmdRun_EndToEnd(t *testing.T) {
	root := createTestSetup(t)
	stdout, _ := captureOutput(t)
	withWorkingDir(t, root, func() {
		if code := Run([]string{"-b", "gcc", "--only", "intra"}); code != 0 {
			t.Fatalf("exit code = %d\n%s", code, stdout.String())
		}
	})

	logs, err := filepath.Glob(filepath.Join(root, "logs", "log-*-smoke-tests.txt"))
	if err != nil || len(logs) != 1 {
		t.Fatalf("logs = %v, err = %v", logs, err)
	}
	data, err := os.ReadFile(logs[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "intra.bit") {
		t.Errorf("log does not mention the test case:\n%s", data)
	}
	if _, err := os.Stat(filepath.Join(root, "tmp", "vvdecapp", "gcc-debug")); !os.IsNotExist(err) {
		t.Errorf("unselected build was compiled: %v", err)
	}
}

func TestCmdRun_UnknownBuild(t *testing.T) {
	root := createTestSetup(t)
	captureOutput(t)
	withWorkingDir(t, root, func() {
		if code := Run([]string{"run", "-b", "msvc"}); code != 2 {
			t.Errorf("exit code = %d, want 2", code)
		}
	})
}

func TestCmdRun_MissingManifest(t *testing.T) {
	root := createTestSetup(t)
	captureOutput(t)
	withWorkingDir(t, root, func() {
		if code := Run([]string{"-t", "absent.txt"}); code != 3 {
			t.Errorf("exit code = %d, want 3", code)
		}
	})
}

func TestCmdInit(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(dir, "CMakeLists.txt"), "project(vvdec)\n", 0644)

	captureOutput(t)
	withWorkingDir(t, dir, func() {
		if code := Run([]string{"init", "--sequences", "/data/bitstreams"}); code != 0 {
			t.Fatalf("init exit code = %d", code)
		}
		cfg, _, err := config.LoadAndValidate(filepath.Join(dir, config.FileName))
		if err != nil {
			t.Fatalf("generated config invalid: %v", err)
		}
		if cfg.Source != "." {
			t.Errorf("Source = %q, want .", cfg.Source)
		}
		if cfg.Sequences != "/data/bitstreams" {
			t.Errorf("Sequences = %q", cfg.Sequences)
		}
		if len(cfg.Builds) != 2 {
			t.Errorf("got %d builds, want 2", len(cfg.Builds))
		}
		if code := Run([]string{"config", "validate"}); code != 0 {
			t.Errorf("config validate exit code = %d", code)
		}
	})
}

func TestCmdInit_Exists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	mustWrite(t, path, "keep: me\n", 0644)

	captureOutput(t)
	withWorkingDir(t, dir, func() {
		if code := cmdInit(nil); code != 2 {
			t.Errorf("cmdInit() = %d, want 2", code)
		}
		data, _ := os.ReadFile(path)
		if string(data) != "keep: me\n" {
			t.Errorf("existing config overwritten without --force")
		}
		if code := cmdInit([]string{"--force"}); code != 0 {
			t.Errorf("cmdInit(--force) = %d, want 0", code)
		}
		data, _ = os.ReadFile(path)
		if !strings.Contains(string(data), "builds:") {
			t.Errorf("--force did not rewrite config:\n%s", data)
		}
	})
}

func TestCmdInit_UnknownFlag(t *testing.T) {
	captureOutput(t)
	if code := cmdInit([]string{"--lang", "go"}); code != 2 {
		t.Errorf("cmdInit() = %d, want 2", code)
	}
}

func TestDetectSource(t *testing.T) {
	t.Parallel()
	parent := t.TempDir()
	child := filepath.Join(parent, "harness")
	if err := os.MkdirAll(child, 0755); err != nil {
		t.Fatal(err)
	}
	if got := detectSource(child); got != "~/vvdec" {
		t.Errorf("detectSource(empty) = %q", got)
	}
	mustWrite(t, filepath.Join(parent, "CMakeLists.txt"), "", 0644)
	if got := detectSource(child); got != ".." {
		t.Errorf("detectSource(child) = %q, want ..", got)
	}
	if got := detectSource(parent); got != "." {
		t.Errorf("detectSource(parent) = %q, want .", got)
	}
}

func TestUpdateGitignore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		existing *string
		want     string
	}{
		{"new file", nil, "# smoketest\nlog-*.txt\n"},
		{"empty file", ptr(""), "# smoketest\nlog-*.txt\n"},
		{"existing entries", ptr("build/\n"), "build/\n\n# smoketest\nlog-*.txt\n"},
		{"no trailing newline", ptr("build/"), "build/\n\n# smoketest\nlog-*.txt\n"},
		{"already present", ptr("# smoketest\nlog-*.txt\n"), "# smoketest\nlog-*.txt\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			path := filepath.Join(dir, ".gitignore")
			if tt.existing != nil {
				mustWrite(t, path, *tt.existing, 0644)
			}
			updateGitignore(dir)
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, string(data)); diff != "" {
				t.Errorf(".gitignore mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func ptr(s string) *string { return &s }
