package toolchain

import (
	"context"
	"errors"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/vvdec/smoketest/internal/proc"
)

// mobileToolchain cross-compiles with the Android NDK. The result cannot run
// on the build host, so its tests are skipped.
type mobileToolchain struct{}

func (mobileToolchain) Kind() Kind       { return Mobile }
func (mobileToolchain) Phase() string    { return "make" }
func (mobileToolchain) RunsOnHost() bool { return false }

func (mobileToolchain) Target(tokens []string) string { return configTarget(tokens) }

func (mobileToolchain) ConfigureFlags(req Request) ([]string, error) {
	ndk, err := ndkRoot(req.Env)
	if err != nil {
		return nil, err
	}
	var flags []string
	if hostOS == "windows" {
		flags = append(flags, "-DCMAKE_MAKE_PROGRAM="+ndkMake(ndk))
	}
	return append(flags, "-DCMAKE_TOOLCHAIN_FILE="+path.Join(ndk, "build", "cmake", "android.toolchain.cmake")), nil
}

func (mobileToolchain) BuildCommand(ctx context.Context, req Request) (*exec.Cmd, error) {
	ndk, err := ndkRoot(req.Env)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, ndkMake(ndk), req.MakeFlags...)
	cmd.Dir = req.WorkDir
	cmd.Env = req.Env
	return cmd, nil
}

func (mobileToolchain) FilterBuildOutput(res *proc.Result) string {
	return res.Errors
}

func (mobileToolchain) Artifact(req Request) string {
	return filepath.Join(req.Source, "bin", req.Target+"-static", req.Decoder)
}

func ndkRoot(env []string) (string, error) {
	ndk, ok := LookupEnv(env, "ANDROID_NDK")
	if !ok || ndk == "" {
		return "", errors.New("ANDROID_NDK is not set")
	}
	// cmake wants forward slashes even on Windows.
	return strings.TrimRight(filepath.ToSlash(ndk), "/"), nil
}

// hostOS selects the NDK make program.
var hostOS = runtime.GOOS

// ndkMake is the make program for NDK builds. Windows hosts have no make on
// PATH and use the one bundled with the NDK.
func ndkMake(ndk string) string {
	if hostOS != "windows" {
		return "make"
	}
	return path.Join(ndk, "prebuilt", "windows-x86_64", "bin", "make.exe")
}
