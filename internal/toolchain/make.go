package toolchain

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vvdec/smoketest/internal/proc"
)

type makeToolchain struct{}

func (makeToolchain) Kind() Kind    { return Make }
func (makeToolchain) Phase() string { return "make" }

func (makeToolchain) RunsOnHost() bool { return true }

// Target is empty: single-config generators take CMAKE_BUILD_TYPE instead.
func (makeToolchain) Target(tokens []string) string { return "" }

// ConfigureFlags adds the PGO switches. Only the Makefile generators are
// wired for profiling in the decoder's cmake scripts.
func (makeToolchain) ConfigureFlags(req Request) ([]string, error) {
	if !strings.Contains(req.Generator, "Makefiles") {
		return nil, nil
	}
	switch req.Profile {
	case "generate":
		return []string{"-DFPROFILE_GENERATE=ON", "-DFPROFILE_USE=OFF"}, nil
	case "use":
		return []string{"-DFPROFILE_GENERATE=OFF", "-DFPROFILE_USE=ON"}, nil
	}
	return nil, nil
}

func (makeToolchain) BuildCommand(ctx context.Context, req Request) (*exec.Cmd, error) {
	tool := "make"
	switch {
	case strings.Contains(req.Generator, "MinGW"):
		tool = "mingw32-make"
	case strings.Contains(req.Generator, "Ninja"):
		tool = "ninja"
	}
	cmd := exec.CommandContext(ctx, tool, req.MakeFlags...)
	cmd.Dir = req.WorkDir
	cmd.Env = req.Env
	return cmd, nil
}

func (makeToolchain) FilterBuildOutput(res *proc.Result) string {
	return res.Errors
}

func (makeToolchain) Artifact(req Request) string {
	return filepath.Join(req.WorkDir, req.Decoder+ExeSuffix())
}
