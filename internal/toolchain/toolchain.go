// Package toolchain drives the native build tools behind a build: make-like
// generators, the Visual Studio IDE toolchain, and mobile cross-compiles.
package toolchain

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/vvdec/smoketest/internal/proc"
)

// Kind is the family of build tool driving a build.
type Kind string

const (
	Make   Kind = "make"
	IDE    Kind = "ide"
	Mobile Kind = "mobile"
)

// Kinds lists every supported kind.
var Kinds = []Kind{Make, IDE, Mobile}

// ParseKind converts a configuration value into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown toolchain kind %q", s)
}

// Request carries what a toolchain needs to configure and compile one build.
type Request struct {
	Key       string
	Project   string // solution/log prefix, e.g. "vvdec"
	Decoder   string // executable base name, e.g. "vvdecapp"
	Source    string
	WorkDir   string
	Generator string
	Target    string // Release, Debug or RelWithDebInfo; empty for make builds
	Profile   string
	MakeFlags []string
	Env       []string
}

// Toolchain is implemented by every Kind.
type Toolchain interface {
	Kind() Kind
	// Phase names the compile step in error prefixes.
	Phase() string
	// Target picks the configuration label from the build's option tokens.
	Target(tokens []string) string
	// ConfigureFlags returns kind-specific cmake flags.
	ConfigureFlags(req Request) ([]string, error)
	// BuildCommand returns the compile command, ready to run.
	BuildCommand(ctx context.Context, req Request) (*exec.Cmd, error)
	// FilterBuildOutput extracts the error text worth reporting.
	FilterBuildOutput(res *proc.Result) string
	// Artifact is where the decoder executable lands.
	Artifact(req Request) string
	// RunsOnHost reports whether the artifact can execute on this machine.
	RunsOnHost() bool
}

// For returns the toolchain for a kind.
func For(k Kind) Toolchain {
	switch k {
	case IDE:
		return ideToolchain{}
	case Mobile:
		return mobileToolchain{}
	default:
		return makeToolchain{}
	}
}

// Detect derives the kind of a build that does not name one.
func Detect(key, generator string) Kind {
	switch {
	case strings.Contains(generator, "Visual Studio"):
		return IDE
	case strings.Contains(strings.ToLower(key), "ndk"):
		return Mobile
	default:
		return Make
	}
}

// configTarget maps option tokens to a multi-config build label.
func configTarget(tokens []string) string {
	for _, t := range tokens {
		if t == "debug" {
			return "Debug"
		}
	}
	for _, t := range tokens {
		if t == "reldeb" {
			return "RelWithDebInfo"
		}
	}
	return "Release"
}

// ExeSuffix is the executable extension on this platform.
func ExeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// LookupEnv finds a variable in a KEY=value list; the last entry wins.
func LookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(env[i], "=")
		if !ok {
			continue
		}
		if k == key || (runtime.GOOS == "windows" && strings.EqualFold(k, key)) {
			return v, true
		}
	}
	return "", false
}
