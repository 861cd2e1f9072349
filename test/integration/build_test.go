package integration

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/vvdec/smoketest/internal/build"
	"github.com/vvdec/smoketest/internal/toolchain"
)

func matrixRegistry(t *testing.T) *build.Registry {
	t.Helper()
	cfg, _ := loadFixture(t, "matrix")
	registry, err := build.NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return registry
}

func TestBuildKinds(t *testing.T) {
	t.Parallel()
	registry := matrixRegistry(t)

	tests := []struct {
		key        string
		kind       toolchain.Kind
		target     string
		runsOnHost bool
	}{
		{"gcc", toolchain.Make, "", true},
		{"clang-debug", toolchain.Make, "", true},
		{"msvc", toolchain.IDE, "RelWithDebInfo", true},
		{"ndk-arm64", toolchain.Mobile, "Release", false},
		{"prebuilt", toolchain.Make, "", true},
	}
	for _, tt := range tests {
		b, ok := registry.Get(tt.key)
		if !ok {
			t.Errorf("build %q missing", tt.key)
			continue
		}
		if b.Kind() != tt.kind {
			t.Errorf("%s: Kind() = %q, want %q", tt.key, b.Kind(), tt.kind)
		}
		if b.Target() != tt.target {
			t.Errorf("%s: Target() = %q, want %q", tt.key, b.Target(), tt.target)
		}
		if b.RunsOnHost() != tt.runsOnHost {
			t.Errorf("%s: RunsOnHost() = %v, want %v", tt.key, b.RunsOnHost(), tt.runsOnHost)
		}
	}
}

func TestBuildFoldersAndExecutables(t *testing.T) {
	t.Parallel()
	registry := matrixRegistry(t)

	clang, _ := registry.Get("clang-debug")
	if filepath.Base(filepath.Dir(clang.WorkDir())) != "clang" {
		t.Errorf("clang-debug WorkDir() = %q, want folder 'clang'", clang.WorkDir())
	}
	if !strings.HasPrefix(clang.Executable(), clang.WorkDir()) {
		t.Errorf("Executable() = %q, want inside %q", clang.Executable(), clang.WorkDir())
	}

	prebuilt, _ := registry.Get("prebuilt")
	if prebuilt.Executable() != "/opt/vvdec/bin/vvdecapp" {
		t.Errorf("prebuilt Executable() = %q", prebuilt.Executable())
	}
}

func TestConfigureOptionsExpandSymbolicTokens(t *testing.T) {
	t.Parallel()
	registry := matrixRegistry(t)

	clang, _ := registry.Get("clang-debug")
	var warned []string
	opts, err := clang.ConfigureOptions(func(msg string) { warned = append(warned, msg) })
	if err != nil {
		t.Fatalf("ConfigureOptions() error = %v", err)
	}
	joined := strings.Join(opts, " ")
	for _, want := range []string{"-DCMAKE_BUILD_TYPE=Debug", "-DVVDEC_USE_ADDRESS_SANITIZER=ON", "-DBUILD_SHARED_LIBS=OFF"} {
		if !strings.Contains(joined, want) {
			t.Errorf("options %q missing %q", joined, want)
		}
	}
	if strings.Contains(joined, "-DCMAKE_BUILD_TYPE=Release") {
		t.Errorf("explicit build type must not be overridden: %q", joined)
	}
	if len(warned) != 0 {
		t.Errorf("unexpected warnings: %v", warned)
	}
}

func TestSelectKeepsConfigOrder(t *testing.T) {
	t.Parallel()
	registry := matrixRegistry(t)

	sel, err := registry.Select([]string{"prebuilt", "gcc", "prebuilt"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	got := strings.Join(sel.Keys(), " ")
	if got != "gcc prebuilt" {
		t.Errorf("Select() keys = %q, want %q", got, "gcc prebuilt")
	}
}
