package build

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vvdec/smoketest/internal/config"
	"github.com/vvdec/smoketest/internal/errors"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Source:  t.TempDir(),
		Temp:    t.TempDir(),
		Decoder: "vvdecapp",
		Builds: config.Builds{
			{Key: "gcc", Folder: "gcc", Generator: "Unix Makefiles"},
			{Key: "clang", Folder: "clang", Generator: "Ninja"},
			{Key: "msvc", Folder: "msvc", Generator: "Visual Studio 17 2022"},
		},
	}
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()
	r, err := NewRegistry(testConfig(t))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
	if diff := cmp.Diff([]string{"gcc", "clang", "msvc"}, r.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRegistry_BadBuild(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Builds = append(cfg.Builds, config.BuildConfig{Key: "bad", Kind: "scons"})
	if _, err := NewRegistry(cfg); err == nil {
		t.Error("NewRegistry() with unknown kind should fail")
	}
}

func TestRegistry_Get(t *testing.T) {
	t.Parallel()
	r, err := NewRegistry(testConfig(t))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	b, ok := r.Get("clang")
	if !ok {
		t.Fatal("Get(clang) not found")
	}
	if b.Generator() != "Ninja" {
		t.Errorf("Generator() = %q, want Ninja", b.Generator())
	}
	if _, ok := r.Get("icc"); ok {
		t.Error("Get(icc) should not be found")
	}
}

func TestRegistry_Select(t *testing.T) {
	t.Parallel()
	r, err := NewRegistry(testConfig(t))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	tests := []struct {
		name    string
		keys    []string
		want    []string
		wantErr bool
	}{
		{name: "all", keys: nil, want: []string{"gcc", "clang", "msvc"}},
		{name: "config order", keys: []string{"msvc", "gcc"}, want: []string{"gcc", "msvc"}},
		{name: "duplicates", keys: []string{"clang", "clang"}, want: []string{"clang"}},
		{name: "unknown", keys: []string{"gcc", "icc"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sel, err := r.Select(tt.keys)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Select() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var herr *errors.HarnessError
				if !errors.As(err, &herr) || herr.Kind != errors.KindNotFound {
					t.Errorf("Select() error = %v, want not found", err)
				}
				return
			}
			if diff := cmp.Diff(tt.want, sel.Keys()); diff != "" {
				t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
