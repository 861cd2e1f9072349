package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{
		Source:    "/src",
		Sequences: "/seq",
		Options:   map[string]string{"debug": "-DCMAKE_BUILD_TYPE=Debug"},
		Builds: Builds{
			{Key: "gcc", Generator: "Unix Makefiles", Options: "debug"},
		},
	}
	applyDefaults(cfg)
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()
	warnings, err := Validate(validConfig())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing source", func(c *Config) { c.Source = "" }, "source"},
		{"missing sequences", func(c *Config) { c.Sequences = "" }, "sequences"},
		{"bad checksum mode", func(c *Config) { c.Checksum.Mode = "sha" }, "checksum.mode"},
		{"bad version control", func(c *Config) { c.VersionControl = "hg" }, "version_control"},
		{"negative timeout", func(c *Config) { c.Timeout = -1 }, "timeout"},
		{"no builds", func(c *Config) { c.Builds = nil }, "builds"},
		{"bad key", func(c *Config) { c.Builds[0].Key = "-gcc" }, "builds.-gcc"},
		{"missing generator", func(c *Config) { c.Builds[0].Generator = "" }, "builds.gcc.generator"},
		{"bad kind", func(c *Config) { c.Builds[0].Kind = "xcode" }, "builds.gcc.kind"},
		{"bad profile", func(c *Config) { c.Builds[0].Profile = "train" }, "builds.gcc.profile"},
		{"duplicate key", func(c *Config) { c.Builds = append(c.Builds, c.Builds[0]) }, "builds.gcc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			_, err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestValidate_ShellBuildNeedsNoGenerator(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Shell = "/bin/sh"
	cfg.Builds[0].Generator = ""
	if _, err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_UnknownOptionWarns(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Builds[0].Options = "debug lto"
	warnings, err := Validate(cfg)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], `"lto"`) {
		t.Errorf("warnings = %v, want one about lto", warnings)
	}
}

func TestValidateSource(t *testing.T) {
	t.Parallel()
	withCMake := t.TempDir()
	if err := os.WriteFile(filepath.Join(withCMake, "CMakeLists.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	withConfigure := t.TempDir()
	if err := os.WriteFile(filepath.Join(withConfigure, "configure"), nil, 0755); err != nil {
		t.Fatal(err)
	}

	if err := ValidateSource(withCMake); err != nil {
		t.Errorf("ValidateSource(cmake) error = %v", err)
	}
	if err := ValidateSource(withConfigure); err != nil {
		t.Errorf("ValidateSource(configure) error = %v", err)
	}
	if err := ValidateSource(t.TempDir()); err == nil {
		t.Error("ValidateSource(empty) expected error")
	}
	if err := ValidateSource(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("ValidateSource(missing) expected error")
	}
}
