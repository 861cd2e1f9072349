package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Build key: letters, digits, dots, underscores, and hyphens.
var buildKeyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Recognized values for enumerated fields.
var (
	validKinds         = []string{"make", "ide", "mobile"}
	validProfiles      = []string{"generate", "use"}
	validChecksumModes = []string{"stdout", "file"}
	validVCS           = []string{"git", "none"}
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a configuration for errors and returns warnings for non-fatal issues.
func Validate(cfg *Config) (warnings []string, err error) {
	if cfg.Source == "" {
		return nil, &ValidationError{Field: "source", Message: "is required"}
	}
	if cfg.Sequences == "" {
		return nil, &ValidationError{Field: "sequences", Message: "is required"}
	}
	if !contains(validChecksumModes, cfg.Checksum.Mode) {
		return nil, &ValidationError{
			Field:   "checksum.mode",
			Message: fmt.Sprintf("must be one of %s", strings.Join(validChecksumModes, ", ")),
		}
	}
	if !contains(validVCS, cfg.VersionControl) {
		return nil, &ValidationError{
			Field:   "version_control",
			Message: fmt.Sprintf("must be one of %s", strings.Join(validVCS, ", ")),
		}
	}
	if cfg.Timeout < 0 {
		return nil, &ValidationError{Field: "timeout", Message: "must not be negative"}
	}
	if len(cfg.Builds) == 0 {
		return nil, &ValidationError{Field: "builds", Message: "at least one build is required"}
	}

	seen := make(map[string]bool)
	for _, b := range cfg.Builds {
		if seen[b.Key] {
			return nil, &ValidationError{Field: "builds." + b.Key, Message: "duplicate build key"}
		}
		seen[b.Key] = true

		buildWarnings, err := validateBuild(cfg, b)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, buildWarnings...)
	}

	return warnings, nil
}

func validateBuild(cfg *Config, b BuildConfig) ([]string, error) {
	if err := ValidateBuildKey(b.Key); err != nil {
		return nil, err
	}
	if b.Generator == "" && cfg.Shell == "" {
		return nil, &ValidationError{
			Field:   fmt.Sprintf("builds.%s.generator", b.Key),
			Message: "is required",
		}
	}
	if b.Kind != "" && !contains(validKinds, b.Kind) {
		return nil, &ValidationError{
			Field:   fmt.Sprintf("builds.%s.kind", b.Key),
			Message: fmt.Sprintf("must be one of %s", strings.Join(validKinds, ", ")),
		}
	}
	if b.Profile != "" && !contains(validProfiles, b.Profile) {
		return nil, &ValidationError{
			Field:   fmt.Sprintf("builds.%s.profile", b.Key),
			Message: fmt.Sprintf("must be one of %s", strings.Join(validProfiles, ", ")),
		}
	}

	var warnings []string
	for _, token := range strings.Fields(b.Options) {
		if _, ok := cfg.Options[token]; !ok {
			warnings = append(warnings, fmt.Sprintf("build %q: unknown option %q will be ignored", b.Key, token))
		}
	}
	return warnings, nil
}

// ValidateBuildKey checks if a build key is valid.
func ValidateBuildKey(key string) error {
	if key == "" {
		return &ValidationError{Field: "build key", Message: "is required"}
	}
	if !buildKeyPattern.MatchString(key) {
		return &ValidationError{
			Field:   "builds." + key,
			Message: "build key must match pattern ^[A-Za-z0-9][A-Za-z0-9._-]*$",
		}
	}
	return nil
}

// ValidateSource checks that source points at a decoder checkout, i.e. a
// directory holding CMakeLists.txt or a configure script.
func ValidateSource(source string) error {
	info, err := os.Stat(source)
	if err != nil || !info.IsDir() {
		return &ValidationError{Field: "source", Message: fmt.Sprintf("%q is not a directory", source)}
	}
	for _, marker := range []string{"CMakeLists.txt", "configure"} {
		if _, err := os.Stat(filepath.Join(source, marker)); err == nil {
			return nil
		}
	}
	return &ValidationError{
		Field:   "source",
		Message: fmt.Sprintf("%q does not point to a decoder source folder (no CMakeLists.txt or configure)", source),
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
