package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Default configuration values.
const (
	DefaultDecoder        = "vvdecapp"
	DefaultVersionControl = "git"
	DefaultChecksumMode   = "stdout"
	DefaultChecksumLabel  = "YUV_MD5"
	DefaultIgnore         = "PIE"
	DefaultLogsDirectory  = "."
)

// applyDefaults fills in default values for unset configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Decoder == "" {
		cfg.Decoder = DefaultDecoder
	}
	if cfg.VersionControl == "" {
		cfg.VersionControl = DefaultVersionControl
	}
	if cfg.Checksum.Mode == "" {
		cfg.Checksum.Mode = DefaultChecksumMode
	}
	if cfg.Checksum.Label == "" {
		cfg.Checksum.Label = DefaultChecksumLabel
	}
	if cfg.Ignore == "" {
		cfg.Ignore = DefaultIgnore
	}
	if cfg.Logs == "" {
		cfg.Logs = DefaultLogsDirectory
	}
	if cfg.Temp == "" {
		cfg.Temp = os.TempDir()
	}

	cfg.Source = ExpandHome(cfg.Source)
	cfg.Sequences = ExpandHome(cfg.Sequences)
	cfg.Temp = ExpandHome(cfg.Temp)
	cfg.Logs = ExpandHome(cfg.Logs)
	cfg.Shell = ExpandHome(cfg.Shell)

	applyBuildDefaults(cfg)
}

func applyBuildDefaults(cfg *Config) {
	for i := range cfg.Builds {
		b := &cfg.Builds[i]
		// Default folder is the build key
		if b.Folder == "" {
			b.Folder = b.Key
		}
		if b.Group == "" {
			b.Group = b.Key
		}
		b.Executable = ExpandHome(b.Executable)
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// ResolvePaths makes relative paths absolute against base, normally the
// directory holding smoketest.yaml.
func (c *Config) ResolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Source = abs(c.Source)
	c.Sequences = abs(c.Sequences)
	c.Temp = abs(c.Temp)
	c.Logs = abs(c.Logs)
	for i := range c.Builds {
		c.Builds[i].Executable = abs(c.Builds[i].Executable)
	}
}
