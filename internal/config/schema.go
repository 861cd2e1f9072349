// Package config provides configuration loading and validation for smoketest.yaml.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete smoketest.yaml configuration.
type Config struct {
	Machine        MachineConfig     `yaml:"machine"`
	Source         string            `yaml:"source"`
	Sequences      string            `yaml:"sequences"`
	Temp           string            `yaml:"temp,omitempty"`
	Logs           string            `yaml:"logs,omitempty"`
	Decoder        string            `yaml:"decoder,omitempty"`
	VersionControl string            `yaml:"version_control,omitempty"`
	Shell          string            `yaml:"shell,omitempty"`
	Progress       bool              `yaml:"progress,omitempty"`
	MakeFlags      []string          `yaml:"make_flags,omitempty"`
	Timeout        Duration          `yaml:"timeout,omitempty"`
	Checksum       ChecksumConfig    `yaml:"checksum,omitempty"`
	Ignore         string            `yaml:"ignore,omitempty"`
	Options        map[string]string `yaml:"options,omitempty"`
	Builds         Builds            `yaml:"builds"`
}

// MachineConfig identifies the host in report headers.
type MachineConfig struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// ChecksumConfig selects how decoded output is verified.
type ChecksumConfig struct {
	Mode  string `yaml:"mode,omitempty"`
	Label string `yaml:"label,omitempty"`
}

// BuildConfig is one entry of the build matrix.
type BuildConfig struct {
	Key        string    `yaml:"-"`
	Folder     string    `yaml:"folder,omitempty"`
	Group      string    `yaml:"group,omitempty"`
	Generator  string    `yaml:"generator"`
	Options    string    `yaml:"options,omitempty"`
	Overrides  Overrides `yaml:"overrides,omitempty"`
	Kind       string    `yaml:"kind,omitempty"`
	Executable string    `yaml:"executable,omitempty"`
	Profile    string    `yaml:"profile,omitempty"`
}

// Builds is the build matrix in file order.
type Builds []BuildConfig

// UnmarshalYAML decodes a mapping of build key to BuildConfig, keeping the
// order in which keys appear.
func (b *Builds) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: builds must be a mapping", value.Line)
	}
	out := make(Builds, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]
		var bc BuildConfig
		if err := valNode.Decode(&bc); err != nil {
			return fmt.Errorf("build %q: %w", keyNode.Value, err)
		}
		bc.Key = keyNode.Value
		out = append(out, bc)
	}
	*b = out
	return nil
}

// Keys returns the build keys in order.
func (b Builds) Keys() []string {
	keys := make([]string, len(b))
	for i, bc := range b {
		keys[i] = bc.Key
	}
	return keys
}

// Get returns the build with the given key.
func (b Builds) Get(key string) (BuildConfig, bool) {
	for _, bc := range b {
		if bc.Key == key {
			return bc, true
		}
	}
	return BuildConfig{}, false
}

// Override is a single configure-time override.
type Override struct {
	Key   string
	Value string
}

// Overrides keeps overrides in file order.
type Overrides []Override

// UnmarshalYAML decodes a mapping of scalar overrides in order.
func (o *Overrides) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: overrides must be a mapping", value.Line)
	}
	out := make(Overrides, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]
		if valNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: override %q must be a scalar", valNode.Line, keyNode.Value)
		}
		out = append(out, Override{Key: keyNode.Value, Value: valNode.Value})
	}
	*o = out
	return nil
}

// Lookup returns the value of an override key.
func (o Overrides) Lookup(key string) (string, bool) {
	for _, ov := range o {
		if ov.Key == key {
			return ov.Value, true
		}
	}
	return "", false
}

// Duration is a time.Duration written as a Go duration string ("90s", "5m").
type Duration time.Duration

// UnmarshalYAML parses a duration string. A bare integer is read as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timeout must be a scalar", value.Line)
	}
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid timeout %q: %w", value.Line, value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
