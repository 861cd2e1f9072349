package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadWithWarnings parses a config document and returns any unknown field warnings.
func LoadWithWarnings(data []byte) (*Config, []string, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, nil, err
	}

	warnings := detectUnknownFields(data)

	return cfg, warnings, nil
}

// detectUnknownFields compares the raw document with known struct fields.
func detectUnknownFields(data []byte) []string {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// Should not happen since the data was already parsed successfully.
		return []string{"internal: failed to re-parse config for unknown field detection"}
	}

	var warnings []string
	warnings = append(warnings, unknownKeys(raw, reflect.TypeOf(Config{}), "at root level")...)

	if node, ok := raw["machine"]; ok {
		var machine map[string]yaml.Node
		if node.Decode(&machine) == nil {
			warnings = append(warnings, unknownKeys(machine, reflect.TypeOf(MachineConfig{}), "in machine")...)
		}
	}
	if node, ok := raw["checksum"]; ok {
		var checksum map[string]yaml.Node
		if node.Decode(&checksum) == nil {
			warnings = append(warnings, unknownKeys(checksum, reflect.TypeOf(ChecksumConfig{}), "in checksum")...)
		}
	}
	if node, ok := raw["builds"]; ok {
		warnings = append(warnings, checkBuildsUnknownFields(&node)...)
	}

	return warnings
}

func checkBuildsUnknownFields(node *yaml.Node) []string {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	var warnings []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var fields map[string]yaml.Node
		if err := node.Content[i+1].Decode(&fields); err != nil {
			continue
		}
		warnings = append(warnings, unknownKeys(fields, reflect.TypeOf(BuildConfig{}), fmt.Sprintf("in build %q", key))...)
	}
	return warnings
}

func unknownKeys(raw map[string]yaml.Node, t reflect.Type, where string) []string {
	known := getYAMLFields(t)
	var unknown []string
	for key := range raw {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	warnings := make([]string, 0, len(unknown))
	for _, key := range unknown {
		warnings = append(warnings, fmt.Sprintf("unknown field %q %s (ignored)", key, where))
	}
	return warnings
}

// getYAMLFields returns a map of known YAML field names for a struct type.
func getYAMLFields(t reflect.Type) map[string]bool {
	fields := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		// Extract field name from tag (before comma)
		name := strings.Split(tag, ",")[0]
		if name != "" {
			fields[name] = true
		}
	}
	return fields
}
