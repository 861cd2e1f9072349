package config

import (
	"errors"
	"os"
	"path/filepath"
)

// FileName is the name of the configuration file.
const FileName = "smoketest.yaml"

// ErrNotFound is returned when no smoketest.yaml exists in the directory or any parent.
var ErrNotFound = errors.New(FileName + " not found (in the current directory or any parent up to the root)")

// Find walks up from the current working directory until it finds smoketest.yaml.
func Find() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindFrom(cwd)
}

// FindFrom walks up from the given directory until it finds smoketest.yaml
// and returns the path to the file.
func FindFrom(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", ErrNotFound
		}
		dir = parent
	}
}
