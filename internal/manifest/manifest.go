// Package manifest reads and writes the plain-text lists of reference
// bitstreams and their golden checksums.
//
// Each non-comment line holds a sequence name, its expected MD5 and an
// optional free-form comment, separated by whitespace:
//
//	#Sequence                           MD5                                 Comments
//	CodingToolsSets_A_Tencent_2.bit     1d7e1f3fa9ef1cd1e5b5ea2b1cc1ba6f    intra only
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// minLineLength is the shortest line that can hold an entry.
const minLineLength = 3

// TestCase is one manifest entry.
type TestCase struct {
	Sequence string
	Checksum string
	Comment  string
}

// Source describes where the sequences named in a manifest live.
type Source struct {
	// AssetDir holds the bitstreams. Empty disables the existence check.
	AssetDir string
	// Warn receives one message per skipped line or missing sequence.
	Warn func(msg string)
}

func (s Source) warn(format string, args ...interface{}) {
	if s.Warn != nil {
		s.Warn(fmt.Sprintf(format, args...))
	}
}

// Path returns the location of a sequence.
func (s Source) Path(seq string) string {
	return filepath.Join(s.AssetDir, seq)
}

// ParseFile reads a manifest from disk.
func ParseFile(path string, src Source) ([]TestCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cases, err := Parse(f, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

// Parse reads manifest entries in file order. Entries whose sequence is
// absent from the asset directory are dropped with a single warning per
// distinct name; they never fail the parse.
func Parse(r io.Reader, src Source) ([]TestCase, error) {
	var cases []TestCase
	missing := make(map[string]bool)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if len(line) < minLineLength || line[0] == '#' {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			src.warn("line %d: no checksum for %q, skipped", lineNo, fields[0])
			continue
		}
		tc := TestCase{
			Sequence: fields[0],
			Checksum: fields[1],
			Comment:  strings.Join(fields[2:], " "),
		}

		if src.AssetDir != "" {
			if _, err := os.Stat(src.Path(tc.Sequence)); err != nil {
				if !missing[tc.Sequence] {
					src.warn("ignoring missing sequence %s", tc.Sequence)
					missing[tc.Sequence] = true
				}
				continue
			}
		}
		cases = append(cases, tc)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return cases, nil
}

// Filter applies the --only and --skip substring filters to the sequence
// name and comment. Empty filters match everything.
func Filter(cases []TestCase, only, skip string) []TestCase {
	if only == "" && skip == "" {
		return cases
	}
	out := make([]TestCase, 0, len(cases))
	for _, tc := range cases {
		if skip != "" && tc.matches(skip) {
			continue
		}
		if only != "" && !tc.matches(only) {
			continue
		}
		out = append(out, tc)
	}
	return out
}

func (tc TestCase) matches(s string) bool {
	return strings.Contains(tc.Sequence, s) || strings.Contains(tc.Comment, s)
}

// HarnessDir is the folder of a decoder checkout that ships manifests.
const HarnessDir = "test-harness"

// Resolve locates a manifest. A bare file name is looked up in the source
// tree's test-harness folder first; anything else is used as a path.
func Resolve(name, sourceDir string) (string, error) {
	if !strings.ContainsAny(name, `/\`) && sourceDir != "" {
		inRepo := filepath.Join(sourceDir, HarnessDir, name)
		if _, err := os.Stat(inRepo); err == nil {
			return inRepo, nil
		}
	}
	if _, err := os.Stat(name); err != nil {
		return "", fmt.Errorf("unable to find test list file %s", name)
	}
	return name, nil
}
