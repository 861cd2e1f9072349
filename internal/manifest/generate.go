package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scan pairs the bitstreams in dir with their golden digests. A sequence
// "x.bit" takes its digest from the first 32 characters of "x.yuv.md5" or
// "x.md5". Sequences without a digest file are reported as an error.
func Scan(dir string) ([]TestCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var cases []TestCase
	var missing []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bit") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".bit")
		sum, err := readDigest(dir, base+".yuv.md5", base+".md5")
		if err != nil {
			return nil, err
		}
		if sum == "" {
			missing = append(missing, e.Name())
			continue
		}
		cases = append(cases, TestCase{Sequence: e.Name(), Checksum: sum})
	}

	sort.Slice(cases, func(i, j int) bool { return cases[i].Sequence < cases[j].Sequence })
	if len(missing) > 0 {
		return cases, fmt.Errorf("no digest file for %s", strings.Join(missing, ", "))
	}
	return cases, nil
}

func readDigest(dir string, names ...string) (string, error) {
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		line, err := bufio.NewReader(f).ReadString('\n')
		f.Close()
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		line = strings.TrimSpace(line)
		if len(line) > 32 {
			line = line[:32]
		}
		return strings.ToLower(line), nil
	}
	return "", nil
}

// Write emits a manifest with a header row and fixed-width columns.
func Write(w io.Writer, cases []TestCase) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "#%-36s%-36s%s\n", "Sequence", "MD5", "Comments")
	for _, tc := range cases {
		line := fmt.Sprintf("%-36s%-36s%s", tc.Sequence, tc.Checksum, tc.Comment)
		fmt.Fprintln(bw, strings.TrimRight(line, " "))
	}
	return bw.Flush()
}
