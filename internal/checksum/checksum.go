// Package checksum computes and compares the MD5 digests of decoded output.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Mode selects where the observed checksum comes from.
type Mode string

const (
	// Stdout parses the digest the decoder prints with --md5.
	Stdout Mode = "stdout"
	// File hashes the decoded YUV file.
	File Mode = "file"
)

// DefaultLabel prefixes the digest in decoder output.
const DefaultLabel = "YUV_MD5"

const blockSize = 1 << 20

// ParseMode converts a configuration value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Stdout, File:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown checksum mode %q (want %q or %q)", s, Stdout, File)
}

// FromStdout returns the last "<label>=<hex>" digest in the decoder output.
func FromStdout(output, label string) (string, error) {
	if label == "" {
		label = DefaultLabel
	}
	re, err := regexp.Compile(regexp.QuoteMeta(label) + `=([0-9a-fA-F]+)`)
	if err != nil {
		return "", err
	}
	matches := re.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("no %s= digest in decoder output", label)
	}
	return strings.TrimSpace(matches[len(matches)-1][1]), nil
}

// FromFile hashes a file in fixed-size blocks.
func FromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, blockSize)); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fingerprint identifies a command line: the first 12 hex characters of its MD5.
func Fingerprint(command string) string {
	sum := md5.Sum([]byte(command))
	return hex.EncodeToString(sum[:])[:12]
}

// Equal compares two digests ignoring case.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
