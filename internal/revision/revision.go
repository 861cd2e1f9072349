// Package revision describes the source revision under test.
package revision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Info is what the run log records about the checkout.
type Info struct {
	// Revision is the commit hash of HEAD.
	Revision string
	// Description is the commit header and message (git show -s).
	Description string
	// Changes lists uncommitted changes (git diff-index --name-status).
	Changes string
}

// Dirty reports whether the working tree has uncommitted changes.
func (i *Info) Dirty() bool {
	return i.Changes != ""
}

// Short returns the abbreviated revision.
func (i *Info) Short() string {
	if len(i.Revision) > 12 {
		return i.Revision[:12]
	}
	return i.Revision
}

// String renders the block written into the log header.
func (i *Info) String() string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(i.Description, "\n"))
	b.WriteByte('\n')
	if i.Dirty() {
		b.WriteString("Uncommitted changes in the working directory:\n")
		b.WriteString(strings.TrimRight(i.Changes, "\n"))
		b.WriteByte('\n')
	}
	return b.String()
}

// Probe inspects the checkout in dir using the given git executable.
func Probe(ctx context.Context, git, dir string) (*Info, error) {
	if git == "" {
		git = "git"
	}
	rev, err := run(ctx, git, dir, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("unable to determine source version: %w", err)
	}
	rev = strings.TrimSpace(rev)

	desc, err := run(ctx, git, dir, "show", "-s", rev)
	if err != nil {
		return nil, fmt.Errorf("unable to determine revision info: %w", err)
	}

	changes, err := diffIndex(ctx, git, dir)
	if err != nil {
		return nil, err
	}

	return &Info{Revision: rev, Description: desc, Changes: changes}, nil
}

// diffIndex lists modified files. git exits 1 when there are differences.
func diffIndex(ctx context.Context, git, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, git, "diff-index", "--name-status", "--exit-code", "HEAD")
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.ExitCode() == 1) {
		return "", fmt.Errorf("git diff-index: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

func run(ctx context.Context, git, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, git, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %s", args[0], msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}
