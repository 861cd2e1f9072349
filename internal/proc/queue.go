package proc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

type streamLine struct {
	stream Stream
	text   string
}

// queueCapture reads each pipe on its own goroutine and funnels lines into a
// channel drained here. Both readers are joined before it returns.
func queueCapture(ctx context.Context, cmd *exec.Cmd, emit func(Stream, string)) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	lines := make(chan streamLine, 64)
	var g errgroup.Group
	g.Go(func() error { return readLines(stdout, Stdout, lines) })
	g.Go(func() error { return readLines(stderr, Stderr, lines) })

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
		close(lines)
	}()

	ctxDone := ctx.Done()
	for {
		select {
		case l, ok := <-lines:
			if !ok {
				return <-done
			}
			emit(l.stream, l.text)
		case <-ctxDone:
			killGroup(cmd)
			ctxDone = nil
		}
	}
}

func readLines(r io.Reader, s Stream, lines chan<- streamLine) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lines <- streamLine{stream: s, text: line}
		}
		if err != nil {
			if err == io.EOF || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}
