//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package proc

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

var capture backend = pollCapture

// pollInterval bounds how long a poll waits before ctx is checked again.
const pollInterval = 250 // milliseconds

// pollCapture waits on both pipes with a single poll call and reads whatever
// is ready, so stderr lines land next to the stdout lines around them.
func pollCapture(ctx context.Context, cmd *exec.Cmd, emit func(Stream, string)) error {
	outR, outW, err := os.Pipe()
	if err != nil {
		return err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return err
	}
	defer outR.Close()
	defer errR.Close()

	cmd.Stdout = outW
	cmd.Stderr = errW
	startErr := cmd.Start()
	// The child holds its own copies; EOF arrives once it and its
	// descendants have exited.
	outW.Close()
	errW.Close()
	if startErr != nil {
		return startErr
	}

	fds := []unix.PollFd{
		{Fd: int32(outR.Fd()), Events: unix.POLLIN},
		{Fd: int32(errR.Fd()), Events: unix.POLLIN},
	}
	splitters := [2]lineSplitter{{stream: Stdout}, {stream: Stderr}}
	buf := make([]byte, 32*1024)
	open := len(fds)
	killed := false

	for open > 0 {
		if !killed && ctx.Err() != nil {
			killGroup(cmd)
			killed = true
		}

		n, err := unix.Poll(fds, pollInterval)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return os.NewSyscallError("poll", err)
		}
		if n == 0 {
			continue
		}

		for i := range fds {
			if fds[i].Fd < 0 || fds[i].Revents == 0 {
				continue
			}
			eof := fds[i].Revents&unix.POLLNVAL != 0
			if !eof {
				r, err := unix.Read(int(fds[i].Fd), buf)
				switch {
				case err == unix.EINTR || err == unix.EAGAIN:
					continue
				case err != nil || r == 0:
					eof = true
				default:
					splitters[i].feed(buf[:r], emit)
				}
			}
			if eof {
				splitters[i].flush(emit)
				// Negative descriptors are ignored by poll.
				fds[i].Fd = -1
				open--
			}
		}
	}
	return nil
}

// lineSplitter reassembles lines from arbitrary read chunks.
type lineSplitter struct {
	stream  Stream
	partial []byte
}

func (s *lineSplitter) feed(p []byte, emit func(Stream, string)) {
	for {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			s.partial = append(s.partial, p...)
			return
		}
		s.partial = append(s.partial, p[:i+1]...)
		emit(s.stream, string(s.partial))
		s.partial = s.partial[:0]
		p = p[i+1:]
	}
}

func (s *lineSplitter) flush(emit func(Stream, string)) {
	if len(s.partial) > 0 {
		emit(s.stream, string(s.partial))
		s.partial = s.partial[:0]
	}
}
