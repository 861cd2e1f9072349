package proc

import (
	"fmt"
	"os/exec"
	"syscall"
)

// Status describes how a process ended. ReturnCode follows the convention
// of a negative signal number for processes killed by a signal.
type Status struct {
	ReturnCode int
	TimedOut   bool
	Canceled   bool
}

// Signal returns the terminating signal, if any.
func (s Status) Signal() (syscall.Signal, bool) {
	if s.ReturnCode >= 0 {
		return 0, false
	}
	return syscall.Signal(-s.ReturnCode), true
}

// String renders the status the way it appears in error summaries.
func (s Status) String() string {
	if name := ClassifySignal(s.ReturnCode); name != "" {
		return name
	}
	return fmt.Sprintf("return code %d", s.ReturnCode)
}

// ClassifySignal names the crash signals the harness reports on. It returns
// an empty string for anything else.
func ClassifySignal(code int) string {
	if code >= 0 {
		return ""
	}
	switch syscall.Signal(-code) {
	case syscall.SIGSEGV:
		return "SIGSEGV"
	case syscall.SIGBUS:
		return "SIGBUS"
	case syscall.SIGABRT:
		return "SIGABRT"
	case syscall.SIGILL:
		return "SIGILL"
	}
	return ""
}

func statusOf(cmd *exec.Cmd) Status {
	if cmd.ProcessState == nil {
		return Status{ReturnCode: -1}
	}
	return Status{ReturnCode: returnCode(cmd.ProcessState)}
}
