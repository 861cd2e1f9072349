//go:build !unix

package proc

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
}

func returnCode(state *os.ProcessState) int {
	return state.ExitCode()
}

// EnableCoreDumps is a no-op on this platform.
func EnableCoreDumps() error {
	return nil
}
