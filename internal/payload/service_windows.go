//go:build windows

package payload

import (
	"os"
	"os/exec"
)

// applyProcAttrs is a no-op on Windows: job objects would be the idiomatic
// way to group a child's whole subtree for termination, but that requires
// Win32 API calls beyond what this package pulls in.
func applyProcAttrs(cmd *exec.Cmd) {}

// sendGracefulSignal uses os.Interrupt, which maps to CTRL_BREAK_EVENT for
// console processes; non-console processes fall straight through to
// TerminateProcess on the next step.
func sendGracefulSignal(cmd *exec.Cmd) error {
	return cmd.Process.Signal(os.Interrupt)
}

func killProcessGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
