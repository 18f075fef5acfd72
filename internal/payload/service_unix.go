//go:build !windows

package payload

import (
	"os/exec"
	"syscall"
)

// applyProcAttrs puts the child in its own process group so a shutdown
// signal can reach the whole subtree, not just the direct child.
func applyProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func sendGracefulSignal(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

func killProcessGroup(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
