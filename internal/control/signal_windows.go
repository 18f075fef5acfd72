//go:build windows

package control

import "os"

// signalPID on Windows has no signal-to-a-process-group equivalent without
// Job Objects; force is ignored and the process is simply terminated.
func signalPID(pid int, force bool) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
