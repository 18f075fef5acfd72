//go:build !windows

// Package reboot performs the three system power transitions the control
// plane's "system" action can request, and backs the busybox-style
// poweroff/halt/restart binary aliases dispatched by cmd/alfad.
//
// Grounded in the original implementation's treatment of system commands
// as first-class Actions and the teacher's preference for a small
// dedicated package per platform-syscall concern (see internal/cluster's
// worker_unix.go/worker_windows.go split).
package reboot

import "golang.org/x/sys/unix"

// Controller issues the actual reboot(2) syscalls. A real PID-1 process
// should, before calling any of these, have already shut down every task
// via the supervisor and unmounted filesystems; Controller only performs
// the final syscall.
type Controller struct{}

func NewController() *Controller { return &Controller{} }

func (c *Controller) Poweroff() error {
	return unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF)
}

func (c *Controller) Restart() error {
	return unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
}

func (c *Controller) Halt() error {
	return unix.Reboot(unix.LINUX_REBOOT_CMD_HALT)
}
