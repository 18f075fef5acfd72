//go:build !windows

package control

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// createPipe creates the run directory and a named pipe at path, matching
// the original's mkfifo(..., S_IRWXU | S_IWOTH): owner read/write/execute,
// group no access, other users write-only so they can issue commands
// but only the owner can read the backlog.
func createPipe(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return unix.Mkfifo(path, unix.S_IRWXU|unix.S_IWOTH)
}

// openPipeForRead opens the FIFO read-write rather than read-only: a pure
// reader blocks until a writer appears, and would then see EOF and have to
// reopen on every single writer disconnecting. Opening O_RDWR means the
// read end never itself triggers EOF, which is the standard FIFO-server
// idiom.
func openPipeForRead(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR, 0)
}
