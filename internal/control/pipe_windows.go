//go:build windows

package control

import (
	"os"
	"path/filepath"
)

// Windows has no FIFO special file; alfad-ctl on Windows writes complete
// lines to a plain file and the daemon polls it, truncating after each
// read. This is a reduced-functionality stand-in — a real Windows port
// would use a named pipe via golang.org/x/sys/windows, which this module
// does not otherwise need.
func createPipe(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	return f.Close()
}

func openPipeForRead(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR, 0o600)
}
