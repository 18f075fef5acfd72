//go:build windows

package reaper

import (
	"context"

	"github.com/rs/zerolog"
)

// Run is a no-op on Windows: there is no PID-1/zombie-reparenting concept,
// every child is reaped by its own owning *exec.Cmd.Wait().
func Run(ctx context.Context, log zerolog.Logger) {
	<-ctx.Done()
}
