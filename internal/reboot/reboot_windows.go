//go:build windows

package reboot

import "fmt"

// Controller has no Windows backing implementation: there is no PID-1
// analogue to replace, so these simply report that the operation is
// unsupported rather than silently doing nothing.
type Controller struct{}

func NewController() *Controller { return &Controller{} }

func (c *Controller) Poweroff() error { return fmt.Errorf("system poweroff is not supported on windows") }
func (c *Controller) Restart() error  { return fmt.Errorf("system restart is not supported on windows") }
func (c *Controller) Halt() error     { return fmt.Errorf("system halt is not supported on windows") }
