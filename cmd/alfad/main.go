// Command alfad is a single binary that behaves differently depending on
// the name it is invoked as, the same busybox-style dispatch the original
// implementation uses for its init/alfad-ctl/alfad-compile applets: symlink
// (or hardlink) this binary as any of those names, or as poweroff/halt/
// reboot, and os.Args[0] picks the behavior.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tinythings/alfad/internal/config"
)

func main() {
	applet := filepath.Base(os.Args[0])

	var err error
	switch applet {
	case config.AppletInit, config.AppletMain:
		err = runInit(os.Args[1:])
	case config.AppletCtl:
		err = runCtl(os.Args[1:])
	case config.AppletCompile:
		err = runCompile(os.Args[1:])
	case "poweroff":
		err = sendSystemCommand("poweroff")
	case "halt":
		err = sendSystemCommand("halt")
	case "reboot", "restart":
		err = sendSystemCommand("restart")
	default:
		err = runCtl(os.Args[1:])
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "alfad: %v\n", err)
		os.Exit(1)
	}
}
