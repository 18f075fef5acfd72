package config

// Applet names the busybox-style cmd/alfad binary recognizes via its
// os.Args[0].
const (
	AppletMain    = "alfad"
	AppletCtl     = "alfad-ctl"
	AppletCompile = "alfad-compile"
	AppletInit    = "init"
)

// Default filesystem layout, matching the reference implementation's
// def.rs constants.
const (
	// DirRun holds runtime state, including the control pipe.
	DirRun = "/run/var"
	// DirConfig is the configuration root.
	DirConfig = "/etc/alfad"
	// DirConfigD is the directory of individual task definition files.
	DirConfigD = "/etc/alfad/alfad.d"
	// FileConfigCache is the compiled cache alfad-compile writes and init
	// prefers over DirConfigD when present and version-matched.
	FileConfigCache = "alfad.d.cache"
)

// CtlPipeName is the control-plane FIFO's filename within DirRun.
const CtlPipeName = "ctl"
