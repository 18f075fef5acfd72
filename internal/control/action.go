// Package control implements the control-plane protocol spoken over the
// ctl pipe: a one-line-per-command text format (Action), and an Executor
// that applies a parsed Action to a running supervisor.
//
// Grounded in the original implementation's core/src/action.rs Action enum
// and core/src/builtin/ctl.rs pipe-reading builtin. The original's
// FromStr aliased "deactivate"/"force-deactivate" onto Action::Kill, losing
// the distinction between "stop, may respawn" and "stop, and stay stopped"
// — this implementation keeps Deactivate a genuinely separate verb, round-
// tripping through String()/ParseAction without collapsing into Kill.
package control

import (
	"fmt"
	"strings"
)

// Verb identifies which control-plane operation an Action requests.
type Verb int

const (
	VerbKill Verb = iota
	VerbDeactivate
	VerbStart
	VerbRestart
	VerbSystem
)

func (v Verb) String() string {
	switch v {
	case VerbKill:
		return "kill"
	case VerbDeactivate:
		return "deactivate"
	case VerbStart:
		return "start"
	case VerbRestart:
		return "restart"
	case VerbSystem:
		return "system"
	default:
		return "unknown"
	}
}

// SystemCommand is the payload of a VerbSystem action.
type SystemCommand int

const (
	SystemPoweroff SystemCommand = iota
	SystemRestart
	SystemHalt
)

func (c SystemCommand) String() string {
	switch c {
	case SystemPoweroff:
		return "poweroff"
	case SystemRestart:
		return "restart"
	case SystemHalt:
		return "halt"
	default:
		return "unknown"
	}
}

// Action is one control-plane command, as read off the ctl pipe or issued
// by alfad-ctl.
type Action struct {
	Verb   Verb
	Task   string // empty for VerbSystem
	Force  bool
	System SystemCommand // only meaningful for VerbSystem
}

// ErrSyntax is returned when a line cannot be split into a command and a
// payload.
type ErrSyntax struct{ Line string }

func (e *ErrSyntax) Error() string { return fmt.Sprintf("could not parse command %q", e.Line) }

// ErrUnknownAction is returned for a recognized shape but unrecognized verb
// or system command.
type ErrUnknownAction struct{ Line string }

func (e *ErrUnknownAction) Error() string { return fmt.Sprintf("unknown action %q", e.Line) }

// ParseAction parses one control-plane line: "<command> <payload>".
func ParseAction(line string) (Action, error) {
	command, payload, ok := strings.Cut(line, " ")
	if !ok {
		return Action{}, &ErrSyntax{Line: line}
	}
	switch command {
	case "kill":
		return Action{Verb: VerbKill, Task: payload}, nil
	case "force-kill":
		return Action{Verb: VerbKill, Task: payload, Force: true}, nil
	case "deactivate":
		return Action{Verb: VerbDeactivate, Task: payload}, nil
	case "force-deactivate":
		return Action{Verb: VerbDeactivate, Task: payload, Force: true}, nil
	case "start":
		return Action{Verb: VerbStart, Task: payload}, nil
	case "force-start":
		return Action{Verb: VerbStart, Task: payload, Force: true}, nil
	case "restart":
		return Action{Verb: VerbRestart, Task: payload}, nil
	case "force-restart":
		return Action{Verb: VerbRestart, Task: payload, Force: true}, nil
	case "system":
		sys, ok := parseSystemCommand(payload)
		if !ok {
			return Action{}, &ErrUnknownAction{Line: line}
		}
		return Action{Verb: VerbSystem, System: sys}, nil
	default:
		return Action{}, &ErrUnknownAction{Line: line}
	}
}

func parseSystemCommand(s string) (SystemCommand, bool) {
	switch s {
	case "poweroff":
		return SystemPoweroff, true
	case "restart":
		return SystemRestart, true
	case "halt":
		return SystemHalt, true
	default:
		return 0, false
	}
}

// String renders the Action back into the wire line ParseAction accepts,
// the round-trip the original's ToString impl was meant to provide.
func (a Action) String() string {
	prefix := ""
	if a.Force {
		prefix = "force-"
	}
	switch a.Verb {
	case VerbKill:
		return fmt.Sprintf("%skill %s", prefix, a.Task)
	case VerbDeactivate:
		return fmt.Sprintf("%sdeactivate %s", prefix, a.Task)
	case VerbStart:
		return fmt.Sprintf("%sstart %s", prefix, a.Task)
	case VerbRestart:
		return fmt.Sprintf("%srestart %s", prefix, a.Task)
	case VerbSystem:
		return fmt.Sprintf("system %s", a.System)
	default:
		return ""
	}
}
