package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tinythings/alfad/internal/builtin"
	"github.com/tinythings/alfad/internal/control"
)

// runCtl implements the alfad-ctl applet: a small cobra CLI that writes one
// line per invocation to the control pipe. Grounded in the teacher's
// internal/cli.rootCmd wiring (SilenceErrors/SilenceUsage, persistent
// flags, fatih/color for status output) with the proprietary restricted-
// access banner and --signature gate removed — this binary ships openly.
func runCtl(args []string) error {
	var pipePath string
	var force bool

	root := &cobra.Command{
		Use:           "alfad-ctl",
		Short:         "control plane client for alfad",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&pipePath, "pipe", builtin.DefaultCtlPipePath, "control pipe path")
	root.PersistentFlags().BoolVar(&force, "force", false, "use SIGKILL instead of SIGTERM")

	send := func(a control.Action) error {
		if err := writeAction(pipePath, a); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(os.Stdout, "sent: %s\n", a.String())
		return nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "kill <task>",
			Short: "stop a task's current process",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, a []string) error {
				return send(control.Action{Verb: control.VerbKill, Task: a[0], Force: force})
			},
		},
		&cobra.Command{
			Use:   "deactivate <task>",
			Short: "stop a task and prevent it from respawning",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, a []string) error {
				return send(control.Action{Verb: control.VerbDeactivate, Task: a[0], Force: force})
			},
		},
		&cobra.Command{
			Use:   "start <task>",
			Short: "start a concluded or deactivated task",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, a []string) error {
				return send(control.Action{Verb: control.VerbStart, Task: a[0], Force: force})
			},
		},
		&cobra.Command{
			Use:   "restart <task>",
			Short: "stop and respawn a task regardless of its respawn policy",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, a []string) error {
				return send(control.Action{Verb: control.VerbRestart, Task: a[0], Force: force})
			},
		},
		&cobra.Command{
			Use:   "system <poweroff|restart|halt>",
			Short: "request a system power transition",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, a []string) error {
				sys, ok := map[string]control.SystemCommand{
					"poweroff": control.SystemPoweroff,
					"restart":  control.SystemRestart,
					"halt":     control.SystemHalt,
				}[a[0]]
				if !ok {
					return fmt.Errorf("unknown system command %q", a[0])
				}
				return send(control.Action{Verb: control.VerbSystem, System: sys})
			},
		},
	)

	root.SetArgs(args)
	return root.Execute()
}

func writeAction(pipePath string, a control.Action) error {
	f, err := os.OpenFile(pipePath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open control pipe %s: %w", pipePath, err)
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, a.String())
	return err
}

func sendSystemCommand(name string) error {
	sys, ok := map[string]control.SystemCommand{
		"poweroff": control.SystemPoweroff,
		"restart":  control.SystemRestart,
		"halt":     control.SystemHalt,
	}[name]
	if !ok {
		return fmt.Errorf("unknown system command %q", name)
	}
	return writeAction(builtin.DefaultCtlPipePath, control.Action{Verb: control.VerbSystem, System: sys})
}
