// Package telemetry samples per-task resource usage and a basic system
// snapshot, purely for observability: nothing in the supervisor reads this
// data back to make scheduling decisions, per spec's non-goal of resource-
// limit enforcement.
//
// Grounded in the teacher's ClusterManager.monitorLoop (a ticking goroutine
// walking live workers and logging/exposing their stats) and internal/sys,
// rebuilt against github.com/shirou/gopsutil/v3 instead of the teacher's
// battery/network/full-host inventory, which this supervisor has no use
// for.
package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/tinythings/alfad/internal/task"
)

// Sample is one task's resource usage at a point in time.
type Sample struct {
	Task       string
	PID        int32
	CPUPercent float64
	RSSBytes   uint64
}

// SystemSnapshot is a coarse host-level reading taken alongside a sampling
// pass, for context when comparing tasks against available headroom.
type SystemSnapshot struct {
	CPUPercent  float64
	MemUsed     uint64
	MemTotal    uint64
	MemPercent  float64
	SampledAt   time.Time
}

// Monitor periodically samples every task with a live PID.
type Monitor struct {
	log      zerolog.Logger
	tasks    *task.Map
	interval time.Duration
}

func NewMonitor(log zerolog.Logger, tasks *task.Map, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{log: log, tasks: tasks, interval: interval}
}

// Run samples on a ticker until ctx is canceled. It never returns an error:
// a single failed sample (process exited mid-read, gopsutil backend
// unavailable) is logged and skipped, not fatal to the loop.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleOnce(ctx)
		}
	}
}

func (m *Monitor) sampleOnce(ctx context.Context) {
	snap, err := m.systemSnapshot(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("system snapshot failed")
	} else {
		m.log.Debug().
			Float64("cpu_percent", snap.CPUPercent).
			Uint64("mem_used", snap.MemUsed).
			Uint64("mem_total", snap.MemTotal).
			Msg("system snapshot")
	}

	for _, c := range m.tasks.All() {
		pid := c.PID()
		if pid == 0 {
			continue
		}
		sample, err := sampleProcess(ctx, c.Config.Name, pid)
		if err != nil {
			m.log.Debug().Err(err).Str("task", c.Config.Name).Int("pid", pid).Msg("process sample failed")
			continue
		}
		m.log.Debug().
			Str("task", sample.Task).
			Float64("cpu_percent", sample.CPUPercent).
			Uint64("rss_bytes", sample.RSSBytes).
			Msg("task sample")
	}
}

func sampleProcess(ctx context.Context, name string, pid int) (Sample, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Sample{}, err
	}
	cpuPct, err := proc.CPUPercentWithContext(ctx)
	if err != nil {
		return Sample{}, err
	}
	meminfo, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return Sample{}, err
	}
	return Sample{Task: name, PID: int32(pid), CPUPercent: cpuPct, RSSBytes: meminfo.RSS}, nil
}

func (m *Monitor) systemSnapshot(ctx context.Context) (SystemSnapshot, error) {
	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return SystemSnapshot{}, err
	}
	var cpuPct float64
	if len(percentages) > 0 {
		cpuPct = percentages[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return SystemSnapshot{}, err
	}
	return SystemSnapshot{
		CPUPercent: cpuPct,
		MemUsed:    vm.Used,
		MemTotal:   vm.Total,
		MemPercent: vm.UsedPercent,
		SampledAt:  time.Now(),
	}, nil
}
