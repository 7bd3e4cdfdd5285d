package sysmonitor

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
)

// ticksPerSecond converts gopsutil seconds back to scheduler ticks. It
// matches USER_HZ on Linux.
const ticksPerSecond = 100

// readGopsutilCPUStat reads the CPU times through gopsutil.
func readGopsutilCPUStat() (CPUStat, error) {
	all, err := cpu.Times(false)
	if err != nil {
		return CPUStat{}, fmt.Errorf("failed to read CPU times: %w", err)
	}
	if len(all) == 0 {
		return CPUStat{}, fmt.Errorf("failed to read CPU times: %w", ErrUnsupportedPlatform)
	}

	perCPU, err := cpu.Times(true)
	if err != nil {
		return CPUStat{}, fmt.Errorf("failed to read per-CPU times: %w", err)
	}

	stat := CPUStat{
		All:    timesFromStat(all[0]),
		PerCPU: make([]CPUTimes, 0, len(perCPU)),
	}
	for _, t := range perCPU {
		stat.PerCPU = append(stat.PerCPU, timesFromStat(t))
	}
	return stat, nil
}

// timesFromStat converts a gopsutil TimesStat in seconds to ticks. Guest
// time is already accounted in user time and is not added again.
func timesFromStat(t cpu.TimesStat) CPUTimes {
	idle := t.Idle + t.Iowait
	total := t.User + t.Nice + t.System + t.Idle + t.Iowait +
		t.Irq + t.Softirq + t.Steal
	return CPUTimes{
		Idle:  secondsToTicks(idle),
		Total: secondsToTicks(total),
	}
}

func secondsToTicks(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(seconds*ticksPerSecond + 0.5)
}
