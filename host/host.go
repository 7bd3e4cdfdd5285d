// Package host provides runtime counter sources for the machine the process
// runs on, so the sampler can be exercised outside of an RTOS target.
package host

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"github.com/reugn/go-heartbeat"
	"github.com/reugn/go-heartbeat/internal/sysmonitor"
	"github.com/reugn/go-heartbeat/sampler"
)

// Counters exposes the host CPU time counters as 32-bit wrapping scheduler
// run time counters, in USER_HZ ticks summed over all CPUs.
//
// IdleRunTime takes a new snapshot of the counters; TotalRunTime and
// CoreIdle serve the values of that snapshot so a single sample describes
// one instant. Counters is not safe for concurrent use.
type Counters struct {
	read     sysmonitor.CPUStatReader
	snapshot sysmonitor.CPUStat
	pending  bool
}

var _ sampler.CounterSource = (*Counters)(nil)

// NewCounters returns Counters reading the host CPU times.
func NewCounters() *Counters {
	return newCounters(sysmonitor.NewCPUStatReader())
}

func newCounters(read sysmonitor.CPUStatReader) *Counters {
	return &Counters{read: read}
}

func (c *Counters) refresh() error {
	stat, err := c.read()
	if err != nil {
		return err
	}
	c.snapshot = stat
	c.pending = true
	return nil
}

// IdleRunTime returns the idle ticks of a new snapshot.
func (c *Counters) IdleRunTime() (uint32, error) {
	if err := c.refresh(); err != nil {
		return 0, err
	}
	return uint32(c.snapshot.All.Idle), nil
}

// TotalRunTime returns the total ticks of the snapshot taken by the
// preceding IdleRunTime call, or of a new snapshot if there is none.
func (c *Counters) TotalRunTime() (uint32, error) {
	if !c.pending {
		if err := c.refresh(); err != nil {
			return 0, err
		}
	}
	c.pending = false
	return uint32(c.snapshot.All.Total), nil
}

// CoreIdle returns a function reading the idle ticks of a single CPU from
// the latest snapshot, scaled to the aggregate counter so that it can be
// measured against TotalRunTime.
func (c *Counters) CoreIdle(core int) func() (uint32, error) {
	return func() (uint32, error) {
		cpus := len(c.snapshot.PerCPU)
		if core < 0 || core >= cpus {
			return 0, fmt.Errorf("CPU %d not found, %d available", core, cpus)
		}
		return uint32(c.snapshot.PerCPU[core].Idle * uint64(cpus)), nil
	}
}

// StackFreeBytes reports the stack memory the Go runtime has obtained from
// the system but is not using for goroutine stacks.
func StackFreeBytes() (uint32, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	if memStats.StackInuse >= memStats.StackSys {
		return 0, nil
	}
	free := memStats.StackSys - memStats.StackInuse
	if free > math.MaxUint32 {
		return math.MaxUint32, nil
	}
	return uint32(free), nil
}

// ThreadMetrics returns a thread metrics delegate recording the number of
// goroutines to the sink.
func ThreadMetrics(sink heartbeat.Sink, logger *slog.Logger) func() {
	if logger == nil {
		logger = slog.Default()
	}
	return func() {
		count := runtime.NumGoroutine()
		if err := sink.SetUnsigned(heartbeat.GoroutineCount, uint32(count)); err != nil {
			logger.Warn("Failed to record goroutine count", slog.Any("error", err))
		}
	}
}
