package host

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/reugn/go-heartbeat"
	"github.com/reugn/go-heartbeat/internal/assert"
	"github.com/reugn/go-heartbeat/internal/sysmonitor"
	"github.com/reugn/go-heartbeat/sampler"
	"github.com/reugn/go-heartbeat/store"
)

// statSequence returns a reader serving the given snapshots in order.
func statSequence(stats ...sysmonitor.CPUStat) (sysmonitor.CPUStatReader, *int) {
	reads := 0
	return func() (sysmonitor.CPUStat, error) {
		if reads >= len(stats) {
			return sysmonitor.CPUStat{}, errors.New("no more snapshots")
		}
		stat := stats[reads]
		reads++
		return stat, nil
	}, &reads
}

func TestCounters_Snapshot(t *testing.T) {
	read, reads := statSequence(
		sysmonitor.CPUStat{All: sysmonitor.CPUTimes{Idle: 50, Total: 100}},
		sysmonitor.CPUStat{All: sysmonitor.CPUTimes{Idle: 80, Total: 300}},
	)
	counters := newCounters(read)

	idle, err := counters.IdleRunTime()
	assert.NoError(t, err)
	total, err := counters.TotalRunTime()
	assert.NoError(t, err)
	assert.Equal(t, uint32(50), idle)
	assert.Equal(t, uint32(100), total)
	assert.Equal(t, 1, *reads)

	// a total read without a preceding idle read takes a new snapshot
	total, err = counters.TotalRunTime()
	assert.NoError(t, err)
	assert.Equal(t, uint32(300), total)
	assert.Equal(t, 2, *reads)

	_, err = counters.IdleRunTime()
	assert.ErrorContains(t, err, "no more snapshots")
}

func TestCounters_Wrap(t *testing.T) {
	read, _ := statSequence(sysmonitor.CPUStat{
		All: sysmonitor.CPUTimes{Idle: 1<<32 + 5, Total: 1<<33 + 7},
	})
	counters := newCounters(read)

	idle, err := counters.IdleRunTime()
	assert.NoError(t, err)
	total, err := counters.TotalRunTime()
	assert.NoError(t, err)
	assert.Equal(t, uint32(5), idle)
	assert.Equal(t, uint32(7), total)
}

func TestCounters_CoreIdle(t *testing.T) {
	read, _ := statSequence(sysmonitor.CPUStat{
		All: sysmonitor.CPUTimes{Idle: 150, Total: 400},
		PerCPU: []sysmonitor.CPUTimes{
			{Idle: 100, Total: 200},
			{Idle: 50, Total: 200},
		},
	})
	counters := newCounters(read)
	_, err := counters.IdleRunTime()
	assert.NoError(t, err)

	idle1, err := counters.CoreIdle(1)()
	assert.NoError(t, err)
	assert.Equal(t, uint32(100), idle1)

	_, err = counters.CoreIdle(2)()
	assert.ErrorContains(t, err, "CPU 2 not found")
}

func TestSampler_HostCounters(t *testing.T) {
	read, _ := statSequence(
		sysmonitor.CPUStat{All: sysmonitor.CPUTimes{Idle: 1<<32 - 10, Total: 1<<32 - 20}},
		sysmonitor.CPUStat{All: sysmonitor.CPUTimes{Idle: 1<<32 + 15, Total: 1<<32 + 80}},
	)
	metrics := store.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := sampler.New(newCounters(read), metrics,
		sampler.WithLogger(logger),
		sampler.WithStackFreeBytes(StackFreeBytes),
		sampler.WithThreadMetrics(ThreadMetrics(metrics, logger)))

	assert.NoError(t, s.Prime())
	assert.NoError(t, s.Sample())

	hb := metrics.Collect()
	usage, ok := hb.Get(heartbeat.CPUUsagePct.Name)
	assert.Equal(t, true, ok)
	assert.Equal(t, uint32(7500), usage)

	_, ok = hb.Get(heartbeat.TimerTaskStackFreeBytes.Name)
	assert.Equal(t, true, ok)
	goroutines, ok := hb.Get(heartbeat.GoroutineCount.Name)
	assert.Equal(t, true, ok)
	if goroutines == 0 {
		t.Error("goroutine count should be positive")
	}
}

func TestSampler_LiveHostCounters(t *testing.T) {
	metrics := store.New()
	s := sampler.New(NewCounters(), metrics)
	if err := s.Prime(); err != nil {
		t.Skipf("host counters unavailable: %v", err)
	}

	assert.NoError(t, s.Sample())
	usage, ok := metrics.Current(heartbeat.CPUUsagePct.Name)
	assert.Equal(t, true, ok)
	if usage > sampler.PrecisionConstant {
		t.Errorf("usage %d exceeds %d", usage, sampler.PrecisionConstant)
	}
}
