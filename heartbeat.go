package heartbeat

import (
	"errors"
	"fmt"
)

// Key identifies a heartbeat metric.
type Key struct {
	// Name is the metric name reported to the backend.
	Name string
	// Scale is the factor the stored integer has been multiplied by.
	// A scale of 100 means a stored 5000 represents 50.00.
	Scale uint32
}

// String returns the metric name.
func (k Key) String() string {
	return k.Name
}

// Scaled returns the value divided by the key scale.
func (k Key) Scaled(value uint32) float64 {
	if k.Scale <= 1 {
		return float64(value)
	}
	return float64(value) / float64(k.Scale)
}

// Built-in keys written by the runtime sampler.
var (
	CPUUsagePct             = Key{Name: "cpu_usage_pct", Scale: 100}
	CPU1UsagePct            = Key{Name: "cpu1_usage_pct", Scale: 100}
	TimerTaskStackFreeBytes = Key{Name: "timer_task_stack_free_bytes", Scale: 1}
	GoroutineCount          = Key{Name: "goroutine_count", Scale: 1}
)

// Sink is a heartbeat metric store. A write overwrites any value previously
// set for the same key within the current heartbeat window.
type Sink interface {
	SetUnsigned(key Key, value uint32) error
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc func(key Key, value uint32) error

// SetUnsigned calls f(key, value).
func (f SinkFunc) SetUnsigned(key Key, value uint32) error {
	return f(key, value)
}

// Tee returns a Sink that writes every metric to each of the given sinks in
// order. All sinks are written even if some of them fail; the failures are
// joined into the returned error.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) SetUnsigned(key Key, value uint32) error {
	var errs []error
	for i, sink := range t {
		if err := sink.SetUnsigned(key, value); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
