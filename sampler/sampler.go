// Package sampler converts the wrapping idle and total runtime counters of a
// real-time scheduler into a CPU usage heartbeat metric.
package sampler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/reugn/go-heartbeat"
)

// CounterSource provides the cumulative scheduler runtime counters. Both
// counters wrap modulo 2^32.
//
// The sampler always calls IdleRunTime before TotalRunTime within a single
// sample, so an implementation may take its snapshot in IdleRunTime and
// serve TotalRunTime from it.
type CounterSource interface {
	// IdleRunTime returns the ticks spent in the idle task.
	IdleRunTime() (uint32, error)
	// TotalRunTime returns the total ticks of scheduler run time.
	TotalRunTime() (uint32, error)
}

// Counters is a single reading of the idle and total runtime counters.
type Counters struct {
	Idle  uint32
	Total uint32
}

// RuntimeSampler computes the CPU usage between consecutive readings of a
// CounterSource and writes it to a heartbeat.Sink.
//
// A RuntimeSampler is meant to be built once at startup and driven by a
// single periodic caller. It is not safe for concurrent use.
type RuntimeSampler struct {
	source CounterSource
	sink   heartbeat.Sink
	opts   options

	prev        Counters
	prevIdle1   uint32
	initialized bool
}

// New returns a RuntimeSampler reading from source and writing to sink.
// The initial state is the zero reading; call Prime to establish a real
// baseline before the first Sample.
func New(source CounterSource, sink heartbeat.Sink, opts ...Option) *RuntimeSampler {
	if source == nil {
		panic("sampler: nil CounterSource")
	}
	if sink == nil {
		panic("sampler: nil Sink")
	}

	sampleOpts := makeDefaultOptions()
	for _, opt := range opts {
		opt(&sampleOpts)
	}

	return &RuntimeSampler{
		source: source,
		sink:   sink,
		opts:   sampleOpts,
	}
}

// reading holds everything read from the external sources in one call.
type reading struct {
	counters Counters
	idle1    uint32
}

// read reads the counters in idle-then-total order. On error nothing is
// returned and the caller must leave its state untouched.
func (s *RuntimeSampler) read() (reading, error) {
	var r reading
	var err error

	if r.counters.Idle, err = s.source.IdleRunTime(); err != nil {
		return reading{}, fmt.Errorf("failed to read idle run time: %w", err)
	}
	if r.counters.Total, err = s.source.TotalRunTime(); err != nil {
		return reading{}, fmt.Errorf("failed to read total run time: %w", err)
	}
	if s.opts.core1Idle != nil {
		if r.idle1, err = s.opts.core1Idle(); err != nil {
			return reading{}, fmt.Errorf("failed to read core 1 idle run time: %w", err)
		}
	}

	return r, nil
}

// store makes r the state for the next interval.
func (s *RuntimeSampler) store(r reading) {
	s.prev = r.counters
	s.prevIdle1 = r.idle1
	s.initialized = true
}

// Prime reads the counters and stores them as the baseline without
// writing any metric or invoking the thread metrics delegate.
func (s *RuntimeSampler) Prime() error {
	r, err := s.read()
	if err != nil {
		return err
	}
	s.store(r)
	return nil
}

// Sample reads the counters, writes the CPU usage of the interval since the
// previous reading and the stack free bytes to the sink, stores the new
// reading and invokes the thread metrics delegate.
//
// If a counter cannot be read the error is returned and the call has no
// other effect. Sink and stack source failures do not stop the sample; they
// are joined into the returned error.
func (s *RuntimeSampler) Sample() error {
	r, err := s.read()
	if err != nil {
		return err
	}

	var errs []error

	stackFree, err := s.readStackFreeBytes()
	if err != nil {
		errs = append(errs, err)
	}

	totalDelta := Delta(s.prev.Total, r.counters.Total)
	if err := s.writeUsage(heartbeat.CPUUsagePct,
		Delta(s.prev.Idle, r.counters.Idle), totalDelta); err != nil {
		errs = append(errs, err)
	}
	if s.opts.core1Idle != nil {
		if err := s.writeUsage(heartbeat.CPU1UsagePct,
			Delta(s.prevIdle1, r.idle1), totalDelta); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.set(heartbeat.TimerTaskStackFreeBytes, stackFree); err != nil {
		errs = append(errs, err)
	}

	s.store(r)
	s.opts.threadMetrics()

	return errors.Join(errs...)
}

// writeUsage writes the usage of one idle counter against the total delta,
// applying the zero delta policy.
func (s *RuntimeSampler) writeUsage(key heartbeat.Key, idleDelta, totalDelta uint32) error {
	usage, ok := UsagePercent(idleDelta, totalDelta)
	if !ok {
		s.opts.logger.Debug("Total run time did not advance",
			slog.String("key", key.Name),
			slog.String("policy", s.opts.zeroDelta.String()))
		if s.opts.zeroDelta == ZeroDeltaSkip {
			return nil
		}
	}
	return s.set(key, usage)
}

func (s *RuntimeSampler) set(key heartbeat.Key, value uint32) error {
	if err := s.sink.SetUnsigned(key, value); err != nil {
		s.opts.logger.Warn("Failed to set heartbeat metric",
			slog.String("key", key.Name), slog.Any("error", err))
		return fmt.Errorf("failed to set %s: %w", key.Name, err)
	}
	return nil
}

func (s *RuntimeSampler) readStackFreeBytes() (uint32, error) {
	if s.opts.stackFreeBytes == nil {
		return 0, nil
	}
	value, err := s.opts.stackFreeBytes()
	if err != nil {
		return 0, fmt.Errorf("failed to read stack free bytes: %w", err)
	}
	return value, nil
}

// State returns the reading the next interval will be measured from.
func (s *RuntimeSampler) State() Counters {
	return s.prev
}

// IsInitialized returns true if at least one reading has been stored.
func (s *RuntimeSampler) IsInitialized() bool {
	return s.initialized
}

// Reset clears the sampler state. The next interval is measured from the
// zero reading.
func (s *RuntimeSampler) Reset() {
	s.prev = Counters{}
	s.prevIdle1 = 0
	s.initialized = false
}
