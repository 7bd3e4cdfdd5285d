package sampler

import (
	"fmt"
	"log/slog"
)

// ZeroDeltaPolicy controls what the sampler writes when no time elapsed
// on the total counter since the previous sample.
type ZeroDeltaPolicy int

const (
	// ZeroDeltaEmitZero writes a usage of 0, keeping one write per key on
	// every call.
	ZeroDeltaEmitZero ZeroDeltaPolicy = iota
	// ZeroDeltaSkip leaves the usage metrics unwritten for the call.
	ZeroDeltaSkip
)

// String returns the configuration name of the policy.
func (p ZeroDeltaPolicy) String() string {
	switch p {
	case ZeroDeltaEmitZero:
		return "emit-zero"
	case ZeroDeltaSkip:
		return "skip"
	default:
		return fmt.Sprintf("ZeroDeltaPolicy(%d)", int(p))
	}
}

// ParseZeroDeltaPolicy returns the policy with the given configuration name.
func ParseZeroDeltaPolicy(name string) (ZeroDeltaPolicy, error) {
	switch name {
	case "", "emit-zero":
		return ZeroDeltaEmitZero, nil
	case "skip":
		return ZeroDeltaSkip, nil
	default:
		return 0, fmt.Errorf("unknown zero delta policy: %q", name)
	}
}

// options represents configuration options for the runtime sampler.
type options struct {
	logger         *slog.Logger
	zeroDelta      ZeroDeltaPolicy
	stackFreeBytes func() (uint32, error)
	core1Idle      func() (uint32, error)
	threadMetrics  func()
}

// makeDefaultOptions returns an options with default values.
func makeDefaultOptions() options {
	return options{
		logger:        slog.Default(),
		zeroDelta:     ZeroDeltaEmitZero,
		threadMetrics: func() {},
	}
}

// Option is a functional option type used to configure a RuntimeSampler.
type Option func(*options)

// WithLogger configures the sampler with a custom logger.
// If not specified, the default slog.Default() will be used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithZeroDeltaPolicy sets the behavior for intervals in which the total
// counter did not advance. Defaults to ZeroDeltaEmitZero.
func WithZeroDeltaPolicy(policy ZeroDeltaPolicy) Option {
	return func(o *options) {
		o.zeroDelta = policy
	}
}

// WithStackFreeBytes sets the source of the stack free bytes metric.
// Without it the metric is reported as 0.
func WithStackFreeBytes(read func() (uint32, error)) Option {
	return func(o *options) {
		o.stackFreeBytes = read
	}
}

// WithCore1Idle enables the per-core split for dual-core targets. The
// function reads the idle counter of the second core, and its usage is
// reported under heartbeat.CPU1UsagePct against the shared total counter.
func WithCore1Idle(read func() (uint32, error)) Option {
	return func(o *options) {
		o.core1Idle = read
	}
}

// WithThreadMetrics sets the delegate invoked once at the end of every
// sample to update per-thread metrics.
func WithThreadMetrics(collect func()) Option {
	return func(o *options) {
		if collect != nil {
			o.threadMetrics = collect
		}
	}
}
