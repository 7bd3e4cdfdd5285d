// Package store provides an in-memory heartbeat metric store.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/reugn/go-heartbeat"
)

// Histogram range; metric values are 32-bit and zero is recorded in the
// lowest bucket.
const (
	minTrackable       = 1
	maxTrackable       = 1<<32 - 1
	significantFigures = 3
)

// Metric is a value set during a heartbeat window.
type Metric struct {
	Key   heartbeat.Key
	Value uint32
}

// Heartbeat is the set of metrics collected during one window.
type Heartbeat struct {
	Start   time.Time
	End     time.Time
	Metrics []Metric
}

// Get returns the value of the named metric in the heartbeat.
func (h Heartbeat) Get(name string) (uint32, bool) {
	for _, m := range h.Metrics {
		if m.Key.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// Summary describes the distribution of a metric across collected windows.
type Summary struct {
	Count int64
	Min   int64
	Max   int64
	Mean  float64
	P50   int64
	P95   int64
	P99   int64
}

// Store is a heartbeat.Sink that keeps the latest value per key for the
// current window. Collect closes the window, and the closed window values
// are recorded into a histogram per key.
//
// Store is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	now         func() time.Time
	windowStart time.Time
	order       []heartbeat.Key
	values      map[string]uint32
	histograms  map[string]*hdrhistogram.Histogram
}

var _ heartbeat.Sink = (*Store)(nil)

// New returns a new Store with an open window.
func New() *Store {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Store {
	return &Store{
		now:         now,
		windowStart: now(),
		values:      make(map[string]uint32),
		histograms:  make(map[string]*hdrhistogram.Histogram),
	}
}

// SetUnsigned sets the value of key for the current window, overwriting
// any previous value.
func (s *Store) SetUnsigned(key heartbeat.Key, value uint32) error {
	if key.Name == "" {
		return fmt.Errorf("empty metric key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key.Name]; !ok {
		s.order = append(s.order, key)
	}
	s.values[key.Name] = value
	return nil
}

// Current returns the value set for the named key in the open window.
func (s *Store) Current(name string) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[name]
	return value, ok
}

// Collect closes the current window and returns its metrics in first-write
// order. A new empty window is opened.
func (s *Store) Collect() Heartbeat {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.now()
	hb := Heartbeat{
		Start:   s.windowStart,
		End:     end,
		Metrics: make([]Metric, 0, len(s.order)),
	}
	for _, key := range s.order {
		value := s.values[key.Name]
		hb.Metrics = append(hb.Metrics, Metric{Key: key, Value: value})
		s.record(key.Name, value)
	}

	s.order = s.order[:0]
	clear(s.values)
	s.windowStart = end

	return hb
}

func (s *Store) record(name string, value uint32) {
	h, ok := s.histograms[name]
	if !ok {
		h = hdrhistogram.New(minTrackable, maxTrackable, significantFigures)
		s.histograms[name] = h
	}
	// the range covers every uint32, so recording cannot fail
	_ = h.RecordValue(int64(value))
}

// Summary returns the distribution of the named metric over all collected
// windows.
func (s *Store) Summary(name string) (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.histograms[name]
	if !ok || h.TotalCount() == 0 {
		return Summary{}, false
	}
	return Summary{
		Count: h.TotalCount(),
		Min:   h.Min(),
		Max:   h.Max(),
		Mean:  h.Mean(),
		P50:   h.ValueAtQuantile(50),
		P95:   h.ValueAtQuantile(95),
		P99:   h.ValueAtQuantile(99),
	}, true
}

// Keys returns the names of all metrics with a recorded history, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.histograms))
	for name := range s.histograms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
