package sysmonitor

import (
	"errors"
	"io/fs"
	"os"
)

// ErrUnsupportedPlatform is returned when CPU times cannot be read on the
// current platform.
var ErrUnsupportedPlatform = errors.New("CPU time monitoring not supported on this platform")

// CPUTimes holds cumulative CPU time counters in clock ticks.
type CPUTimes struct {
	// Idle is the time spent idle, including time waiting for I/O.
	Idle uint64
	// Total is the sum of all accounted CPU time.
	Total uint64
}

// CPUStat is a snapshot of the aggregate and per-CPU time counters.
type CPUStat struct {
	All    CPUTimes
	PerCPU []CPUTimes
}

// CPUStatReader reads a CPUStat snapshot.
type CPUStatReader func() (CPUStat, error)

// NewCPUStatReader returns a reader for the host CPU time counters.
// Platform implementations:
//   - Linux: parses /proc/stat, falling back to gopsutil
//   - Other platforms: uses gopsutil
func NewCPUStatReader() CPUStatReader {
	return newCPUStatReader()
}

// FileSystem abstracts file system operations for testing.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	Open(name string) (fs.File, error)
}

// OSFileSystem implements FileSystem using the os package.
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (OSFileSystem) Open(name string) (fs.File, error) {
	return os.Open(name)
}
