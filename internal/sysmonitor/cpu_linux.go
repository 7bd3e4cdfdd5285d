//go:build linux

package sysmonitor

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const procStatPath = "/proc/stat"

// newCPUStatReader reads /proc/stat and falls back to gopsutil if the file
// cannot be used.
func newCPUStatReader() CPUStatReader {
	fs := OSFileSystem{}
	return func() (CPUStat, error) {
		stat, err := readProcStatWithFS(fs)
		if err == nil {
			return stat, nil
		}

		fallback, fallbackErr := readGopsutilCPUStat()
		if fallbackErr != nil {
			return CPUStat{}, fmt.Errorf("failed to read CPU times from all sources: %w",
				errors.Join(err, fallbackErr))
		}
		return fallback, nil
	}
}

// readProcStatWithFS parses the cpu lines of /proc/stat. Values are in
// USER_HZ ticks.
func readProcStatWithFS(fs FileSystem) (CPUStat, error) {
	f, err := fs.Open(procStatPath)
	if err != nil {
		return CPUStat{}, err
	}
	defer f.Close()

	var stat CPUStat
	found := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "cpu") {
			continue
		}

		times, err := parseCPUFields(fields[1:])
		if err != nil {
			return CPUStat{}, fmt.Errorf("invalid %s line in %s: %w", fields[0], procStatPath, err)
		}

		if fields[0] == "cpu" {
			stat.All = times
			found = true
		} else {
			stat.PerCPU = append(stat.PerCPU, times)
		}
	}
	if err := scanner.Err(); err != nil {
		return CPUStat{}, fmt.Errorf("failed to read %s: %w", procStatPath, err)
	}
	if !found {
		return CPUStat{}, fmt.Errorf("aggregate cpu line not found in %s", procStatPath)
	}

	return stat, nil
}

// parseCPUFields parses user, nice, system, idle and the optional iowait,
// irq, softirq and steal columns. The guest columns are part of user time
// and are ignored.
func parseCPUFields(fields []string) (CPUTimes, error) {
	if len(fields) < 4 {
		return CPUTimes{}, fmt.Errorf("expected at least 4 fields, got %d", len(fields))
	}
	if len(fields) > 8 {
		fields = fields[:8]
	}

	var times CPUTimes
	for i, field := range fields {
		value, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return CPUTimes{}, fmt.Errorf("failed to parse field[%d] %q: %w", i, field, err)
		}
		// idle=field[3], iowait=field[4]
		if i == 3 || i == 4 {
			times.Idle += value
		}
		times.Total += value
	}

	return times, nil
}
