//go:build !linux

package sysmonitor

// newCPUStatReader uses gopsutil on platforms without /proc/stat.
func newCPUStatReader() CPUStatReader {
	return readGopsutilCPUStat
}
