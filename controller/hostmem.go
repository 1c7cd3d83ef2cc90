package controller

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// HostMemoryStats summarizes host memory pressure for the health endpoint
// and for the startup worker-count sanity check.
type HostMemoryStats struct {
	TotalGB     float64 `json:"total_gb"`
	UsedGB      float64 `json:"used_gb"`
	PercentUsed float64 `json:"percent_used"`
}

// ReadHostMemory reads current host memory usage. gopsutil's VirtualMemory
// is already cross-platform, so unlike a job-queue worker pool this needs
// no per-OS wrapper.
func ReadHostMemory() (HostMemoryStats, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return HostMemoryStats{}, err
	}

	totalGB := float64(v.Total) / 1024 / 1024 / 1024
	usedGB := float64(v.Used) / 1024 / 1024 / 1024

	return HostMemoryStats{
		TotalGB:     totalGB,
		UsedGB:      usedGB,
		PercentUsed: v.UsedPercent,
	}, nil
}

const (
	memoryPerWorkerGB = 0.05 // headroom per concurrent email/publish dispatch
	memoryBufferGB    = 0.25 // reserved for the rest of the process
	maxRecommended    = 64
)

// RecommendedWorkerCount estimates a sane upper bound on Config.Workers for
// the available host memory. Unlike an LLM inference worker, a single
// alarm-dispatch goroutine is cheap, so the recommendation tops out high.
func RecommendedWorkerCount(availableGB float64) int {
	if availableGB < memoryBufferGB {
		return 1
	}
	usable := availableGB - memoryBufferGB
	recommended := int(usable / memoryPerWorkerGB)
	if recommended < 1 {
		return 1
	}
	if recommended > maxRecommended {
		return maxRecommended
	}
	return recommended
}

// CheckWorkerMemoryPressure returns a warning string if cfg.Workers exceeds
// what the host's available memory can comfortably support, or "" if fine
// or if memory stats are unavailable.
func CheckWorkerMemoryPressure(workers int) string {
	v, err := mem.VirtualMemory()
	if err != nil {
		return ""
	}

	availableGB := float64(v.Available) / 1024 / 1024 / 1024
	totalGB := float64(v.Total) / 1024 / 1024 / 1024
	recommended := RecommendedWorkerCount(availableGB)

	if workers > recommended {
		return fmt.Sprintf(
			"worker count (%d) exceeds recommended (%d) for available memory (%.2f/%.2fGB)",
			workers, recommended, totalGB-availableGB, totalGB)
	}
	return ""
}
