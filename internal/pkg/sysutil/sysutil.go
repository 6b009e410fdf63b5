// Package sysutil collects host and process runtime metrics for the admin
// system endpoint. Collection is best-effort: a failing probe leaves its
// fields zeroed instead of failing the whole snapshot.
package sysutil

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot describes the host and the running process at one point in time.
type Snapshot struct {
	Hostname          string  `json:"hostname"`
	Platform          string  `json:"platform"`
	OS                string  `json:"os"`
	UptimeSeconds     uint64  `json:"uptime_seconds"`
	CPUPercent        float64 `json:"cpu_percent"`
	CPUCount          int     `json:"cpu_count"`
	MemoryTotalMB     uint64  `json:"memory_total_mb"`
	MemoryUsedMB      uint64  `json:"memory_used_mb"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	Goroutines        int     `json:"goroutines"`
	GoVersion         string  `json:"go_version"`
	ProcessAllocMB    uint64  `json:"process_alloc_mb"`
	CollectedAt       string  `json:"collected_at"`
}

const bytesPerMB = 1024 * 1024

// Collect gathers a snapshot of host and process metrics.
func Collect(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		CPUCount:    runtime.NumCPU(),
		Goroutines:  runtime.NumGoroutine(),
		GoVersion:   runtime.Version(),
		CollectedAt: time.Now().UTC().Format(time.RFC3339),
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	snap.ProcessAllocMB = memStats.Alloc / bytesPerMB

	if info, err := host.InfoWithContext(ctx); err == nil {
		snap.Hostname = info.Hostname
		snap.Platform = info.Platform
		snap.OS = info.OS
		snap.UptimeSeconds = info.Uptime
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryTotalMB = vm.Total / bytesPerMB
		snap.MemoryUsedMB = vm.Used / bytesPerMB
		snap.MemoryUsedPercent = vm.UsedPercent
	}

	// Interval 0 reports usage since the previous call rather than blocking.
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}

	return snap
}
