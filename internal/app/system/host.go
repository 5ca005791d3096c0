package system

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStatus is a point-in-time snapshot of the machine running the service.
type HostStatus struct {
	Hostname      string  `json:"hostname,omitempty"`
	OS            string  `json:"os"`
	Platform      string  `json:"platform,omitempty"`
	UptimeSeconds uint64  `json:"uptime_seconds,omitempty"`
	CPUCount      int     `json:"cpu_count"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
}

// ReadHostStatus collects host metrics. Probes that fail on the current
// platform leave their fields zero.
func ReadHostStatus(ctx context.Context) HostStatus {
	status := HostStatus{
		OS:         runtime.GOOS,
		CPUCount:   runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		status.Hostname = info.Hostname
		status.Platform = info.Platform
		status.UptimeSeconds = info.Uptime
	}
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		status.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		status.MemoryTotal = vm.Total
		status.MemoryUsed = vm.Used
		status.MemoryPercent = vm.UsedPercent
	}
	return status
}
