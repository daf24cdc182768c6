// Package sysinfo sbírá diagnostiku hostitele pro /api/status
// a pro hlášení stavu stanice.
package sysinfo

import (
	"log/slog"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats je jeden snímek stavu hostitele.
type Stats struct {
	CPULoad float64 `json:"cpu_percent"`

	// RAM bez diskové cache (Total - Available), viz Collect.
	RamUsedMB  float64 `json:"ram_used_mb"`
	RamTotalMB float64 `json:"ram_total_mb"`

	// ProcessRamMB: RSS tohoto procesu.
	ProcessRamMB float64 `json:"process_ram_mb"`
	// StackRamMB: součet RSS procesů stanice (broker, DB, služby).
	StackRamMB float64 `json:"stack_ram_mb"`

	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskTotalGB float64 `json:"disk_total_gb"`
}

// stackProcesses: podle těchto jmen poznáme procesy stanice.
var stackProcesses = []string{
	"weather-api",
	"mqtt-bridge",
	"sensor-simulator",
	"mosquitto",
	"postgres",
	"valkey",
}

const mb = 1024.0 * 1024.0

// Collect nikdy neselže celá: chyba jedné části se zaloguje a pole zůstane nulové.
// CPU se počítá od předchozího volání (první volání může vrátit 0).
func Collect(logger *slog.Logger) Stats {
	var stats Stats

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		stats.CPULoad = percentages[0]
	} else {
		logger.Debug("Chyba při čtení CPU statistik", "error", err)
	}

	// Linux používá volnou RAM pro cache; "použitá" je tedy Total - Available.
	if vMem, err := mem.VirtualMemory(); err == nil {
		stats.RamUsedMB = float64(vMem.Total-vMem.Available) / mb
		stats.RamTotalMB = float64(vMem.Total) / mb
	} else {
		logger.Debug("Chyba při čtení RAM statistik", "error", err)
	}

	if self, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if memInfo, err := self.MemoryInfo(); err == nil {
			stats.ProcessRamMB = float64(memInfo.RSS) / mb
		}
	}
	stats.StackRamMB = float64(stackRSS()) / mb

	if dStat, err := disk.Usage("/"); err == nil {
		stats.DiskUsedGB = float64(dStat.Used) / mb / 1024.0
		stats.DiskTotalGB = float64(dStat.Total) / mb / 1024.0
	} else {
		logger.Debug("Chyba při čtení statistik disku", "error", err)
	}

	return stats
}

func stackRSS() uint64 {
	procs, err := process.Processes()
	if err != nil {
		return 0
	}

	var sum uint64
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			// Proces mezitím skončil.
			continue
		}
		if !isStackProcess(name) {
			continue
		}
		if memInfo, err := p.MemoryInfo(); err == nil {
			sum += memInfo.RSS
		}
	}
	return sum
}

func isStackProcess(name string) bool {
	for _, target := range stackProcesses {
		if strings.Contains(name, target) {
			return true
		}
	}
	return false
}
