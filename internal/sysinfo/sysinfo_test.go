package sysinfo

import (
	"io"
	"log/slog"
	"testing"
)

func TestCollect(t *testing.T) {
	stats := Collect(slog.New(slog.NewTextHandler(io.Discard, nil)))

	if stats.CPULoad < 0 || stats.CPULoad > 100 {
		t.Errorf("cpu out of range: %v", stats.CPULoad)
	}
	if stats.RamTotalMB > 0 && stats.RamUsedMB > stats.RamTotalMB {
		t.Errorf("used RAM %v exceeds total %v", stats.RamUsedMB, stats.RamTotalMB)
	}
	if stats.DiskTotalGB > 0 && stats.DiskUsedGB > stats.DiskTotalGB {
		t.Errorf("used disk %v exceeds total %v", stats.DiskUsedGB, stats.DiskTotalGB)
	}
}

func TestIsStackProcess(t *testing.T) {
	tests := map[string]bool{
		"weather-api": true,
		"mosquitto":   true,
		"postgres: x": true,
		"bash":        false,
	}
	for name, want := range tests {
		if got := isStackProcess(name); got != want {
			t.Errorf("isStackProcess(%q): expected %v, got %v", name, want, got)
		}
	}
}
