package server

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats 为 /admin/stats 提供进程级资源占用
type ProcessStats struct {
	start time.Time
	proc  *process.Process
}

func NewProcessStats() *ProcessStats {
	p, _ := process.NewProcess(int32(os.Getpid()))
	return &ProcessStats{start: time.Now(), proc: p}
}

// Snapshot 采集运行时长、协程数、堆内存，系统支持时附带 CPU 与 RSS
func (s *ProcessStats) Snapshot() map[string]any {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	out := map[string]any{
		"uptime_s":   int64(time.Since(s.start).Seconds()),
		"goroutines": runtime.NumGoroutine(),
		"heap_mb":    float64(ms.HeapAlloc) / 1024 / 1024,
	}
	if s.proc == nil {
		return out
	}
	if cpu, err := s.proc.CPUPercent(); err == nil {
		out["cpu_percent"] = cpu
	}
	if mem, err := s.proc.MemoryInfo(); err == nil {
		out["rss_mb"] = float64(mem.RSS) / 1024 / 1024
	}
	return out
}
