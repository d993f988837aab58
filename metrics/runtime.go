package metrics

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// RuntimeStats holds memory and goroutine statistics
type RuntimeStats struct {
	Goroutines   int     `json:"goroutines"`
	AllocMB      float64 `json:"alloc_mb"`       // currently allocated heap
	TotalAllocMB float64 `json:"total_alloc_mb"` // cumulative allocated (includes freed)
	SysMB        float64 `json:"sys_mb"`         // total memory from OS
	HeapObjects  uint64  `json:"heap_objects"`
	NumGC        uint32  `json:"num_gc"`
}

// ReadRuntimeStats collects current runtime statistics
func ReadRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeStats{
		Goroutines:   runtime.NumGoroutine(),
		AllocMB:      float64(m.Alloc) / 1024 / 1024,
		TotalAllocMB: float64(m.TotalAlloc) / 1024 / 1024,
		SysMB:        float64(m.Sys) / 1024 / 1024,
		HeapObjects:  m.HeapObjects,
		NumGC:        m.NumGC,
	}
}

// LogRuntime logs runtime statistics every interval until ctx is done.
func LogRuntime(ctx context.Context, logger *zap.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := ReadRuntimeStats()
			logger.Info("runtime",
				zap.Int("goroutines", s.Goroutines),
				zap.Float64("alloc_mb", s.AllocMB),
				zap.Float64("sys_mb", s.SysMB),
				zap.Uint64("heap_objects", s.HeapObjects),
				zap.Uint32("gc_cycles", s.NumGC))
		}
	}
}
