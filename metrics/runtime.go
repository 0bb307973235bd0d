package metrics

import (
	"context"
	"log"
	"runtime"
	"time"
)

// RuntimeMetrics holds memory and goroutine statistics
type RuntimeMetrics struct {
	Goroutines   int     `json:"goroutines"`
	AllocMB      float64 `json:"alloc_mb"`       // currently allocated heap
	TotalAllocMB float64 `json:"total_alloc_mb"` // cumulative allocated (includes freed)
	SysMB        float64 `json:"sys_mb"`         // total memory from OS
	HeapAllocMB  float64 `json:"heap_alloc_mb"`
	HeapSysMB    float64 `json:"heap_sys_mb"`
	HeapObjects  uint64  `json:"heap_objects"`
	NumGC        uint32  `json:"num_gc"`
}

// Runtime collects current runtime statistics
func Runtime() RuntimeMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeMetrics{
		Goroutines:   runtime.NumGoroutine(),
		AllocMB:      float64(m.Alloc) / 1024 / 1024,
		TotalAllocMB: float64(m.TotalAlloc) / 1024 / 1024,
		SysMB:        float64(m.Sys) / 1024 / 1024,
		HeapAllocMB:  float64(m.HeapAlloc) / 1024 / 1024,
		HeapSysMB:    float64(m.HeapSys) / 1024 / 1024,
		HeapObjects:  m.HeapObjects,
		NumGC:        m.NumGC,
	}
}

// StartLogger logs runtime statistics every interval until ctx is done
func StartLogger(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m := Runtime()
				log.Printf("[metrics] goroutines=%d alloc=%.2fMB sys=%.2fMB heap_objects=%d gc_cycles=%d",
					m.Goroutines, m.AllocMB, m.SysMB, m.HeapObjects, m.NumGC)
			}
		}
	}()
}
