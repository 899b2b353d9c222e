// Package profiler reports frame rate, memory use and per-pass GPU/CPU timings through the engine logger.
package profiler

import (
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
)

// Profiler accumulates frame statistics and logs a summary once per interval.
type Profiler struct {
	log            *zap.Logger
	now            func() time.Time
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	passTotals map[string]time.Duration
	passOrder  []string
	frameTotal time.Duration
}

// Report is one logged summary.
type Report struct {
	FPS        float64
	HeapMB     float64
	AllocRate  float64
	GCCount    uint32
	MaxPauseUs uint64
	// PassAverages holds the mean duration of every pass that ran in the interval, in execution order.
	PassAverages []graph.PassTiming
	FrameAverage time.Duration
}

// NewProfiler creates a Profiler that reports once per interval. Non-positive intervals mean one second.
//
// Parameters:
//   - interval: time between reports
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		log:            logger.Named("profiler"),
		now:            time.Now,
		lastTime:       time.Now(),
		updateInterval: interval,
		passTotals:     make(map[string]time.Duration),
	}
}

// Tick records one presented frame. When the interval has elapsed it logs and returns a Report.
//
// Parameters:
//   - stats: the statistics of the frame just rendered
//
// Returns:
//   - *Report: the summary, or nil if the interval has not elapsed
func (p *Profiler) Tick(stats graph.FrameStats) *Report {
	p.frameCount++
	p.frameTotal += stats.Total
	for _, pt := range stats.Passes {
		if pt.Skipped {
			continue
		}
		if _, ok := p.passTotals[pt.Name]; !ok {
			p.passOrder = append(p.passOrder, pt.Name)
		}
		p.passTotals[pt.Name] += pt.Duration
	}

	now := p.now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return nil
	}

	runtime.ReadMemStats(&p.memStats)
	rep := &Report{
		FPS:          float64(p.frameCount) / elapsed.Seconds(),
		HeapMB:       float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRate:    float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:      p.memStats.NumGC,
		FrameAverage: p.frameTotal / time.Duration(p.frameCount),
	}

	// PauseNs is a ring of the last 256 pauses.
	start := p.lastGCCount
	if rep.GCCount-start > 256 {
		start = rep.GCCount - 256
	}
	for i := start; i < rep.GCCount; i++ {
		rep.MaxPauseUs = max(rep.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
	}

	fields := []zap.Field{
		zap.Float64("fps", rep.FPS),
		zap.Duration("frame", rep.FrameAverage),
		zap.Float64("heap_mb", rep.HeapMB),
		zap.Float64("alloc_mb_s", rep.AllocRate),
		zap.Uint32("gc", rep.GCCount),
		zap.Uint64("gc_max_pause_us", rep.MaxPauseUs),
	}
	for _, name := range p.passOrder {
		avg := p.passTotals[name] / time.Duration(p.frameCount)
		rep.PassAverages = append(rep.PassAverages, graph.PassTiming{Name: name, Duration: avg})
		fields = append(fields, zap.Duration(name, avg))
	}
	p.log.Info("frame stats", fields...)

	p.frameCount = 0
	p.frameTotal = 0
	p.lastTime = now
	p.lastGCCount = rep.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.passOrder = p.passOrder[:0]
	clear(p.passTotals)
	return rep
}
