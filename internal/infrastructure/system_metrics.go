package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemMetrics records Go runtime gauges so the Prometheus endpoint
// exposes process health next to the business metrics.
type SystemMetrics struct {
	goRoutines      metric.Int64Gauge
	memoryUsage     metric.Int64Gauge
	memoryAllocated metric.Int64Gauge
	memorySystem    metric.Int64Gauge
	gcPause         metric.Float64Histogram
	cpuCount        metric.Int64Gauge
	processUptime   metric.Float64Gauge
}

// NewSystemMetrics creates the runtime instrument set on the meter.
func NewSystemMetrics(meter metric.Meter) (*SystemMetrics, error) {
	sm := &SystemMetrics{}

	var err error
	gauge := func(name, desc string, opts ...metric.Int64GaugeOption) metric.Int64Gauge {
		if err != nil {
			return nil
		}
		var g metric.Int64Gauge
		g, err = meter.Int64Gauge(name, append(opts, metric.WithDescription(desc))...)
		return g
	}

	sm.goRoutines = gauge("system_goroutines", "Number of active goroutines")
	sm.memoryUsage = gauge("system_memory_usage_bytes", "Memory usage in bytes", metric.WithUnit("By"))
	sm.memoryAllocated = gauge("system_memory_allocated_bytes", "Memory allocated by Go runtime in bytes", metric.WithUnit("By"))
	sm.memorySystem = gauge("system_memory_system_bytes", "Memory obtained from the OS in bytes", metric.WithUnit("By"))
	sm.cpuCount = gauge("system_cpu_count", "Number of logical CPUs")
	if err != nil {
		return nil, err
	}

	sm.gcPause, err = meter.Float64Histogram(
		"system_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	sm.processUptime, err = meter.Float64Gauge(
		"system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// Collect reads the runtime state and records it on every instrument.
func (sm *SystemMetrics) Collect(ctx context.Context, startTime time.Time) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	sm.goRoutines.Record(ctx, int64(runtime.NumGoroutine()))
	sm.memoryUsage.Record(ctx, int64(memStats.Alloc))
	sm.memoryAllocated.Record(ctx, int64(memStats.TotalAlloc))
	sm.memorySystem.Record(ctx, int64(memStats.Sys))
	sm.cpuCount.Record(ctx, int64(runtime.NumCPU()))
	sm.processUptime.Record(ctx, time.Since(startTime).Seconds())

	// PauseNs is a circular buffer keyed by GC cycle
	if memStats.NumGC > 0 {
		lastPause := time.Duration(memStats.PauseNs[(memStats.NumGC+255)%256])
		if lastPause > 0 {
			sm.gcPause.Record(ctx, lastPause.Seconds())
		}
	}
}

// SystemMetricsCollector samples the runtime instruments on a fixed
// interval until stopped.
type SystemMetricsCollector struct {
	metrics   *SystemMetrics
	startTime time.Time
	interval  time.Duration
	stopCh    chan struct{}
}

// NewSystemMetricsCollector creates a collector sampling every interval.
func NewSystemMetricsCollector(meter metric.Meter, interval time.Duration) (*SystemMetricsCollector, error) {
	metrics, err := NewSystemMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}

	return &SystemMetricsCollector{
		metrics:   metrics,
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start samples immediately and then on every tick. Blocks until Stop
// is called or ctx ends; run it on its own goroutine.
func (smc *SystemMetricsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(smc.interval)
	defer ticker.Stop()

	smc.metrics.Collect(ctx, smc.startTime)

	for {
		select {
		case <-ticker.C:
			smc.metrics.Collect(ctx, smc.startTime)
		case <-smc.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the collection loop.
func (smc *SystemMetricsCollector) Stop() {
	close(smc.stopCh)
}
