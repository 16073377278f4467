// Package profiler - Periodic reports of runtime health and search progress.
package profiler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"
)

// MetricsCollector is polled on every sample tick for gauge-style metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// RuntimeProfiler samples memory statistics and registered collectors, tracks
// custom metrics and operation timings, and logs a report every ReportInterval.
// All methods are safe for concurrent use.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int
	log            *slog.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	memStats    runtime.MemStats
	lastGCCount uint32

	customMetrics  map[string]*MetricTracker
	collectors     []MetricsCollector
	operationTimes map[string]*TimeTracker
}

// MetricTracker keeps a sliding window of values for one metric.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
	last   float64
}

// TimeTracker keeps a sliding window of durations for one operation.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 2s)
	ReportInterval time.Duration
	// SampleInterval specifies how often to poll collectors (default: 100ms)
	SampleInterval time.Duration
	// MaxSamples specifies the sliding window length per metric (default: 600)
	MaxSamples int
	// Logger receives the reports (default: slog.Default())
	Logger *slog.Logger
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance, not yet started
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 2 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 100 * time.Millisecond
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		log:            opts.Logger,
		startTime:      time.Now(),
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start launches the sampling and reporting goroutines. They stop when ctx is
// done or Stop is called. Calling Start on a running profiler is a no-op.
func (rp *RuntimeProfiler) Start(ctx context.Context) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	ctx, rp.cancel = context.WithCancel(ctx)
	rp.running = true
	rp.startTime = time.Now()

	rp.wg.Add(2)
	go rp.every(ctx, rp.sampleInterval, rp.sample)
	go rp.every(ctx, rp.reportInterval, rp.emitStatusReport)
}

// Stop cancels the background goroutines, waits for them and emits a final report.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	cancel := rp.cancel
	rp.mu.Unlock()

	cancel()
	rp.wg.Wait()
	rp.sample()
	rp.emitStatusReport()
}

func (rp *RuntimeProfiler) every(ctx context.Context, interval time.Duration, fn func()) {
	defer rp.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// AddMetricsCollector registers a collector polled on every sample tick.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.record(name, value)
}

// record must be called with mu held.
func (rp *RuntimeProfiler) record(name string, value float64) {
	tracker, exists := rp.customMetrics[name]
	if !exists {
		tracker = &MetricTracker{
			values: make([]float64, 0, min(rp.maxSamples, 64)),
			min:    value,
			max:    value,
		}
		rp.customMetrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	tracker.sum += value
	if len(tracker.values) > rp.maxSamples {
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}
	tracker.count++
	tracker.last = value
	tracker.min = min(tracker.min, value)
	tracker.max = max(tracker.max, value)
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration records the completion time of an operation.
func (rp *RuntimeProfiler) RecordDuration(name string, duration time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{minTime: duration, maxTime: duration}
		rp.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	tracker.totalTime += duration
	if len(tracker.durations) > rp.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++
	tracker.minTime = min(tracker.minTime, duration)
	tracker.maxTime = max(tracker.maxTime, duration)
}

// sample reads memory statistics and polls the collectors.
func (rp *RuntimeProfiler) sample() {
	rp.mu.RLock()
	collectors := append([]MetricsCollector(nil), rp.collectors...)
	rp.mu.RUnlock()

	// Collectors take their own locks; call them without holding ours.
	collected := make([]map[string]float64, 0, len(collectors))
	for _, c := range collectors {
		collected = append(collected, c.CollectMetrics())
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)
	for _, metrics := range collected {
		for name, value := range metrics {
			rp.record(name, value)
		}
	}
}

// emitStatusReport logs one structured report line.
func (rp *RuntimeProfiler) emitStatusReport() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	attrs := []any{
		slog.Duration("uptime", time.Since(rp.startTime).Truncate(time.Millisecond)),
		slog.Int("goroutines", runtime.NumGoroutine()),
		slog.String("heap_alloc", formatBytes(rp.memStats.HeapAlloc)),
		slog.String("sys", formatBytes(rp.memStats.Sys)),
	}
	if rp.memStats.NumGC > rp.lastGCCount {
		attrs = append(attrs, slog.Uint64("gc_new", uint64(rp.memStats.NumGC-rp.lastGCCount)))
		rp.lastGCCount = rp.memStats.NumGC
	}

	metrics := make([]any, 0, len(rp.customMetrics))
	for _, name := range sortedKeys(rp.customMetrics) {
		tracker := rp.customMetrics[name]
		if len(tracker.values) == 0 {
			continue
		}
		metrics = append(metrics, slog.String(name, fmt.Sprintf("last=%.2f avg=%.2f min=%.2f max=%.2f",
			tracker.last, tracker.sum/float64(len(tracker.values)), tracker.min, tracker.max)))
	}
	if len(metrics) > 0 {
		attrs = append(attrs, slog.Group("metrics", metrics...))
	}

	ops := make([]any, 0, len(rp.operationTimes))
	for _, name := range sortedKeys(rp.operationTimes) {
		tracker := rp.operationTimes[name]
		if len(tracker.durations) == 0 {
			continue
		}
		avg := tracker.totalTime / time.Duration(len(tracker.durations))
		ops = append(ops, slog.String(name, fmt.Sprintf("avg=%v min=%v max=%v count=%d",
			avg, tracker.minTime, tracker.maxTime, tracker.count)))
	}
	if len(ops) > 0 {
		attrs = append(attrs, slog.Group("operations", ops...))
	}

	rp.log.Info("profiler report", attrs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// GetCurrentStats returns a snapshot of the tracked metrics and timings.
//
// Returns:
// - A map with "uptime", "goroutines", "custom_metrics" and "operations" entries
func (rp *RuntimeProfiler) GetCurrentStats() map[string]interface{} {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	stats := map[string]interface{}{
		"uptime":     time.Since(rp.startTime),
		"goroutines": runtime.NumGoroutine(),
	}

	customStats := make(map[string]interface{}, len(rp.customMetrics))
	for name, tracker := range rp.customMetrics {
		if len(tracker.values) > 0 {
			customStats[name] = map[string]interface{}{
				"last":    tracker.last,
				"avg":     tracker.sum / float64(len(tracker.values)),
				"min":     tracker.min,
				"max":     tracker.max,
				"samples": len(tracker.values),
				"count":   tracker.count,
			}
		}
	}
	stats["custom_metrics"] = customStats

	opStats := make(map[string]interface{}, len(rp.operationTimes))
	for name, tracker := range rp.operationTimes {
		if len(tracker.durations) > 0 {
			opStats[name] = map[string]interface{}{
				"avg":   tracker.totalTime / time.Duration(len(tracker.durations)),
				"min":   tracker.minTime,
				"max":   tracker.maxTime,
				"count": tracker.count,
			}
		}
	}
	stats["operations"] = opStats

	return stats
}
