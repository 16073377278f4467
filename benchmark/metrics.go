// Package benchmark - Throughput benchmarks of the search loop across block
// sizes, hash algorithms, perturbation modes and evaluation backends.
package benchmark

import "time"

// PerformanceMetrics captures detailed performance data
type PerformanceMetrics struct {
	Scenario            Scenario      `json:"scenario"`
	Timestamp           time.Time     `json:"timestamp"`
	SetupDuration       time.Duration `json:"setup_duration"`
	TotalDuration       time.Duration `json:"total_duration"`
	Iterations          uint64        `json:"iterations"`
	IterationsPerSecond float64       `json:"iterations_per_second"`
	BlocksPerSecond     float64       `json:"blocks_per_second"`
	InitialDistance     uint64        `json:"initial_distance"`
	FinalDistance       uint64        `json:"final_distance"`
	Accepted            uint64        `json:"accepted"`
	MemoryStats         MemoryMetrics `json:"memory_stats"`
	CPUStats            CPUMetrics    `json:"cpu_stats"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// CPUMetrics captures CPU usage statistics
type CPUMetrics struct {
	NumCPU     int `json:"num_cpu"`
	GOMAXPROCS int `json:"gomaxprocs"`
}
