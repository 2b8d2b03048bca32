package gateway

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"trading-insights/internal/bus"
)

// SystemMetrics is the /api/metrics payload: process health plus engine
// and stream counters.
type SystemMetrics struct {
	CPULoad1      float64           `json:"cpu_load_1"`
	CPULoad5      float64           `json:"cpu_load_5"`
	CPULoad15     float64           `json:"cpu_load_15"`
	CPUCores      int               `json:"cpu_cores"`
	HeapAllocMB   float64           `json:"heap_alloc_mb"`
	SysMB         float64           `json:"sys_mb"`
	GCRuns        uint32            `json:"gc_runs"`
	Goroutines    int               `json:"goroutines"`
	UptimeSec     int64             `json:"uptime_sec"`
	WSClients     int               `json:"ws_clients"`
	StreamSeq     int64             `json:"stream_seq"`
	EventsDropped uint64            `json:"events_dropped"`
	InsightAge    LatencySummary    `json:"insight_age"`
	Channels      []bus.ChannelStat `json:"channels,omitempty"`
	TS            string            `json:"ts"`
}

// CollectMetrics gathers process resource usage.
func CollectMetrics(start time.Time) SystemMetrics {
	m := SystemMetrics{
		Goroutines: runtime.NumGoroutine(),
		UptimeSec:  int64(time.Since(start).Seconds()),
		TS:         time.Now().UTC().Format(time.RFC3339Nano),
		CPUCores:   runtime.NumCPU(),
	}
	m.CPULoad1, m.CPULoad5, m.CPULoad15 = readLoadAvg()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.HeapAllocMB = float64(ms.HeapAlloc) / 1024 / 1024
	m.SysMB = float64(ms.Sys) / 1024 / 1024
	m.GCRuns = ms.NumGC
	return m
}

// readLoadAvg reads /proc/loadavg. Zeros where unavailable (non-Linux).
func readLoadAvg() (l1, l5, l15 float64) {
	raw, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return
	}
	fields := strings.Fields(string(raw))
	if len(fields) < 3 {
		return
	}
	l1, _ = strconv.ParseFloat(fields[0], 64)
	l5, _ = strconv.ParseFloat(fields[1], 64)
	l15, _ = strconv.ParseFloat(fields[2], 64)
	return
}
