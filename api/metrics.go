package api

import (
	"sort"
	"sync"
	"time"
)

// RouteMetrics aggregates metrics for a specific route
type RouteMetrics struct {
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"errorCount"`
	TotalTime   time.Duration `json:"totalTime"`
	AvgTime     time.Duration `json:"avgTime"`
	MinTime     time.Duration `json:"minTime"`
	MaxTime     time.Duration `json:"maxTime"`
	LastRequest time.Time     `json:"lastRequest"`
}

// MetricsSummary is the snapshot served to operators
type MetricsSummary struct {
	Since         time.Time      `json:"since"`
	TotalRequests int64          `json:"totalRequests"`
	TotalErrors   int64          `json:"totalErrors"`
	Routes        []RouteMetrics `json:"routes"`
}

// MetricsCollector collects and aggregates request metrics per route template
type MetricsCollector struct {
	mu            sync.Mutex
	since         time.Time
	routes        map[string]*RouteMetrics
	totalRequests int64
	totalErrors   int64
}

// NewMetricsCollector returns an empty collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{since: time.Now(), routes: make(map[string]*RouteMetrics)}
}

// Record adds one finished request. Status codes from 500 up count as errors.
func (mc *MetricsCollector) Record(method, path string, status int, d time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := method + " " + path
	rm := mc.routes[key]
	if rm == nil {
		rm = &RouteMetrics{Method: method, Path: path, MinTime: d}
		mc.routes[key] = rm
	}
	rm.Count++
	rm.TotalTime += d
	rm.AvgTime = rm.TotalTime / time.Duration(rm.Count)
	if d < rm.MinTime {
		rm.MinTime = d
	}
	if d > rm.MaxTime {
		rm.MaxTime = d
	}
	rm.LastRequest = time.Now()
	mc.totalRequests++
	if status >= 500 {
		rm.ErrorCount++
		mc.totalErrors++
	}
}

// Summary returns a copy of the current metrics, busiest routes first
func (mc *MetricsCollector) Summary() MetricsSummary {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	routes := make([]RouteMetrics, 0, len(mc.routes))
	for _, rm := range mc.routes {
		routes = append(routes, *rm)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Count != routes[j].Count {
			return routes[i].Count > routes[j].Count
		}
		return routes[i].Method+routes[i].Path < routes[j].Method+routes[j].Path
	})
	return MetricsSummary{Since: mc.since, TotalRequests: mc.totalRequests, TotalErrors: mc.totalErrors, Routes: routes}
}
