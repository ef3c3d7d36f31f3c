// Package metrics provides Prometheus metrics for supervised pipelines.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pipemux",
		Subsystem: "pipeline",
		Name:      "running",
		Help:      "Whether the pipeline is currently running (1) or not (0)",
	}, []string{"pipeline"})

	pipelineLatencyMin = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pipemux",
		Subsystem: "pipeline",
		Name:      "latency_min_ms",
		Help:      "Negotiated minimum pipeline latency in milliseconds",
	}, []string{"pipeline"})

	pipelineLatencyMax = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pipemux",
		Subsystem: "pipeline",
		Name:      "latency_max_ms",
		Help:      "Negotiated maximum pipeline latency in milliseconds, -1 when unbounded",
	}, []string{"pipeline"})

	// Local cache for API access.
	pipelineCache   = make(map[string]*PipelineMetrics)
	pipelineCacheMu sync.RWMutex
)

// PipelineMetrics holds current metric values for a pipeline.
type PipelineMetrics struct {
	State        string
	LatencyMinMs float64
	LatencyMaxMs float64
}

// SetPipelineState records the lifecycle state of a pipeline.
func SetPipelineState(pipeline, state string) {
	running := 0.0
	if state == "running" {
		running = 1.0
	}
	pipelineRunning.WithLabelValues(pipeline).Set(running)
	updateCache(pipeline, func(m *PipelineMetrics) { m.State = state })
}

// SetPipelineLatency records the negotiated latency range of a pipeline.
func SetPipelineLatency(pipeline string, minMs, maxMs float64) {
	pipelineLatencyMin.WithLabelValues(pipeline).Set(minMs)
	pipelineLatencyMax.WithLabelValues(pipeline).Set(maxMs)
	updateCache(pipeline, func(m *PipelineMetrics) {
		m.LatencyMinMs = minMs
		m.LatencyMaxMs = maxMs
	})
}

// DeletePipelineMetrics removes all metrics for a pipeline.
func DeletePipelineMetrics(pipeline string) {
	pipelineRunning.DeleteLabelValues(pipeline)
	pipelineLatencyMin.DeleteLabelValues(pipeline)
	pipelineLatencyMax.DeleteLabelValues(pipeline)

	pipelineCacheMu.Lock()
	delete(pipelineCache, pipeline)
	pipelineCacheMu.Unlock()
}

// GetPipelineMetrics returns current metric values for a pipeline.
func GetPipelineMetrics(pipeline string) *PipelineMetrics {
	pipelineCacheMu.RLock()
	defer pipelineCacheMu.RUnlock()
	if m, ok := pipelineCache[pipeline]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllPipelineMetrics returns metrics for all known pipelines.
func GetAllPipelineMetrics() map[string]*PipelineMetrics {
	pipelineCacheMu.RLock()
	defer pipelineCacheMu.RUnlock()
	result := make(map[string]*PipelineMetrics, len(pipelineCache))
	for name, m := range pipelineCache {
		dup := *m
		result[name] = &dup
	}
	return result
}

func updateCache(pipeline string, update func(*PipelineMetrics)) {
	pipelineCacheMu.Lock()
	defer pipelineCacheMu.Unlock()
	m, ok := pipelineCache[pipeline]
	if !ok {
		m = &PipelineMetrics{}
		pipelineCache[pipeline] = m
	}
	update(m)
}
