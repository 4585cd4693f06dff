// Package metrics instruments the write pipeline with Prometheus.
//
// A nil *Pipeline is valid and records nothing, so components take one
// unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Pipeline struct {
	diskWrites       prometheus.Counter
	diskBytes        prometheus.Counter
	diskQueueDepth   prometheus.Gauge
	blocks           *prometheus.CounterVec
	blockRawBytes    prometheus.Counter
	blockStoredBytes prometheus.Counter
	jobsRunning      prometheus.Gauge
	frames           prometheus.Counter
}

// NewPipeline registers the pipeline collectors on reg. A nil reg
// disables metrics.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		return nil
	}

	factory := promauto.With(reg)

	return &Pipeline{
		diskWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "geomcache_disk_writes_total",
			Help: "Buffers written by the disk goroutine",
		}),
		diskBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "geomcache_disk_bytes_total",
			Help: "Bytes written by the disk goroutine, overwrites included",
		}),
		diskQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "geomcache_disk_outstanding_writes",
			Help: "Writes queued or in progress on the disk goroutine",
		}),
		blocks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geomcache_blocks_total",
			Help: "Blocks forwarded to disk by compression mode",
		}, []string{"mode"}), // "compressed", "raw"
		blockRawBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "geomcache_block_raw_bytes_total",
			Help: "Uncompressed bytes cut into blocks",
		}),
		blockStoredBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "geomcache_block_stored_bytes_total",
			Help: "Bytes of blocks after compression and framing",
		}),
		jobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "geomcache_jobs_running",
			Help: "Blocks claimed but not yet forwarded to disk",
		}),
		frames: factory.NewCounter(prometheus.CounterOpts{
			Name: "geomcache_frames_total",
			Help: "Animation frames written",
		}),
	}
}

func (m *Pipeline) RecordDiskWrite(bytes int) {
	if m == nil {
		return
	}
	m.diskWrites.Inc()
	m.diskBytes.Add(float64(bytes))
}

func (m *Pipeline) SetDiskQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.diskQueueDepth.Set(float64(depth))
}

func (m *Pipeline) RecordBlock(compressed bool, raw, stored int) {
	if m == nil {
		return
	}

	mode := "raw"
	if compressed {
		mode = "compressed"
	}

	m.blocks.WithLabelValues(mode).Inc()
	m.blockRawBytes.Add(float64(raw))
	m.blockStoredBytes.Add(float64(stored))
}

func (m *Pipeline) SetJobsRunning(n int) {
	if m == nil {
		return
	}
	m.jobsRunning.Set(float64(n))
}

func (m *Pipeline) RecordFrame() {
	if m == nil {
		return
	}
	m.frames.Inc()
}
