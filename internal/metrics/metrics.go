// Package metrics exposes engine and bridge counters to Prometheus.
//
// Counters that already live on the realtime path (engine stats, ring
// overruns, queue drops) are read lazily through CounterFunc and GaugeFunc
// collectors, so scraping never touches the audio thread.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/algo-garden/dsp/engine"
	"github.com/cwbudde/algo-garden/dsp/eventqueue"
	"github.com/cwbudde/algo-garden/dsp/ringbuf"
)

const namespace = "garden"

// Collector owns a registry with the garden metrics.
type Collector struct {
	registry *prometheus.Registry

	tickDuration prometheus.Histogram
	edits        *prometheus.CounterVec
}

// New returns a collector with the edit and tick-duration metrics
// registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_batch_seconds",
			Help:      "Wall time of one batch of engine ticks.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_edits_total",
			Help:      "Graph edit operations by kind and outcome.",
		}, []string{"op", "result"}),
	}

	c.registry.MustRegister(c.tickDuration, c.edits)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveBatch records how long a batch of ticks took.
func (c *Collector) ObserveBatch(d time.Duration) {
	c.tickDuration.Observe(d.Seconds())
}

// Edit counts one graph edit. A nil err is recorded as ok.
func (c *Collector) Edit(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	c.edits.WithLabelValues(op, result).Inc()
}

// RegisterEngine exposes the counters returned by stats.
func (c *Collector) RegisterEngine(stats func() engine.Stats) {
	counter := func(name, help string, read func(engine.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(stats())) })
	}

	c.registry.MustRegister(
		counter("ticks_total", "Blocks processed.", func(s engine.Stats) uint64 { return s.Ticks }),
		counter("skipped_total", "Node invocations that skipped.", func(s engine.Stats) uint64 { return s.Skipped }),
		counter("failed_total", "Node invocations that failed.", func(s engine.Stats) uint64 { return s.Failed }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "position_samples",
			Help:      "Transport position in samples.",
		}, func() float64 { return float64(stats().PositionSamples) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "nodes",
			Help:      "Nodes in the current processing plan.",
		}, func() float64 { return float64(stats().Nodes) }),
	)
}

// RegisterRing exposes the drop counters and fill level of a device ring.
// Registering the same device twice returns the registry error.
func (c *Collector) RegisterRing(device string, ring func() *ringbuf.RingBuffer) error {
	labels := prometheus.Labels{"device": device}

	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "ring",
			Name:        "overrun_samples_total",
			Help:        "Samples dropped because the ring was full.",
			ConstLabels: labels,
		}, func() float64 { return float64(ring().Overruns()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "ring",
			Name:        "underrun_samples_total",
			Help:        "Samples zero-filled because the ring was empty.",
			ConstLabels: labels,
		}, func() float64 { return float64(ring().Underruns()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "ring",
			Name:        "discarded_samples_total",
			Help:        "Samples dropped by a transport reset.",
			ConstLabels: labels,
		}, func() float64 { return float64(ring().Discarded()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "ring",
			Name:        "fill_samples",
			Help:        "Samples currently buffered.",
			ConstLabels: labels,
		}, func() float64 { return float64(ring().Available()) }),
	}

	return c.registerAll(collectors)
}

// RegisterQueue exposes the drop counter of a MIDI device queue.
func (c *Collector) RegisterQueue(device string, queue func() *eventqueue.Queue) error {
	return c.registerAll([]prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "midi",
			Name:        "dropped_events_total",
			Help:        "MIDI events dropped on contention or a full queue.",
			ConstLabels: prometheus.Labels{"device": device},
		}, func() float64 { return float64(queue().Dropped()) }),
	})
}

func (c *Collector) registerAll(collectors []prometheus.Collector) error {
	for i, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			for _, done := range collectors[:i] {
				c.registry.Unregister(done)
			}

			return err
		}
	}

	return nil
}
