// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/netcodec/pkg/buffer"
)

var (
	// FramesTotal counts frames read from the source.
	FramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netcodec_frames_total",
			Help: "Total number of frames read from the capture source",
		},
	)

	// BytesTotal counts captured bytes read from the source.
	BytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netcodec_bytes_total",
			Help: "Total number of captured bytes read",
		},
	)

	// FramesDroppedTotal counts frames dropped before decoding.
	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netcodec_frames_dropped_total",
			Help: "Total number of frames dropped before decoding",
		},
		[]string{"reason"},
	)

	// FramesTruncatedTotal counts frames cut to the pool block capacity.
	FramesTruncatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netcodec_frames_truncated_total",
			Help: "Total number of frames longer than a pool block",
		},
	)

	// DecodeErrorsTotal counts decode failures by the layer that failed.
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netcodec_decode_errors_total",
			Help: "Total number of header chains that ended in a decode error",
		},
		[]string{"layer"},
	)

	// HandlerErrorsTotal counts failed handler invocations.
	HandlerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netcodec_handler_errors_total",
			Help: "Total number of failed handler invocations",
		},
		[]string{"handler"},
	)

	// DecodedHeadersTotal counts decoded headers by type.
	DecodedHeadersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netcodec_decoded_headers_total",
			Help: "Total number of decoded headers",
		},
		[]string{"type"},
	)

	// FrameProcessSeconds measures decode plus handler time per frame.
	FrameProcessSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netcodec_frame_process_seconds",
			Help:    "Time spent decoding and handling one frame",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
	)
)

// Drop reasons.
const (
	DropPoolExhausted = "pool_exhausted"
	DropAllocate      = "allocate"
)

// RegisterPool exports the occupancy of p as gauges labelled pool=name.
func RegisterPool(reg prometheus.Registerer, name string, p *buffer.Pool) error {
	labels := prometheus.Labels{"pool": name}
	gauge := func(metric, help string, value func(buffer.PoolStats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(value(p.Stats())) })
	}
	counter := func(metric, help string, value func(buffer.PoolStats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(value(p.Stats())) })
	}

	collectors := []prometheus.Collector{
		gauge("netcodec_pool_blocks_constructed", "Blocks constructed by the pool",
			func(s buffer.PoolStats) int { return s.Constructed }),
		gauge("netcodec_pool_blocks_available", "Blocks waiting in the free list",
			func(s buffer.PoolStats) int { return s.Available }),
		gauge("netcodec_pool_blocks_in_use", "Blocks currently handed out",
			func(s buffer.PoolStats) int { return s.InUse }),
		counter("netcodec_pool_acquired_total", "Blocks handed out",
			func(s buffer.PoolStats) uint64 { return s.Acquired }),
		counter("netcodec_pool_released_total", "Blocks returned",
			func(s buffer.PoolStats) uint64 { return s.Released }),
		counter("netcodec_pool_exhausted_total", "Acquires refused at the pool ceiling",
			func(s buffer.PoolStats) uint64 { return s.Exhausted }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
