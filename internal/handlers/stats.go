package handlers

import (
	"sync"

	"firestige.xyz/netcodec/internal/metrics"
	"firestige.xyz/netcodec/pkg/handler"
	"firestige.xyz/netcodec/pkg/packet"
)

const StatsName = "stats"

type statsOptions struct {
	// Export mirrors the counts to netcodec_decoded_headers_total.
	Export bool `mapstructure:"export"`
}

// Stats counts decoded headers per type.
type Stats struct {
	export bool

	mu     sync.Mutex
	counts map[packet.Type]uint64
}

func NewStats(export bool) *Stats {
	return &Stats{export: export, counts: make(map[packet.Type]uint64)}
}

func newStats(options map[string]interface{}) (handler.Handler, error) {
	opts := statsOptions{Export: true}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	return NewStats(opts.Export), nil
}

func (s *Stats) Type() packet.Type { return packet.TypeAny }

func (s *Stats) Handle(p packet.Packet) error {
	s.mu.Lock()
	s.counts[p.Type()]++
	s.mu.Unlock()
	if s.export {
		metrics.DecodedHeadersTotal.WithLabelValues(p.Type().String()).Inc()
	}
	return nil
}

// Counts returns a copy of the counters keyed by type name.
func (s *Stats) Counts() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint64, len(s.counts))
	for t, n := range s.counts {
		out[t.String()] = n
	}
	return out
}
