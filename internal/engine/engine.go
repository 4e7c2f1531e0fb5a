// Package engine drives frames from a source through the frame pool, the
// decoder and the handler pipeline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"firestige.xyz/netcodec/internal/core"
	"firestige.xyz/netcodec/internal/log"
	"firestige.xyz/netcodec/internal/metrics"
	"firestige.xyz/netcodec/pkg/buffer"
	"firestige.xyz/netcodec/pkg/handler"
	"firestige.xyz/netcodec/pkg/packet"
)

// Source yields captured frames. ReadFrame returns io.EOF once exhausted.
// The returned frame data may be reused by the next call.
type Source interface {
	ReadFrame() (core.Frame, error)
	LinkType() uint32
	Close() error
}

// Options tune the loop.
type Options struct {
	// Workers bounds concurrent frame processing. Zero means GOMAXPROCS.
	Workers int
	// LinkType overrides the source's link type when non-negative.
	LinkType int
}

// Stats is a snapshot of the engine counters.
type Stats struct {
	Frames        uint64
	Bytes         uint64
	Dropped       uint64
	Truncated     uint64
	DecodeErrors  uint64
	HandlerErrors uint64
}

type Engine struct {
	opts     Options
	pool     *buffer.Pool
	decoder  *packet.Decoder
	pipeline *handler.Pipeline
	logger   log.Logger
	running  atomic.Bool

	frames        atomic.Uint64
	bytes         atomic.Uint64
	dropped       atomic.Uint64
	truncated     atomic.Uint64
	decodeErrors  atomic.Uint64
	handlerErrors atomic.Uint64
}

// New returns an engine. A nil decoder means packet.Default.
func New(opts Options, p *buffer.Pool, d *packet.Decoder, pl *handler.Pipeline) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if d == nil {
		d = packet.Default
	}
	return &Engine{
		opts:     opts,
		pool:     p,
		decoder:  d,
		pipeline: pl,
		logger:   log.GetLogger().WithField("component", "engine"),
	}
}

// Run reads src until it is exhausted or ctx is done, then waits for the
// frames in flight. It does not close src. End of input is not an error.
// An engine runs one source at a time.
func (e *Engine) Run(ctx context.Context, src Source) error {
	if !e.running.CompareAndSwap(false, true) {
		return core.ErrEngineRunning
	}
	defer e.running.Store(false)

	linkType := src.LinkType()
	if e.opts.LinkType >= 0 {
		linkType = uint32(e.opts.LinkType)
	}
	e.logger.WithFields(map[string]interface{}{
		"workers":   e.opts.Workers,
		"link_type": linkType,
	}).Info("engine started")

	workers := pool.New().WithMaxGoroutines(e.opts.Workers).WithContext(ctx)

	var err error
	for {
		if err = ctx.Err(); err != nil {
			break
		}
		var f core.Frame
		if f, err = src.ReadFrame(); err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			break
		}
		buf, ok := e.ingest(f)
		if !ok {
			continue
		}
		workers.Go(func(context.Context) error {
			e.process(linkType, buf)
			return nil
		})
	}
	err = multierr.Append(err, workers.Wait())

	s := e.Stats()
	e.logger.WithFields(map[string]interface{}{
		"frames":         s.Frames,
		"dropped":        s.Dropped,
		"truncated":      s.Truncated,
		"decode_errors":  s.DecodeErrors,
		"handler_errors": s.HandlerErrors,
	}).Info("engine stopped")
	return err
}

// ingest copies the frame into a pool block. The capture buffer belongs to
// the source and is overwritten by the next read.
func (e *Engine) ingest(f core.Frame) (*buffer.Buffer, bool) {
	e.frames.Inc()
	e.bytes.Add(uint64(len(f.Data)))
	metrics.FramesTotal.Inc()
	metrics.BytesTotal.Add(float64(len(f.Data)))

	data := f.Data
	if limit := e.pool.BlockCapacity(); len(data) > limit {
		data = data[:limit]
		e.truncated.Inc()
		metrics.FramesTruncatedTotal.Inc()
		e.logger.WithField("length", len(f.Data)).Debug("frame truncated to block capacity")
	}

	buf, err := e.pool.Acquire(len(data), e.pool.BlockCapacity(), 0, 0)
	if err != nil {
		reason := metrics.DropAllocate
		if errors.Is(err, buffer.ErrPoolExhausted) {
			reason = metrics.DropPoolExhausted
		}
		e.drop(reason, err)
		return nil, false
	}
	if err := buf.WriteBytes(data); err != nil {
		_, _ = buf.Release()
		e.drop(metrics.DropAllocate, err)
		return nil, false
	}
	return buf, true
}

func (e *Engine) drop(reason string, err error) {
	e.dropped.Inc()
	metrics.FramesDroppedTotal.WithLabelValues(reason).Inc()
	e.logger.WithError(fmt.Errorf("%w: %s: %w", core.ErrFrameDropped, reason, err)).Debug("frame dropped")
}

// process decodes one frame, fires the pipeline and returns the block.
func (e *Engine) process(linkType uint32, buf *buffer.Buffer) {
	start := time.Now()
	defer func() {
		if _, err := buf.Release(); err != nil {
			e.logger.WithError(err).Error("frame release failed")
		}
		metrics.FrameProcessSeconds.Observe(time.Since(start).Seconds())
	}()

	root, err := e.decoder.Decode(linkType, buf)
	if err != nil {
		e.countDecodeError(packet.LayerLink)
		e.logger.WithError(err).Debug("frame not decodable")
		return
	}
	if e.pipeline == nil {
		return
	}
	e.classify(root, e.pipeline.Start(root))
}

// classify splits the combined pipeline error into the decode failure and
// the handler failures.
func (e *Engine) classify(root packet.Packet, err error) {
	for _, err := range multierr.Errors(err) {
		var herr *handler.Error
		if errors.As(err, &herr) {
			e.handlerErrors.Inc()
			metrics.HandlerErrorsTotal.WithLabelValues(herr.Handler).Inc()
			continue
		}
		e.countDecodeError(failedLayer(root))
	}
}

// failedLayer names the layer below the last header that decoded. The
// chain is cached by the headers, so walking it again is cheap.
func failedLayer(root packet.Packet) packet.Layer {
	chain, _ := packet.Chain(root)
	last := chain[len(chain)-1]
	if l, _, ok := last.NextLayer(); ok {
		return l
	}
	return last.Layer()
}

func (e *Engine) countDecodeError(l packet.Layer) {
	e.decodeErrors.Inc()
	metrics.DecodeErrorsTotal.WithLabelValues(l.String()).Inc()
}

func (e *Engine) Stats() Stats {
	return Stats{
		Frames:        e.frames.Load(),
		Bytes:         e.bytes.Load(),
		Dropped:       e.dropped.Load(),
		Truncated:     e.truncated.Load(),
		DecodeErrors:  e.decodeErrors.Load(),
		HandlerErrors: e.handlerErrors.Load(),
	}
}
