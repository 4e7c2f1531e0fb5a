package buffer

import (
	"fmt"

	"go.uber.org/atomic"
)

// Options configures a Pool.
type Options struct {
	// InitialSize blocks are constructed up front.
	InitialSize int `mapstructure:"initial_size"`
	// MaxSize bounds the number of blocks ever constructed.
	MaxSize int `mapstructure:"max_size"`
	// BlockCapacity is the byte size of every block.
	BlockCapacity int `mapstructure:"block_capacity"`
	// Zeroing clears a block before it becomes available again, so bytes of
	// one frame never leak into the next owner.
	Zeroing bool `mapstructure:"zeroing"`
}

// PoolStats is a point-in-time snapshot of pool counters.
type PoolStats struct {
	Constructed int
	Available   int
	InUse       int
	Acquired    uint64
	Released    uint64
	Exhausted   uint64
}

// Pool is a bounded set of reusable blocks. Acquire and release never block:
// when no block is available and MaxSize blocks exist, Acquire fails with
// ErrPoolExhausted.
//
// Pool is safe for concurrent use.
type Pool struct {
	opts      Options
	available chan *block

	constructed atomic.Int32
	acquired    atomic.Uint64
	released    atomic.Uint64
	exhausted   atomic.Uint64
}

// NewPool constructs InitialSize blocks and returns the pool.
func NewPool(opts Options) (*Pool, error) {
	if opts.MaxSize <= 0 || opts.InitialSize < 0 || opts.InitialSize > opts.MaxSize {
		return nil, invalidSize("pool initial size %d, max size %d", opts.InitialSize, opts.MaxSize)
	}
	if opts.BlockCapacity <= 0 {
		return nil, invalidSize("pool block capacity %d", opts.BlockCapacity)
	}
	p := &Pool{
		opts:      opts,
		available: make(chan *block, opts.MaxSize),
	}
	for i := 0; i < opts.InitialSize; i++ {
		p.constructed.Inc()
		p.available <- p.newBlock()
	}
	return p, nil
}

// BlockCapacity returns the byte size of every block.
func (p *Pool) BlockCapacity() int { return p.opts.BlockCapacity }

// MaxSize returns the block ceiling.
func (p *Pool) MaxSize() int { return p.opts.MaxSize }

// Allocate implements Allocator with both cursors at zero.
func (p *Pool) Allocate(capacity, maxCapacity int) (*Buffer, error) {
	return p.Acquire(capacity, maxCapacity, 0, 0)
}

// Acquire hands out a block with a reference count of one and the given
// capacity and cursor positions. A free block is reused when present;
// otherwise a new one is constructed while fewer than MaxSize exist.
func (p *Pool) Acquire(capacity, maxCapacity, readerIndex, writerIndex int) (*Buffer, error) {
	if err := validateCapacity(capacity, maxCapacity, p.opts.BlockCapacity); err != nil {
		return nil, err
	}
	if readerIndex < 0 || readerIndex > writerIndex || writerIndex > capacity {
		return nil, fmt.Errorf("%w: reader index %d, writer index %d, capacity %d",
			ErrIndexOutOfBounds, readerIndex, writerIndex, capacity)
	}

	blk, err := p.take()
	if err != nil {
		return nil, err
	}
	gen, ok := blk.issue()
	if !ok {
		// A block in the free queue must be idle.
		panic(fmt.Sprintf("buffer: pooled block issued while in use (state %#x)", blk.state.Load()))
	}
	p.acquired.Inc()

	b := newBuffer(blk, gen, 0, capacity, maxCapacity)
	b.readerIndex, b.writerIndex = readerIndex, writerIndex
	return b, nil
}

func (p *Pool) take() (*block, error) {
	select {
	case blk := <-p.available:
		return blk, nil
	default:
	}
	for {
		n := p.constructed.Load()
		if int(n) >= p.opts.MaxSize {
			break
		}
		if p.constructed.CompareAndSwap(n, n+1) {
			return p.newBlock(), nil
		}
	}
	// A release may have raced with the ceiling check.
	select {
	case blk := <-p.available:
		return blk, nil
	default:
	}
	p.exhausted.Inc()
	return nil, fmt.Errorf("%w: %d blocks in use", ErrPoolExhausted, p.opts.MaxSize)
}

func (p *Pool) newBlock() *block {
	return &block{mem: make([]byte, p.opts.BlockCapacity), pool: p}
}

// recycle is called by block.release once the count reached zero.
func (p *Pool) recycle(blk *block) {
	if p.opts.Zeroing {
		clear(blk.mem)
	}
	p.released.Inc()
	select {
	case p.available <- blk:
	default:
		// Cannot happen: the queue holds MaxSize blocks and at most
		// MaxSize are ever constructed.
		p.constructed.Dec()
	}
}

// Stats returns the current counters.
func (p *Pool) Stats() PoolStats {
	constructed := int(p.constructed.Load())
	available := len(p.available)
	return PoolStats{
		Constructed: constructed,
		Available:   available,
		InUse:       constructed - available,
		Acquired:    p.acquired.Load(),
		Released:    p.released.Load(),
		Exhausted:   p.exhausted.Load(),
	}
}
