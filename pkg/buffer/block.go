package buffer

import (
	"go.uber.org/atomic"
)

// block is a contiguous backing region shared by every handle derived from it.
//
// state packs the block generation (high 32 bits) and the reference count
// (low 32 bits) into one word so that issuance (0 → 1) and final release
// (1 → 0, generation bump) are single linearizable CAS operations. A handle
// remembers the generation it was issued under; once the block is recycled
// the generation differs and the stale handle is rejected.
type block struct {
	mem   []byte
	state atomic.Uint64
	pool  *Pool
}

const maxRefCnt = 1<<32 - 1

func packState(gen, cnt uint32) uint64 { return uint64(gen)<<32 | uint64(cnt) }

func unpackState(s uint64) (gen, cnt uint32) { return uint32(s >> 32), uint32(s) }

func newHeapBlock(mem []byte) *block {
	b := &block{mem: mem}
	b.state.Store(packState(0, 1))
	return b
}

// issue moves an idle block to in-use and returns the generation the new
// owner holds. It fails if the block is not idle.
func (b *block) issue() (uint32, bool) {
	s := b.state.Load()
	gen, cnt := unpackState(s)
	if cnt != 0 {
		return 0, false
	}
	if !b.state.CompareAndSwap(s, packState(gen, 1)) {
		return 0, false
	}
	return gen, true
}

// alive reports whether a handle issued under gen may still touch the block.
func (b *block) alive(gen uint32) bool {
	g, cnt := unpackState(b.state.Load())
	return g == gen && cnt > 0
}

func (b *block) refCnt(gen uint32) uint32 {
	g, cnt := unpackState(b.state.Load())
	if g != gen {
		return 0
	}
	return cnt
}

func (b *block) retain(gen uint32) error {
	for {
		s := b.state.Load()
		g, cnt := unpackState(s)
		if g != gen || cnt == 0 {
			return ErrUseAfterRelease
		}
		if cnt == maxRefCnt {
			return ErrRefCntOverflow
		}
		if b.state.CompareAndSwap(s, packState(g, cnt+1)) {
			return nil
		}
	}
}

// release drops one reference. It returns true when the count reached zero
// and the block was handed back to its pool (or left for the GC).
func (b *block) release(gen uint32) (bool, error) {
	for {
		s := b.state.Load()
		g, cnt := unpackState(s)
		if g != gen || cnt == 0 {
			return false, ErrDoubleRelease
		}
		if cnt > 1 {
			if b.state.CompareAndSwap(s, packState(g, cnt-1)) {
				return false, nil
			}
			continue
		}
		if b.state.CompareAndSwap(s, packState(g+1, 0)) {
			if b.pool != nil {
				b.pool.recycle(b)
			}
			return true, nil
		}
	}
}
