// Package buffer implements reference-counted byte buffers with independent
// reader/writer cursors, byte-order aware accessors and zero-copy views,
// backed either by the heap or by a bounded Pool of reusable blocks.
//
// Layout of a buffer handle:
//
//	+-------------------+------------------+------------------+
//	| discardable bytes |  readable bytes  |  writable bytes  |
//	+-------------------+------------------+------------------+
//	0      <=      readerIndex   <=   writerIndex    <=    capacity
//
// Every handle derived from the same storage (Slice, Duplicate, View) shares
// one reference count. Once the count reaches zero any further access through
// any of those handles fails with ErrUseAfterRelease.
package buffer

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/cpu"
)

// DefaultBlockCapacity is the largest buffer the default heap allocator hands out.
const DefaultBlockCapacity = 1 << 16

// NativeOrder is the byte order of the host.
var NativeOrder binary.ByteOrder = binary.LittleEndian

func init() {
	if cpu.IsBigEndian {
		NativeOrder = binary.BigEndian
	}
}

// Buffer is a handle over a region of a shared block.
//
// A Buffer is not safe for concurrent use; its reference count is. Hand a
// retained Slice or Duplicate to another goroutine instead of sharing one
// handle.
type Buffer struct {
	blk *block
	gen uint32

	base        int
	capacity    int
	maxCapacity int

	readerIndex       int
	writerIndex       int
	markedReaderIndex int

	bigEndian bool
}

func newBuffer(blk *block, gen uint32, base, capacity, maxCapacity int) *Buffer {
	return &Buffer{
		blk:         blk,
		gen:         gen,
		base:        base,
		capacity:    capacity,
		maxCapacity: maxCapacity,
		bigEndian:   true,
	}
}

// Wrap returns an unpooled buffer over data without copying. The writer index
// is set to len(data), so every byte is readable.
func Wrap(data []byte) *Buffer {
	b := newBuffer(newHeapBlock(data), 0, 0, len(data), len(data))
	b.writerIndex = len(data)
	return b
}

// Allocate returns a heap buffer using DefaultHeapAllocator.
func Allocate(capacity, maxCapacity int) (*Buffer, error) {
	return DefaultHeapAllocator.Allocate(capacity, maxCapacity)
}

// Capacity returns the current logical size of the buffer.
func (b *Buffer) Capacity() int { return b.capacity }

// MaxCapacity returns the ceiling SetCapacity may grow to.
func (b *Buffer) MaxCapacity() int { return b.maxCapacity }

// SetCapacity changes the logical size. Shrinking clamps the cursors.
func (b *Buffer) SetCapacity(n int) error {
	if err := b.ensureAccessible(); err != nil {
		return err
	}
	if n < 0 || n > b.maxCapacity || b.base+n > len(b.blk.mem) {
		return invalidSize("capacity %d exceeds max capacity %d", n, b.maxCapacity)
	}
	b.capacity = n
	if b.writerIndex > n {
		b.writerIndex = n
	}
	if b.readerIndex > b.writerIndex {
		b.readerIndex = b.writerIndex
	}
	if b.markedReaderIndex > b.readerIndex {
		b.markedReaderIndex = b.readerIndex
	}
	return nil
}

// EnsureWritable grows the capacity, within MaxCapacity, so that n more
// bytes can be written.
func (b *Buffer) EnsureWritable(n int) error {
	if n < 0 {
		return invalidSize("negative length %d", n)
	}
	if b.writerIndex+n <= b.capacity {
		return b.ensureAccessible()
	}
	if b.writerIndex+n > b.maxCapacity {
		return outOfBounds(b.writerIndex, n, b.maxCapacity)
	}
	return b.SetCapacity(b.writerIndex + n)
}

// Order returns the byte order used by the non-RE accessors.
func (b *Buffer) Order() binary.ByteOrder {
	if b.bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// SetOrder changes the byte order of this handle only.
func (b *Buffer) SetOrder(o binary.ByteOrder) *Buffer {
	b.bigEndian = isBigEndian(o)
	return b
}

func isBigEndian(o binary.ByteOrder) bool {
	return o.Uint16([]byte{0x00, 0x01}) == 1
}

// ReaderIndex returns the reader cursor.
func (b *Buffer) ReaderIndex() int { return b.readerIndex }

// WriterIndex returns the writer cursor.
func (b *Buffer) WriterIndex() int { return b.writerIndex }

// SetReaderIndex moves the reader cursor within [0, WriterIndex].
func (b *Buffer) SetReaderIndex(i int) error {
	if i < 0 || i > b.writerIndex {
		return fmt.Errorf("%w: reader index %d, writer index %d", ErrIndexOutOfBounds, i, b.writerIndex)
	}
	b.readerIndex = i
	return nil
}

// SetWriterIndex moves the writer cursor within [ReaderIndex, Capacity].
func (b *Buffer) SetWriterIndex(i int) error {
	if i < b.readerIndex || i > b.capacity {
		return fmt.Errorf("%w: writer index %d, reader index %d, capacity %d",
			ErrIndexOutOfBounds, i, b.readerIndex, b.capacity)
	}
	b.writerIndex = i
	return nil
}

// SetIndex sets both cursors at once.
func (b *Buffer) SetIndex(readerIndex, writerIndex int) error {
	if readerIndex < 0 || readerIndex > writerIndex || writerIndex > b.capacity {
		return fmt.Errorf("%w: reader index %d, writer index %d, capacity %d",
			ErrIndexOutOfBounds, readerIndex, writerIndex, b.capacity)
	}
	b.readerIndex, b.writerIndex = readerIndex, writerIndex
	return nil
}

// Clear resets both cursors to zero. The bytes are left untouched.
func (b *Buffer) Clear() {
	b.readerIndex, b.writerIndex, b.markedReaderIndex = 0, 0, 0
}

// MarkReaderIndex records the reader cursor for ResetReaderIndex.
func (b *Buffer) MarkReaderIndex() { b.markedReaderIndex = b.readerIndex }

// ResetReaderIndex restores the cursor recorded by MarkReaderIndex.
func (b *Buffer) ResetReaderIndex() { b.readerIndex = b.markedReaderIndex }

// ReadableBytes returns WriterIndex - ReaderIndex.
func (b *Buffer) ReadableBytes() int { return b.writerIndex - b.readerIndex }

// WritableBytes returns Capacity - WriterIndex.
func (b *Buffer) WritableBytes() int { return b.capacity - b.writerIndex }

// IsReadable reports whether at least n bytes can be read.
func (b *Buffer) IsReadable(n int) bool { return b.ReadableBytes() >= n }

// IsPooled reports whether the storage returns to a Pool on release.
func (b *Buffer) IsPooled() bool { return b.blk.pool != nil }

// RefCnt returns the shared reference count, or 0 once released.
func (b *Buffer) RefCnt() int { return int(b.blk.refCnt(b.gen)) }

// Retain increments the shared reference count.
func (b *Buffer) Retain() (*Buffer, error) {
	if err := b.blk.retain(b.gen); err != nil {
		return nil, err
	}
	return b, nil
}

// Release decrements the shared reference count. It returns true when the
// count reached zero and the storage was returned to its pool or freed.
// Releasing past zero returns ErrDoubleRelease.
func (b *Buffer) Release() (bool, error) {
	return b.blk.release(b.gen)
}

// Bytes returns the readable bytes without copying. The slice is only valid
// until the buffer is released.
func (b *Buffer) Bytes() []byte {
	if !b.blk.alive(b.gen) {
		return nil
	}
	lo, hi := b.base+b.readerIndex, b.base+b.writerIndex
	return b.blk.mem[lo:hi:hi]
}

// Slice returns a retained handle over [index, index+length) sharing storage
// and reference count with b. Its cursors are independent: reader 0,
// writer length. The caller must Release it.
func (b *Buffer) Slice(index, length int) (*Buffer, error) {
	s, err := b.View(index, length)
	if err != nil {
		return nil, err
	}
	if err := b.blk.retain(b.gen); err != nil {
		return nil, err
	}
	return s, nil
}

// View is Slice without retaining. The view is valid only while some owner
// of the shared reference count keeps it above zero; releasing the owner
// invalidates every view derived from it.
func (b *Buffer) View(index, length int) (*Buffer, error) {
	if err := b.ensureAccessible(); err != nil {
		return nil, err
	}
	if err := b.checkIndex(index, length); err != nil {
		return nil, err
	}
	v := newBuffer(b.blk, b.gen, b.base+index, length, length)
	v.writerIndex = length
	v.bigEndian = b.bigEndian
	return v, nil
}

// ReadableView returns a View over the readable bytes.
func (b *Buffer) ReadableView() (*Buffer, error) {
	return b.View(b.readerIndex, b.ReadableBytes())
}

// Duplicate returns a retained handle over the same region with a copy of
// the current cursors. The caller must Release it.
func (b *Buffer) Duplicate() (*Buffer, error) {
	if err := b.blk.retain(b.gen); err != nil {
		return nil, err
	}
	d := *b
	return &d, nil
}

// Copy returns a heap buffer holding a deep copy of [index, index+length).
// The copy has its own reference count.
func (b *Buffer) Copy(index, length int) (*Buffer, error) {
	p, err := b.at(index, length)
	if err != nil {
		return nil, err
	}
	mem := make([]byte, length)
	copy(mem, p)
	c := Wrap(mem)
	c.bigEndian = b.bigEndian
	return c, nil
}

// String describes the handle state for logs.
func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(ridx: %d, widx: %d, cap: %d/%d, refCnt: %d)",
		b.readerIndex, b.writerIndex, b.capacity, b.maxCapacity, b.RefCnt())
}

func (b *Buffer) ensureAccessible() error {
	if !b.blk.alive(b.gen) {
		return ErrUseAfterRelease
	}
	return nil
}

func (b *Buffer) checkIndex(index, width int) error {
	if index < 0 || width < 0 || index > b.capacity-width {
		return outOfBounds(index, width, b.capacity)
	}
	return nil
}

// at returns the live byte window [index, index+width) after checking the
// handle is alive and the window is in bounds.
func (b *Buffer) at(index, width int) ([]byte, error) {
	if err := b.ensureAccessible(); err != nil {
		return nil, err
	}
	if err := b.checkIndex(index, width); err != nil {
		return nil, err
	}
	start := b.base + index
	return b.blk.mem[start : start+width : start+width], nil
}
