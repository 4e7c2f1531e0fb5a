package buffer

import (
	"encoding/binary"
	"fmt"
)

// Absolute accessors (Get*/Set*) never move the cursors. Relative accessors
// (Read*/Write*) advance ReaderIndex/WriterIndex by the accessed width.
// The RE variants use the byte order opposite to Order(), for mixed-endian
// formats such as network-order fields inside a host-order capture header.

func decodeUint(p []byte, big bool) uint64 {
	switch len(p) {
	case 1:
		return uint64(p[0])
	case 2:
		if big {
			return uint64(binary.BigEndian.Uint16(p))
		}
		return uint64(binary.LittleEndian.Uint16(p))
	case 4:
		if big {
			return uint64(binary.BigEndian.Uint32(p))
		}
		return uint64(binary.LittleEndian.Uint32(p))
	case 8:
		if big {
			return binary.BigEndian.Uint64(p)
		}
		return binary.LittleEndian.Uint64(p)
	}
	var v uint64
	if big {
		for _, c := range p {
			v = v<<8 | uint64(c)
		}
		return v
	}
	for i := len(p) - 1; i >= 0; i-- {
		v = v<<8 | uint64(p[i])
	}
	return v
}

func encodeUint(p []byte, v uint64, big bool) {
	switch len(p) {
	case 1:
		p[0] = byte(v)
		return
	case 2:
		if big {
			binary.BigEndian.PutUint16(p, uint16(v))
		} else {
			binary.LittleEndian.PutUint16(p, uint16(v))
		}
		return
	case 4:
		if big {
			binary.BigEndian.PutUint32(p, uint32(v))
		} else {
			binary.LittleEndian.PutUint32(p, uint32(v))
		}
		return
	case 8:
		if big {
			binary.BigEndian.PutUint64(p, v)
		} else {
			binary.LittleEndian.PutUint64(p, v)
		}
		return
	}
	n := len(p)
	for i := 0; i < n; i++ {
		shift := uint(8 * i)
		if big {
			p[n-1-i] = byte(v >> shift)
		} else {
			p[i] = byte(v >> shift)
		}
	}
}

func (b *Buffer) get(index, width int, reversed bool) (uint64, error) {
	p, err := b.at(index, width)
	if err != nil {
		return 0, err
	}
	return decodeUint(p, b.bigEndian != reversed), nil
}

func (b *Buffer) set(index, width int, v uint64, reversed bool) error {
	p, err := b.at(index, width)
	if err != nil {
		return err
	}
	encodeUint(p, v, b.bigEndian != reversed)
	return nil
}

func (b *Buffer) read(width int, reversed bool) (uint64, error) {
	if err := b.ensureAccessible(); err != nil {
		return 0, err
	}
	if b.ReadableBytes() < width {
		return 0, fmt.Errorf("%w: read of %d bytes with %d readable", ErrIndexOutOfBounds, width, b.ReadableBytes())
	}
	v, err := b.get(b.readerIndex, width, reversed)
	if err != nil {
		return 0, err
	}
	b.readerIndex += width
	return v, nil
}

func (b *Buffer) write(width int, v uint64, reversed bool) error {
	if err := b.ensureAccessible(); err != nil {
		return err
	}
	if b.WritableBytes() < width {
		return fmt.Errorf("%w: write of %d bytes with %d writable", ErrIndexOutOfBounds, width, b.WritableBytes())
	}
	if err := b.set(b.writerIndex, width, v, reversed); err != nil {
		return err
	}
	b.writerIndex += width
	return nil
}

// GetUint8 returns the byte at index.
func (b *Buffer) GetUint8(index int) (uint8, error) {
	v, err := b.get(index, 1, false)
	return uint8(v), err
}

// GetUint16 returns the 16-bit value at index in the buffer's order.
func (b *Buffer) GetUint16(index int) (uint16, error) {
	v, err := b.get(index, 2, false)
	return uint16(v), err
}

// GetUint16RE returns the 16-bit value at index in the reversed order.
func (b *Buffer) GetUint16RE(index int) (uint16, error) {
	v, err := b.get(index, 2, true)
	return uint16(v), err
}

// GetUint24 returns the 24-bit value at index in the buffer's order.
func (b *Buffer) GetUint24(index int) (uint32, error) {
	v, err := b.get(index, 3, false)
	return uint32(v), err
}

// GetUint24RE returns the 24-bit value at index in the reversed order.
func (b *Buffer) GetUint24RE(index int) (uint32, error) {
	v, err := b.get(index, 3, true)
	return uint32(v), err
}

// GetUint32 returns the 32-bit value at index in the buffer's order.
func (b *Buffer) GetUint32(index int) (uint32, error) {
	v, err := b.get(index, 4, false)
	return uint32(v), err
}

// GetUint32RE returns the 32-bit value at index in the reversed order.
func (b *Buffer) GetUint32RE(index int) (uint32, error) {
	v, err := b.get(index, 4, true)
	return uint32(v), err
}

// GetUint64 returns the 64-bit value at index in the buffer's order.
func (b *Buffer) GetUint64(index int) (uint64, error) {
	return b.get(index, 8, false)
}

// GetUint64RE returns the 64-bit value at index in the reversed order.
func (b *Buffer) GetUint64RE(index int) (uint64, error) {
	return b.get(index, 8, true)
}

// GetBytes copies len(dst) bytes starting at index into dst.
func (b *Buffer) GetBytes(index int, dst []byte) error {
	p, err := b.at(index, len(dst))
	if err != nil {
		return err
	}
	copy(dst, p)
	return nil
}

// SetUint8 stores v at index.
func (b *Buffer) SetUint8(index int, v uint8) error { return b.set(index, 1, uint64(v), false) }

// SetUint16 stores v at index in the buffer's order.
func (b *Buffer) SetUint16(index int, v uint16) error { return b.set(index, 2, uint64(v), false) }

// SetUint16RE stores v at index in the reversed order.
func (b *Buffer) SetUint16RE(index int, v uint16) error { return b.set(index, 2, uint64(v), true) }

// SetUint24 stores the low 24 bits of v at index in the buffer's order.
func (b *Buffer) SetUint24(index int, v uint32) error { return b.set(index, 3, uint64(v), false) }

// SetUint24RE stores the low 24 bits of v at index in the reversed order.
func (b *Buffer) SetUint24RE(index int, v uint32) error { return b.set(index, 3, uint64(v), true) }

// SetUint32 stores v at index in the buffer's order.
func (b *Buffer) SetUint32(index int, v uint32) error { return b.set(index, 4, uint64(v), false) }

// SetUint32RE stores v at index in the reversed order.
func (b *Buffer) SetUint32RE(index int, v uint32) error { return b.set(index, 4, uint64(v), true) }

// SetUint64 stores v at index in the buffer's order.
func (b *Buffer) SetUint64(index int, v uint64) error { return b.set(index, 8, v, false) }

// SetUint64RE stores v at index in the reversed order.
func (b *Buffer) SetUint64RE(index int, v uint64) error { return b.set(index, 8, v, true) }

// SetBytes copies src into the buffer starting at index.
func (b *Buffer) SetBytes(index int, src []byte) error {
	p, err := b.at(index, len(src))
	if err != nil {
		return err
	}
	copy(p, src)
	return nil
}

// ReadUint8 reads one byte and advances the reader cursor.
func (b *Buffer) ReadUint8() (uint8, error) {
	v, err := b.read(1, false)
	return uint8(v), err
}

// ReadUint16 reads a 16-bit value in the buffer's order.
func (b *Buffer) ReadUint16() (uint16, error) {
	v, err := b.read(2, false)
	return uint16(v), err
}

// ReadUint16RE reads a 16-bit value in the reversed order.
func (b *Buffer) ReadUint16RE() (uint16, error) {
	v, err := b.read(2, true)
	return uint16(v), err
}

// ReadUint24 reads a 24-bit value in the buffer's order.
func (b *Buffer) ReadUint24() (uint32, error) {
	v, err := b.read(3, false)
	return uint32(v), err
}

// ReadUint24RE reads a 24-bit value in the reversed order.
func (b *Buffer) ReadUint24RE() (uint32, error) {
	v, err := b.read(3, true)
	return uint32(v), err
}

// ReadUint32 reads a 32-bit value in the buffer's order.
func (b *Buffer) ReadUint32() (uint32, error) {
	v, err := b.read(4, false)
	return uint32(v), err
}

// ReadUint32RE reads a 32-bit value in the reversed order.
func (b *Buffer) ReadUint32RE() (uint32, error) {
	v, err := b.read(4, true)
	return uint32(v), err
}

// ReadUint64 reads a 64-bit value in the buffer's order.
func (b *Buffer) ReadUint64() (uint64, error) { return b.read(8, false) }

// ReadUint64RE reads a 64-bit value in the reversed order.
func (b *Buffer) ReadUint64RE() (uint64, error) { return b.read(8, true) }

// ReadBytes returns the next n readable bytes without copying and advances
// the reader cursor.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 || b.ReadableBytes() < n {
		return nil, fmt.Errorf("%w: read of %d bytes with %d readable", ErrIndexOutOfBounds, n, b.ReadableBytes())
	}
	p, err := b.at(b.readerIndex, n)
	if err != nil {
		return nil, err
	}
	b.readerIndex += n
	return p, nil
}

// Skip advances the reader cursor by n bytes.
func (b *Buffer) Skip(n int) error {
	_, err := b.ReadBytes(n)
	return err
}

// WriteUint8 writes one byte and advances the writer cursor.
func (b *Buffer) WriteUint8(v uint8) error { return b.write(1, uint64(v), false) }

// WriteUint16 writes v in the buffer's order.
func (b *Buffer) WriteUint16(v uint16) error { return b.write(2, uint64(v), false) }

// WriteUint16RE writes v in the reversed order.
func (b *Buffer) WriteUint16RE(v uint16) error { return b.write(2, uint64(v), true) }

// WriteUint24 writes the low 24 bits of v in the buffer's order.
func (b *Buffer) WriteUint24(v uint32) error { return b.write(3, uint64(v), false) }

// WriteUint24RE writes the low 24 bits of v in the reversed order.
func (b *Buffer) WriteUint24RE(v uint32) error { return b.write(3, uint64(v), true) }

// WriteUint32 writes v in the buffer's order.
func (b *Buffer) WriteUint32(v uint32) error { return b.write(4, uint64(v), false) }

// WriteUint32RE writes v in the reversed order.
func (b *Buffer) WriteUint32RE(v uint32) error { return b.write(4, uint64(v), true) }

// WriteUint64 writes v in the buffer's order.
func (b *Buffer) WriteUint64(v uint64) error { return b.write(8, v, false) }

// WriteUint64RE writes v in the reversed order.
func (b *Buffer) WriteUint64RE(v uint64) error { return b.write(8, v, true) }

// WriteBytes copies src at the writer cursor and advances it.
func (b *Buffer) WriteBytes(src []byte) error {
	if err := b.ensureAccessible(); err != nil {
		return err
	}
	if b.WritableBytes() < len(src) {
		return fmt.Errorf("%w: write of %d bytes with %d writable", ErrIndexOutOfBounds, len(src), b.WritableBytes())
	}
	if err := b.SetBytes(b.writerIndex, src); err != nil {
		return err
	}
	b.writerIndex += len(src)
	return nil
}
