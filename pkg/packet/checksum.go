package packet

import "encoding/binary"

// sum16 adds data as big-endian 16-bit words, treating the word at skip as
// zero. A negative skip sums every word. An odd trailing byte is padded with
// zero.
func sum16(data []byte, skip int, acc uint32) uint32 {
	n := len(data) &^ 1
	for i := 0; i < n; i += 2 {
		if i == skip {
			continue
		}
		acc += uint32(binary.BigEndian.Uint16(data[i:]))
	}
	if len(data)&1 == 1 {
		acc += uint32(data[len(data)-1]) << 8
	}
	return acc
}

// fold reduces acc with end-around carry and returns its one's complement.
func fold(acc uint32) uint16 {
	for acc>>16 != 0 {
		acc = acc&0xffff + acc>>16
	}
	return ^uint16(acc)
}

// Checksum computes the RFC 1071 Internet checksum of data with the 16-bit
// word at offset skip excluded.
func Checksum(data []byte, skip int) uint16 {
	return fold(sum16(data, skip, 0))
}

// pseudoHeaderSum is the partial sum of the IPv4 or IPv6 pseudo-header.
// src and dst are 4 or 16 bytes long.
func pseudoHeaderSum(src, dst []byte, proto uint8, length int) uint32 {
	acc := sum16(src, -1, 0)
	acc = sum16(dst, -1, acc)
	acc += uint32(proto)
	if len(src) == 16 {
		acc += uint32(length>>16) + uint32(length&0xffff)
	} else {
		acc += uint32(length & 0xffff)
	}
	return acc
}

// transportChecksum computes the checksum of segment behind the pseudo-header
// of src, dst, excluding the checksum word at skip.
func transportChecksum(src, dst []byte, proto uint8, segment []byte, skip int) uint16 {
	return fold(sum16(segment, skip, pseudoHeaderSum(src, dst, proto, len(segment))))
}
