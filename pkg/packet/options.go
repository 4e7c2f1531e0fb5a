package packet

import "fmt"

// Option is one type-length-value option. Data aliases the frame bytes and
// excludes the type and length octets.
type Option struct {
	Type uint8
	Data []byte
}

// parseTLV walks type-length-value options where the length octet counts
// the whole option (TCP) or only its data (IPv6). Types in single are one
// octet long with no length. end stops the walk.
func parseTLV(data []byte, lengthIncludesHeader bool, single func(uint8) bool, end func(uint8) bool) ([]Option, error) {
	var opts []Option
	for i := 0; i < len(data); {
		typ := data[i]
		if end != nil && end(typ) {
			opts = append(opts, Option{Type: typ})
			break
		}
		if single(typ) {
			opts = append(opts, Option{Type: typ})
			i++
			continue
		}
		if i+1 >= len(data) {
			return opts, fmt.Errorf("%w: option %d truncated at offset %d", ErrMalformedOption, typ, i)
		}
		n := int(data[i+1])
		dataLen := n
		if lengthIncludesHeader {
			if n < 2 {
				return opts, fmt.Errorf("%w: option %d length %d", ErrMalformedOption, typ, n)
			}
			dataLen = n - 2
		}
		if i+2+dataLen > len(data) {
			return opts, fmt.Errorf("%w: option %d overruns header at offset %d", ErrMalformedOption, typ, i)
		}
		opts = append(opts, Option{Type: typ, Data: data[i+2 : i+2+dataLen : i+2+dataLen]})
		i += 2 + dataLen
	}
	return opts, nil
}
