package core

import "strconv"

// Firmware code builds its debug strings without fmt to keep the image small.

func itoa(n int) string {
	return strconv.Itoa(n)
}

func utoa(n uint32) string {
	return strconv.FormatUint(uint64(n), 10)
}

// hex16 formats a register address or value as 0xNNNN.
func hex16(v uint16) string {
	const digits = "0123456789abcdef"
	return string([]byte{'0', 'x',
		digits[v>>12&0xf], digits[v>>8&0xf], digits[v>>4&0xf], digits[v&0xf]})
}

// appendString appends s as a JSON string. Dictionary names are plain
// ASCII, so only quotes, backslashes and control characters are escaped.
func appendString(b []byte, s string) []byte {
	const digits = "0123456789abcdef"
	b = append(b, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b = append(b, '\\', c)
		case c < 0x20:
			b = append(b, '\\', 'u', '0', '0', digits[c>>4], digits[c&0xf])
		default:
			b = append(b, c)
		}
	}
	return append(b, '"')
}

// appendValue appends a dictionary constant. Integers are emitted as JSON
// numbers, everything else as a string.
func appendValue(b []byte, v interface{}) []byte {
	switch val := v.(type) {
	case string:
		return appendString(b, val)
	case int:
		return strconv.AppendInt(b, int64(val), 10)
	case int32:
		return strconv.AppendInt(b, int64(val), 10)
	case int64:
		return strconv.AppendInt(b, val, 10)
	case uint:
		return strconv.AppendUint(b, uint64(val), 10)
	case uint8:
		return strconv.AppendUint(b, uint64(val), 10)
	case uint16:
		return strconv.AppendUint(b, uint64(val), 10)
	case uint32:
		return strconv.AppendUint(b, uint64(val), 10)
	case uint64:
		return strconv.AppendUint(b, val, 10)
	case bool:
		return strconv.AppendBool(b, val)
	default:
		return appendString(b, "")
	}
}
