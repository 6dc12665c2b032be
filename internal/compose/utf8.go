package compose

import "fmt"

// ScalarCount returns the number of Unicode scalar values in s. A scalar is
// a lead byte in [0x00, 0x7F] or [0xC2, 0xF4] followed by its continuation
// bytes in [0x80, 0xBF]. Every byte of s must belong to exactly one scalar:
// malformed UTF-8 means the upstream text assembler violated its contract,
// so it is reported as an error rather than folded into a wrong count.
func ScalarCount(s string) (int, error) {
	count := 0
	for i := 0; i < len(s); {
		var size int
		switch b := s[i]; {
		case b <= 0x7F:
			size = 1
		case 0xC2 <= b && b <= 0xDF:
			size = 2
		case 0xE0 <= b && b <= 0xEF:
			size = 3
		case 0xF0 <= b && b <= 0xF4:
			size = 4
		default:
			return 0, fmt.Errorf("invalid UTF-8 lead byte 0x%02X at offset %d", b, i)
		}
		for j := 1; j < size; j++ {
			if i+j >= len(s) {
				return 0, fmt.Errorf("truncated UTF-8 sequence at offset %d", i)
			}
			if c := s[i+j]; c < 0x80 || c > 0xBF {
				return 0, fmt.Errorf("invalid UTF-8 continuation byte 0x%02X at offset %d", c, i+j)
			}
		}
		i += size
		count++
	}
	return count, nil
}
