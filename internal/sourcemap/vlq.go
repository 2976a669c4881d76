package sourcemap

import (
	"errors"
	"strings"
)

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// base64Values maps a base64 byte to its value, -1 when invalid.
var base64Values [128]int8

func init() {
	for i := range base64Values {
		base64Values[i] = -1
	}
	for i := 0; i < len(base64Alphabet); i++ {
		base64Values[base64Alphabet[i]] = int8(i)
	}
}

const (
	vlqShift        = 5
	vlqMask         = 1<<vlqShift - 1
	vlqContinuation = 1 << vlqShift
)

var (
	errVLQInvalid   = errors.New("invalid VLQ digit")
	errVLQTruncated = errors.New("truncated VLQ value")
)

// EncodeVLQ encodes a signed integer as base64 VLQ. The sign lives in the
// lowest bit of the first digit.
func EncodeVLQ(value int) string {
	var buf strings.Builder
	appendVLQ(&buf, value)
	return buf.String()
}

func appendVLQ(buf *strings.Builder, value int) {
	var v uint64
	if value < 0 {
		v = uint64(-value)<<1 | 1
	} else {
		v = uint64(value) << 1
	}
	for {
		digit := v & vlqMask
		v >>= vlqShift
		if v > 0 {
			digit |= vlqContinuation
		}
		buf.WriteByte(base64Alphabet[digit])
		if v == 0 {
			return
		}
	}
}

// DecodeVLQ decodes one value from the front of input and reports how
// many bytes it used.
func DecodeVLQ(input string) (value, consumed int, err error) {
	var v uint64
	var shift uint
	for i := 0; i < len(input); i++ {
		c := input[i]
		if c >= 128 || base64Values[c] < 0 {
			return 0, 0, errVLQInvalid
		}
		digit := uint64(base64Values[c])
		v |= (digit & vlqMask) << shift
		shift += vlqShift
		if digit&vlqContinuation == 0 {
			value = int(v >> 1)
			if v&1 != 0 {
				value = -value
			}
			return value, i + 1, nil
		}
	}
	return 0, 0, errVLQTruncated
}

// DecodeVLQSegment decodes every value of one mappings segment.
func DecodeVLQSegment(segment string) ([]int, error) {
	values := make([]int, 0, 5)
	for len(segment) > 0 {
		v, n, err := DecodeVLQ(segment)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		segment = segment[n:]
	}
	return values, nil
}
